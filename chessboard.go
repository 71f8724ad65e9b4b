package scanfieldcal

import (
	"image"

	"github.com/golang/geo/r2"

	"go.viam.com/rdk/logging"
)

// PreviewStage selects an intermediate image of the recognizer to keep.
type PreviewStage int

const (
	PreviewNone PreviewStage = iota
	PreviewSmoothed
	PreviewBinarized
	PreviewDilated
	PreviewEroded
	PreviewCornersBlackToWhite
	PreviewCornersWhiteToBlack
)

// ChessboardOptions tunes the recognizer. Zero values select the defaults.
type ChessboardOptions struct {
	// Threshold for binarization. 0 searches around the mean intensity.
	Threshold     int     `json:"threshold,omitempty" mapstructure:"threshold"`
	MinSquareSize int     `json:"min_square_size,omitempty" mapstructure:"min_square_size"`
	ClusterRadius int     `json:"cluster_radius,omitempty" mapstructure:"cluster_radius"`
	Sigma         float64 `json:"sigma,omitempty" mapstructure:"sigma"`

	// KeepRawCorners skips moving corners onto the fitted row and column lines.
	KeepRawCorners bool `json:"keep_raw_corners,omitempty" mapstructure:"keep_raw_corners"`

	Preview PreviewStage `json:"preview,omitempty" mapstructure:"preview"`
}

func (o ChessboardOptions) withDefaults() ChessboardOptions {
	if o.MinSquareSize <= 0 {
		o.MinSquareSize = defaultMinSquareSize
	}
	if o.ClusterRadius <= 0 {
		o.ClusterRadius = defaultClusterRadius
	}
	if o.Sigma == 0 {
		o.Sigma = 1.0
	}
	return o
}

// ChessboardResult is the outcome of one recognition. When Valid is false the
// grid is empty.
type ChessboardResult struct {
	Valid     bool
	Threshold int

	// RawCorners are the ordered cluster centers of the last threshold tried.
	RawCorners     []image.Point
	InvalidCorners []r2.Point

	Grid    *CornerGrid
	Preview *image.Gray
}

func (r *ChessboardResult) ScaleFactor() float64 {
	if !r.Valid {
		return 0
	}
	return r.Grid.ScaleFactor()
}

func (r *ChessboardResult) PixelPerMM(squareSideMM float64) float64 {
	if !r.Valid {
		return 0
	}
	return r.Grid.PixelPerMM(squareSideMM)
}

// thresholdCandidates lists the thresholds to try, in order.
func thresholdCandidates(guess int, provided bool) []int {
	if provided {
		return []int{guess}
	}
	candidates := []int{guess}
	for i := 1; i < 3; i++ {
		candidates = append(candidates, guess+i, guess-i)
	}
	return candidates
}

// RecognizeChessboard finds the corner grid of a chessboard covering img.
func RecognizeChessboard(img image.Image, opts ChessboardOptions, logger logging.Logger) *ChessboardResult {
	opts = opts.withDefaults()
	area := image.Rect(0, 0, 0, 0)
	if img != nil {
		area = image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy())
	}
	res := &ChessboardResult{Grid: newCornerGrid(area), Threshold: opts.Threshold}
	if area.Empty() {
		return res
	}

	// Step 1: smooth
	raw := makeGrayMatrix(img)
	smoothed := smoothImage(img, opts.Sigma)
	if opts.Preview == PreviewSmoothed {
		res.Preview = matrixToGray(smoothed)
	}

	// Step 2: pick the threshold candidates
	provided := opts.Threshold > 0
	guess := opts.Threshold
	if !provided {
		guess = guessThreshold(raw, thresholdBorder)
	}
	res.Threshold = guess

	inner := innerRegion(area.Dx(), area.Dy(), thresholdBorder)
	expected := float64(inner.Dx()*inner.Dy()) * 255 / 2
	minSum := int(0.8 * expected)
	maxSum := int(1.2 * expected)

	for _, threshold := range thresholdCandidates(guess, provided) {
		logger.Debugf("chessboard: trying threshold %d", threshold)

		// Step 3: binarize and open
		bin := res.binaryImage(smoothed, threshold, opts.Preview)
		if !provided {
			sum := regionSum(bin, inner)
			if sum < minSum || sum > maxSum {
				logger.Debugf("chessboard: threshold %d gives low contrast (%.2f)", threshold, float64(sum)/expected)
				continue
			}
		}

		// Step 4: corner responses
		candidates := res.cornerCandidates(bin, opts.Preview)

		// Step 5: clusters
		list := rawCorners(candidates, opts.ClusterRadius, opts.MinSquareSize)
		res.RawCorners = list.points
		res.InvalidCorners = list.invalid
		if len(list.invalid) > 0 {
			logger.Debugf("chessboard: %d corners rejected", len(list.invalid))
		}

		// Step 6: grid
		grid, ok := reconstructGrid(list.points, opts, area, logger)
		if ok {
			res.Valid = true
			res.Threshold = threshold
			res.Grid = grid
			logger.Infof("chessboard: threshold %d, %d rows, %d columns", threshold, grid.NumRows(), grid.NumColumns())
			return res
		}
	}

	logger.Warnf("chessboard: no valid corner grid found")
	return res
}

func (r *ChessboardResult) keepPreview(stage, want PreviewStage, m [][]int) {
	if stage == want && r.Preview == nil {
		r.Preview = matrixToGray(m)
	}
}

func (r *ChessboardResult) binaryImage(smoothed [][]int, threshold int, preview PreviewStage) [][]int {
	bin := binarize(smoothed, threshold)
	r.keepPreview(PreviewBinarized, preview, bin)
	bin = morphBinary(bin, dilationMask)
	r.keepPreview(PreviewDilated, preview, bin)
	bin = morphBinary(bin, erosionMask)
	r.keepPreview(PreviewEroded, preview, bin)
	return bin
}

func (r *ChessboardResult) cornerCandidates(bin [][]int, preview PreviewStage) []image.Point {
	var points []image.Point
	for _, t := range []CornerTransition{BlackToWhite, WhiteToBlack} {
		response := convolve(bin, cornerMask(t))
		if t == BlackToWhite {
			r.keepPreview(PreviewCornersBlackToWhite, preview, response)
		} else {
			r.keepPreview(PreviewCornersWhiteToBlack, preview, response)
		}
		points = append(points, thresholdPoints(response, cornerResponseThreshold, cornerMaskHalf)...)
	}
	return points
}

func reconstructGrid(points []image.Point, opts ChessboardOptions, area image.Rectangle, logger logging.Logger) (*CornerGrid, bool) {
	lines, ok := buildLines(points, opts.MinSquareSize, logger)
	if !ok {
		return newCornerGrid(area), false
	}
	grid, ok := buildCornerGrid(lines, opts.MinSquareSize, area, logger)
	if !ok || grid.Empty() {
		return newCornerGrid(area), false
	}
	if !opts.KeepRawCorners {
		moved := grid.linearize()
		logger.Debugf("chessboard: %d corners moved onto fitted lines", moved)
	}
	grid.link()
	return grid, true
}
