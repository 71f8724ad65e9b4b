package scanfieldcal

import (
	"image"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"go.viam.com/rdk/logging"
)

const (
	ScanFieldImageFile       = "ScanFieldImage.bmp"
	ScanFieldImageConfigFile = "ScanFieldImage.yaml"
)

// Stitcher accumulates camera tiles into one scan-field image, averaging
// wherever tiles overlap. It is not safe for concurrent use.
type Stitcher struct {
	params ScanFieldImageParameters
	logger logging.Logger

	sum      []float64
	coverage []uint32
}

func NewStitcher(params ScanFieldImageParameters, logger logging.Logger) *Stitcher {
	n := 0
	if params.Width > 0 && params.Height > 0 {
		n = params.Width * params.Height
	}
	return &Stitcher{
		params:   params,
		logger:   logger,
		sum:      make([]float64, n),
		coverage: make([]uint32, n),
	}
}

func (s *Stitcher) Parameters() ScanFieldImageParameters {
	return s.params
}

func (s *Stitcher) bounds() image.Rectangle {
	if len(s.sum) == 0 {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, s.params.Width, s.params.Height)
}

// PasteImage adds tile to the canvas with its top-left corner at
// (topLeftX, topLeftY), in before-mirroring canvas coordinates. The tile is
// clipped to the canvas; false means nothing overlapped.
func (s *Stitcher) PasteImage(tile *image.Gray, topLeftX, topLeftY int) bool {
	tw, th := tile.Rect.Dx(), tile.Rect.Dy()
	dst := image.Rect(topLeftX, topLeftY, topLeftX+tw, topLeftY+th).Intersect(s.bounds())
	if dst.Empty() {
		return false
	}

	mode := s.params.ScanMaster.MirrorMode()
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		row := y * s.params.Width
		for x := dst.Min.X; x < dst.Max.X; x++ {
			u, v := mode.applyInt(x-topLeftX, y-topLeftY, tw, th)
			value := tile.Pix[tile.PixOffset(tile.Rect.Min.X+u, tile.Rect.Min.Y+v)]
			s.sum[row+x] += float64(value)
			s.coverage[row+x]++
		}
	}
	return true
}

// PasteAt pastes a tile centered on scanner position (xMM, yMM).
func (s *Stitcher) PasteAt(tile *image.Gray, xMM, yMM float64) (image.Point, bool) {
	tl := s.params.TopLeftCornerBeforeMirroring(tile.Rect.Dx(), tile.Rect.Dy(), xMM, yMM)
	return tl, s.PasteImage(tile, tl.X, tl.Y)
}

// CoveredPixels counts canvas pixels that received at least one tile pixel.
func (s *Stitcher) CoveredPixels() int {
	n := 0
	for _, c := range s.coverage {
		if c > 0 {
			n++
		}
	}
	return n
}

// Compute returns the averaged canvas in mirrored (final) coordinates.
// Uncovered pixels are 0.
func (s *Stitcher) Compute() *image.Gray {
	out := image.NewGray(s.bounds())
	if len(s.sum) == 0 {
		return out
	}

	w, h := s.params.Width, s.params.Height
	mode := s.params.ScanMaster.MirrorMode()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bx, by := mode.applyInt(x, y, w, h)
			i := by*w + bx
			count := s.coverage[i]
			if count == 0 {
				continue
			}
			out.Pix[out.PixOffset(x, y)] = uint8(math.Round(s.sum[i] / float64(count)))
		}
	}
	return out
}

// ComputeAndWriteScanFieldImage computes the canvas and, when outputFolder is
// not empty, writes it with the parameters needed to map its pixels back to
// scanner positions. The returned folder and config path are empty when
// nothing was written.
func (s *Stitcher) ComputeAndWriteScanFieldImage(outputFolder string) (*image.Gray, string, string) {
	img := s.Compute()
	if outputFolder == "" {
		return img, "", ""
	}

	if err := os.MkdirAll(outputFolder, 0o755); err != nil {
		s.logger.Warnf("cannot create scan field image folder %s: %v", outputFolder, err)
		return img, "", ""
	}

	imagePath := filepath.Join(outputFolder, ScanFieldImageFile)
	configPath := filepath.Join(outputFolder, ScanFieldImageConfigFile)
	err := multierr.Combine(
		WriteImage(imagePath, img),
		SaveScanFieldImageParameters(configPath, s.params),
	)
	if err != nil {
		s.logger.Warnf("cannot write scan field image to %s: %v", outputFolder, err)
		return img, "", ""
	}

	s.logger.Infof("scan field image %dx%d written to %s", img.Rect.Dx(), img.Rect.Dy(), imagePath)
	return img, outputFolder, configPath
}
