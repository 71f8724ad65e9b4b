package scanfieldcal

import (
	"image"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

const (
	cornerMaskSize = 13
	cornerMaskHalf = cornerMaskSize / 2

	// thresholdBorder is the band excluded from the threshold statistics.
	thresholdBorder       = cornerMaskSize
	defaultThresholdGuess = 125

	cornerResponseThreshold = 200
)

// CornerTransition selects one of the two corner detector kernels.
type CornerTransition int

const (
	BlackToWhite CornerTransition = iota
	WhiteToBlack
)

func (t CornerTransition) String() string {
	if t == BlackToWhite {
		return "black-to-white"
	}
	return "white-to-black"
}

// cornerPattern responds to a chessboard intersection with white top-left
// and bottom-right quadrants. Only the outer rings are populated.
var cornerPattern = [cornerMaskSize][cornerMaskSize]int{
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, -1},
	{1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, -1, -1},
	{1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, -1, -1},
	{0, 0, 1, 0, 0, 0, 0, 0, 0, 0, -1, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, -1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0},
	{-1, -1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1},
	{-1, -1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1},
	{-1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
}

// cornerKernel is the detector pattern with the divisor that makes a perfect
// intersection of the matching kind respond with 255.
type cornerKernel struct {
	weights [][]int
	divisor int
}

func cornerMask(t CornerTransition) cornerKernel {
	positive := 0
	weights := make([][]int, cornerMaskSize)
	for y, row := range cornerPattern {
		weights[y] = make([]int, cornerMaskSize)
		for x, v := range row {
			weights[y][x] = v
			if v > 0 {
				positive += v
			}
		}
	}
	if t == BlackToWhite {
		positive = -positive
	}
	return cornerKernel{weights: weights, divisor: positive}
}

var (
	dilationMask = [][]int{
		{0, 1, 0},
		{1, 1, 1},
		{0, 1, 0},
	}
	erosionMask = [][]int{
		{1, 1, 1},
		{1, 1, 1},
		{1, 1, 1},
	}
)

func newMatrix(width, height int) [][]int {
	m := make([][]int, height)
	for y := range height {
		m[y] = make([]int, width)
	}
	return m
}

func makeGrayMatrix(img image.Image) [][]int {
	g := ToGray(img)
	width, height := g.Rect.Dx(), g.Rect.Dy()
	gray := newMatrix(width, height)
	for y := range height {
		row := g.Pix[y*g.Stride : y*g.Stride+width]
		for x, v := range row {
			gray[y][x] = int(v)
		}
	}
	return gray
}

func matrixToGray(m [][]int) *image.Gray {
	height := len(m)
	width := 0
	if height > 0 {
		width = len(m[0])
	}
	g := image.NewGray(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			g.Pix[y*g.Stride+x] = uint8(clampInt(m[y][x], 0, 255))
		}
	}
	return g
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// smoothImage applies a gaussian blur and returns the gray levels.
func smoothImage(img image.Image, sigma float64) [][]int {
	if sigma <= 0 {
		return makeGrayMatrix(img)
	}
	return makeGrayMatrix(imaging.Blur(img, sigma))
}

// innerRegion is the part of a width x height image left after removing
// border pixels on every side; it is empty when nothing is left.
func innerRegion(width, height, border int) image.Rectangle {
	if width-2*border <= 0 || height-2*border <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(border, border, width-border, height-border)
}

// guessThreshold is the mean gray level inside the border band, truncated.
func guessThreshold(gray [][]int, border int) int {
	height := len(gray)
	if height == 0 {
		return defaultThresholdGuess
	}
	r := innerRegion(len(gray[0]), height, border)
	if r.Empty() {
		return defaultThresholdGuess
	}

	values := make([]float64, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			values = append(values, float64(gray[y][x]))
		}
	}
	return int(stat.Mean(values, nil))
}

func regionSum(m [][]int, r image.Rectangle) int {
	sum := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sum += m[y][x]
		}
	}
	return sum
}

// binarize maps every pixel below threshold to 0 and the rest to 255.
func binarize(gray [][]int, threshold int) [][]int {
	height := len(gray)
	out := make([][]int, height)
	for y := range height {
		out[y] = make([]int, len(gray[y]))
		for x, v := range gray[y] {
			if v >= threshold {
				out[y][x] = 255
			}
		}
	}
	return out
}

// morphBinary sets a pixel to white when the masked neighbourhood holds more
// white than (mask side - 1) full pixels. The one pixel border stays black.
func morphBinary(bin [][]int, mask [][]int) [][]int {
	height := len(bin)
	if height == 0 {
		return nil
	}
	width := len(bin[0])
	radius := len(mask) / 2
	limit := (len(mask) - 1) * 255

	out := newMatrix(width, height)
	for y := radius; y < height-radius; y++ {
		for x := radius; x < width-radius; x++ {
			sum := 0
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					sum += bin[y+dy][x+dx] * mask[dy+radius][dx+radius]
				}
			}
			if sum > limit {
				out[y][x] = 255
			}
		}
	}
	return out
}

// convolve correlates gray with the kernel and clamps the response to
// [0, 255]. Pixels closer to the border than half the kernel stay 0.
func convolve(gray [][]int, k cornerKernel) [][]int {
	height := len(gray)
	if height == 0 {
		return nil
	}
	width := len(gray[0])
	radius := len(k.weights) / 2

	out := newMatrix(width, height)
	for y := radius; y < height-radius; y++ {
		for x := radius; x < width-radius; x++ {
			sum := 0
			for dy := -radius; dy <= radius; dy++ {
				line := gray[y+dy]
				weights := k.weights[dy+radius]
				for dx := -radius; dx <= radius; dx++ {
					if w := weights[dx+radius]; w != 0 {
						sum += line[x+dx] * w
					}
				}
			}
			out[y][x] = clampInt(sum/k.divisor, 0, 255)
		}
	}
	return out
}

// thresholdPoints lists, row by row, the pixels whose response reaches
// threshold, ignoring a band of border pixels.
func thresholdPoints(response [][]int, threshold, border int) []image.Point {
	height := len(response)
	if height == 0 {
		return nil
	}
	width := len(response[0])

	var points []image.Point
	for y := border; y < height-border; y++ {
		for x := border; x < width-border; x++ {
			if response[y][x] >= threshold {
				points = append(points, image.Point{x, y})
			}
		}
	}
	return points
}
