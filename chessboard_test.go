package scanfieldcal

import (
	"image"
	"math"
	"testing"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"
)

// makeChessboard tiles the whole image with squares, white at the top left.
func makeChessboard(w, h, square int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/square+y/square)%2 == 0 {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}
	return img
}

func TestRecognizeChessboard(t *testing.T) {
	img := makeChessboard(640, 480, 40)
	res := RecognizeChessboard(img, ChessboardOptions{}, logging.NewTestLogger(t))

	test.That(t, res.Valid, test.ShouldBeTrue)
	test.That(t, res.Grid.NumRows(), test.ShouldEqual, 11)
	test.That(t, res.Grid.NumColumns(), test.ShouldEqual, 15)
	for i := range res.Grid.NumRows() {
		test.That(t, len(res.Grid.Row(i)), test.ShouldEqual, 15)
	}
	test.That(t, res.ScaleFactor(), test.ShouldAlmostEqual, 40, 1)
	test.That(t, res.PixelPerMM(2), test.ShouldAlmostEqual, 20, 0.5)

	for _, c := range res.Grid.Corners() {
		wantX := float64(40 * (c.Column + 1))
		wantY := float64(40 * (c.Row + 1))
		test.That(t, math.Abs(c.Position.X-wantX), test.ShouldBeLessThan, 3)
		test.That(t, math.Abs(c.Position.Y-wantY), test.ShouldBeLessThan, 3)
	}

	c, ok := res.Grid.At(5, 7)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c.Left.Column, test.ShouldEqual, 6)
	test.That(t, c.Right.Column, test.ShouldEqual, 8)
	test.That(t, c.Up.Row, test.ShouldEqual, 4)
	test.That(t, c.Down.Row, test.ShouldEqual, 6)

	first, ok := res.Grid.At(0, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, first.Left, test.ShouldBeNil)
	test.That(t, first.Up, test.ShouldBeNil)
}

func TestRecognizeChessboardGivenThreshold(t *testing.T) {
	img := makeChessboard(640, 480, 40)
	res := RecognizeChessboard(img, ChessboardOptions{Threshold: 128, KeepRawCorners: true}, logging.NewTestLogger(t))

	test.That(t, res.Valid, test.ShouldBeTrue)
	test.That(t, res.Threshold, test.ShouldEqual, 128)
	test.That(t, res.ScaleFactor(), test.ShouldAlmostEqual, 40, 1)
	test.That(t, len(res.RawCorners), test.ShouldEqual, 11*15)
}

func TestRecognizeChessboardUniform(t *testing.T) {
	img := uniformTile(200, 200, 128)
	res := RecognizeChessboard(img, ChessboardOptions{}, logging.NewTestLogger(t))

	test.That(t, res.Valid, test.ShouldBeFalse)
	test.That(t, res.Grid.Empty(), test.ShouldBeTrue)
	test.That(t, res.ScaleFactor(), test.ShouldEqual, 0.0)
}

func TestRecognizeChessboardEmptyImage(t *testing.T) {
	logger := logging.NewTestLogger(t)
	res := RecognizeChessboard(image.NewGray(image.Rectangle{}), ChessboardOptions{}, logger)
	test.That(t, res.Valid, test.ShouldBeFalse)
	test.That(t, res.Grid.Empty(), test.ShouldBeTrue)

	res = RecognizeChessboard(nil, ChessboardOptions{}, logger)
	test.That(t, res.Valid, test.ShouldBeFalse)
}

func TestRecognizeChessboardSmallImage(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, size := range []image.Point{{1, 1}, {3, 3}, {5, 100}, {100, 5}, {20, 20}} {
		res := RecognizeChessboard(makeChessboard(size.X, size.Y, 4), ChessboardOptions{}, logger)
		test.That(t, res.Valid, test.ShouldBeFalse)
		test.That(t, res.Grid.Empty(), test.ShouldBeTrue)
	}
}

func TestInnerRegion(t *testing.T) {
	test.That(t, innerRegion(640, 480, 13), test.ShouldResemble, image.Rect(13, 13, 627, 467))
	test.That(t, innerRegion(27, 27, 13), test.ShouldResemble, image.Rect(13, 13, 14, 14))
	test.That(t, innerRegion(26, 100, 13).Empty(), test.ShouldBeTrue)
	test.That(t, innerRegion(20, 20, 13).Empty(), test.ShouldBeTrue)
	test.That(t, innerRegion(5, 100, 13).Empty(), test.ShouldBeTrue)
	test.That(t, innerRegion(1, 1, 13).Empty(), test.ShouldBeTrue)

	test.That(t, guessThreshold(newMatrix(5, 100), 13), test.ShouldEqual, defaultThresholdGuess)
}

func TestChessboardPreview(t *testing.T) {
	img := makeChessboard(320, 240, 40)
	logger := logging.NewTestLogger(t)

	for _, stage := range []PreviewStage{PreviewSmoothed, PreviewBinarized, PreviewEroded, PreviewCornersWhiteToBlack} {
		res := RecognizeChessboard(img, ChessboardOptions{Preview: stage}, logger)
		test.That(t, res.Preview, test.ShouldNotBeNil)
		test.That(t, res.Preview.Bounds(), test.ShouldResemble, img.Bounds())
	}

	res := RecognizeChessboard(img, ChessboardOptions{Preview: PreviewBinarized}, logger)
	for _, v := range res.Preview.Pix {
		test.That(t, v == 0 || v == 255, test.ShouldBeTrue)
	}

	res = RecognizeChessboard(img, ChessboardOptions{}, logger)
	test.That(t, res.Preview, test.ShouldBeNil)
}

func TestThresholdCandidates(t *testing.T) {
	test.That(t, thresholdCandidates(100, false), test.ShouldResemble, []int{100, 101, 99, 102, 98})
	test.That(t, thresholdCandidates(100, true), test.ShouldResemble, []int{100})
}

func TestGuessThreshold(t *testing.T) {
	gray := makeGrayMatrix(uniformTile(40, 40, 77))
	test.That(t, guessThreshold(gray, thresholdBorder), test.ShouldEqual, 77)

	small := makeGrayMatrix(uniformTile(20, 20, 77))
	test.That(t, guessThreshold(small, thresholdBorder), test.ShouldEqual, defaultThresholdGuess)
}

func TestMorphBinary(t *testing.T) {
	bin := newMatrix(7, 7)
	bin[3][3] = 255
	dilated := morphBinary(bin, dilationMask)
	test.That(t, regionSum(dilated, image.Rect(0, 0, 7, 7)), test.ShouldEqual, 0)

	white := newMatrix(7, 7)
	for y := range 7 {
		for x := range 7 {
			white[y][x] = 255
		}
	}
	white[3][3] = 0
	eroded := morphBinary(white, erosionMask)
	test.That(t, eroded[3][3], test.ShouldEqual, 255)
	test.That(t, eroded[0][3], test.ShouldEqual, 0)
}

func TestCornerMaskResponse(t *testing.T) {
	bin := newMatrix(40, 40)
	for y := range 40 {
		for x := range 40 {
			if (x < 20) == (y < 20) {
				bin[y][x] = 255
			}
		}
	}

	w2b := convolve(bin, cornerMask(WhiteToBlack))
	b2w := convolve(bin, cornerMask(BlackToWhite))
	test.That(t, w2b[20][20], test.ShouldEqual, 255)
	test.That(t, b2w[20][20], test.ShouldEqual, 0)
	test.That(t, w2b[0][0], test.ShouldEqual, 0)

	points := thresholdPoints(w2b, cornerResponseThreshold, cornerMaskHalf)
	test.That(t, points, test.ShouldContain, image.Point{20, 20})
	for _, p := range points {
		test.That(t, abs(p.X-20), test.ShouldBeLessThan, 6)
		test.That(t, abs(p.Y-20), test.ShouldBeLessThan, 6)
	}
}
