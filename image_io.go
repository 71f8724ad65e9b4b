package scanfieldcal

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/image/bmp"

	"go.viam.com/rdk/rimage"
)

// ToGray returns img as an 8-bit grayscale image with origin (0, 0).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// ReadGrayImage loads an image file in any format rimage understands.
func ReadGrayImage(path string) (*image.Gray, error) {
	if strings.EqualFold(filepath.Ext(path), ".bmp") {
		return readBMP(path)
	}
	img, err := rimage.ReadImageFromFile(path)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

func readBMP(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := bmp.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s: %w", path, err)
	}
	return ToGray(img), nil
}

// WriteImage saves img; .bmp files are written as 8-bit grayscale bitmaps,
// other extensions go through rimage.
func WriteImage(path string, img image.Image) error {
	if !strings.EqualFold(filepath.Ext(path), ".bmp") {
		return rimage.WriteImageToFile(path, img)
	}
	return writeBMP(path, ToGray(img))
}

func writeBMP(path string, img *image.Gray) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return bmp.Encode(f, img)
}
