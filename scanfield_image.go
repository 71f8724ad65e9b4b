package scanfieldcal

import (
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// MirrorMode is how the camera fills the image relative to the scanner axes.
type MirrorMode int

const (
	MirrorDirect MirrorMode = iota
	MirrorFlippedHorizontal
	MirrorFlippedVertical
	MirrorReverse
)

func (m MirrorMode) String() string {
	switch m {
	case MirrorDirect:
		return "direct"
	case MirrorFlippedHorizontal:
		return "flipped-horizontal"
	case MirrorFlippedVertical:
		return "flipped-vertical"
	case MirrorReverse:
		return "reverse"
	}
	return fmt.Sprintf("MirrorMode(%d)", int(m))
}

func MirrorModeFromFlags(mirrorX, mirrorY bool) MirrorMode {
	switch {
	case mirrorX && mirrorY:
		return MirrorReverse
	case mirrorX:
		return MirrorFlippedHorizontal
	case mirrorY:
		return MirrorFlippedVertical
	}
	return MirrorDirect
}

// Apply mirrors a pixel coordinate inside a w x h image. Every mode is its own
// inverse.
func (m MirrorMode) Apply(p r2.Point, w, h int) r2.Point {
	switch m {
	case MirrorFlippedHorizontal:
		return r2.Point{X: float64(w) - p.X - 1, Y: p.Y}
	case MirrorFlippedVertical:
		return r2.Point{X: p.X, Y: float64(h) - p.Y - 1}
	case MirrorReverse:
		return r2.Point{X: float64(w) - p.X - 1, Y: float64(h) - p.Y - 1}
	}
	return p
}

// applyInt is Apply for integer pixel indices.
func (m MirrorMode) applyInt(x, y, w, h int) (int, int) {
	switch m {
	case MirrorFlippedHorizontal:
		return w - x - 1, y
	case MirrorFlippedVertical:
		return x, h - y - 1
	case MirrorReverse:
		return w - x - 1, h - y - 1
	}
	return x, y
}

// ScanMasterCalibrationData is the linear scanner (mm) to camera (pixel) model.
type ScanMasterCalibrationData struct {
	XmmToPixel float64 `json:"x_mm_to_pixel" yaml:"x_mm_to_pixel"`
	YmmToPixel float64 `json:"y_mm_to_pixel" yaml:"y_mm_to_pixel"`
	// Slope couples the X pixel coordinate into Y.
	Slope   float64 `json:"slope" yaml:"slope"`
	MirrorX bool    `json:"mirror_x" yaml:"mirror_x"`
	MirrorY bool    `json:"mirror_y" yaml:"mirror_y"`
}

func DefaultScanMasterCalibrationData() ScanMasterCalibrationData {
	return ScanMasterCalibrationData{XmmToPixel: 1, YmmToPixel: 1}
}

func (d ScanMasterCalibrationData) MirrorMode() MirrorMode {
	return MirrorModeFromFlags(d.MirrorX, d.MirrorY)
}

// ScanFieldImageParameters places scanner positions on the stitched canvas.
type ScanFieldImageParameters struct {
	ScanMaster ScanMasterCalibrationData
	XMinLeftMM float64
	YMinTopMM  float64
	Width      int
	Height     int
}

func DefaultScanFieldImageParameters() ScanFieldImageParameters {
	return ScanFieldImageParameters{ScanMaster: DefaultScanMasterCalibrationData()}
}

func (p ScanFieldImageParameters) Size() image.Point {
	return image.Point{X: p.Width, Y: p.Height}
}

// CenterBeforeMirroring maps a scanner position (mm) to canvas pixels.
func (p ScanFieldImageParameters) CenterBeforeMirroring(xMM, yMM float64) r2.Point {
	x := (xMM - p.XMinLeftMM) * p.ScanMaster.XmmToPixel
	y := (yMM-p.YMinTopMM)*p.ScanMaster.YmmToPixel + p.ScanMaster.Slope*x
	return r2.Point{X: x, Y: y}
}

// CenterInScanFieldImage maps a scanner position (mm) to pixels of the final,
// mirrored canvas.
func (p ScanFieldImageParameters) CenterInScanFieldImage(xMM, yMM float64) r2.Point {
	return p.ScanMaster.MirrorMode().Apply(p.CenterBeforeMirroring(xMM, yMM), p.Width, p.Height)
}

// ScannerPositionFromScanFieldImage is the inverse of CenterInScanFieldImage.
func (p ScanFieldImageParameters) ScannerPositionFromScanFieldImage(xPix, yPix float64) r2.Point {
	c := p.ScanMaster.MirrorMode().Apply(r2.Point{X: xPix, Y: yPix}, p.Width, p.Height)
	return r2.Point{
		X: c.X/p.ScanMaster.XmmToPixel + p.XMinLeftMM,
		Y: (c.Y-p.ScanMaster.Slope*c.X)/p.ScanMaster.YmmToPixel + p.YMinTopMM,
	}
}

// TopLeftCornerBeforeMirroring is where a tileW x tileH tile centered on the
// scanner position lands on the canvas.
func (p ScanFieldImageParameters) TopLeftCornerBeforeMirroring(tileW, tileH int, xMM, yMM float64) image.Point {
	c := p.CenterBeforeMirroring(xMM, yMM)
	return image.Point{
		X: int(c.X - float64(tileW/2)),
		Y: int(c.Y - float64(tileH/2)),
	}
}

// ComputeScanFieldImageParameters sizes a canvas that holds every imageW x imageH
// tile captured inside the scanner box, after making the box symmetric about 0.
func ComputeScanFieldImageParameters(sm ScanMasterCalibrationData, imageW, imageH int, xMin, xMax, yMin, yMax float64) ScanFieldImageParameters {
	halfWidthMM := math.Abs(1.0 / sm.XmmToPixel * float64(imageW) / 2.0)
	halfHeightMM := math.Abs(1.0 / sm.YmmToPixel * float64(imageH) / 2.0)

	xMax = math.Max(math.Abs(xMax), math.Abs(xMin))
	xMin = -xMax
	yMax = math.Max(math.Abs(yMax), math.Abs(yMin))
	yMin = -yMax

	left := xMin - halfWidthMM
	top := yMin - halfHeightMM
	right := xMax + halfWidthMM
	bottom := yMax + halfHeightMM

	width := int(math.Abs(math.Ceil(right-left) * sm.XmmToPixel))
	deltaHeight := float64(width) * sm.Slope
	deltaHeightMM := deltaHeight / sm.YmmToPixel
	height := int(math.Abs(math.Ceil(bottom-top)*sm.YmmToPixel)) + int(math.Ceil(math.Abs(deltaHeight)))

	p := ScanFieldImageParameters{
		ScanMaster: sm,
		XMinLeftMM: left,
		YMinTopMM:  top,
		Width:      width,
		Height:     height,
	}
	if sm.XmmToPixel <= 0 {
		p.XMinLeftMM = right
	}
	if sm.YmmToPixel <= 0 {
		p.YMinTopMM = bottom
	}
	if deltaHeight < 0 {
		p.YMinTopMM += deltaHeightMM
	}
	return p
}

func ComputeScanFieldImageParametersFromGrid(sm ScanMasterCalibrationData, imageW, imageH int, grid ScanFieldGridParameters) ScanFieldImageParameters {
	return ComputeScanFieldImageParameters(sm, imageW, imageH, grid.XMin, grid.XMax, grid.YMin, grid.YMax)
}
