package scanfieldcal

import (
	"github.com/golang/geo/r2"

	"go.viam.com/rdk/logging"
)

var cameraCorrectionHeader = []string{"Scanner X ", "Scanner Y ", "TCP x", "TCP y"}

// CameraCorrection is the TCP offset (pixels) measured at a scanner position.
type CameraCorrection struct {
	TCPXOffset float64
	TCPYOffset float64
}

func (c CameraCorrection) Offset() r2.Point {
	return r2.Point{X: c.TCPXOffset, Y: c.TCPYOffset}
}

// Apply shifts a TCP position by the correction.
func (c CameraCorrection) Apply(tcp r2.Point) r2.Point {
	return tcp.Add(c.Offset())
}

func (c CameraCorrection) WeightedAverage(k1, k2 float64, other CameraCorrection) CameraCorrection {
	v := c.Offset().Mul(k1).Add(other.Offset().Mul(k2))
	return CameraCorrection{TCPXOffset: v.X, TCPYOffset: v.Y}
}

// CameraCorrectionGrid answers TCP offset lookups for any scanner position.
type CameraCorrectionGrid struct {
	grid *RegularGrid[CameraCorrection]
}

func NewCameraCorrectionGrid(samples []Sample[CameraCorrection]) *CameraCorrectionGrid {
	return &CameraCorrectionGrid{grid: NewRegularGrid(samples)}
}

// regular returns the backing grid; a zero CameraCorrectionGrid is empty.
func (c *CameraCorrectionGrid) regular() *RegularGrid[CameraCorrection] {
	if c == nil || c.grid == nil {
		return NewRegularGrid[CameraCorrection](nil)
	}
	return c.grid
}

// LoadCameraCorrectionCSV reads a table written by WriteCSV. A file that cannot
// be read gives an empty grid.
func LoadCameraCorrectionCSV(path string, logger logging.Logger) *CameraCorrectionGrid {
	rows, err := readSemicolonTable(path, 4)
	if err != nil {
		logger.Warnf("cannot load camera correction from %s: %v", path, err)
		return NewCameraCorrectionGrid(nil)
	}

	samples := make([]Sample[CameraCorrection], 0, len(rows))
	for _, r := range rows {
		samples = append(samples, Sample[CameraCorrection]{
			X:     r[0],
			Y:     r[1],
			Value: CameraCorrection{TCPXOffset: r[2], TCPYOffset: r[3]},
		})
	}

	g := NewCameraCorrectionGrid(samples)
	if g.Empty() && len(samples) > 0 {
		logger.Warnf("camera correction in %s is not a regular grid (%d samples)", path, len(samples))
	}
	return g
}

// WriteCSV writes one row per grid cell, row-major.
func (c *CameraCorrectionGrid) WriteCSV(path string) error {
	g := c.regular()
	rows := make([][]float64, 0, g.Len())
	for i := 0; i < g.Len(); i++ {
		x, y := g.SamplePosition(i)
		v := g.Value(i)
		rows = append(rows, []float64{x, y, v.TCPXOffset, v.TCPYOffset})
	}
	return writeSemicolonTable(path, cameraCorrectionHeader, rows)
}

func (c *CameraCorrectionGrid) Correction(x, y float64) CameraCorrection {
	return c.regular().Get(x, y)
}

// CorrectedTCP returns tcp shifted by the correction at scanner position (x, y).
func (c *CameraCorrectionGrid) CorrectedTCP(x, y float64, tcp r2.Point) r2.Point {
	return c.Correction(x, y).Apply(tcp)
}

func (c *CameraCorrectionGrid) Empty() bool {
	return c.regular().Empty()
}

func (c *CameraCorrectionGrid) Grid() *RegularGrid[CameraCorrection] {
	return c.regular()
}

func (c *CameraCorrectionGrid) MarshalBinary() ([]byte, error) {
	return c.regular().MarshalBinary()
}

func (c *CameraCorrectionGrid) UnmarshalBinary(data []byte) error {
	g := &RegularGrid[CameraCorrection]{}
	if err := g.UnmarshalBinary(data); err != nil {
		return err
	}
	c.grid = g
	return nil
}
