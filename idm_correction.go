package scanfieldcal

import (
	"go.viam.com/rdk/logging"
)

var idmCorrectionHeader = []string{"Scanner X ", "Scanner Y ", "IDM delta"}

// IDMCorrection is the depth offset of the IDM sensor at a scanner position.
type IDMCorrection struct {
	Delta int32
}

// WeightedAverage truncates toward zero.
func (c IDMCorrection) WeightedAverage(k1, k2 float64, other IDMCorrection) IDMCorrection {
	return IDMCorrection{Delta: int32(k1*float64(c.Delta) + k2*float64(other.Delta))}
}

type IDMCorrectionGrid struct {
	grid *RegularGrid[IDMCorrection]
}

func NewIDMCorrectionGrid(samples []Sample[IDMCorrection]) *IDMCorrectionGrid {
	return &IDMCorrectionGrid{grid: NewRegularGrid(samples)}
}

func (c *IDMCorrectionGrid) regular() *RegularGrid[IDMCorrection] {
	if c == nil || c.grid == nil {
		return NewRegularGrid[IDMCorrection](nil)
	}
	return c.grid
}

func LoadIDMCorrectionCSV(path string, logger logging.Logger) *IDMCorrectionGrid {
	rows, err := readSemicolonTable(path, 3)
	if err != nil {
		logger.Warnf("cannot load idm correction from %s: %v", path, err)
		return NewIDMCorrectionGrid(nil)
	}

	samples := make([]Sample[IDMCorrection], 0, len(rows))
	for _, r := range rows {
		samples = append(samples, Sample[IDMCorrection]{X: r[0], Y: r[1], Value: IDMCorrection{Delta: int32(r[2])}})
	}
	return NewIDMCorrectionGrid(samples)
}

func (c *IDMCorrectionGrid) WriteCSV(path string) error {
	g := c.regular()
	rows := make([][]float64, 0, g.Len())
	for i := 0; i < g.Len(); i++ {
		x, y := g.SamplePosition(i)
		rows = append(rows, []float64{x, y, float64(g.Value(i).Delta)})
	}
	return writeSemicolonTable(path, idmCorrectionHeader, rows)
}

// Delta is the interpolated depth offset at scanner position (x, y).
func (c *IDMCorrectionGrid) Delta(x, y float64) int {
	return int(c.regular().Get(x, y).Delta)
}

// Corrected applies the depth offset at (x, y) to a raw IDM reading.
func (c *IDMCorrectionGrid) Corrected(x, y, rawZ float64) float64 {
	return rawZ + float64(c.Delta(x, y))
}

func (c *IDMCorrectionGrid) Empty() bool {
	return c.regular().Empty()
}

func (c *IDMCorrectionGrid) MarshalBinary() ([]byte, error) {
	return c.regular().MarshalBinary()
}

func (c *IDMCorrectionGrid) UnmarshalBinary(data []byte) error {
	g := &RegularGrid[IDMCorrection]{}
	if err := g.UnmarshalBinary(data); err != nil {
		return err
	}
	c.grid = g
	return nil
}
