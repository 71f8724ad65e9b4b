package scanfieldcal

import (
	"math"

	"go.viam.com/rdk/logging"
)

// ScanFieldGridParameters describes a rectangular sweep of scanner positions (mm).
type ScanFieldGridParameters struct {
	XMin   float64 `json:"x_min" yaml:"x_min"`
	XMax   float64 `json:"x_max" yaml:"x_max"`
	YMin   float64 `json:"y_min" yaml:"y_min"`
	YMax   float64 `json:"y_max" yaml:"y_max"`
	DeltaX float64 `json:"delta_x" yaml:"delta_x"`
	DeltaY float64 `json:"delta_y" yaml:"delta_y"`
}

// ScannerPosition is one stop of the sweep.
type ScannerPosition struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Row    int     `json:"row"`
	Column int     `json:"column"`
}

func (p ScanFieldGridParameters) NumCols() int {
	return int((p.XMax - p.XMin) / p.DeltaX)
}

func (p ScanFieldGridParameters) NumRows() int {
	return int((p.YMax - p.YMin) / p.DeltaY)
}

func (p ScanFieldGridParameters) XRange() float64 {
	return p.XMax - p.XMin
}

func (p ScanFieldGridParameters) YRange() float64 {
	return p.YMax - p.YMin
}

func (p ScanFieldGridParameters) IncludesOrigin() bool {
	return !(p.YMin > 0 || p.YMax < 0 || p.XMin > 0 || p.XMax < 0)
}

// ForceDelta sets both spacings to delta.
func (p *ScanFieldGridParameters) ForceDelta(delta float64, logger logging.Logger) {
	if p.DeltaX != delta || p.DeltaY != delta {
		logger.Warnf("bypassing provided delta %f %f, set to %f", p.DeltaX, p.DeltaY, delta)
		p.DeltaX = delta
		p.DeltaY = delta
	}
}

// ForceSymmetry shrinks the bounds to the largest box symmetric about 0.
func (p *ScanFieldGridParameters) ForceSymmetry(logger logging.Logger) {
	if p.YMin == -p.YMax && p.XMin == -p.XMax {
		return
	}
	newX := math.Min(math.Abs(p.XMin), math.Abs(p.XMax))
	newY := math.Min(math.Abs(p.YMin), math.Abs(p.YMax))
	p.setSymmetric(newX, newY, logger)
}

// ForceAcquireOnOrigin makes the bounds symmetric multiples of the delta so
// that the sweep passes through (0, 0).
func (p *ScanFieldGridParameters) ForceAcquireOnOrigin(logger logging.Logger) {
	newX := math.Floor(-p.XMin/p.DeltaX) * p.DeltaX
	newY := math.Floor(-p.YMin/p.DeltaY) * p.DeltaY
	if -newX != p.XMin || -newY != p.YMin {
		p.setSymmetric(newX, newY, logger)
	}
}

func (p *ScanFieldGridParameters) setSymmetric(newX, newY float64, logger logging.Logger) {
	logger.Warnf("bypassing provided bounds x %v %v y %v %v, set to %v %v %v %v",
		p.XMin, p.XMax, p.YMin, p.YMax, -newX, newX, -newY, newY)
	p.XMin = -newX
	p.XMax = newX
	p.YMin = -newY
	p.YMax = newY
}

// ComputeScannerPositions enumerates the sweep row by row. With minimizeJump
// every other row is traversed right to left.
func (p ScanFieldGridParameters) ComputeScannerPositions(minimizeJump bool) []ScannerPosition {
	if p.DeltaX <= 0 || p.DeltaY <= 0 || p.XMax < p.XMin || p.YMax < p.YMin {
		return nil
	}

	positions := make([]ScannerPosition, 0, (p.NumRows()+1)*(p.NumCols()+1))
	towardsRight := true
	for row := 0; ; row++ {
		y := p.YMin + float64(row)*p.DeltaY
		if y > p.YMax {
			break
		}

		var current []ScannerPosition
		for col := 0; ; col++ {
			x := p.XMin + float64(col)*p.DeltaX
			if x > p.XMax {
				break
			}
			current = append(current, ScannerPosition{X: x, Y: y, Row: row, Column: col})
		}

		if towardsRight {
			positions = append(positions, current...)
		} else {
			for i := len(current) - 1; i >= 0; i-- {
				positions = append(positions, current[i])
			}
		}
		if minimizeJump {
			towardsRight = !towardsRight
		}
	}
	return positions
}
