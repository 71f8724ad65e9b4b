package scanfieldcal

import (
	"testing"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"
)

func TestComputeScannerPositions(t *testing.T) {
	grid := ScanFieldGridParameters{XMin: -10, XMax: 10, YMin: -10, YMax: 10, DeltaX: 10, DeltaY: 10}
	test.That(t, grid.NumCols(), test.ShouldEqual, 2)
	test.That(t, grid.NumRows(), test.ShouldEqual, 2)

	t.Run("serpentine", func(t *testing.T) {
		positions := grid.ComputeScannerPositions(true)
		test.That(t, positions, test.ShouldHaveLength, 9)

		cols := []int{}
		for _, p := range positions[:6] {
			cols = append(cols, p.Column)
		}
		test.That(t, cols, test.ShouldResemble, []int{0, 1, 2, 2, 1, 0})
		test.That(t, positions[3], test.ShouldResemble, ScannerPosition{X: 10, Y: 0, Row: 1, Column: 2})
		test.That(t, positions[6], test.ShouldResemble, ScannerPosition{X: -10, Y: 10, Row: 2, Column: 0})
	})

	t.Run("raster", func(t *testing.T) {
		positions := grid.ComputeScannerPositions(false)
		test.That(t, positions, test.ShouldHaveLength, 9)
		for i, p := range positions {
			test.That(t, p.Row, test.ShouldEqual, i/3)
			test.That(t, p.Column, test.ShouldEqual, i%3)
			test.That(t, p.X, test.ShouldEqual, -10+10*float64(i%3))
		}
	})

	t.Run("degenerate", func(t *testing.T) {
		test.That(t, ScanFieldGridParameters{XMax: 10, YMax: 10}.ComputeScannerPositions(true), test.ShouldBeEmpty)

		inverted := ScanFieldGridParameters{XMin: 10, XMax: 0, YMin: 0, YMax: 10, DeltaX: 1, DeltaY: 1}
		test.That(t, inverted.ComputeScannerPositions(true), test.ShouldBeEmpty)
		inverted = ScanFieldGridParameters{XMin: 0, XMax: 10, YMin: 10, YMax: 0, DeltaX: 1, DeltaY: 1}
		test.That(t, inverted.ComputeScannerPositions(false), test.ShouldBeEmpty)
	})
}

func TestScanFieldGridNormalization(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("delta", func(t *testing.T) {
		g := ScanFieldGridParameters{DeltaX: 5, DeltaY: 7}
		g.ForceDelta(10, logger)
		test.That(t, g.DeltaX, test.ShouldEqual, 10.0)
		test.That(t, g.DeltaY, test.ShouldEqual, 10.0)
	})

	t.Run("symmetry", func(t *testing.T) {
		g := ScanFieldGridParameters{XMin: -30, XMax: 50, YMin: -40, YMax: 20, DeltaX: 10, DeltaY: 10}
		g.ForceSymmetry(logger)
		test.That(t, g, test.ShouldResemble, ScanFieldGridParameters{XMin: -30, XMax: 30, YMin: -20, YMax: 20, DeltaX: 10, DeltaY: 10})

		// already symmetric, untouched
		g.ForceSymmetry(logger)
		test.That(t, g.XMax, test.ShouldEqual, 30.0)
	})

	t.Run("origin", func(t *testing.T) {
		g := ScanFieldGridParameters{XMin: -50, XMax: 50, YMin: -45, YMax: 45, DeltaX: 20, DeltaY: 15}
		g.ForceAcquireOnOrigin(logger)
		test.That(t, g.XMin, test.ShouldEqual, -40.0)
		test.That(t, g.XMax, test.ShouldEqual, 40.0)
		test.That(t, g.YMin, test.ShouldEqual, -45.0)
		test.That(t, g.YMax, test.ShouldEqual, 45.0)
		test.That(t, g.IncludesOrigin(), test.ShouldBeTrue)

		found := false
		for _, p := range g.ComputeScannerPositions(true) {
			if p.X == 0 && p.Y == 0 {
				found = true
			}
		}
		test.That(t, found, test.ShouldBeTrue)
	})

	t.Run("ranges", func(t *testing.T) {
		g := ScanFieldGridParameters{XMin: 5, XMax: 25, YMin: -3, YMax: 1}
		test.That(t, g.IncludesOrigin(), test.ShouldBeFalse)
		test.That(t, g.XRange(), test.ShouldEqual, 20.0)
		test.That(t, g.YRange(), test.ShouldEqual, 4.0)
	})
}
