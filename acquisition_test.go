package scanfieldcal

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"
)

type fakeScanner struct {
	moves [][2]float64
	err   error
}

func (s *fakeScanner) MoveTo(ctx context.Context, x, y float64) error {
	if s.err != nil {
		return s.err
	}
	s.moves = append(s.moves, [2]float64{x, y})
	return nil
}

type fakeFrames struct {
	tile     *image.Gray
	captures int
}

func (f *fakeFrames) Capture(ctx context.Context) (*image.Gray, error) {
	f.captures++
	return f.tile, nil
}

func TestAcquireScanField(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	scanner := &fakeScanner{}
	frames := &fakeFrames{tile: uniformTile(40, 40, 100)}

	cfg := AcquisitionConfig{
		Grid:         ScanFieldGridParameters{XMin: -2, XMax: 2, YMin: -2, YMax: 2, DeltaX: 2, DeltaY: 2},
		MinimizeJump: true,
		DebugFolder:  filepath.Join(dir, "debug"),
		OutputFolder: filepath.Join(dir, "out"),
	}
	res, err := AcquireScanField(context.Background(), scanner, frames,
		ScanMasterCalibrationData{XmmToPixel: 10, YmmToPixel: 10}, cfg, logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, frames.captures, test.ShouldEqual, 9)
	test.That(t, scanner.moves[:4], test.ShouldResemble, [][2]float64{{-2, -2}, {0, -2}, {2, -2}, {2, 0}})

	test.That(t, res.Parameters.Width, test.ShouldEqual, 80)
	test.That(t, res.Parameters.Height, test.ShouldEqual, 80)
	test.That(t, res.Tiles, test.ShouldHaveLength, 9)
	test.That(t, res.Tiles[0].TopLeft, test.ShouldResemble, image.Point{X: 0, Y: 0})
	for _, tile := range res.Tiles {
		test.That(t, tile.Pasted, test.ShouldBeTrue)
		test.That(t, tile.Saved, test.ShouldBeTrue)
	}

	for _, p := range res.Image.Pix {
		test.That(t, p, test.ShouldEqual, uint8(100))
	}
	test.That(t, res.Folder, test.ShouldEqual, cfg.OutputFolder)

	_, err = os.Stat(filepath.Join(cfg.DebugFolder, "row_1_col_2.bmp"))
	test.That(t, err, test.ShouldBeNil)

	info, err := os.ReadFile(filepath.Join(cfg.DebugFolder, "info.txt"))
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(string(info)), "\n")
	test.That(t, lines, test.ShouldHaveLength, 10)
	test.That(t, lines[1], test.ShouldEqual, "-2;-2;row_0_col_0.bmp;true;0;0;")
}

func TestAcquireScanFieldErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	grid := ScanFieldGridParameters{XMin: -2, XMax: 2, YMin: -2, YMax: 2, DeltaX: 2, DeltaY: 2}
	sm := ScanMasterCalibrationData{XmmToPixel: 10, YmmToPixel: 10}
	frames := &fakeFrames{tile: uniformTile(40, 40, 100)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := AcquireScanField(ctx, &fakeScanner{}, frames, sm, AcquisitionConfig{Grid: grid}, logger)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)

	broken := errors.New("scanner offline")
	_, err = AcquireScanField(context.Background(), &fakeScanner{err: broken}, frames, sm, AcquisitionConfig{Grid: grid}, logger)
	test.That(t, errors.Is(err, broken), test.ShouldBeTrue)

	_, err = AcquireScanField(context.Background(), &fakeScanner{}, frames, sm, AcquisitionConfig{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
