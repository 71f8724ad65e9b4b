package scanfieldcal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"
)

const testManifest = `scan_master:
  x_mm_to_pixel: 10
  y_mm_to_pixel: 10
grid:
  x_min: -2
  x_max: 2
  y_min: -2
  y_max: 2
  delta_x: 2
  delta_y: 2
minimize_jump: true
tile_folder: debug
`

func TestStitchManifestReplay(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()

	cfg := AcquisitionConfig{
		Grid:         ScanFieldGridParameters{XMin: -2, XMax: 2, YMin: -2, YMax: 2, DeltaX: 2, DeltaY: 2},
		MinimizeJump: true,
		DebugFolder:  filepath.Join(dir, "debug"),
	}
	acquired, err := AcquireScanField(context.Background(), &fakeScanner{}, &fakeFrames{tile: moduloTile(40, 30, 7)},
		ScanMasterCalibrationData{XmmToPixel: 10, YmmToPixel: 10}, cfg, logger)
	test.That(t, err, test.ShouldBeNil)

	manifestPath := filepath.Join(dir, "manifest.yaml")
	test.That(t, os.WriteFile(manifestPath, []byte(testManifest), 0o644), test.ShouldBeNil)

	m, err := ReadStitchManifest(manifestPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.TileFolder, test.ShouldEqual, filepath.Join(dir, "debug"))
	test.That(t, m.ScanMaster.XmmToPixel, test.ShouldEqual, 10.0)

	out := filepath.Join(dir, "out")
	replayed, err := m.Stitch(context.Background(), out, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, replayed.Parameters, test.ShouldResemble, acquired.Parameters)
	test.That(t, replayed.Image.Pix, test.ShouldResemble, acquired.Image.Pix)
	test.That(t, replayed.Folder, test.ShouldEqual, out)
}

func TestStitchManifestErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadStitchManifest(filepath.Join(dir, "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)

	noGrid := filepath.Join(dir, "nogrid.yaml")
	test.That(t, os.WriteFile(noGrid, []byte("tile_folder: x\n"), 0o644), test.ShouldBeNil)
	_, err = ReadStitchManifest(noGrid)
	test.That(t, err, test.ShouldNotBeNil)

	m := &StitchManifest{
		ScanMaster: DefaultScanMasterCalibrationData(),
		Grid:       ScanFieldGridParameters{DeltaX: 1, DeltaY: 1},
		TileFolder: filepath.Join(dir, "empty"),
	}
	_, err = m.Stitch(context.Background(), "", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
