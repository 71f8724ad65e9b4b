package scanfieldcal

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"go.viam.com/rdk/logging"
)

// StitchManifest describes a finished acquisition on disk: the tiles saved as
// row_<r>_col_<c>.bmp in TileFolder and the calibration they were taken with.
type StitchManifest struct {
	ScanMaster   ScanMasterCalibrationData `yaml:"scan_master"`
	Grid         ScanFieldGridParameters   `yaml:"grid"`
	MinimizeJump bool                      `yaml:"minimize_jump"`
	TileFolder   string                    `yaml:"tile_folder"`
}

// ReadStitchManifest loads a manifest. A relative tile folder is resolved
// against the manifest location.
func ReadStitchManifest(path string) (*StitchManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := &StitchManifest{ScanMaster: DefaultScanMasterCalibrationData()}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("cannot parse manifest %s: %w", path, err)
	}
	if m.Grid.DeltaX <= 0 || m.Grid.DeltaY <= 0 {
		return nil, fmt.Errorf("manifest %s needs a grid with positive delta_x and delta_y", path)
	}
	if !filepath.IsAbs(m.TileFolder) {
		m.TileFolder = filepath.Join(filepath.Dir(path), m.TileFolder)
	}
	return m, nil
}

// Stitch replays the acquisition from the saved tiles.
func (m *StitchManifest) Stitch(ctx context.Context, outputFolder string, logger logging.Logger) (*AcquisitionResult, error) {
	replay := &tileReplay{folder: m.TileFolder, grid: m.Grid}
	cfg := AcquisitionConfig{
		Grid:         m.Grid,
		MinimizeJump: m.MinimizeJump,
		OutputFolder: outputFolder,
	}
	return AcquireScanField(ctx, replay, replay, m.ScanMaster, cfg, logger)
}

// tileReplay stands in for both the scanner and the camera: moving selects
// the tile saved for that grid position, capturing reads it back.
type tileReplay struct {
	folder string
	grid   ScanFieldGridParameters

	row, col int
}

func (r *tileReplay) MoveTo(ctx context.Context, xMM, yMM float64) error {
	r.col = int(math.Round((xMM - r.grid.XMin) / r.grid.DeltaX))
	r.row = int(math.Round((yMM - r.grid.YMin) / r.grid.DeltaY))
	return nil
}

func (r *tileReplay) Capture(ctx context.Context) (*image.Gray, error) {
	return ReadGrayImage(filepath.Join(r.folder, fmt.Sprintf("row_%d_col_%d.bmp", r.row, r.col)))
}
