package scanfieldcal

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"go.viam.com/rdk/logging"
)

// Scanner moves the galvo scanner to a position in mm.
type Scanner interface {
	MoveTo(ctx context.Context, xMM, yMM float64) error
}

// FrameSource captures one camera image at the current scanner position.
type FrameSource interface {
	Capture(ctx context.Context) (*image.Gray, error)
}

type AcquisitionConfig struct {
	Grid         ScanFieldGridParameters
	MinimizeJump bool
	// DebugFolder receives every tile and an info.txt summary when not empty.
	DebugFolder string
	// OutputFolder receives the stitched image and its parameters when not empty.
	OutputFolder string
}

type TileInfo struct {
	Position ScannerPosition
	Filename string
	Saved    bool
	TopLeft  image.Point
	Pasted   bool
}

type AcquisitionResult struct {
	Image      *image.Gray
	Parameters ScanFieldImageParameters
	Folder     string
	ConfigPath string
	Tiles      []TileInfo
}

// AcquireScanField visits every position of the grid, captures a frame there
// and stitches the frames into one scan-field image. The canvas is sized from
// the first frame.
func AcquireScanField(ctx context.Context, scanner Scanner, frames FrameSource, sm ScanMasterCalibrationData,
	cfg AcquisitionConfig, logger logging.Logger,
) (*AcquisitionResult, error) {
	positions := cfg.Grid.ComputeScannerPositions(cfg.MinimizeJump)
	if len(positions) == 0 {
		return nil, fmt.Errorf("scan grid %+v has no positions", cfg.Grid)
	}

	if cfg.DebugFolder != "" {
		if err := os.MkdirAll(cfg.DebugFolder, 0o755); err != nil {
			logger.Warnf("cannot create debug folder %s: %v", cfg.DebugFolder, err)
			cfg.DebugFolder = ""
		}
	}

	var stitcher *Stitcher
	result := &AcquisitionResult{}
	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := scanner.MoveTo(ctx, pos.X, pos.Y); err != nil {
			return nil, fmt.Errorf("cannot move scanner to %v %v: %w", pos.X, pos.Y, err)
		}
		frame, err := frames.Capture(ctx)
		if err != nil {
			return nil, fmt.Errorf("cannot capture at row %d col %d: %w", pos.Row, pos.Column, err)
		}

		if stitcher == nil {
			params := ComputeScanFieldImageParametersFromGrid(sm, frame.Rect.Dx(), frame.Rect.Dy(), cfg.Grid)
			logger.Debugf("scan field image %dx%d, origin %v %v mm", params.Width, params.Height, params.XMinLeftMM, params.YMinTopMM)
			stitcher = NewStitcher(params, logger)
		}

		info := TileInfo{Position: pos}
		if cfg.DebugFolder != "" {
			info.Filename = filepath.Join(cfg.DebugFolder, fmt.Sprintf("row_%d_col_%d.bmp", pos.Row, pos.Column))
			if err := WriteImage(info.Filename, frame); err != nil {
				logger.Warnf("cannot save tile: %v", err)
			} else {
				info.Saved = true
			}
		}

		info.TopLeft, info.Pasted = stitcher.PasteAt(frame, pos.X, pos.Y)
		if !info.Pasted {
			logger.Warnf("tile at %v %v is outside the scan field image", pos.X, pos.Y)
		}
		result.Tiles = append(result.Tiles, info)
	}

	if cfg.DebugFolder != "" {
		if err := writeAcquisitionInfo(filepath.Join(cfg.DebugFolder, "info.txt"), result.Tiles); err != nil {
			logger.Warnf("cannot write acquisition info: %v", err)
		}
	}

	result.Parameters = stitcher.Parameters()
	result.Image, result.Folder, result.ConfigPath = stitcher.ComputeAndWriteScanFieldImage(cfg.OutputFolder)
	return result, nil
}

func writeAcquisitionInfo(path string, tiles []TileInfo) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "scan x [mm];scan y [mm];filename;saved;x top left [pix];y top left [pix];")
	for _, t := range tiles {
		fmt.Fprintf(w, "%v;%v;%s;%v;%d;%d;\n",
			t.Position.X, t.Position.Y, filepath.Base(t.Filename), t.Saved, t.TopLeft.X, t.TopLeft.Y)
	}
	return w.Flush()
}
