package scanfieldcal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/mitchellh/mapstructure"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"
)

var StitcherModel = family.WithModel("scanfield-stitcher")

func init() {
	resource.RegisterService(generic.API, StitcherModel,
		resource.Registration[resource.Resource, *StitcherConfig]{
			Constructor: newStitcherService,
		},
	)
}

type StitcherConfig struct {
	Camera     string
	ScanMaster ScanMasterCalibrationData `json:"scan-master"`
	Grid       ScanFieldGridParameters   `json:"grid"`

	// ParametersFile is a saved ScanFieldImage.yaml; when set the canvas is
	// taken from it instead of being sized from the first frame.
	ParametersFile string `json:"parameters-file"`
	OutputFolder   string `json:"output-folder"`
}

func (cfg *StitcherConfig) Validate(path string) ([]string, []string, error) {
	if cfg.Camera == "" {
		return nil, nil, fmt.Errorf("need a camera")
	}
	if cfg.ParametersFile == "" {
		if cfg.ScanMaster.XmmToPixel == 0 || cfg.ScanMaster.YmmToPixel == 0 {
			return nil, nil, fmt.Errorf("need scan-master x_mm_to_pixel and y_mm_to_pixel")
		}
		if cfg.Grid.DeltaX <= 0 || cfg.Grid.DeltaY <= 0 {
			return nil, nil, fmt.Errorf("need a grid with positive delta_x and delta_y")
		}
	}
	return []string{cfg.Camera}, nil, nil
}

type stitcherService struct {
	resource.AlwaysRebuild

	name resource.Name

	logger logging.Logger
	conf   *StitcherConfig

	session *stitchSession
}

func newStitcherService(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*StitcherConfig](rawConf)
	if err != nil {
		return nil, err
	}

	return NewStitcherService(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewStitcherService(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *StitcherConfig, logger logging.Logger) (resource.Resource, error) {
	cam, err := camera.FromProvider(deps, conf.Camera)
	if err != nil {
		return nil, err
	}

	session := newStitchSession(&cameraFrames{cam: cam}, conf.ScanMaster, conf.Grid, conf.OutputFolder, logger)
	if conf.ParametersFile != "" {
		params, err := ReadScanFieldImageParameters(conf.ParametersFile, logger)
		if err != nil {
			return nil, err
		}
		session.load(params)
	}

	return &stitcherService{
		name:    name,
		logger:  logger,
		conf:    conf,
		session: session,
	}, nil
}

func (s *stitcherService) Name() resource.Name {
	return s.name
}

func (s *stitcherService) DoCommand(ctx context.Context, cmdMap map[string]interface{}) (map[string]interface{}, error) {
	return s.session.handle(ctx, cmdMap)
}

func (s *stitcherService) Close(context.Context) error {
	return nil
}

// cameraFrames captures gray frames from an rdk camera.
type cameraFrames struct {
	cam camera.Camera
}

func (f *cameraFrames) Capture(ctx context.Context) (*image.Gray, error) {
	ni, _, err := f.cam.Images(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(ni) == 0 {
		return nil, fmt.Errorf("no images returned from camera")
	}
	img, err := ni[0].Image(ctx)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

// ----

type PositionsCmd struct {
	MinimizeJump bool `mapstructure:"minimize_jump"`
}

type PointCmd struct {
	X, Y float64
}

type FinishCmd struct {
	Folder string
}

type stitcherCmd struct {
	Positions *PositionsCmd
	Paste     *PointCmd
	Finish    *FinishCmd
	Reset     *struct{}
	ToPixel   *PointCmd `mapstructure:"to_pixel"`
	ToScanner *PointCmd `mapstructure:"to_scanner"`
}

var errNoCanvas = errors.New("scan field image parameters not known yet, paste a tile first")

// stitchSession is the state behind the stitcher service: one canvas filled
// tile by tile while the caller moves the scanner.
type stitchSession struct {
	mu sync.Mutex

	logger       logging.Logger
	frames       FrameSource
	scanMaster   ScanMasterCalibrationData
	grid         ScanFieldGridParameters
	outputFolder string

	// loaded is the canvas read from a parameters file, reused on reset.
	loaded *ScanFieldImageParameters

	stitcher *Stitcher
	tiles    []TileInfo
}

func newStitchSession(frames FrameSource, sm ScanMasterCalibrationData, grid ScanFieldGridParameters,
	outputFolder string, logger logging.Logger,
) *stitchSession {
	return &stitchSession{
		logger:       logger,
		frames:       frames,
		scanMaster:   sm,
		grid:         grid,
		outputFolder: outputFolder,
	}
}

func (s *stitchSession) start(params ScanFieldImageParameters) {
	s.stitcher = NewStitcher(params, s.logger)
	s.tiles = nil
}

func (s *stitchSession) load(params ScanFieldImageParameters) {
	s.loaded = &params
	s.start(params)
}

func (s *stitchSession) reset() {
	if s.loaded != nil {
		s.start(*s.loaded)
		return
	}
	s.stitcher = nil
	s.tiles = nil
}

func (s *stitchSession) handle(ctx context.Context, cmdMap map[string]interface{}) (map[string]interface{}, error) {
	var cmd stitcherCmd
	err := mapstructure.Decode(cmdMap, &cmd)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case cmd.Positions != nil:
		return s.positions(cmd.Positions.MinimizeJump), nil
	case cmd.Paste != nil:
		return s.paste(ctx, cmd.Paste.X, cmd.Paste.Y)
	case cmd.Finish != nil:
		return s.finish(cmd.Finish.Folder)
	case cmd.Reset != nil:
		s.reset()
		return map[string]interface{}{"reset": true}, nil
	case cmd.ToPixel != nil:
		if s.stitcher == nil {
			return nil, errNoCanvas
		}
		p := s.stitcher.Parameters().CenterInScanFieldImage(cmd.ToPixel.X, cmd.ToPixel.Y)
		return map[string]interface{}{"x": p.X, "y": p.Y}, nil
	case cmd.ToScanner != nil:
		if s.stitcher == nil {
			return nil, errNoCanvas
		}
		p := s.stitcher.Parameters().ScannerPositionFromScanFieldImage(cmd.ToScanner.X, cmd.ToScanner.Y)
		return map[string]interface{}{"x": p.X, "y": p.Y}, nil
	}

	return nil, fmt.Errorf("bad cmd %v", cmdMap)
}

func (s *stitchSession) positions(minimizeJump bool) map[string]interface{} {
	var out []interface{}
	for _, p := range s.grid.ComputeScannerPositions(minimizeJump) {
		out = append(out, map[string]interface{}{
			"x":      p.X,
			"y":      p.Y,
			"row":    p.Row,
			"column": p.Column,
		})
	}
	return map[string]interface{}{"positions": out}
}

// paste captures one frame at the current scanner position (x, y) in mm.
// The first frame sizes the canvas unless parameters were loaded.
func (s *stitchSession) paste(ctx context.Context, x, y float64) (map[string]interface{}, error) {
	frame, err := s.frames.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if s.stitcher == nil {
		s.start(ComputeScanFieldImageParametersFromGrid(s.scanMaster, frame.Rect.Dx(), frame.Rect.Dy(), s.grid))
	}

	info := TileInfo{Position: ScannerPosition{X: x, Y: y, Row: -1, Column: -1}}
	info.TopLeft, info.Pasted = s.stitcher.PasteAt(frame, x, y)
	if !info.Pasted {
		s.logger.Warnf("tile at %v %v is outside the scan field image", x, y)
	}
	s.tiles = append(s.tiles, info)

	return map[string]interface{}{
		"pasted":     info.Pasted,
		"top_left_x": info.TopLeft.X,
		"top_left_y": info.TopLeft.Y,
		"tiles":      len(s.tiles),
		"covered":    s.stitcher.CoveredPixels(),
	}, nil
}

func (s *stitchSession) finish(folder string) (map[string]interface{}, error) {
	if s.stitcher == nil {
		return nil, errNoCanvas
	}
	if folder == "" {
		folder = s.outputFolder
	}

	img, written, config := s.stitcher.ComputeAndWriteScanFieldImage(folder)
	return map[string]interface{}{
		"folder": written,
		"config": config,
		"width":  img.Rect.Dx(),
		"height": img.Rect.Dy(),
		"tiles":  len(s.tiles),
	}, nil
}
