package scanfieldcal

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/geo/r2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mitchellh/mapstructure"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/data"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
)

var ChessboardCameraModel = family.WithModel("chessboard-camera")

func init() {
	resource.RegisterComponent(camera.API, ChessboardCameraModel,
		resource.Registration[camera.Camera, *ChessboardCameraConfig]{
			Constructor: newChessboardCamera,
		},
	)
}

type ChessboardCameraConfig struct {
	Input string

	SquareSizeMM float64           `json:"square-size-mm"`
	Options      ChessboardOptions `json:"options"`
}

func (cfg *ChessboardCameraConfig) Validate(path string) ([]string, []string, error) {
	if cfg.Input == "" {
		return nil, nil, fmt.Errorf("need an input")
	}
	if cfg.SquareSizeMM < 0 {
		return nil, nil, fmt.Errorf("square-size-mm can't be negative")
	}
	return []string{cfg.Input}, nil, nil
}

func newChessboardCamera(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (camera.Camera, error) {
	conf, err := resource.NativeConfig[*ChessboardCameraConfig](rawConf)
	if err != nil {
		return nil, err
	}

	return NewChessboardCamera(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewChessboardCamera(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *ChessboardCameraConfig, logger logging.Logger) (camera.Camera, error) {
	var err error

	cc := &ChessboardCamera{
		name:   name,
		conf:   conf,
		logger: logger,
	}

	cc.input, err = camera.FromProvider(deps, conf.Input)
	if err != nil {
		return nil, err
	}

	return cc, nil
}

// ChessboardCamera shows the recognized corner grid over the input camera.
type ChessboardCamera struct {
	resource.AlwaysRebuild
	resource.TriviallyCloseable

	name   resource.Name
	conf   *ChessboardCameraConfig
	logger logging.Logger

	input camera.Camera
}

func (cc *ChessboardCamera) Image(ctx context.Context, mimeType string, extra map[string]interface{}) ([]byte, camera.ImageMetadata, error) {
	return camera.GetImageFromGetImages(ctx, nil, cc, extra, nil)
}

func (cc *ChessboardCamera) capture(ctx context.Context, extra map[string]interface{}) (image.Image, string, resource.ResponseMetadata, error) {
	ni, rm, err := cc.input.Images(ctx, nil, extra)
	if err != nil {
		return nil, "", rm, err
	}

	if len(ni) == 0 {
		return nil, "", rm, fmt.Errorf("no images returned from input camera")
	}

	img, err := ni[0].Image(ctx)
	if err != nil {
		return nil, "", rm, err
	}
	return img, ni[0].SourceName, rm, nil
}

func (cc *ChessboardCamera) Images(ctx context.Context, filterSourceNames []string, extra map[string]interface{}) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	srcImg, source, rm, err := cc.capture(ctx, extra)
	if err != nil {
		return nil, rm, err
	}

	res := RecognizeChessboard(srcImg, cc.conf.Options, cc.logger)
	dst := ChessboardDebugImage(srcImg, res, cc.conf.SquareSizeMM)

	result, err := camera.NamedImageFromImage(dst, source, "", data.Annotations{})
	if err != nil {
		return nil, rm, err
	}
	return []camera.NamedImage{result}, rm, nil
}

type recognizeCmd struct {
	Recognize *ChessboardOptions
}

func (cc *ChessboardCamera) DoCommand(ctx context.Context, cmdMap map[string]interface{}) (map[string]interface{}, error) {
	var cmd recognizeCmd
	err := mapstructure.Decode(cmdMap, &cmd)
	if err != nil {
		return nil, err
	}
	if cmd.Recognize == nil {
		return nil, fmt.Errorf("bad cmd %v", cmdMap)
	}

	opts := *cmd.Recognize
	if opts == (ChessboardOptions{}) {
		opts = cc.conf.Options
	}

	srcImg, _, _, err := cc.capture(ctx, nil)
	if err != nil {
		return nil, err
	}
	return recognitionSummary(RecognizeChessboard(srcImg, opts, cc.logger), cc.conf.SquareSizeMM), nil
}

// recognitionSummary is the DoCommand view of a recognition.
func recognitionSummary(res *ChessboardResult, squareSizeMM float64) map[string]interface{} {
	summary := map[string]interface{}{
		"valid":        res.Valid,
		"threshold":    res.Threshold,
		"rows":         res.Grid.NumRows(),
		"columns":      res.Grid.NumColumns(),
		"corners":      len(res.Grid.Corners()),
		"scale_factor": res.ScaleFactor(),
	}
	if squareSizeMM > 0 {
		summary["pixel_per_mm"] = res.PixelPerMM(squareSizeMM)
	}
	return summary
}

// ChessboardDebugImage draws the recognized grid over src: every row in its
// own hue, links between neighbours, and a banner with the result.
func ChessboardDebugImage(src image.Image, res *ChessboardResult, squareSizeMM float64) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	if res.Valid {
		rows := res.Grid.NumRows()
		for i := range rows {
			c := colorful.Hsv(360*float64(i)/float64(rows), 1, 1)
			for _, corner := range res.Grid.Row(i) {
				if corner.Right != nil {
					drawLine(dst, corner.Position, corner.Right.Position, c)
				}
				if corner.Down != nil {
					drawLine(dst, corner.Position, corner.Down.Position, c)
				}
				drawCross(dst, corner.Position, 4, c)
			}
		}
	} else {
		red := color.RGBA{255, 0, 0, 255}
		for _, p := range res.RawCorners {
			drawCross(dst, r2.Point{X: float64(p.X), Y: float64(p.Y)}, 3, red)
		}
	}

	banner := fmt.Sprintf("invalid (threshold %d)", res.Threshold)
	if res.Valid {
		banner = fmt.Sprintf("%dx%d threshold %d scale %.2f px", res.Grid.NumRows(), res.Grid.NumColumns(), res.Threshold, res.ScaleFactor())
		if squareSizeMM > 0 {
			banner += fmt.Sprintf(" (%.3f px/mm)", res.PixelPerMM(squareSizeMM))
		}
	}
	drawString(dst, 5, 15, banner, color.RGBA{255, 255, 0, 255})

	return dst
}

func drawLine(dst *image.RGBA, a, b r2.Point, c color.Color) {
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	if steps == 0 {
		dst.Set(int(math.Round(a.X)), int(math.Round(a.Y)), c)
		return
	}
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		dst.Set(int(math.Round(a.X+t*(b.X-a.X))), int(math.Round(a.Y+t*(b.Y-a.Y))), c)
	}
}

func drawCross(dst *image.RGBA, p r2.Point, size int, c color.Color) {
	x, y := int(math.Round(p.X)), int(math.Round(p.Y))
	for d := -size; d <= size; d++ {
		dst.Set(x+d, y, c)
		dst.Set(x, y+d, c)
	}
}

func drawString(dst *image.RGBA, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(s)
}

func (cc *ChessboardCamera) NextPointCloud(ctx context.Context, extra map[string]interface{}) (pointcloud.PointCloud, error) {
	return nil, fmt.Errorf("NextPointCloud not supported")
}

func (cc *ChessboardCamera) Properties(ctx context.Context) (camera.Properties, error) {
	return camera.Properties{}, nil
}

func (cc *ChessboardCamera) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	return nil, nil
}

func (cc *ChessboardCamera) Name() resource.Name {
	return cc.name
}
