package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/biancann/footfolio/internal/mapview"
	"github.com/biancann/footfolio/internal/metrics"
	"github.com/biancann/footfolio/internal/shared/geo"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
)

const (
	Size        = 800
	Padding     = 40
	StrokeWidth = 6

	// regionPadding widens the map region around the path on each axis.
	regionPadding = 1.2
	// minRegionDelta keeps single-point and stationary paths from collapsing
	// the map region to nothing.
	minRegionDelta = 0.001

	backgroundColor = "#0f2d3c"
)

type Mode string

const (
	ModeSolid Mode = "solid"
	ModeMap   Mode = "map"
)

func (m Mode) Valid() bool { return m == ModeSolid || m == ModeMap }

var (
	ErrEmptyPath   = errors.New("path has no samples")
	ErrUnknownMode = errors.New("unknown background mode")
)

type Options struct {
	Mode  Mode
	Color string
}

// Raster is a rendered path image. ID changes on every render.
type Raster struct {
	ID     string `json:"id"`
	Mode   Mode   `json:"mode"`
	Color  string `json:"color"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	PNG    []byte `json:"-"`
}

type Renderer struct {
	display mapview.Display
	settle  time.Duration
}

// New returns a renderer. display may be nil, in which case map mode fails
// with mapview.ErrUnavailable.
func New(display mapview.Display, settle time.Duration) *Renderer {
	return &Renderer{display: display, settle: settle}
}

func (r *Renderer) Render(ctx context.Context, path []geo.Coordinate, opts Options) (Raster, error) {
	var (
		raster Raster
		err    error
	)
	switch opts.Mode {
	case ModeSolid:
		raster, err = r.renderSolid(path, opts.Color)
	case ModeMap:
		raster, err = r.renderMap(ctx, path, opts.Color)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
	metrics.RecordRender(string(opts.Mode), err)
	return raster, err
}

func (r *Renderer) renderSolid(path []geo.Coordinate, color string) (Raster, error) {
	if len(path) == 0 {
		return Raster{}, ErrEmptyPath
	}
	dc := gg.NewContext(Size, Size)
	dc.SetHexColor(backgroundColor)
	dc.Clear()
	mapview.StrokePath(dc, Normalize(path, Size, Padding), color, StrokeWidth)
	return encode(dc, ModeSolid, color)
}

func (r *Renderer) renderMap(ctx context.Context, path []geo.Coordinate, color string) (Raster, error) {
	if len(path) == 0 {
		return Raster{}, ErrEmptyPath
	}
	if r.display == nil {
		return Raster{}, mapview.ErrUnavailable
	}

	view, err := r.display.Open(ctx, RegionFor(path), mapview.Overlay{Path: path, Color: color, Width: StrokeWidth}, Size)
	if err != nil {
		return Raster{}, err
	}

	select {
	case <-view.Painted():
	case <-ctx.Done():
		return Raster{}, ctx.Err()
	}
	if err := view.Err(); err != nil {
		return Raster{}, err
	}

	if r.settle > 0 {
		timer := time.NewTimer(r.settle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Raster{}, ctx.Err()
		}
	}

	img, err := view.Capture()
	if err != nil {
		return Raster{}, err
	}
	return encode(gg.NewContextForImage(img), ModeMap, color)
}

func encode(dc *gg.Context, mode Mode, color string) (Raster, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return Raster{}, err
	}
	return Raster{
		ID:     uuid.NewString(),
		Mode:   mode,
		Color:  color,
		Width:  dc.Width(),
		Height: dc.Height(),
		PNG:    buf.Bytes(),
	}, nil
}

// Normalize projects path into a size x size canvas. The bounding box is
// centred and scaled by its larger span so the aspect ratio is kept; latitude
// grows upwards on screen. A zero-span path lands on the canvas centre.
func Normalize(path []geo.Coordinate, size, padding float64) [][2]float64 {
	b, ok := geo.BoundsOf(path)
	if !ok {
		return nil
	}
	span := math.Max(b.LatSpan(), b.LngSpan())
	drawable := size - 2*padding
	scale := 0.0
	if span > 0 {
		scale = drawable / span
	}
	offsetX := padding + (drawable-b.LngSpan()*scale)/2
	offsetY := padding + (drawable-b.LatSpan()*scale)/2

	pts := make([][2]float64, len(path))
	for i, c := range path {
		pts[i] = [2]float64{
			offsetX + (c.Lng-b.MinLng)*scale,
			offsetY + (b.MaxLat-c.Lat)*scale,
		}
	}
	return pts
}

// RegionFor returns the map region covering path with padding on both axes.
func RegionFor(path []geo.Coordinate) mapview.Region {
	b, _ := geo.BoundsOf(path)
	return mapview.Region{
		Center:   b.Center(),
		LatDelta: math.Max(b.LatSpan()*regionPadding, minRegionDelta),
		LngDelta: math.Max(b.LngSpan()*regionPadding, minRegionDelta),
	}
}
