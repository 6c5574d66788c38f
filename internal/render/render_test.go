package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/biancann/footfolio/internal/mapview"
	"github.com/biancann/footfolio/internal/shared/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var walk = []geo.Coordinate{
	{Lat: -6.2000, Lng: 106.8000},
	{Lat: -6.2010, Lng: 106.8005},
	{Lat: -6.2015, Lng: 106.8020},
	{Lat: -6.2030, Lng: 106.8022},
}

func TestNormalizeDeterministic(t *testing.T) {
	a := Normalize(walk, Size, Padding)
	b := Normalize(append([]geo.Coordinate(nil), walk...), Size, Padding)
	require.Equal(t, a, b)
}

func TestNormalizeKeepsAspectAndCentres(t *testing.T) {
	pts := Normalize([]geo.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0.5, Lng: 1}}, 800, 40)

	// longitude span (1) drives the scale; latitude span (0.5) is centred
	assert.InDelta(t, 40, pts[0][0], 1e-9)
	assert.InDelta(t, 760, pts[1][0], 1e-9)
	assert.InDelta(t, 580, pts[0][1], 1e-9)
	assert.InDelta(t, 220, pts[2][1], 1e-9)
}

func TestNormalizeZeroRange(t *testing.T) {
	pts := Normalize([]geo.Coordinate{{Lat: 3, Lng: 4}, {Lat: 3, Lng: 4}}, 800, 40)
	for _, p := range pts {
		assert.Equal(t, [2]float64{400, 400}, p)
	}
	assert.Nil(t, Normalize(nil, 800, 40))
}

func TestRegionFor(t *testing.T) {
	single := RegionFor([]geo.Coordinate{{Lat: 1, Lng: 2}})
	assert.Equal(t, minRegionDelta, single.LatDelta)
	assert.Equal(t, minRegionDelta, single.LngDelta)
	assert.Equal(t, geo.Coordinate{Lat: 1, Lng: 2}, single.Center)

	r := RegionFor([]geo.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0.1, Lng: 0.2}})
	assert.InDelta(t, 0.12, r.LatDelta, 1e-12)
	assert.InDelta(t, 0.24, r.LngDelta, 1e-12)
	assert.InDelta(t, 0.05, r.Center.Lat, 1e-12)
}

func TestRenderSolid(t *testing.T) {
	r := New(nil, 0)
	first, err := r.Render(context.Background(), walk, Options{Mode: ModeSolid, Color: "#ff0000"})
	require.NoError(t, err)
	second, err := r.Render(context.Background(), walk, Options{Mode: ModeSolid, Color: "#ff0000"})
	require.NoError(t, err)

	assert.Equal(t, Size, first.Width)
	assert.Equal(t, Size, first.Height)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, bytes.Equal(first.PNG, second.PNG), "identical paths must produce identical pixels")

	img, err := png.Decode(bytes.NewReader(first.PNG))
	require.NoError(t, err)
	start := Normalize(walk, Size, Padding)[0]
	c := color.RGBAModel.Convert(img.At(int(start[0]), int(start[1]))).(color.RGBA)
	assert.Greater(t, int(c.R), 200)
	assert.Less(t, int(c.G), 60)
}

func TestRenderSinglePoint(t *testing.T) {
	raster, err := New(nil, 0).Render(context.Background(), walk[:1], Options{Mode: ModeSolid, Color: DefaultColor})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raster.PNG))
	require.NoError(t, err)
	c := color.RGBAModel.Convert(img.At(Size/2, Size/2)).(color.RGBA)
	assert.Greater(t, int(c.G), 200)
}

func TestRenderErrors(t *testing.T) {
	r := New(nil, 0)
	_, err := r.Render(context.Background(), nil, Options{Mode: ModeSolid})
	assert.ErrorIs(t, err, ErrEmptyPath)
	_, err = r.Render(context.Background(), walk, Options{Mode: "sketch"})
	assert.ErrorIs(t, err, ErrUnknownMode)
	_, err = r.Render(context.Background(), walk, Options{Mode: ModeMap})
	assert.ErrorIs(t, err, mapview.ErrUnavailable)
}

type fakeView struct {
	painted  chan struct{}
	mu       sync.Mutex
	captured time.Time
	err      error
}

func (v *fakeView) Painted() <-chan struct{} { return v.painted }
func (v *fakeView) Err() error               { return v.err }
func (v *fakeView) Capture() (image.Image, error) {
	select {
	case <-v.painted:
	default:
		return nil, mapview.ErrNotPainted
	}
	v.mu.Lock()
	v.captured = time.Now()
	v.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, Size, Size)), nil
}

type fakeDisplay struct {
	view      *fakeView
	paintedAt time.Time
	region    mapview.Region
	overlay   mapview.Overlay
	delay     time.Duration
}

func (d *fakeDisplay) Open(_ context.Context, region mapview.Region, overlay mapview.Overlay, _ int) (mapview.View, error) {
	d.region, d.overlay = region, overlay
	go func() {
		time.Sleep(d.delay)
		d.paintedAt = time.Now()
		close(d.view.painted)
	}()
	return d.view, nil
}

func TestRenderMapWaitsForPaintAndSettle(t *testing.T) {
	display := &fakeDisplay{view: &fakeView{painted: make(chan struct{})}, delay: 20 * time.Millisecond}
	r := New(display, 30*time.Millisecond)

	raster, err := r.Render(context.Background(), walk, Options{Mode: ModeMap, Color: "#0000ff"})
	require.NoError(t, err)
	assert.Equal(t, ModeMap, raster.Mode)
	assert.Equal(t, "#0000ff", display.overlay.Color)
	assert.Len(t, display.overlay.Path, len(walk))
	assert.Equal(t, RegionFor(walk), display.region)
	assert.GreaterOrEqual(t, display.view.captured.Sub(display.paintedAt), 30*time.Millisecond)
}

func TestRenderMapContextCancelled(t *testing.T) {
	display := &fakeDisplay{view: &fakeView{painted: make(chan struct{})}, delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := New(display, 0).Render(ctx, walk, Options{Mode: ModeMap, Color: DefaultColor})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCanonicalColor(t *testing.T) {
	c, ok := CanonicalColor(" #FF00FF ")
	assert.True(t, ok)
	assert.Equal(t, "#ff00ff", c)
	_, ok = CanonicalColor("#123456")
	assert.False(t, ok)
}
