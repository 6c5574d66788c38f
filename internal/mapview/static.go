package mapview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"sync"

	"github.com/fogleman/gg"
	"github.com/go-resty/resty/v2"
)

// Static draws regions by fetching a base image from a static-map HTTP service
// and stroking the overlay on top of it.
type Static struct {
	client  *resty.Client
	baseURL string
}

func NewStatic(baseURL string) *Static {
	return &Static{client: resty.New(), baseURL: baseURL}
}

func (s *Static) Open(ctx context.Context, region Region, overlay Overlay, size int) (View, error) {
	if s.baseURL == "" {
		return nil, ErrUnavailable
	}
	v := &staticView{painted: make(chan struct{})}
	go v.paint(ctx, s, region, overlay, size)
	return v, nil
}

func (s *Static) fetch(ctx context.Context, region Region, size int) (image.Image, error) {
	b := region.Bounds()
	bbox := fmt.Sprintf("%f,%f,%f,%f", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"bbox":   bbox,
			"width":  strconv.Itoa(size),
			"height": strconv.Itoa(size),
		}).
		Get(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: static map status %d", ErrUnavailable, resp.StatusCode())
	}
	img, _, err := image.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: decode base map: %v", ErrUnavailable, err)
	}
	return img, nil
}

type staticView struct {
	painted chan struct{}
	mu      sync.Mutex
	img     image.Image
	err     error
}

func (v *staticView) paint(ctx context.Context, s *Static, region Region, overlay Overlay, size int) {
	defer close(v.painted)

	base, err := s.fetch(ctx, region, size)
	if err != nil {
		v.mu.Lock()
		v.err = err
		v.mu.Unlock()
		return
	}

	dc := gg.NewContext(size, size)
	bw, bh := base.Bounds().Dx(), base.Bounds().Dy()
	dc.Push()
	dc.Scale(float64(size)/float64(bw), float64(size)/float64(bh))
	dc.DrawImage(base, 0, 0)
	dc.Pop()

	pts := make([][2]float64, len(overlay.Path))
	for i, c := range overlay.Path {
		x, y := region.Project(c, float64(size))
		pts[i] = [2]float64{x, y}
	}
	StrokePath(dc, pts, overlay.Color, overlay.Width)

	v.mu.Lock()
	v.img = dc.Image()
	v.mu.Unlock()
}

func (v *staticView) Painted() <-chan struct{} { return v.painted }

func (v *staticView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func (v *staticView) Capture() (image.Image, error) {
	select {
	case <-v.painted:
	default:
		return nil, ErrNotPainted
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return v.img, nil
}

// StrokePath draws one open polyline through pts with round caps and joins.
// A single point is drawn as a dot of the stroke width.
func StrokePath(dc *gg.Context, pts [][2]float64, color string, width float64) {
	if len(pts) == 0 {
		return
	}
	dc.SetHexColor(color)
	if len(pts) == 1 {
		dc.DrawCircle(pts[0][0], pts[0][1], width/2)
		dc.Fill()
		return
	}
	dc.SetLineWidth(width)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.MoveTo(pts[0][0], pts[0][1])
	for _, p := range pts[1:] {
		dc.LineTo(p[0], p[1])
	}
	dc.Stroke()
}
