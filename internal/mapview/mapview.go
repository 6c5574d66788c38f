package mapview

import (
	"context"
	"errors"
	"image"

	"github.com/biancann/footfolio/internal/shared/geo"
)

var (
	ErrUnavailable = errors.New("map display unavailable")
	ErrNotPainted  = errors.New("map view has not finished painting")
)

// Region is a map viewport: a centre plus the lat/lng span it shows.
type Region struct {
	Center   geo.Coordinate `json:"center"`
	LatDelta float64        `json:"lat_delta"`
	LngDelta float64        `json:"lng_delta"`
}

func (r Region) Bounds() geo.Bounds {
	return geo.Bounds{
		MinLat: r.Center.Lat - r.LatDelta/2,
		MaxLat: r.Center.Lat + r.LatDelta/2,
		MinLng: r.Center.Lng - r.LngDelta/2,
		MaxLng: r.Center.Lng + r.LngDelta/2,
	}
}

// Project maps c into pixel space of a size x size view of r.
func (r Region) Project(c geo.Coordinate, size float64) (x, y float64) {
	b := r.Bounds()
	x = (c.Lng - b.MinLng) / r.LngDelta * size
	y = (b.MaxLat - c.Lat) / r.LatDelta * size
	return x, y
}

// Overlay is a stroked polyline drawn on top of the map.
type Overlay struct {
	Path  []geo.Coordinate
	Color string
	Width float64
}

// Display renders map regions. Rendering is asynchronous: a View reports when
// its first paint has completed, and only then can it be captured.
type Display interface {
	Open(ctx context.Context, region Region, overlay Overlay, size int) (View, error)
}

type View interface {
	Painted() <-chan struct{}
	Err() error
	Capture() (image.Image, error)
}
