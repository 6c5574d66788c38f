package geo

import "math"

// EarthRadiusM is the mean earth radius used by the spherical approximation.
const EarthRadiusM = 6371000.0

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceMeters returns the great-circle distance between a and b using the
// haversine formula.
func DistanceMeters(a, b Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// rounding can push h just outside [0,1] near antipodes
	h = math.Min(1, math.Max(0, h))
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bounds is an axis-aligned lat/lng box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func BoundsOf(coords []Coordinate) (Bounds, bool) {
	if len(coords) == 0 {
		return Bounds{}, false
	}
	b := Bounds{MinLat: coords[0].Lat, MaxLat: coords[0].Lat, MinLng: coords[0].Lng, MaxLng: coords[0].Lng}
	for _, c := range coords[1:] {
		b.MinLat = math.Min(b.MinLat, c.Lat)
		b.MaxLat = math.Max(b.MaxLat, c.Lat)
		b.MinLng = math.Min(b.MinLng, c.Lng)
		b.MaxLng = math.Max(b.MaxLng, c.Lng)
	}
	return b, true
}

func (b Bounds) Center() Coordinate {
	return Coordinate{Lat: (b.MinLat + b.MaxLat) / 2, Lng: (b.MinLng + b.MaxLng) / 2}
}

func (b Bounds) LatSpan() float64 { return b.MaxLat - b.MinLat }
func (b Bounds) LngSpan() float64 { return b.MaxLng - b.MinLng }
