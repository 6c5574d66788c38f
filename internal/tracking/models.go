package tracking

import "github.com/biancann/footfolio/internal/shared/geo"

// Sample is one timestamped GPS fix accepted into a walk.
type Sample struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	CapturedAtMillis int64   `json:"captured_at"`
}

func (s Sample) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: s.Lat, Lng: s.Lng}
}

func Coordinates(samples []Sample) []geo.Coordinate {
	out := make([]geo.Coordinate, len(samples))
	for i, s := range samples {
		out[i] = s.Coordinate()
	}
	return out
}

// PathDistanceM sums consecutive great-circle distances over samples.
func PathDistanceM(samples []Sample) float64 {
	total := 0.0
	for i := 1; i < len(samples); i++ {
		total += geo.DistanceMeters(samples[i-1].Coordinate(), samples[i].Coordinate())
	}
	return total
}

type sampleEvent struct {
	Type           string  `json:"type"`
	SessionID      string  `json:"session_id"`
	Sample         Sample  `json:"sample"`
	Points         int     `json:"points"`
	TotalDistanceM float64 `json:"total_distance_m"`
}
