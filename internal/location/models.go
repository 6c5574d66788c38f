package location

import (
	"errors"
	"time"

	"github.com/biancann/footfolio/internal/shared/geo"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrLocationUnavailable = errors.New("location services unavailable")
	ErrDeviceNotOwned      = errors.New("device belongs to another wallet")
)

type Accuracy string

const (
	AccuracyBalanced Accuracy = "balanced"
	AccuracyHigh     Accuracy = "high"
)

type Permission string

const (
	PermissionUndetermined Permission = "undetermined"
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
)

// Fix is one raw position report from a device.
type Fix struct {
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	TimestampMillis int64   `json:"timestamp"`
}

func (f Fix) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: f.Lat, Lng: f.Lng}
}

// Status is what a device last reported about its location stack.
type Status struct {
	ServicesEnabled bool       `json:"services_enabled"`
	Permission      Permission `json:"permission"`
}

type WatchOptions struct {
	Accuracy     Accuracy      `json:"accuracy"`
	MinInterval  time.Duration `json:"min_interval"`
	MinDistanceM float64       `json:"min_distance_m"`
}
