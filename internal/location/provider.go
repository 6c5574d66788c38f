package location

import "context"

// Provider is the location-services view of a single device.
type Provider interface {
	ServicesEnabled(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) (Permission, error)
	CurrentPosition(ctx context.Context, accuracy Accuracy) (Fix, error)
	Watch(ctx context.Context, opts WatchOptions) (Subscription, error)
}

// Subscription delivers fixes in arrival order until Remove is called.
// C is never closed; consumers select on Done as well.
type Subscription interface {
	C() <-chan Fix
	Done() <-chan struct{}
	Remove()
}

// Source hands out per-device providers and accepts device reports.
// A device belongs to the first wallet that claims it.
type Source interface {
	Provider(deviceID string) Provider
	Claim(ctx context.Context, deviceID, owner string) error
	SetStatus(ctx context.Context, deviceID string, status Status) error
	Push(ctx context.Context, deviceID string, fix Fix) error
}
