package location

import (
	"context"
	"sync"
)

const subscriptionBuffer = 64

// Feed is an in-memory Source fed by devices over HTTP.
type Feed struct {
	mu      sync.Mutex
	devices map[string]*deviceState
}

type deviceState struct {
	owner  string
	status Status
	last   *Fix
	watch  WatchOptions
	subs   map[*subscription]struct{}
}

func NewFeed() *Feed {
	return &Feed{devices: map[string]*deviceState{}}
}

func (f *Feed) device(id string) *deviceState {
	d, ok := f.devices[id]
	if !ok {
		d = &deviceState{
			status: Status{Permission: PermissionUndetermined},
			subs:   map[*subscription]struct{}{},
		}
		f.devices[id] = d
	}
	return d
}

func (f *Feed) Provider(deviceID string) Provider {
	return &feedProvider{feed: f, deviceID: deviceID}
}

func (f *Feed) Claim(_ context.Context, deviceID, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.device(deviceID)
	switch d.owner {
	case "":
		d.owner = owner
	case owner:
	default:
		return ErrDeviceNotOwned
	}
	return nil
}

func (f *Feed) SetStatus(_ context.Context, deviceID string, status Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.device(deviceID).status = status
	return nil
}

// Push records fix as the device's last known position and hands it to every
// live subscription, blocking while a subscriber's buffer is full.
func (f *Feed) Push(ctx context.Context, deviceID string, fix Fix) error {
	f.mu.Lock()
	d := f.device(deviceID)
	last := fix
	d.last = &last
	subs := make([]*subscription, 0, len(d.subs))
	for s := range d.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		if err := s.deliver(ctx, fix); err != nil {
			return err
		}
	}
	return nil
}

// WatchOptions returns the cadence most recently requested for deviceID.
func (f *Feed) WatchOptions(deviceID string) (WatchOptions, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[deviceID]
	if !ok || len(d.subs) == 0 {
		return WatchOptions{}, false
	}
	return d.watch, true
}

func (f *Feed) remove(deviceID string, s *subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[deviceID]; ok {
		delete(d.subs, s)
	}
}

type feedProvider struct {
	feed     *Feed
	deviceID string
}

func (p *feedProvider) ServicesEnabled(_ context.Context) (bool, error) {
	p.feed.mu.Lock()
	defer p.feed.mu.Unlock()
	return p.feed.device(p.deviceID).status.ServicesEnabled, nil
}

func (p *feedProvider) RequestPermission(_ context.Context) (Permission, error) {
	p.feed.mu.Lock()
	defer p.feed.mu.Unlock()
	if p.feed.device(p.deviceID).status.Permission == PermissionGranted {
		return PermissionGranted, nil
	}
	return PermissionDenied, nil
}

func (p *feedProvider) CurrentPosition(_ context.Context, _ Accuracy) (Fix, error) {
	p.feed.mu.Lock()
	defer p.feed.mu.Unlock()
	d := p.feed.device(p.deviceID)
	if d.last == nil {
		return Fix{}, ErrLocationUnavailable
	}
	return *d.last, nil
}

func (p *feedProvider) Watch(_ context.Context, opts WatchOptions) (Subscription, error) {
	s := newSubscription(func(s *subscription) { p.feed.remove(p.deviceID, s) })

	p.feed.mu.Lock()
	defer p.feed.mu.Unlock()
	d := p.feed.device(p.deviceID)
	d.watch = opts
	d.subs[s] = struct{}{}
	return s, nil
}

type subscription struct {
	ch       chan Fix
	done     chan struct{}
	once     sync.Once
	onRemove func(*subscription)
}

func newSubscription(onRemove func(*subscription)) *subscription {
	return &subscription{
		ch:       make(chan Fix, subscriptionBuffer),
		done:     make(chan struct{}),
		onRemove: onRemove,
	}
}

func (s *subscription) C() <-chan Fix         { return s.ch }
func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) Remove() {
	s.once.Do(func() {
		close(s.done)
		if s.onRemove != nil {
			s.onRemove(s)
		}
	})
}

func (s *subscription) deliver(ctx context.Context, fix Fix) error {
	select {
	case <-s.done:
		return nil
	default:
	}
	select {
	case s.ch <- fix:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
