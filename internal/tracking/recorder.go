package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/biancann/footfolio/internal/location"
	"github.com/biancann/footfolio/internal/metrics"
	"github.com/biancann/footfolio/internal/shared/geo"

	"go.uber.org/zap"
)

const centerTimeout = 2 * time.Second

// ErrStopped is returned by Start when Stop won the race against it.
var ErrStopped = errors.New("recorder stopped")

// DefaultWatch is the cadence requested from location services while walking.
var DefaultWatch = location.WatchOptions{
	Accuracy:     location.AccuracyHigh,
	MinInterval:  time.Second,
	MinDistanceM: 1,
}

// Centerer moves a map display to follow the walker.
type Centerer interface {
	CenterOn(ctx context.Context, sessionID string, at geo.Coordinate) error
}

// Broadcaster pushes live updates to anyone watching a session.
type Broadcaster interface {
	Broadcast(sessionID string, payload []byte)
}

// Recorder owns the live-tracking loop of one walk. Samples arrive through a
// location subscription and are appended in arrival order by a single pump
// goroutine; the running distance only grows through OnSample.
type Recorder struct {
	sessionID string
	provider  location.Provider
	centerer  Centerer
	hub       Broadcaster
	log       *zap.Logger

	mu             sync.Mutex
	samples        []Sample
	totalDistanceM float64
	origin         *geo.Coordinate
	stopping       bool
	stopped        bool

	sub      location.Subscription
	pumpDone chan struct{}
	stopOnce sync.Once
}

type Option func(*Recorder)

func WithCenterer(c Centerer) Option       { return func(r *Recorder) { r.centerer = c } }
func WithBroadcaster(b Broadcaster) Option { return func(r *Recorder) { r.hub = b } }
func WithLogger(l *zap.Logger) Option      { return func(r *Recorder) { r.log = l } }

func NewRecorder(sessionID string, provider location.Provider, opts ...Option) *Recorder {
	r := &Recorder{
		sessionID: sessionID,
		provider:  provider,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start checks location services and permission, captures the origin fix and
// subscribes to position updates.
func (r *Recorder) Start(ctx context.Context) error {
	enabled, err := r.provider.ServicesEnabled(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", location.ErrLocationUnavailable, err)
	}
	if !enabled {
		return location.ErrLocationUnavailable
	}

	perm, err := r.provider.RequestPermission(ctx)
	if err != nil || perm != location.PermissionGranted {
		return location.ErrPermissionDenied
	}

	fix, err := r.provider.CurrentPosition(ctx, location.AccuracyHigh)
	if err != nil {
		return fmt.Errorf("%w: %v", location.ErrLocationUnavailable, err)
	}
	origin := fix.Coordinate()

	sub, err := r.provider.Watch(ctx, DefaultWatch)
	if err != nil {
		return fmt.Errorf("%w: %v", location.ErrLocationUnavailable, err)
	}

	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		sub.Remove()
		return ErrStopped
	}
	r.origin = &origin
	r.sub = sub
	r.pumpDone = make(chan struct{})
	r.mu.Unlock()

	go r.pump(sub, r.pumpDone)
	return nil
}

func (r *Recorder) pump(sub location.Subscription, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-sub.Done():
			return
		case fix := <-sub.C():
			r.OnSample(Sample{Lat: fix.Lat, Lng: fix.Lng, CapturedAtMillis: fix.TimestampMillis})
		}
	}
}

// OnSample appends s and adds the distance from the previous sample. Samples
// arriving after Stop are ignored. Timestamps are taken as reported: repeats
// and out-of-order values are kept in arrival order.
func (r *Recorder) OnSample(s Sample) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	if n := len(r.samples); n > 0 {
		r.totalDistanceM += geo.DistanceMeters(r.samples[n-1].Coordinate(), s.Coordinate())
	}
	r.samples = append(r.samples, s)
	points, total := len(r.samples), r.totalDistanceM
	r.mu.Unlock()

	metrics.SampleAccepted()

	if r.hub != nil {
		payload, _ := json.Marshal(sampleEvent{
			Type:           "sample",
			SessionID:      r.sessionID,
			Sample:         s,
			Points:         points,
			TotalDistanceM: total,
		})
		r.hub.Broadcast(r.sessionID, payload)
	}
	if r.centerer != nil {
		go r.recenter(s.Coordinate())
	}
}

func (r *Recorder) recenter(at geo.Coordinate) {
	ctx, cancel := context.WithTimeout(context.Background(), centerTimeout)
	defer cancel()
	if err := r.centerer.CenterOn(ctx, r.sessionID, at); err != nil {
		r.log.Debug("recenter failed", zap.String("session", r.sessionID), zap.Error(err))
	}
}

// Stop releases the location subscription and waits for in-flight samples to
// settle. Safe to call any number of times, including before Start.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopping = true
		sub, done := r.sub, r.pumpDone
		r.mu.Unlock()

		if sub != nil {
			sub.Remove()
			<-done
		}

		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
	})
}

func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

func (r *Recorder) TotalDistanceM() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalDistanceM
}

func (r *Recorder) Origin() (geo.Coordinate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.origin == nil {
		return geo.Coordinate{}, false
	}
	return *r.origin, true
}
