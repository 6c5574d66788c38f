package walk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/biancann/footfolio/internal/chain"
	"github.com/biancann/footfolio/internal/location"
	"github.com/biancann/footfolio/internal/metadata"
	"github.com/biancann/footfolio/internal/metrics"
	"github.com/biancann/footfolio/internal/render"
	"github.com/biancann/footfolio/internal/storage"
	"github.com/biancann/footfolio/internal/tracking"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Session is one walking attempt, from the first fix to a confirmed mint.
// Commands are serialised by mu; the mint pipeline runs outside the lock and
// is guarded against re-entry by the minting state.
type Session struct {
	id        string
	owner     string
	deviceID  string
	startedAt time.Time
	deps      *Deps
	recorder  Recorder

	mu          sync.Mutex
	state       State
	samples     []tracking.Sample
	distanceM   float64
	color       string
	background  render.Mode
	raster      *render.Raster
	nextTokenID uint64
	tokenName   string
	imageURI    string
	metadataURI string
	doc         *metadata.Metadata
	txID        string
	confirming  bool
	starting    bool
	cancelled   bool
	failure     *Failure
}

func newSession(id, owner, deviceID, color string, recorder Recorder, deps *Deps) *Session {
	return &Session{
		id:         id,
		owner:      owner,
		deviceID:   deviceID,
		startedAt:  time.Now().UTC(),
		deps:       deps,
		recorder:   recorder,
		state:      StateIdle,
		color:      color,
		background: render.ModeSolid,
	}
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Owner() string { return s.owner }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins tracking. On a location failure the walk moves to failed and
// the error is returned. Location calls run outside the lock so snapshots and
// cancels stay responsive behind a slow provider.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle || s.starting {
		defer s.mu.Unlock()
		return s.invalid("start")
	}
	s.starting = true
	s.mu.Unlock()

	err := s.recorder.Start(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if s.cancelled {
		s.recorder.Stop()
		return fmt.Errorf("%w: cancelled while starting", ErrInvalidTransition)
	}
	if err != nil {
		s.recorder.Stop()
		reason := ReasonLocationUnavailable
		if errors.Is(err, location.ErrPermissionDenied) {
			reason = ReasonPermissionDenied
		}
		s.fail(Failure{Reason: reason, Message: err.Error()})
		return err
	}
	s.state = StateTracking
	return nil
}

// Stop ends tracking, freezes the path and renders the default preview.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateTracking {
		return s.invalid("stop")
	}

	s.recorder.Stop()
	s.samples = s.recorder.Samples()
	s.distanceM = s.recorder.TotalDistanceM()
	if len(s.samples) == 0 {
		s.fail(Failure{Reason: ReasonNoSamplesRecorded, Message: ErrNoSamplesRecorded.Error()})
		return ErrNoSamplesRecorded
	}

	raster, err := s.deps.Renderer.Render(ctx, tracking.Coordinates(s.samples), render.Options{Mode: s.background, Color: s.color})
	if err != nil {
		s.fail(Failure{Reason: ReasonRenderFailed, Message: err.Error()})
		return err
	}
	s.raster = &raster
	s.state = StatePreviewing
	return nil
}

// SetPreview re-renders the frozen path with a new background and/or colour.
// Empty arguments keep the current choice. A failed render keeps the previous
// raster.
func (s *Session) SetPreview(ctx context.Context, mode render.Mode, color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePreviewing {
		return s.invalid("change preview")
	}

	if mode == "" {
		mode = s.background
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", render.ErrUnknownMode, mode)
	}
	if color == "" {
		color = s.color
	}
	canonical, ok := render.CanonicalColor(color)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColor, color)
	}

	raster, err := s.deps.Renderer.Render(ctx, tracking.Coordinates(s.samples), render.Options{Mode: mode, Color: canonical})
	if err != nil {
		return err
	}
	s.raster = &raster
	s.background = mode
	s.color = canonical
	return nil
}

// Raster returns the current preview image.
func (s *Session) Raster() (render.Raster, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raster == nil {
		return render.Raster{}, false
	}
	return *s.raster, true
}

// Mint publishes the preview and its metadata and submits the mint call from
// identity. A walk that failed while minting is retried implicitly.
func (s *Session) Mint(ctx context.Context, identity string) error {
	if identity == "" {
		return ErrNoIdentity
	}

	s.mu.Lock()
	if s.state == StateFailed && s.failure != nil && s.failure.Retryable() {
		s.resetMint()
	}
	if s.state != StatePreviewing {
		defer s.mu.Unlock()
		return s.invalid("mint")
	}
	if s.raster == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: nothing has been rendered", ErrInvalidTransition)
	}
	s.state = StateMinting
	raster := *s.raster
	input := metadata.Input{Samples: s.samples, TotalDistanceM: s.distanceM}
	s.mu.Unlock()

	started := time.Now()
	ctx, span := s.deps.Tracer.Start(ctx, "walk.mint")
	span.SetAttributes(attribute.String("walk.id", s.id), attribute.String("walk.owner", identity))
	defer span.End()

	failure, err := s.runMint(ctx, identity, raster, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(failure.Reason))
		metrics.RecordMint("failed", started)
		s.deps.Log.Warn("mint failed",
			zap.String("walk", s.id),
			zap.String("reason", string(failure.Reason)),
			zap.String("step", string(failure.Step)),
			zap.Error(err),
		)
		s.mu.Lock()
		s.fail(failure)
		s.mu.Unlock()
		return err
	}
	metrics.RecordMint("submitted", started)
	return nil
}

func (s *Session) runMint(ctx context.Context, identity string, raster render.Raster, input metadata.Input) (Failure, error) {
	var next uint64
	err := s.step(ctx, "chain.next_token_id", func(ctx context.Context) (err error) {
		next, err = s.deps.Chain.NextTokenID(ctx)
		return err
	})
	if err != nil {
		return Failure{Reason: ReasonChainReadFailed, Message: err.Error()}, err
	}
	input.NextTokenID = next
	name := metadata.TokenName(next)

	var imageURI string
	err = s.step(ctx, "publish.image", func(ctx context.Context) (err error) {
		imageURI, err = s.deps.Publisher.PublishImage(ctx, name, raster.PNG)
		return err
	})
	if err != nil {
		return publishFailure(err), err
	}
	s.mu.Lock()
	s.nextTokenID, s.tokenName, s.imageURI = next, name, imageURI
	s.mu.Unlock()

	var doc metadata.Metadata
	err = s.step(ctx, "metadata.build", func(context.Context) (err error) {
		doc, err = metadata.Build(input, imageURI)
		return err
	})
	if err != nil {
		return Failure{Reason: ReasonInsufficientSamples, Message: err.Error()}, err
	}

	var metadataURI string
	err = s.step(ctx, "publish.metadata", func(ctx context.Context) (err error) {
		metadataURI, err = s.deps.Publisher.PublishMetadata(ctx, name, doc)
		return err
	})
	if err != nil {
		return publishFailure(err), err
	}
	s.mu.Lock()
	s.metadataURI, s.doc = metadataURI, &doc
	s.mu.Unlock()

	var txID string
	err = s.step(ctx, "chain.submit", func(ctx context.Context) (err error) {
		txID, err = s.deps.Submitter.Submit(ctx, identity, metadataURI)
		return err
	})
	if err != nil {
		return submitFailure(err), err
	}
	s.mu.Lock()
	s.txID = txID
	s.mu.Unlock()
	return Failure{}, nil
}

func (s *Session) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.deps.Tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func publishFailure(err error) Failure {
	f := Failure{Reason: ReasonPublishFailed, Message: err.Error()}
	var perr *storage.PublishError
	if errors.As(err, &perr) {
		f.Step = perr.Step
		f.HTTPStatus = perr.HTTPStatus
	}
	return f
}

func submitFailure(err error) Failure {
	if errors.Is(err, chain.ErrMintRejected) {
		return Failure{Reason: ReasonMintRejected, Message: err.Error()}
	}
	return Failure{Reason: ReasonMintUnconfirmed, Message: err.Error()}
}

// Confirm waits for the submitted mint to land and commits the walk.
func (s *Session) Confirm(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateMinting || s.txID == "" || s.confirming {
		defer s.mu.Unlock()
		return s.invalid("confirm")
	}
	s.confirming = true
	txID := s.txID
	s.mu.Unlock()

	started := time.Now()
	ctx, span := s.deps.Tracer.Start(ctx, "chain.confirm")
	span.SetAttributes(attribute.String("walk.id", s.id), attribute.String("tx.id", txID))
	defer span.End()

	err := s.deps.Confirmer.Await(ctx, txID)

	s.mu.Lock()
	s.confirming = false
	if err != nil {
		reason := ReasonMintUnconfirmed
		if errors.Is(err, chain.ErrMintRejected) {
			reason = ReasonMintRejected
		}
		s.fail(Failure{Reason: reason, Message: err.Error()})
		s.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(reason))
		metrics.RecordMint(string(reason), started)
		return err
	}
	s.state = StateCommitted
	minted := s.mintedLocked()
	s.mu.Unlock()

	metrics.RecordMint("committed", started)
	if s.deps.Commits != nil {
		if err := s.deps.Commits.Record(ctx, minted); err != nil {
			s.deps.Log.Warn("record mint failed", zap.String("walk", s.id), zap.Error(err))
		}
	}
	return nil
}

func (s *Session) mintedLocked() Minted {
	m := Minted{
		TokenID:     s.nextTokenID,
		Owner:       s.owner,
		TxID:        s.txID,
		ImageURI:    s.imageURI,
		MetadataURI: s.metadataURI,
		DistanceM:   s.distanceM,
		Points:      len(s.samples),
	}
	if s.doc != nil {
		m.Metadata = *s.doc
	}
	m.DurationSeconds, _ = metadata.DurationSeconds(s.samples)
	return m
}

// Retry returns a walk that failed while minting to its preview.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed || s.failure == nil || !s.failure.Retryable() {
		return s.invalid("retry")
	}
	s.resetMint()
	return nil
}

func (s *Session) resetMint() {
	s.state = StatePreviewing
	s.failure = nil
	s.tokenName, s.imageURI, s.metadataURI, s.txID = "", "", "", ""
	s.doc = nil
}

// Cancel releases the location subscription. It refuses once minting began.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateMinting {
		return s.invalid("cancel")
	}
	s.cancelled = true
	s.recorder.Stop()
	return nil
}

// release stops the recorder whatever the state. Used on teardown.
func (s *Session) release() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	s.recorder.Stop()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	points, distance := len(s.samples), s.distanceM
	if s.state == StateTracking {
		points, distance = len(s.recorder.Samples()), s.recorder.TotalDistanceM()
	}
	snap := Snapshot{
		ID:          s.id,
		Owner:       s.owner,
		DeviceID:    s.deviceID,
		State:       s.state,
		Points:      points,
		DistanceM:   distance,
		DistanceKm:  fmt.Sprintf("%.2f", distance/1000),
		PathColor:   s.color,
		Background:  s.background,
		TokenName:   s.tokenName,
		ImageURI:    s.imageURI,
		MetadataURI: s.metadataURI,
		TxID:        s.txID,
		StartedAt:   s.startedAt,
	}
	if origin, ok := s.recorder.Origin(); ok {
		snap.Origin = &origin
	}
	if s.raster != nil {
		r := *s.raster
		snap.Raster = &r
	}
	if s.failure != nil {
		f := *s.failure
		snap.Failure = &f
	}
	return snap
}

func (s *Session) fail(f Failure) {
	s.state = StateFailed
	s.failure = &f
}

func (s *Session) invalid(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, s.state)
}
