package walk

import (
	"context"
	"fmt"
	"sync"

	"github.com/biancann/footfolio/internal/location"
	"github.com/biancann/footfolio/internal/render"
	"github.com/biancann/footfolio/internal/shared/geo"
	"github.com/biancann/footfolio/internal/storage"
	"github.com/biancann/footfolio/internal/tracking"
)

const owner = "0x52908400098527886E0F7030069857D2E4169EE7"

// equatorWalk is two fixes 0.001 deg of longitude apart, five seconds apart.
var equatorWalk = []tracking.Sample{
	{Lat: 0, Lng: 0, CapturedAtMillis: 1_700_000_000_000},
	{Lat: 0, Lng: 0.001, CapturedAtMillis: 1_700_000_005_000},
}

type fakeRecorder struct {
	mu       sync.Mutex
	startErr error
	samples  []tracking.Sample
	started  bool
	stops    int

	// entered is closed when Start begins; Start then waits on block.
	entered chan struct{}
	block   chan struct{}
}

func (r *fakeRecorder) Start(context.Context) error {
	if r.entered != nil {
		close(r.entered)
	}
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = r.startErr == nil
	return r.startErr
}

func (r *fakeRecorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func (r *fakeRecorder) Samples() []tracking.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tracking.Sample(nil), r.samples...)
}

func (r *fakeRecorder) TotalDistanceM() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return tracking.PathDistanceM(r.samples)
}

func (r *fakeRecorder) Origin() (geo.Coordinate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) == 0 {
		return geo.Coordinate{}, false
	}
	return r.samples[0].Coordinate(), true
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls []render.Options
	err   error
}

func (f *fakeRenderer) Render(_ context.Context, path []geo.Coordinate, opts render.Options) (render.Raster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return render.Raster{}, f.err
	}
	if len(path) == 0 {
		return render.Raster{}, render.ErrEmptyPath
	}
	return render.Raster{ID: fmt.Sprintf("raster-%d", len(f.calls)), Mode: opts.Mode, Color: opts.Color, Width: render.Size, Height: render.Size, PNG: []byte("png")}, nil
}

type fakePublisher struct {
	mu            sync.Mutex
	imageCalls    int
	metadataCalls int
	imageErr      error
	metadataErrs  []error
	lastDoc       any
	block         chan struct{}
}

func (p *fakePublisher) PublishImage(ctx context.Context, _ string, _ []byte) (string, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imageCalls++
	if p.imageErr != nil {
		return "", p.imageErr
	}
	return "ipfs://QmImage", nil
}

func (p *fakePublisher) PublishMetadata(_ context.Context, _ string, doc any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadataCalls++
	p.lastDoc = doc
	if len(p.metadataErrs) > 0 {
		err := p.metadataErrs[0]
		p.metadataErrs = p.metadataErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "ipfs://QmMeta", nil
}

type fakeChain struct {
	next uint64
	err  error
}

func (c *fakeChain) NextTokenID(context.Context) (uint64, error) { return c.next, c.err }

type fakeSubmitter struct {
	from string
	uri  string
	err  error
}

func (s *fakeSubmitter) Submit(_ context.Context, from, uri string) (string, error) {
	s.from, s.uri = from, uri
	if s.err != nil {
		return "", s.err
	}
	return "0xtx", nil
}

type fakeConfirmer struct{ err error }

func (c *fakeConfirmer) Await(context.Context, string) error { return c.err }

type fakeCommits struct {
	mu     sync.Mutex
	minted []Minted
}

func (c *fakeCommits) Record(_ context.Context, m Minted) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minted = append(c.minted, m)
	return nil
}

type harness struct {
	deps      *Deps
	recorder  *fakeRecorder
	renderer  *fakeRenderer
	publisher *fakePublisher
	chain     *fakeChain
	submitter *fakeSubmitter
	confirmer *fakeConfirmer
	commits   *fakeCommits
}

func newHarness(samples []tracking.Sample) *harness {
	h := &harness{
		recorder:  &fakeRecorder{samples: samples},
		renderer:  &fakeRenderer{},
		publisher: &fakePublisher{},
		chain:     &fakeChain{next: 6},
		submitter: &fakeSubmitter{},
		confirmer: &fakeConfirmer{},
		commits:   &fakeCommits{},
	}
	h.deps = &Deps{
		Renderer:  h.renderer,
		Publisher: h.publisher,
		Chain:     h.chain,
		Submitter: h.submitter,
		Confirmer: h.confirmer,
		Commits:   h.commits,
	}
	h.deps.defaults()
	return h
}

func (h *harness) session() *Session {
	return newSession("walk-1", owner, "phone-1", render.DefaultColor, h.recorder, h.deps)
}

// previewing returns a session that has been started and stopped.
func (h *harness) previewing(ctx context.Context) (*Session, error) {
	s := h.session()
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, s.Stop(ctx)
}

var (
	errPinata500 = &storage.PublishError{Step: storage.StepMetadata, HTTPStatus: 500, Body: "boom"}
	errNoSignal  = fmt.Errorf("%w: no gps signal", location.ErrLocationUnavailable)
)
