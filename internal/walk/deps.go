package walk

import (
	"context"

	"github.com/biancann/footfolio/internal/render"
	"github.com/biancann/footfolio/internal/shared/geo"
	"github.com/biancann/footfolio/internal/tracking"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Recorder interface {
	Start(ctx context.Context) error
	Stop()
	Samples() []tracking.Sample
	TotalDistanceM() float64
	Origin() (geo.Coordinate, bool)
}

type Renderer interface {
	Render(ctx context.Context, path []geo.Coordinate, opts render.Options) (render.Raster, error)
}

type Publisher interface {
	PublishImage(ctx context.Context, name string, png []byte) (string, error)
	PublishMetadata(ctx context.Context, name string, doc any) (string, error)
}

type TokenCounter interface {
	NextTokenID(ctx context.Context) (uint64, error)
}

type Submitter interface {
	Submit(ctx context.Context, from, metadataURI string) (string, error)
}

type Confirmer interface {
	Await(ctx context.Context, txID string) error
}

// CommitListener is told about every confirmed mint. Errors are logged only.
type CommitListener interface {
	Record(ctx context.Context, m Minted) error
}

// Deps are the collaborators shared by every walk.
type Deps struct {
	Renderer  Renderer
	Publisher Publisher
	Chain     TokenCounter
	Submitter Submitter
	Confirmer Confirmer
	Commits   CommitListener
	Log       *zap.Logger
	Tracer    trace.Tracer
}

func (d *Deps) defaults() {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer("github.com/biancann/footfolio/internal/walk")
	}
}
