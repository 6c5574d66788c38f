package walk

import (
	"errors"
	"time"

	"github.com/biancann/footfolio/internal/metadata"
	"github.com/biancann/footfolio/internal/render"
	"github.com/biancann/footfolio/internal/shared/geo"
	"github.com/biancann/footfolio/internal/storage"
)

type State string

const (
	StateIdle       State = "idle"
	StateTracking   State = "tracking"
	StatePreviewing State = "previewing"
	StateMinting    State = "minting"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

type Reason string

const (
	ReasonPermissionDenied    Reason = "permission_denied"
	ReasonLocationUnavailable Reason = "location_unavailable"
	ReasonNoSamplesRecorded   Reason = "no_samples_recorded"
	ReasonRenderFailed        Reason = "render_failed"
	ReasonInsufficientSamples Reason = "insufficient_samples"
	ReasonPublishFailed       Reason = "publish_failed"
	ReasonChainReadFailed     Reason = "chain_read_failed"
	ReasonMintRejected        Reason = "mint_rejected"
	ReasonMintUnconfirmed     Reason = "mint_unconfirmed"
)

var (
	ErrInvalidTransition = errors.New("invalid walk state transition")
	ErrNoSamplesRecorded = errors.New("no samples were recorded")
	ErrNoIdentity        = errors.New("a connected wallet is required")
	ErrNotFound          = errors.New("walk not found")
	ErrUnknownColor      = errors.New("path color is not in the palette")
)

// Failure describes why a walk ended up in the failed state.
type Failure struct {
	Reason     Reason       `json:"reason"`
	Step       storage.Step `json:"step,omitempty"`
	HTTPStatus int          `json:"http_status,omitempty"`
	Message    string       `json:"message"`
}

// Retryable reports whether the failure happened while minting, in which case
// the rendered preview is still there to mint again.
func (f Failure) Retryable() bool {
	switch f.Reason {
	case ReasonInsufficientSamples, ReasonPublishFailed, ReasonChainReadFailed, ReasonMintRejected, ReasonMintUnconfirmed:
		return true
	}
	return false
}

// Snapshot is a point-in-time copy of a walk, safe to serialise.
type Snapshot struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	DeviceID    string          `json:"device_id"`
	State       State           `json:"state"`
	Points      int             `json:"points"`
	DistanceM   float64         `json:"distance_m"`
	DistanceKm  string          `json:"distance_km"`
	PathColor   string          `json:"path_color"`
	Background  render.Mode     `json:"background"`
	Origin      *geo.Coordinate `json:"origin,omitempty"`
	Raster      *render.Raster  `json:"raster,omitempty"`
	TokenName   string          `json:"token_name,omitempty"`
	ImageURI    string          `json:"image_uri,omitempty"`
	MetadataURI string          `json:"metadata_uri,omitempty"`
	TxID        string          `json:"tx_id,omitempty"`
	Failure     *Failure        `json:"failure,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
}

// Minted is handed to the commit listener once a mint is confirmed.
type Minted struct {
	TokenID         uint64
	Owner           string
	TxID            string
	ImageURI        string
	MetadataURI     string
	Metadata        metadata.Metadata
	DistanceM       float64
	Points          int
	DurationSeconds int64
}
