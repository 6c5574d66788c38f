package rank

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/biancann/footfolio/internal/metadata"
	"github.com/biancann/footfolio/internal/storage"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const scanConcurrency = 4

// ChainReader is the read surface of the collection contract.
type ChainReader interface {
	NextTokenID(ctx context.Context) (uint64, error)
	TokenURI(ctx context.Context, tokenID uint64) (string, error)
	OwnerOf(ctx context.Context, tokenID uint64) (string, error)
}

// Scanner rebuilds the leaderboard from the chain by reading every token's
// metadata through an IPFS gateway.
type Scanner struct {
	chain   ChainReader
	gateway string
	client  *resty.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewScanner(chain ChainReader, gateway string, rps float64, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Scanner{
		chain:   chain,
		gateway: gateway,
		client:  resty.New().SetTimeout(15 * time.Second),
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// Scan aggregates every minted token by owner. Tokens whose URI is empty,
// marked as a test mint, or unreadable are skipped.
func (s *Scanner) Scan(ctx context.Context) ([]Entry, error) {
	next, err := s.chain.NextTokenID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token counter: %w", err)
	}

	var (
		mu      sync.Mutex
		byOwner = map[string]*Entry{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for id := uint64(0); id < next; id++ {
		id := id
		g.Go(func() error {
			owner, doc, ok := s.token(gctx, id)
			if !ok {
				return gctx.Err()
			}
			distanceKm, points := doc.Totals()

			mu.Lock()
			defer mu.Unlock()
			e, exists := byOwner[owner]
			if !exists {
				e = &Entry{Address: owner}
				byOwner[owner] = e
			}
			e.TotalDistance += distanceKm
			e.TotalPoints += points
			e.TotalTokens++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(byOwner))
	for _, e := range byOwner {
		entries = append(entries, *e)
	}
	return Rank(entries), nil
}

func (s *Scanner) token(ctx context.Context, id uint64) (string, metadata.Metadata, bool) {
	log := s.log.With(zap.Uint64("token", id))

	uri, err := s.chain.TokenURI(ctx, id)
	if err != nil {
		log.Warn("token uri read failed", zap.Error(err))
		return "", metadata.Metadata{}, false
	}
	if uri == "" || strings.Contains(strings.ToLower(uri), "testing") {
		return "", metadata.Metadata{}, false
	}

	owner, err := s.chain.OwnerOf(ctx, id)
	if err != nil {
		log.Warn("owner read failed", zap.Error(err))
		return "", metadata.Metadata{}, false
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", metadata.Metadata{}, false
	}
	var doc metadata.Metadata
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&doc).
		ForceContentType("application/json").
		Get(storage.GatewayURL(s.gateway, uri))
	if err != nil || resp.IsError() {
		log.Warn("metadata fetch failed", zap.String("uri", uri), zap.Error(err))
		return "", metadata.Metadata{}, false
	}
	return owner, doc, true
}
