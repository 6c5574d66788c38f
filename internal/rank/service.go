package rank

import (
	"context"
	"errors"
	"strings"

	"github.com/biancann/footfolio/internal/walk"

	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("no rank source is configured")

// Service answers leaderboard queries from the cache, then the mint store,
// then a chain scan. Any of the three may be nil.
type Service struct {
	store   *Store
	scanner *Scanner
	cache   *Cache
	log     *zap.Logger
}

func NewService(store *Store, scanner *Scanner, cache *Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, scanner: scanner, cache: cache, log: log}
}

func (s *Service) Leaderboard(ctx context.Context) ([]Entry, error) {
	if s.cache != nil {
		entries, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn("rank cache read failed", zap.Error(err))
		}
		if ok {
			return entries, nil
		}
	}

	entries, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, entries); err != nil {
			s.log.Warn("rank cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

func (s *Service) compute(ctx context.Context) ([]Entry, error) {
	if s.store != nil {
		entries, err := s.store.Leaderboard(ctx)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			s.log.Warn("rank store read failed", zap.Error(err))
		}
	}
	if s.scanner != nil {
		return s.scanner.Scan(ctx)
	}
	if s.store != nil {
		return []Entry{}, nil
	}
	return nil, ErrUnavailable
}

// Profile returns one wallet's totals with its leaderboard position.
func (s *Service) Profile(ctx context.Context, address string) (Profile, error) {
	entries, err := s.Leaderboard(ctx)
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	if s.store != nil {
		if p, err = s.store.Profile(ctx, address); err != nil {
			return Profile{}, err
		}
	}
	if p.Address == "" {
		p = Profile{Entry: Entry{Address: address}, Tokens: []Token{}}
	}
	for _, e := range entries {
		if strings.EqualFold(e.Address, address) {
			p.Rank = e.Rank
			if p.TotalTokens == 0 {
				p.TotalDistance, p.TotalPoints, p.TotalTokens = e.TotalDistance, e.TotalPoints, e.TotalTokens
			}
			break
		}
	}
	return p, nil
}

// Record stores a confirmed mint and drops the cached leaderboard.
func (s *Service) Record(ctx context.Context, m walk.Minted) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Record(ctx, m); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Warn("rank cache invalidate failed", zap.Error(err))
		}
	}
	return nil
}
