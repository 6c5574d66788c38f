package rank

import (
	"context"

	"github.com/biancann/footfolio/internal/db"
	"github.com/biancann/footfolio/internal/metadata"
	"github.com/biancann/footfolio/internal/walk"
)

const leaderboardLimit = 100

// Store keeps confirmed mints in Postgres so rankings do not need a chain scan.
type Store struct {
	db db.Querier
}

func NewStore(db db.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, m walk.Minted) error {
	distanceKm, points := m.Metadata.Totals()
	if points == 0 {
		points = int64(m.Points)
	}
	level, _ := m.Metadata.Attr(metadata.TraitLevel)
	_, err := s.db.Exec(ctx, `
		INSERT INTO minted_walks (token_id, owner, tx_id, metadata_uri, image_uri, distance_km, points, duration_seconds, level)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (token_id) DO NOTHING
	`, int64(m.TokenID), m.Owner, m.TxID, m.MetadataURI, m.ImageURI, distanceKm, points, m.DurationSeconds, level)
	return err
}

func (s *Store) Leaderboard(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT owner, SUM(distance_km), SUM(points)::BIGINT, COUNT(*)
		FROM minted_walks
		GROUP BY owner
		ORDER BY 3 DESC
		LIMIT $1
	`, leaderboardLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Address, &e.TotalDistance, &e.TotalPoints, &e.TotalTokens); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return Rank(entries), nil
}

// Profile returns the wallet's totals and tokens. Rank is left zero; the
// service fills it from the leaderboard.
func (s *Store) Profile(ctx context.Context, address string) (Profile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT token_id, metadata_uri, image_uri, distance_km, points, level, minted_at
		FROM minted_walks
		WHERE owner = $1
		ORDER BY token_id DESC
	`, address)
	if err != nil {
		return Profile{}, err
	}
	defer rows.Close()

	p := Profile{Entry: Entry{Address: address}, Tokens: []Token{}}
	for rows.Next() {
		var (
			t  Token
			id int64
		)
		if err := rows.Scan(&id, &t.MetadataURI, &t.Image, &t.DistanceKm, &t.Points, &t.Level, &t.MintedAt); err != nil {
			return Profile{}, err
		}
		t.TokenID = uint64(id)
		t.Name = metadata.TokenName(t.TokenID)
		p.TotalDistance += t.DistanceKm
		p.TotalPoints += t.Points
		p.Tokens = append(p.Tokens, t)
	}
	if err := rows.Err(); err != nil {
		return Profile{}, err
	}
	p.TotalTokens = len(p.Tokens)
	return p, nil
}
