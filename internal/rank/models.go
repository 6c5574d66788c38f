package rank

import (
	"sort"
	"time"
)

// Entry is one wallet's standing on the leaderboard.
type Entry struct {
	Rank          int     `json:"rank"`
	Address       string  `json:"address"`
	TotalDistance float64 `json:"totalDistance"`
	TotalPoints   int64   `json:"totalPoints"`
	TotalTokens   int     `json:"totalTokens"`
}

type Token struct {
	TokenID     uint64    `json:"tokenId"`
	Name        string    `json:"name"`
	Image       string    `json:"image"`
	MetadataURI string    `json:"metadataUri"`
	DistanceKm  float64   `json:"distanceKm"`
	Points      int64     `json:"points"`
	Level       string    `json:"level"`
	MintedAt    time.Time `json:"mintedAt"`
}

type Profile struct {
	Entry
	Tokens []Token `json:"tokens"`
}

// Rank sorts entries by points, then distance, then address, and numbers them
// from 1 in that order.
func Rank(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.TotalDistance != b.TotalDistance {
			return a.TotalDistance > b.TotalDistance
		}
		return a.Address < b.Address
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
