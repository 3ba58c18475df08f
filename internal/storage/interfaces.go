// Package storage defines the persistence contracts used by the sniper.
package storage

import (
	"context"
	"time"

	"solana-sniper/internal/domain"
)

// SeenStore remembers trigger signatures so a reconnect replay is not traded twice.
type SeenStore interface {
	// MarkSeen records signature and reports whether this is its first sighting.
	// Entries expire after ttl; ttl <= 0 keeps them for the store's lifetime.
	MarkSeen(ctx context.Context, signature string, ttl time.Duration) (bool, error)
}

// SnapshotStore persists asset snapshots written by an external indexer or
// recorded by the sniper itself.
type SnapshotStore interface {
	// Upsert stores s as the newest snapshot of s.Mint.
	Upsert(ctx context.Context, s *domain.AssetSnapshot) error

	// GetLatest returns the newest snapshot of mint. Returns ErrNotFound if none.
	GetLatest(ctx context.Context, mint string) (*domain.AssetSnapshot, error)
}
