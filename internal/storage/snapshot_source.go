package storage

import (
	"context"
	"fmt"
	"time"

	"solana-sniper/internal/clock"
	"solana-sniper/internal/domain"
)

// StoreSource serves snapshots from a SnapshotStore.
type StoreSource struct {
	store  SnapshotStore
	maxAge time.Duration
	clock  clock.Clock
}

// NewStoreSource creates a snapshot source over store. Snapshots older than
// maxAge are rejected with ErrStale; maxAge <= 0 accepts any age.
func NewStoreSource(store SnapshotStore, maxAge time.Duration, c clock.Clock) *StoreSource {
	if c == nil {
		c = clock.Real{}
	}
	return &StoreSource{store: store, maxAge: maxAge, clock: c}
}

// Snapshot returns the newest stored snapshot of mint.
func (s *StoreSource) Snapshot(ctx context.Context, mint string) (domain.AssetSnapshot, error) {
	snap, err := s.store.GetLatest(ctx, mint)
	if err != nil {
		return domain.AssetSnapshot{}, err
	}
	if s.maxAge > 0 {
		if age := s.clock.Now().Sub(snap.ObservedAt); age > s.maxAge {
			return domain.AssetSnapshot{}, fmt.Errorf("%w: %s snapshot is %s old", ErrStale, mint, age)
		}
	}
	return *snap, nil
}
