package memory

import (
	"context"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu     sync.RWMutex
	latest map[string]*domain.AssetSnapshot // keyed by mint
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		latest: make(map[string]*domain.AssetSnapshot),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Upsert stores a copy of snap unless a newer snapshot of the mint exists.
func (s *SnapshotStore) Upsert(_ context.Context, snap *domain.AssetSnapshot) error {
	if snap == nil || snap.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.latest[snap.Mint]; ok && cur.ObservedAt.After(snap.ObservedAt) {
		return nil
	}
	snapCopy := *snap
	s.latest[snap.Mint] = &snapCopy
	return nil
}

// GetLatest returns the newest snapshot of mint. Returns ErrNotFound if none.
func (s *SnapshotStore) GetLatest(_ context.Context, mint string) (*domain.AssetSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.latest[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	snapCopy := *snap
	return &snapCopy, nil
}
