package memory

import (
	"context"
	"sync"
	"time"

	"solana-sniper/internal/clock"
	"solana-sniper/internal/storage"
)

// pruneEvery is the number of inserts between expiry sweeps.
const pruneEvery = 1024

// SeenStore is an in-memory implementation of storage.SeenStore.
type SeenStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	expires map[string]time.Time // zero time never expires
	inserts int
}

// NewSeenStore creates a new in-memory seen store. A nil clock uses wall time.
func NewSeenStore(c clock.Clock) *SeenStore {
	if c == nil {
		c = clock.Real{}
	}
	return &SeenStore{
		clock:   c,
		expires: make(map[string]time.Time),
	}
}

// Compile-time interface check.
var _ storage.SeenStore = (*SeenStore)(nil)

// MarkSeen records signature. Returns true on first sighting within ttl.
func (s *SeenStore) MarkSeen(_ context.Context, signature string, ttl time.Duration) (bool, error) {
	if signature == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if exp, ok := s.expires[signature]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}

	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	s.expires[signature] = exp

	s.inserts++
	if s.inserts%pruneEvery == 0 {
		s.prune(now)
	}
	return true, nil
}

// Len returns the number of tracked signatures, expired ones included.
func (s *SeenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}

func (s *SeenStore) prune(now time.Time) {
	for sig, exp := range s.expires {
		if !exp.IsZero() && !now.Before(exp) {
			delete(s.expires, sig)
		}
	}
}
