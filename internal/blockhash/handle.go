// Package blockhash acquires recent blockhashes for transaction attempts.
package blockhash

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
)

// ErrHandleReused is returned when a handle is consumed a second time.
var ErrHandleReused = errors.New("blockhash handle already consumed")

// Handle is a single-use recent blockhash.
// Every attempt must acquire its own handle; Consume succeeds once.
type Handle struct {
	hash                 solana.Hash
	lastValidBlockHeight uint64
	fetchedAt            time.Time
	used                 atomic.Bool
}

// NewHandle wraps a decoded blockhash.
func NewHandle(hash solana.Hash, lastValidBlockHeight uint64, fetchedAt time.Time) *Handle {
	return &Handle{
		hash:                 hash,
		lastValidBlockHeight: lastValidBlockHeight,
		fetchedAt:            fetchedAt,
	}
}

// Consume returns the blockhash and marks the handle used.
func (h *Handle) Consume() (solana.Hash, error) {
	if h.used.Swap(true) {
		return solana.Hash{}, ErrHandleReused
	}
	return h.hash, nil
}

// Used reports whether the handle has been consumed.
func (h *Handle) Used() bool { return h.used.Load() }

// LastValidBlockHeight is the last block height at which the hash is accepted.
func (h *Handle) LastValidBlockHeight() uint64 { return h.lastValidBlockHeight }

// FetchedAt is when the hash was received.
func (h *Handle) FetchedAt() time.Time { return h.fetchedAt }

// String returns the base58 hash without consuming the handle.
func (h *Handle) String() string { return h.hash.String() }
