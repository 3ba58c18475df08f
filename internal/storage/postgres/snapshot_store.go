package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// One row per mint; an upsert only replaces a row with an older observation.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Upsert writes snap unless a newer observation of the mint is stored.
func (s *SnapshotStore) Upsert(ctx context.Context, snap *domain.AssetSnapshot) error {
	if snap == nil || snap.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO asset_snapshots (
			mint, progress, holders, market_cap, concentration, graduated, observed_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		ON CONFLICT (mint) DO UPDATE SET
			progress = EXCLUDED.progress,
			holders = EXCLUDED.holders,
			market_cap = EXCLUDED.market_cap,
			concentration = EXCLUDED.concentration,
			graduated = EXCLUDED.graduated,
			observed_at = EXCLUDED.observed_at
		WHERE asset_snapshots.observed_at <= EXCLUDED.observed_at
	`

	_, err := s.pool.Exec(ctx, query,
		snap.Mint,
		snap.Progress,
		snap.Holders,
		snap.MarketCap.String(),
		snap.Concentration,
		snap.Graduated,
		snap.ObservedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert asset snapshot: %w", err)
	}
	return nil
}

// GetLatest returns the stored snapshot of mint. Returns ErrNotFound if none.
func (s *SnapshotStore) GetLatest(ctx context.Context, mint string) (*domain.AssetSnapshot, error) {
	query := `
		SELECT mint, progress, holders, market_cap::text, concentration, graduated, observed_at
		FROM asset_snapshots
		WHERE mint = $1
	`

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get asset snapshot: %w", err)
	}
	return snap, nil
}

func scanSnapshot(row pgx.Row) (*domain.AssetSnapshot, error) {
	var (
		snap      domain.AssetSnapshot
		marketCap string
	)
	err := row.Scan(
		&snap.Mint,
		&snap.Progress,
		&snap.Holders,
		&marketCap,
		&snap.Concentration,
		&snap.Graduated,
		&snap.ObservedAt,
	)
	if err != nil {
		return nil, err
	}

	snap.MarketCap, err = decimal.NewFromString(marketCap)
	if err != nil {
		return nil, fmt.Errorf("parse market_cap %q: %w", marketCap, err)
	}
	return &snap, nil
}
