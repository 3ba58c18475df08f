package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetSnapshot is the state of an asset as seen by the eligibility predicate.
// Corresponds to asset_snapshots table in PostgreSQL.
type AssetSnapshot struct {
	Mint          string
	Progress      float64         // bonding curve progress, percent 0..100
	Holders       int             // distinct non-zero holders
	MarketCap     decimal.Decimal // in the quote unit of the source
	Concentration float64         // largest non-curve holder share, percent
	Graduated     bool            // curve completed / migrated
	ObservedAt    time.Time
}
