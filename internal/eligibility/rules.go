// Package eligibility decides whether an asset snapshot may be traded.
package eligibility

import (
	"fmt"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
)

// Predicate reports whether a snapshot is eligible.
type Predicate func(domain.AssetSnapshot) bool

// Rules is the threshold rule set loaded from configuration.
type Rules struct {
	MinProgress      float64
	MaxHolders       int
	MinMarketCap     decimal.Decimal
	MaxConcentration float64
	RequireGraduated bool
}

// DefaultRules returns the stock thresholds.
func DefaultRules() Rules {
	return Rules{
		MinProgress:      99,
		MaxHolders:       35,
		MinMarketCap:     decimal.NewFromInt(4000),
		MaxConcentration: 1.0,
		RequireGraduated: true,
	}
}

// Validate checks that thresholds are in range.
func (r Rules) Validate() error {
	if r.MinProgress < 0 || r.MinProgress > 100 {
		return fmt.Errorf("min_progress must be in [0,100], got %v", r.MinProgress)
	}
	if r.MaxHolders < 0 {
		return fmt.Errorf("max_holders must be >= 0, got %d", r.MaxHolders)
	}
	if r.MinMarketCap.IsNegative() {
		return fmt.Errorf("min_market_cap must be >= 0, got %s", r.MinMarketCap)
	}
	if r.MaxConcentration < 0 || r.MaxConcentration > 100 {
		return fmt.Errorf("max_concentration must be in [0,100], got %v", r.MaxConcentration)
	}
	return nil
}

// Predicate returns the conjunction of all thresholds.
func (r Rules) Predicate() Predicate {
	return func(s domain.AssetSnapshot) bool {
		return s.Progress >= r.MinProgress &&
			s.Holders <= r.MaxHolders &&
			s.MarketCap.GreaterThanOrEqual(r.MinMarketCap) &&
			s.Concentration <= r.MaxConcentration &&
			(s.Graduated || !r.RequireGraduated)
	}
}

// Explain lists the thresholds s fails, for logging rejected triggers.
func (r Rules) Explain(s domain.AssetSnapshot) []string {
	var failed []string
	if s.Progress < r.MinProgress {
		failed = append(failed, fmt.Sprintf("progress %.2f < %.2f", s.Progress, r.MinProgress))
	}
	if s.Holders > r.MaxHolders {
		failed = append(failed, fmt.Sprintf("holders %d > %d", s.Holders, r.MaxHolders))
	}
	if s.MarketCap.LessThan(r.MinMarketCap) {
		failed = append(failed, fmt.Sprintf("market cap %s < %s", s.MarketCap, r.MinMarketCap))
	}
	if s.Concentration > r.MaxConcentration {
		failed = append(failed, fmt.Sprintf("concentration %.2f > %.2f", s.Concentration, r.MaxConcentration))
	}
	if r.RequireGraduated && !s.Graduated {
		failed = append(failed, "not graduated")
	}
	return failed
}
