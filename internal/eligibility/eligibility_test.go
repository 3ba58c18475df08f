package eligibility

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
)

func passing() domain.AssetSnapshot {
	return domain.AssetSnapshot{
		Mint:          "mint",
		Progress:      99,
		Holders:       30,
		MarketCap:     decimal.NewFromInt(5000),
		Concentration: 0.5,
		Graduated:     true,
	}
}

func TestRules_DefaultPredicate(t *testing.T) {
	pred := DefaultRules().Predicate()

	tests := []struct {
		name   string
		mutate func(*domain.AssetSnapshot)
		want   bool
	}{
		{"passes all thresholds", func(*domain.AssetSnapshot) {}, true},
		{"progress at boundary", func(s *domain.AssetSnapshot) { s.Progress = 99 }, true},
		{"progress too low", func(s *domain.AssetSnapshot) { s.Progress = 90 }, false},
		{"holders at boundary", func(s *domain.AssetSnapshot) { s.Holders = 35 }, true},
		{"too many holders", func(s *domain.AssetSnapshot) { s.Holders = 40 }, false},
		{"market cap at boundary", func(s *domain.AssetSnapshot) { s.MarketCap = decimal.NewFromInt(4000) }, true},
		{"market cap too low", func(s *domain.AssetSnapshot) { s.MarketCap = decimal.NewFromInt(3000) }, false},
		{"concentration too high", func(s *domain.AssetSnapshot) { s.Concentration = 1.2 }, false},
		{"not graduated", func(s *domain.AssetSnapshot) { s.Graduated = false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := passing()
			tt.mutate(&s)
			if got := pred(s); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRules_Explain(t *testing.T) {
	s := domain.AssetSnapshot{
		Progress:      90,
		Holders:       40,
		MarketCap:     decimal.NewFromInt(3000),
		Concentration: 1.2,
		Graduated:     false,
	}
	if got := DefaultRules().Explain(s); len(got) != 5 {
		t.Errorf("expected 5 failed thresholds, got %v", got)
	}
	if got := DefaultRules().Explain(passing()); len(got) != 0 {
		t.Errorf("expected no failures, got %v", got)
	}
}

func TestRules_Validate(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Errorf("default rules invalid: %v", err)
	}

	bad := DefaultRules()
	bad.MinProgress = 120
	if err := bad.Validate(); err == nil {
		t.Error("expected error for progress > 100")
	}

	bad = DefaultRules()
	bad.MinMarketCap = decimal.NewFromInt(-1)
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative market cap")
	}
}

func TestFilter_SetAndNil(t *testing.T) {
	f := NewFilter(DefaultRules().Predicate())
	if !f.Eligible(passing()) {
		t.Error("expected passing snapshot to be eligible")
	}

	f.Set(func(domain.AssetSnapshot) bool { return false })
	if f.Eligible(passing()) {
		t.Error("expected swapped predicate to reject")
	}

	f.Set(nil)
	if f.Eligible(passing()) {
		t.Error("nil predicate must reject everything")
	}

	var empty Filter
	if empty.Eligible(passing()) {
		t.Error("zero filter must reject everything")
	}
}

func TestFilter_ConcurrentSwap(t *testing.T) {
	f := NewFilter(DefaultRules().Predicate())
	loose := Rules{MinMarketCap: decimal.Zero, MaxHolders: 1000, MaxConcentration: 100}.Predicate()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.Eligible(passing())
			}
		}()
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				f.Set(loose)
			} else {
				f.Set(DefaultRules().Predicate())
			}
		}(i)
	}
	wg.Wait()

	if !f.Eligible(passing()) {
		t.Error("both installed predicates accept the passing snapshot")
	}
}

func TestFilter_Reasons(t *testing.T) {
	f := NewRulesFilter(DefaultRules())
	s := passing()
	s.Holders = 500
	s.Graduated = false

	if f.Eligible(s) {
		t.Fatal("expected snapshot to be rejected")
	}
	got := f.Reasons(s)
	if len(got) != 2 || got[0] != "holders 500 > 35" || got[1] != "not graduated" {
		t.Errorf("unexpected reasons %v", got)
	}

	f.SetRules(Rules{MinMarketCap: decimal.Zero, MaxHolders: 1000, MaxConcentration: 100})
	if !f.Eligible(s) || len(f.Reasons(s)) != 0 {
		t.Error("reloaded rules should accept the snapshot")
	}

	f.Set(func(domain.AssetSnapshot) bool { return false })
	if got := f.Reasons(s); got != nil {
		t.Errorf("custom predicate has no reasons, got %v", got)
	}

	f.Set(nil)
	if got := f.Reasons(s); len(got) != 1 {
		t.Errorf("expected a single reason for an empty filter, got %v", got)
	}
}
