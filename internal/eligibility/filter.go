package eligibility

import (
	"sync/atomic"

	"solana-sniper/internal/domain"
)

// active is one installed predicate. rules is nil for custom predicates.
type active struct {
	pred  Predicate
	rules *Rules
}

// Filter holds the active predicate. Safe for concurrent use; Set may be
// called while triggers are being evaluated.
type Filter struct {
	cur atomic.Pointer[active]
}

// NewFilter creates a filter with p installed.
func NewFilter(p Predicate) *Filter {
	f := &Filter{}
	f.Set(p)
	return f
}

// NewRulesFilter creates a filter evaluating r.
func NewRulesFilter(r Rules) *Filter {
	f := &Filter{}
	f.SetRules(r)
	return f
}

// Set replaces the predicate. A nil predicate rejects everything.
func (f *Filter) Set(p Predicate) {
	if p == nil {
		f.cur.Store(nil)
		return
	}
	f.cur.Store(&active{pred: p})
}

// SetRules installs r, keeping it for Reasons.
func (f *Filter) SetRules(r Rules) {
	f.cur.Store(&active{pred: r.Predicate(), rules: &r})
}

// Eligible evaluates the current predicate against s.
func (f *Filter) Eligible(s domain.AssetSnapshot) bool {
	a := f.cur.Load()
	if a == nil {
		return false
	}
	return a.pred(s)
}

// Reasons lists the thresholds s fails under the installed rules.
// It is nil when a custom predicate is installed.
func (f *Filter) Reasons(s domain.AssetSnapshot) []string {
	a := f.cur.Load()
	if a == nil {
		return []string{"no predicate installed"}
	}
	if a.rules == nil {
		return nil
	}
	return a.rules.Explain(s)
}
