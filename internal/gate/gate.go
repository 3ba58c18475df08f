// Package gate serializes trades so at most one trigger commits at a time.
package gate

import (
	"sync"

	"solana-sniper/internal/observability"
)

// Phase is the gate phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInFlight
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInFlight:
		return "in_flight"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// State is a snapshot of the gate.
type State struct {
	Phase     Phase  `json:"-"`
	PhaseName string `json:"phase"`
	TriggerID string `json:"trigger_id,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Gate is the single-writer claim point for trades.
//
// Transitions:
//
//	Idle -> InFlight(t)          Open(t)
//	Idle | InFlight(t) -> Closed  Claim(t, sig), succeeds once
//	InFlight(t) | Closed(t) -> Idle  Release(t)
type Gate struct {
	mu      sync.Mutex
	state   State
	metrics *observability.Metrics
}

// New creates an idle gate. metrics may be nil.
func New(metrics *observability.Metrics) *Gate {
	g := &Gate{metrics: metrics}
	g.set(State{Phase: PhaseIdle})
	return g
}

func (g *Gate) set(s State) {
	s.PhaseName = s.Phase.String()
	g.state = s
	g.metrics.SetGateState(int(s.Phase))
}

// Open moves an idle gate to InFlight for trigger.
// It returns false when any trade is already in flight or closed.
func (g *Gate) Open(trigger string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Phase != PhaseIdle {
		return false
	}
	g.set(State{Phase: PhaseInFlight, TriggerID: trigger})
	return true
}

// Claim closes the gate for trigger with the winning signature.
// It returns true exactly once per open cycle.
func (g *Gate) Claim(trigger, signature string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.state.Phase == PhaseIdle:
	case g.state.Phase == PhaseInFlight && g.state.TriggerID == trigger:
	default:
		return false
	}
	g.set(State{Phase: PhaseClosed, TriggerID: trigger, Signature: signature})
	return true
}

// Blocks reports whether submissions for trigger must stop.
func (g *Gate) Blocks(trigger string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state.Phase {
	case PhaseClosed:
		return true
	case PhaseInFlight:
		return g.state.TriggerID != trigger
	default:
		return false
	}
}

// Release returns the gate to Idle if trigger owns it.
func (g *Gate) Release(trigger string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Phase == PhaseIdle || g.state.TriggerID != trigger {
		return false
	}
	g.set(State{Phase: PhaseIdle})
	return true
}

// Status returns the current state.
func (g *Gate) Status() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
