package domain

import "time"

// AttemptKind classifies the outcome of one submission attempt.
type AttemptKind string

const (
	AttemptAccepted    AttemptKind = "accepted"     // node returned a signature
	AttemptRateLimited AttemptKind = "rate_limited" // backpressure from the RPC
	AttemptRejected    AttemptKind = "rejected"     // JSON-RPC level rejection
	AttemptTransient   AttemptKind = "transient"    // transport or build failure
	AttemptExhausted   AttemptKind = "exhausted"    // no blockhash after all retries
	AttemptSkipped     AttemptKind = "skipped"      // never launched, gate already closed
)

// AttemptResult is the outcome of one fee variant.
type AttemptResult struct {
	Variant   FeeVariant
	Kind      AttemptKind
	Signature string // set when Kind is AttemptAccepted
	Err       error

	// Blockhash the attempt was signed with, empty when none was acquired.
	Blockhash            string
	LastValidBlockHeight uint64
	BlockhashAge         time.Duration
}

// TradeOutcome summarizes one fan-out.
type TradeOutcome struct {
	TriggerID string
	Leg       Leg
	Signature string      // winning signature, empty when nothing was claimed
	Winner    *FeeVariant // variant that claimed the gate
	Successes int         // accepted attempts, including ones that lost the claim
	Attempts  int         // attempts that reached submission or acquisition
	Results   []AttemptResult
}

// Won reports whether the fan-out claimed the trade.
func (o TradeOutcome) Won() bool {
	return o.Winner != nil
}
