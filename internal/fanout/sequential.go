package fanout

import (
	"context"
	"time"

	"solana-sniper/internal/domain"
)

// Sequential submits variants one at a time and stops at the first acceptance.
// At most one accepted transaction reaches the network per fan-out.
type Sequential struct {
	runner
}

// NewSequential creates a sequential strategy.
func NewSequential(sender Sender, handles HandleSource, cfg Config, opts ...Option) *Sequential {
	return &Sequential{runner: newRunner(sender, handles, cfg, opts)}
}

// Name returns the strategy name.
func (s *Sequential) Name() string { return StrategySequential }

// Run submits the variants in order.
//
// Pacing after a failed attempt: exhausted blockhash continues immediately, rate
// limited waits BaseDelay*(i+1), rejected and transient wait BaseDelay. No wait
// follows the last variant.
func (s *Sequential) Run(ctx context.Context, req Request) domain.TradeOutcome {
	start := s.clock.Now()
	out := domain.TradeOutcome{TriggerID: req.TriggerID, Leg: req.Leg}

	for i, v := range req.Variants {
		if ctx.Err() != nil || req.Gate.Blocks(req.TriggerID) {
			out.Results = append(out.Results, skipped(req.Variants[i:])...)
			break
		}

		res := s.submit(ctx, req, v)
		out.Attempts++
		out.Results = append(out.Results, res)

		var delay time.Duration
		switch res.Kind {
		case domain.AttemptAccepted:
			out.Successes++
			if req.Gate.Claim(req.TriggerID, res.Signature) {
				winner := v
				out.Winner = &winner
				out.Signature = res.Signature
			}
			out.Results = append(out.Results, skipped(req.Variants[i+1:])...)
			return s.finish(req, StrategySequential, start, out)
		case domain.AttemptExhausted:
			continue
		case domain.AttemptRateLimited:
			delay = s.cfg.BaseDelay * time.Duration(i+1)
		default:
			delay = s.cfg.BaseDelay
		}

		if i == len(req.Variants)-1 {
			break
		}
		if err := s.clock.Sleep(ctx, delay); err != nil {
			out.Results = append(out.Results, skipped(req.Variants[i+1:])...)
			break
		}
	}

	return s.finish(req, StrategySequential, start, out)
}
