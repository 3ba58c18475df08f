package fanout

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"solana-sniper/internal/domain"
)

// Concurrent launches variants spaced apart without waiting for earlier ones.
// The first acceptance to claim the gate wins; later acceptances still count as
// successes. Tasks in flight across all runs share one semaphore.
type Concurrent struct {
	runner
	sem *semaphore.Weighted
}

// NewConcurrent creates a concurrent strategy.
func NewConcurrent(sender Sender, handles HandleSource, cfg Config, opts ...Option) *Concurrent {
	r := newRunner(sender, handles, cfg, opts)
	return &Concurrent{runner: r, sem: semaphore.NewWeighted(r.cfg.MaxInFlight)}
}

// Name returns the strategy name.
func (c *Concurrent) Name() string { return StrategyConcurrent }

// Run launches the variants and waits for every launched task.
// Launching stops once the gate blocks this trigger; the rest are Skipped.
func (c *Concurrent) Run(ctx context.Context, req Request) domain.TradeOutcome {
	start := c.clock.Now()
	out := domain.TradeOutcome{TriggerID: req.TriggerID, Leg: req.Leg}
	results := make([]domain.AttemptResult, len(req.Variants))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	launched := 0
	for i, v := range req.Variants {
		if i > 0 {
			if err := c.clock.Sleep(ctx, c.cfg.Spacing); err != nil {
				break
			}
		}
		if req.Gate.Blocks(req.TriggerID) {
			break
		}
		if err := c.sem.Acquire(ctx, 1); err != nil {
			break
		}
		// Another task may have won while this loop waited for a slot.
		if req.Gate.Blocks(req.TriggerID) {
			c.sem.Release(1)
			break
		}

		launched++
		wg.Add(1)
		go func(i int, v domain.FeeVariant) {
			defer wg.Done()
			defer c.sem.Release(1)

			res := c.submit(ctx, req, v)

			mu.Lock()
			defer mu.Unlock()
			results[i] = res
			if res.Kind != domain.AttemptAccepted {
				return
			}
			out.Successes++
			if req.Gate.Claim(req.TriggerID, res.Signature) {
				winner := v
				out.Winner = &winner
				out.Signature = res.Signature
			}
		}(i, v)
	}

	wg.Wait()

	for i := launched; i < len(req.Variants); i++ {
		results[i] = domain.AttemptResult{Variant: req.Variants[i], Kind: domain.AttemptSkipped}
	}
	out.Attempts = launched
	out.Results = results

	return c.finish(req, StrategyConcurrent, start, out)
}
