package blockhash

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"solana-sniper/internal/chain"
	"solana-sniper/internal/clock"
	"solana-sniper/internal/observability"
)

// ErrExhausted is returned when every acquisition attempt failed.
var ErrExhausted = errors.New("blockhash acquisition exhausted")

// Default configuration values.
const (
	DefaultBaseDelay  = 100 * time.Millisecond
	DefaultMaxRetries = 3
)

// Provider fetches a fresh blockhash for every call to Acquire.
// Nothing is cached between calls.
type Provider struct {
	rpc       chain.RPCClient
	clock     clock.Clock
	log       logrus.FieldLogger
	metrics   *observability.Metrics
	baseDelay time.Duration
}

// ProviderOption configures Provider.
type ProviderOption func(*Provider)

// WithBaseDelay sets the delay after the first failed fetch.
func WithBaseDelay(d time.Duration) ProviderOption {
	return func(p *Provider) {
		p.baseDelay = d
	}
}

// WithClock sets the clock used between retries.
func WithClock(c clock.Clock) ProviderOption {
	return func(p *Provider) {
		p.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) ProviderOption {
	return func(p *Provider) {
		p.log = l
	}
}

// WithMetrics sets metrics.
func WithMetrics(m *observability.Metrics) ProviderOption {
	return func(p *Provider) {
		p.metrics = m
	}
}

// NewProvider creates a blockhash provider backed by rpc.
func NewProvider(rpc chain.RPCClient, opts ...ProviderOption) *Provider {
	p := &Provider{
		rpc:       rpc,
		clock:     clock.Real{},
		log:       logrus.StandardLogger(),
		baseDelay: DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire fetches a blockhash at processed commitment, making up to maxRetries
// attempts. The delay starts at the base delay and doubles after each failure;
// there is no delay after the final failure. maxRetries <= 0 is treated as 1.
func (p *Provider) Acquire(ctx context.Context, maxRetries int) (*Handle, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	delay := p.baseDelay
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		h, err := p.fetch(ctx)
		if err == nil {
			return h, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		p.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     maxRetries,
			"delay":   delay,
		}).Warn("blockhash fetch failed, retrying")
		p.metrics.RecordBlockhashRetry()

		if err := p.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}

	p.metrics.RecordBlockhashExhausted()
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxRetries, lastErr)
}

func (p *Provider) fetch(ctx context.Context) (*Handle, error) {
	bh, err := p.rpc.GetLatestBlockhash(ctx, chain.CommitmentProcessed)
	if err != nil {
		return nil, err
	}

	hash, err := solana.HashFromBase58(bh.Hash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash %q: %w", bh.Hash, err)
	}
	return NewHandle(hash, bh.LastValidBlockHeight, p.clock.Now()), nil
}
