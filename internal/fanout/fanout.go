// Package fanout races priority-fee variants of one trade against the network.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"solana-sniper/internal/attempt"
	"solana-sniper/internal/blockhash"
	"solana-sniper/internal/chain"
	"solana-sniper/internal/clock"
	"solana-sniper/internal/domain"
	"solana-sniper/internal/gate"
	"solana-sniper/internal/observability"
)

// Strategy names accepted by New.
const (
	StrategySequential = "sequential"
	StrategyConcurrent = "concurrent"
)

// Default configuration values.
const (
	DefaultBlockhashRetries = 3
	DefaultBaseDelay        = 1 * time.Second
	DefaultSpacing          = 100 * time.Millisecond
	DefaultMaxInFlight      = 64
)

// Sender submits signed transactions.
type Sender interface {
	SendTransaction(ctx context.Context, encoded string, opts chain.SendOptions) (string, error)
}

// HandleSource hands out fresh blockhash handles.
type HandleSource interface {
	Acquire(ctx context.Context, maxRetries int) (*blockhash.Handle, error)
}

// Request is one fan-out for one trigger and leg.
type Request struct {
	TriggerID string
	Leg       domain.Leg
	Variants  []domain.FeeVariant
	Prefix    []solana.Instruction
	Payer     attempt.Signer
	Gate      *gate.Gate
}

// Strategy runs a fan-out to completion.
type Strategy interface {
	Name() string
	Run(ctx context.Context, req Request) domain.TradeOutcome
}

// Config holds settings shared by both strategies.
type Config struct {
	BlockhashRetries int
	BaseDelay        time.Duration // sequential pacing after a failed attempt
	Spacing          time.Duration // concurrent launch spacing
	MaxInFlight      int64         // concurrent in-flight ceiling across fan-outs
	Send             chain.SendOptions
}

// DefaultConfig returns default fan-out configuration.
// Node-side rebroadcast is disabled so losing variants are not retried by the RPC.
func DefaultConfig() Config {
	zero := uint(0)
	return Config{
		BlockhashRetries: DefaultBlockhashRetries,
		BaseDelay:        DefaultBaseDelay,
		Spacing:          DefaultSpacing,
		MaxInFlight:      DefaultMaxInFlight,
		Send:             chain.SendOptions{MaxRetries: &zero},
	}
}

// Option configures a strategy.
type Option func(*runner)

// WithClock sets the clock used for pacing.
func WithClock(c clock.Clock) Option {
	return func(r *runner) {
		r.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *runner) {
		r.log = l
	}
}

// WithMetrics sets metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *runner) {
		r.metrics = m
	}
}

// New returns the strategy called name.
func New(name string, sender Sender, handles HandleSource, cfg Config, opts ...Option) (Strategy, error) {
	switch name {
	case StrategySequential, "":
		return NewSequential(sender, handles, cfg, opts...), nil
	case StrategyConcurrent:
		return NewConcurrent(sender, handles, cfg, opts...), nil
	default:
		return nil, fmt.Errorf("unknown fan-out strategy %q", name)
	}
}

// runner carries the collaborators shared by both strategies.
type runner struct {
	sender  Sender
	handles HandleSource
	cfg     Config
	clock   clock.Clock
	log     logrus.FieldLogger
	metrics *observability.Metrics
}

func newRunner(sender Sender, handles HandleSource, cfg Config, opts []Option) runner {
	def := DefaultConfig()
	if cfg.BlockhashRetries <= 0 {
		cfg.BlockhashRetries = def.BlockhashRetries
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.Spacing < 0 {
		cfg.Spacing = def.Spacing
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}

	r := runner{
		sender:  sender,
		handles: handles,
		cfg:     cfg,
		clock:   clock.Real{},
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// submit acquires a fresh handle, builds and sends one variant.
func (r *runner) submit(ctx context.Context, req Request, v domain.FeeVariant) domain.AttemptResult {
	res := domain.AttemptResult{Variant: v}

	h, err := r.handles.Acquire(ctx, r.cfg.BlockhashRetries)
	if err != nil {
		res.Kind = domain.AttemptExhausted
		res.Err = err
		return r.record(req, res)
	}
	res.Blockhash = h.String()
	res.LastValidBlockHeight = h.LastValidBlockHeight()
	res.BlockhashAge = r.clock.Now().Sub(h.FetchedAt())

	a, err := attempt.Build(req.Prefix, v, h, req.Payer)
	if err != nil {
		res.Kind = domain.AttemptTransient
		res.Err = err
		return r.record(req, res)
	}

	sig, err := r.sender.SendTransaction(ctx, a.Encode(), r.cfg.Send)
	if err != nil {
		res.Kind = Classify(err)
		res.Err = err
		return r.record(req, res)
	}
	if sig == "" {
		sig = a.Signature().String()
	}

	res.Kind = domain.AttemptAccepted
	res.Signature = sig
	return r.record(req, res)
}

func (r *runner) record(req Request, res domain.AttemptResult) domain.AttemptResult {
	r.metrics.RecordAttempt(req.Leg.String(), string(res.Kind))

	entry := r.log.WithFields(logrus.Fields{
		"trigger": req.TriggerID,
		"leg":     req.Leg,
		"variant": res.Variant.Index,
		"price":   res.Variant.MicroLamports,
		"kind":    res.Kind,
	})
	if res.Blockhash != "" {
		entry = entry.WithFields(logrus.Fields{
			"blockhash":         res.Blockhash,
			"last_valid_height": res.LastValidBlockHeight,
			"blockhash_age":     res.BlockhashAge,
		})
	}
	if res.Err != nil {
		entry.WithError(res.Err).Warn("attempt failed")
	} else {
		entry.WithField("signature", res.Signature).Info("attempt accepted")
	}
	return res
}

func (r *runner) finish(req Request, name string, start time.Time, out domain.TradeOutcome) domain.TradeOutcome {
	r.metrics.RecordFanout(req.Leg.String(), name, out.Successes, r.clock.Now().Sub(start).Seconds())
	r.log.WithFields(logrus.Fields{
		"trigger":   req.TriggerID,
		"leg":       req.Leg,
		"strategy":  name,
		"attempts":  out.Attempts,
		"successes": out.Successes,
		"won":       out.Won(),
		"signature": out.Signature,
	}).Info("fan-out finished")
	return out
}

// Classify maps a submission error to an attempt kind.
func Classify(err error) domain.AttemptKind {
	if errors.Is(err, chain.ErrRateLimited) {
		return domain.AttemptRateLimited
	}
	var rpcErr *chain.RPCError
	if errors.As(err, &rpcErr) {
		return domain.AttemptRejected
	}
	return domain.AttemptTransient
}

func skipped(variants []domain.FeeVariant) []domain.AttemptResult {
	out := make([]domain.AttemptResult, len(variants))
	for i, v := range variants {
		out[i] = domain.AttemptResult{Variant: v, Kind: domain.AttemptSkipped}
	}
	return out
}
