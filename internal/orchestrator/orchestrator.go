// Package orchestrator turns log events into trades.
// Flow: dedup → mint → snapshot → eligibility → gate → buy fan-out → dwell → sell fan-out
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"solana-sniper/internal/attempt"
	"solana-sniper/internal/chain"
	"solana-sniper/internal/clock"
	"solana-sniper/internal/domain"
	"solana-sniper/internal/eligibility"
	"solana-sniper/internal/fanout"
	"solana-sniper/internal/gate"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/pumpfun"
	"solana-sniper/internal/storage"
)

// Trigger decisions, also used as metric labels.
const (
	DecisionTraded        = "traded"
	DecisionNoFill        = "no_fill"
	DecisionFailedTx      = "failed_tx"
	DecisionDuplicate     = "duplicate"
	DecisionNoMint        = "no_mint"
	DecisionSnapshotError = "snapshot_error"
	DecisionIneligible    = "ineligible"
	DecisionBusy          = "busy"
	DecisionRouteError    = "route_error"
	DecisionCancelled     = "cancelled"
)

// SnapshotSource returns the current state of an asset.
type SnapshotSource interface {
	Snapshot(ctx context.Context, mint string) (domain.AssetSnapshot, error)
}

// Route builds the instruction prefix of each trade leg.
type Route interface {
	BuyPrefix(ctx context.Context, mint string) ([]solana.Instruction, error)
	SellPrefix(ctx context.Context, mint string) ([]solana.Instruction, error)
}

// Orchestrator consumes log events and runs the trade legs.
type Orchestrator struct {
	events    chain.EventSource
	seen      storage.SeenStore
	snapshots SnapshotSource
	recorder  storage.SnapshotStore
	filter    *eligibility.Filter
	route     Route
	strategy  fanout.Strategy
	gate      *gate.Gate
	payer     attempt.Signer

	targetMint string
	spamLimit  int
	unitPrice  uint64
	dwell      time.Duration
	dedupTTL   time.Duration
	skipFailed bool
	ordered    bool

	clock   clock.Clock
	log     logrus.FieldLogger
	metrics *observability.Metrics

	handled atomic.Int64
	traded  atomic.Int64
}

// Options for creating Orchestrator.
type Options struct {
	// Required components
	Events    chain.EventSource
	Snapshots SnapshotSource
	Filter    *eligibility.Filter
	Route     Route
	Strategy  fanout.Strategy
	Gate      *gate.Gate
	Payer     attempt.Signer

	// Optional components
	Seen     storage.SeenStore     // nil disables dedup
	Recorder storage.SnapshotStore // nil disables snapshot recording

	// Trade parameters
	TargetMint string // fixed mint; empty resolves the mint from the event logs
	SpamLimit  int    // fee variants per leg, 0 makes every trade a no-op
	UnitPrice  uint64 // base compute unit price
	Dwell      time.Duration
	DedupTTL   time.Duration
	SkipFailed bool // ignore events of failed transactions
	Ordered    bool // handle events one at a time in receive order (replay)

	Clock   clock.Clock
	Logger  logrus.FieldLogger
	Metrics *observability.Metrics
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		events:     opts.Events,
		seen:       opts.Seen,
		snapshots:  opts.Snapshots,
		recorder:   opts.Recorder,
		filter:     opts.Filter,
		route:      opts.Route,
		strategy:   opts.Strategy,
		gate:       opts.Gate,
		payer:      opts.Payer,
		targetMint: opts.TargetMint,
		spamLimit:  opts.SpamLimit,
		unitPrice:  opts.UnitPrice,
		dwell:      opts.Dwell,
		dedupTTL:   opts.DedupTTL,
		skipFailed: opts.SkipFailed,
		ordered:    opts.Ordered,
		clock:      opts.Clock,
		log:        opts.Logger,
		metrics:    opts.Metrics,
	}
	if o.clock == nil {
		o.clock = clock.Real{}
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	if o.filter == nil {
		o.filter = eligibility.NewRulesFilter(eligibility.DefaultRules())
	}
	if o.gate == nil {
		o.gate = gate.New(opts.Metrics)
	}
	o.log = o.log.WithField("component", "orchestrator")
	return o
}

// RunResult contains counters from a finished Run.
type RunResult struct {
	EventsHandled int64
	Trades        int64
}

// Run consumes the event source until ctx is cancelled. Each event is handled
// on its own goroutine; overlapping triggers are declined by the gate.
// With Ordered set, events are handled inline in receive order instead.
// Run waits for in-flight handlers before returning.
func (o *Orchestrator) Run(ctx context.Context) RunResult {
	var wg sync.WaitGroup
	for ev := range o.events.Subscribe(ctx) {
		if o.ordered {
			o.HandleEvent(ctx, ev)
			continue
		}
		wg.Add(1)
		go func(ev domain.LogEvent) {
			defer wg.Done()
			o.HandleEvent(ctx, ev)
		}(ev)
	}
	wg.Wait()

	return RunResult{EventsHandled: o.handled.Load(), Trades: o.traded.Load()}
}

// Result describes how one event was handled.
type Result struct {
	Trigger  domain.Trigger
	Decision string
	Snapshot *domain.AssetSnapshot
	Buy      *domain.TradeOutcome
	Sell     *domain.TradeOutcome
}

// HandleEvent runs the full pipeline for one event.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev domain.LogEvent) Result {
	o.handled.Add(1)
	res := Result{Trigger: domain.Trigger{ID: uuid.NewString(), Event: ev}}
	log := o.log.WithFields(logrus.Fields{
		"trigger":   res.Trigger.ID,
		"signature": ev.Signature,
		"slot":      ev.Slot,
	})

	res.Decision = o.handle(ctx, ev, &res, log)
	o.metrics.RecordTrigger(res.Decision)
	if res.Decision == DecisionTraded {
		o.traded.Add(1)
	}
	log.WithField("decision", res.Decision).Debug("trigger handled")
	return res
}

func (o *Orchestrator) handle(ctx context.Context, ev domain.LogEvent, res *Result, log logrus.FieldLogger) string {
	if ev.Failed && o.skipFailed {
		return DecisionFailedTx
	}

	if o.seen != nil && ev.Signature != "" {
		fresh, err := o.seen.MarkSeen(ctx, ev.Signature, o.dedupTTL)
		if err != nil {
			// Dedup is best effort; the gate still prevents overlapping trades.
			log.WithError(err).Warn("dedup store unavailable")
		} else if !fresh {
			return DecisionDuplicate
		}
	}

	mint := o.targetMint
	if mint == "" {
		var ok bool
		if mint, ok = pumpfun.ResolveMint(ev.Logs); !ok {
			return DecisionNoMint
		}
	}
	res.Trigger.Mint = mint
	log = log.WithField("mint", mint)

	// Cheap pre-check so busy periods do not fan out snapshot reads.
	if o.gate.Status().Phase != gate.PhaseIdle {
		return DecisionBusy
	}

	snap, err := o.snapshots.Snapshot(ctx, mint)
	if err != nil {
		log.WithError(err).Warn("snapshot unavailable")
		return DecisionSnapshotError
	}
	res.Snapshot = &snap
	if o.recorder != nil {
		if err := o.recorder.Upsert(ctx, &snap); err != nil {
			log.WithError(err).Warn("record snapshot failed")
		}
	}

	if !o.filter.Eligible(snap) {
		log.WithFields(logrus.Fields{
			"progress":   snap.Progress,
			"holders":    snap.Holders,
			"market_cap": snap.MarketCap.String(),
			"reasons":    o.filter.Reasons(snap),
		}).Info("asset not eligible")
		return DecisionIneligible
	}

	if !o.gate.Open(res.Trigger.ID) {
		return DecisionBusy
	}
	defer o.gate.Release(res.Trigger.ID)

	variants := domain.GenerateFeeVariants(o.spamLimit, o.unitPrice)
	if len(variants) == 0 {
		empty := domain.TradeOutcome{TriggerID: res.Trigger.ID, Leg: domain.LegBuy}
		res.Buy = &empty
		return DecisionNoFill
	}

	prefix, err := o.route.BuyPrefix(ctx, mint)
	if err != nil {
		log.WithError(err).Error("build buy route failed")
		return DecisionRouteError
	}

	buy := o.strategy.Run(ctx, fanout.Request{
		TriggerID: res.Trigger.ID,
		Leg:       domain.LegBuy,
		Variants:  variants,
		Prefix:    prefix,
		Payer:     o.payer,
		Gate:      o.gate,
	})
	res.Buy = &buy
	if !buy.Won() {
		log.WithField("attempts", buy.Attempts).Warn("buy fan-out had no winner")
		return DecisionNoFill
	}
	log.WithFields(logrus.Fields{
		"buy_signature": buy.Signature,
		"fee":           buy.Winner.MicroLamports,
		"successes":     buy.Successes,
	}).Info("buy accepted")

	if err := o.clock.Sleep(ctx, o.dwell); err != nil {
		log.WithError(err).Warn("dwell interrupted, sell skipped")
		return DecisionCancelled
	}

	sell, err := o.sell(ctx, res.Trigger.ID, mint, variants)
	if err != nil {
		log.WithError(err).Error("build sell route failed")
		return DecisionTraded
	}
	res.Sell = &sell
	if sell.Won() {
		log.WithField("sell_signature", sell.Signature).Info("sell accepted")
	} else {
		log.WithField("attempts", sell.Attempts).Error("sell fan-out had no winner")
	}
	return DecisionTraded
}

// sell runs the compensating leg on its own gate, so the sell race has a
// single winner while the main gate stays closed for other triggers.
func (o *Orchestrator) sell(ctx context.Context, trigger, mint string, variants []domain.FeeVariant) (domain.TradeOutcome, error) {
	prefix, err := o.route.SellPrefix(ctx, mint)
	if err != nil {
		return domain.TradeOutcome{}, err
	}

	legGate := gate.New(nil)
	legGate.Open(trigger)

	return o.strategy.Run(ctx, fanout.Request{
		TriggerID: trigger,
		Leg:       domain.LegSell,
		Variants:  variants,
		Prefix:    prefix,
		Payer:     o.payer,
		Gate:      legGate,
	}), nil
}
