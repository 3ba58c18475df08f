// Package main runs the sniper: stream → eligibility → buy fan-out → dwell → sell fan-out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-sniper/internal/attempt"
	"solana-sniper/internal/blockhash"
	"solana-sniper/internal/chain"
	"solana-sniper/internal/clock"
	"solana-sniper/internal/config"
	"solana-sniper/internal/eligibility"
	"solana-sniper/internal/fanout"
	"solana-sniper/internal/gate"
	"solana-sniper/internal/logger"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/ops"
	"solana-sniper/internal/orchestrator"
	"solana-sniper/internal/pumpfun"
	"solana-sniper/internal/replay"
	"solana-sniper/internal/storage"
	"solana-sniper/internal/storage/memory"
	"solana-sniper/internal/storage/migrations"
	"solana-sniper/internal/storage/postgres"
	redisstore "solana-sniper/internal/storage/redis"
)

func main() {
	configFile := flag.String("config", "", "Optional YAML config file (watched for eligibility changes)")
	envFile := flag.String("env-file", ".env", "Optional .env file")
	flag.Parse()

	loader, err := config.NewLoader(*configFile, *envFile)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	cfg, err := loader.Load()
	if err != nil {
		logrus.WithError(err).Fatal("resolve config")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File, JSON: cfg.Log.JSON})
	if err := cfg.Validate(log); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, loader, log); err != nil {
		log.WithError(err).Fatal("sniper stopped")
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, loader *config.Loader, log *logrus.Logger) error {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics("", registry)
	clk := clock.Real{}

	payer, err := attempt.KeypairFromBase58(cfg.Payer)
	if err != nil {
		return err
	}
	log.WithField("payer", payer.PublicKey().String()).Info("payer loaded")

	rpc := chain.NewHTTPClient(cfg.RPCURL,
		chain.WithTimeout(cfg.RPC.Timeout),
		chain.WithRateLimit(cfg.RPC.RateLimit, cfg.RPC.Burst),
		chain.WithMetrics(metrics),
	)

	var pool *postgres.Pool
	if cfg.Snapshot.Source == config.SnapshotPostgres || cfg.Snapshot.Record {
		pool, err = postgres.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool, log); err != nil {
			return err
		}
	}

	var (
		snapshots orchestrator.SnapshotSource
		recorder  storage.SnapshotStore
	)
	switch cfg.Snapshot.Source {
	case config.SnapshotPostgres:
		snapshots = storage.NewStoreSource(postgres.NewSnapshotStore(pool), cfg.Snapshot.MaxAge, clk)
	default:
		snapshots = pumpfun.NewSnapshotSource(rpc, cfg.Snapshot.SOLUSDPrice, clk)
		if cfg.Snapshot.Record {
			recorder = postgres.NewSnapshotStore(pool)
		}
	}

	var seen storage.SeenStore
	switch cfg.Dedup.Backend {
	case config.DedupRedis:
		client, err := redisstore.NewClient(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		seen = redisstore.NewSeenStore(client, cfg.Redis.Prefix)
	default:
		seen = memory.NewSeenStore(clk)
	}

	route, err := pumpfun.NewRoute(rpc, payer.PublicKey(), pumpfun.RouteConfig{
		UnitLimit:   cfg.UnitLimit,
		Investment:  cfg.InvestmentSOL,
		SlippagePct: cfg.SlippagePct,
	})
	if err != nil {
		return err
	}

	provider := blockhash.NewProvider(rpc,
		blockhash.WithBaseDelay(cfg.Fanout.BlockhashBaseDelay),
		blockhash.WithLogger(log),
		blockhash.WithMetrics(metrics),
	)

	fanCfg := fanout.DefaultConfig()
	fanCfg.BlockhashRetries = cfg.Fanout.BlockhashRetries
	fanCfg.BaseDelay = cfg.Fanout.BaseDelay
	fanCfg.Spacing = cfg.Fanout.Spacing
	fanCfg.MaxInFlight = cfg.Fanout.MaxInFlight
	fanCfg.Send.SkipPreflight = cfg.SkipPreflight
	fanCfg.Send.PreflightCommitment = chain.CommitmentProcessed

	strategy, err := fanout.New(cfg.Fanout.Strategy, rpc, provider, fanCfg,
		fanout.WithLogger(log),
		fanout.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	filter := eligibility.NewRulesFilter(cfg.Eligibility)
	loader.Watch(log, func(r eligibility.Rules) {
		filter.SetRules(r)
	})

	events, closeEvents, err := newEventSource(cfg, log, metrics)
	if err != nil {
		return err
	}
	defer closeEvents()

	tradeGate := gate.New(metrics)

	orch := orchestrator.New(orchestrator.Options{
		Events:     events,
		Snapshots:  snapshots,
		Filter:     filter,
		Route:      route,
		Strategy:   strategy,
		Gate:       tradeGate,
		Payer:      payer,
		Seen:       seen,
		Recorder:   recorder,
		TargetMint: cfg.TargetMint,
		SpamLimit:  cfg.SpamLimit,
		UnitPrice:  cfg.UnitPrice,
		Dwell:      cfg.Dwell,
		DedupTTL:   cfg.Dedup.TTL,
		SkipFailed: cfg.SkipFailed,
		Ordered:    cfg.Stream.ReplayFile != "",
		Logger:     log,
		Metrics:    metrics,
	})

	server := ops.New(cfg.MetricsAddr, ops.Deps{
		RPC:      rpc,
		Stream:   events,
		Gate:     tradeGate,
		Gatherer: registry,
		Strategy: strategy.Name(),
	}, ops.WithLogger(log))

	log.WithFields(logrus.Fields{
		"tracked_wallet": cfg.TrackedWallet,
		"strategy":       strategy.Name(),
		"spam_limit":     cfg.SpamLimit,
		"snapshot":       cfg.Snapshot.Source,
		"dedup":          cfg.Dedup.Backend,
	}).Info("sniper starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res := orch.Run(gctx)
		log.WithFields(logrus.Fields{"events": res.EventsHandled, "trades": res.Trades}).Info("orchestrator stopped")
		if cfg.Stream.ReplayFile != "" && gctx.Err() == nil {
			return errReplayDone
		}
		return nil
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errReplayDone) {
		return err
	}
	return nil
}

// errReplayDone stops the process once a replayed capture is exhausted.
var errReplayDone = errors.New("replay finished")

// newEventSource returns the live websocket source, or a replay of a capture
// when stream.replay_file is set.
func newEventSource(cfg *config.Config, log *logrus.Logger, metrics *observability.Metrics) (chain.EventSource, func(), error) {
	if cfg.Stream.ReplayFile != "" {
		src := replay.NewSource(cfg.Stream.ReplayFile,
			replay.WithInterval(cfg.Stream.ReplayInterval),
			replay.WithLogger(log),
		)
		return src, func() {}, nil
	}

	opts := []chain.EventSourceOption{chain.WithLogger(log), chain.WithStreamMetrics(metrics)}
	closer := func() {}
	if cfg.Stream.CaptureFile != "" {
		f, err := os.OpenFile(cfg.Stream.CaptureFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open capture file: %w", err)
		}
		opts = append(opts, chain.WithCapture(f))
		closer = func() { f.Close() }
	}

	src := chain.NewEventSource(cfg.WSURL, cfg.TrackedWallet, chain.EventSourceConfig{
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		PingInterval:   cfg.Stream.PingInterval,
	}, opts...)
	return src, closer, nil
}
