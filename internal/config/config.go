// Package config loads sniper configuration from defaults, .env files,
// environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"filippo.io/edwards25519"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"solana-sniper/internal/eligibility"
	"solana-sniper/internal/fanout"
)

// Snapshot source and dedup backend names.
const (
	SnapshotRPC      = "rpc"
	SnapshotPostgres = "postgres"

	DedupMemory = "memory"
	DedupRedis  = "redis"
)

// Config is the resolved process configuration.
type Config struct {
	Payer         string // base58 64-byte secret key
	RPCURL        string
	WSURL         string
	TrackedWallet string
	TargetMint    string // optional fixed mint, otherwise resolved from logs

	SpamLimit     int
	UnitLimit     uint32
	UnitPrice     uint64
	InvestmentSOL decimal.Decimal
	SlippagePct   decimal.Decimal
	Dwell         time.Duration
	SkipPreflight bool
	SkipFailed    bool

	Fanout   FanoutConfig
	Stream   StreamConfig
	RPC      RPCConfig
	Snapshot SnapshotConfig
	Postgres PostgresConfig
	Dedup    DedupConfig
	Redis    RedisConfig
	Log      LogConfig

	MetricsAddr string
	Eligibility eligibility.Rules
}

// FanoutConfig configures submission fan-out.
type FanoutConfig struct {
	Strategy           string
	BlockhashRetries   int
	BlockhashBaseDelay time.Duration
	BaseDelay          time.Duration
	Spacing            time.Duration
	MaxInFlight        int64
}

// StreamConfig configures the log subscription.
type StreamConfig struct {
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	CaptureFile    string        // append raw stream messages here
	ReplayFile     string        // replay a capture instead of connecting
	ReplayInterval time.Duration // spacing between replayed events
}

// RPCConfig configures the JSON-RPC client.
type RPCConfig struct {
	RateLimit float64 // requests per second, 0 disables the limiter
	Burst     int
	Timeout   time.Duration
}

// SnapshotConfig selects the asset snapshot source.
type SnapshotConfig struct {
	Source      string
	SOLUSDPrice decimal.Decimal // converts SOL market cap to USD when positive
	MaxAge      time.Duration   // postgres source only
	Record      bool            // write RPC snapshots to postgres
}

// PostgresConfig holds the postgres connection.
type PostgresConfig struct {
	DSN string
}

// DedupConfig selects the signature dedup store.
type DedupConfig struct {
	Backend string
	TTL     time.Duration
}

// RedisConfig holds the redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string
	File  string
	JSON  bool
}

func setDefaults(v *viper.Viper) {
	rules := eligibility.DefaultRules()

	v.SetDefault("payer", "")
	v.SetDefault("rpc_https_url", "")
	v.SetDefault("wss_https_url", "")
	v.SetDefault("tracked_wallet", "")
	v.SetDefault("target_mint", "")

	v.SetDefault("spam_limit", 0)
	v.SetDefault("unit_limit", 80000)
	v.SetDefault("unit_price", 10000)
	v.SetDefault("investment_sol", "0.01")
	v.SetDefault("slippage_pct", "10")
	v.SetDefault("dwell", 4*time.Second)
	v.SetDefault("skip_preflight", false)
	v.SetDefault("skip_failed", false)

	v.SetDefault("fanout.strategy", fanout.StrategySequential)
	v.SetDefault("fanout.blockhash_retries", 3)
	v.SetDefault("fanout.blockhash_base_delay", 100*time.Millisecond)
	v.SetDefault("fanout.base_delay", time.Second)
	v.SetDefault("fanout.spacing", 100*time.Millisecond)
	v.SetDefault("fanout.max_in_flight", 64)

	v.SetDefault("stream.reconnect_delay", 5*time.Second)
	v.SetDefault("stream.ping_interval", 30*time.Second)
	v.SetDefault("stream.capture_file", "")
	v.SetDefault("stream.replay_file", "")
	v.SetDefault("stream.replay_interval", time.Duration(0))

	v.SetDefault("rpc.rate_limit", 0)
	v.SetDefault("rpc.burst", 10)
	v.SetDefault("rpc.timeout", 10*time.Second)

	v.SetDefault("snapshot.source", SnapshotRPC)
	v.SetDefault("snapshot.sol_usd_price", "0")
	v.SetDefault("snapshot.max_age", time.Minute)
	v.SetDefault("snapshot.record", false)

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("dedup.backend", DedupMemory)
	v.SetDefault("dedup.ttl", 10*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "sniper:seen:")

	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.json", false)

	v.SetDefault("eligibility.min_progress", rules.MinProgress)
	v.SetDefault("eligibility.max_holders", rules.MaxHolders)
	v.SetDefault("eligibility.min_market_cap", rules.MinMarketCap.String())
	v.SetDefault("eligibility.max_concentration", rules.MaxConcentration)
	v.SetDefault("eligibility.require_graduated", rules.RequireGraduated)
}

// Loader reads configuration and keeps the viper instance for watching.
type Loader struct {
	v    *viper.Viper
	file string
}

// NewLoader creates a loader. envFiles are loaded into the process environment
// first; missing files are ignored. file is an optional YAML config file.
func NewLoader(file string, envFiles ...string) (*Loader, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	return &Loader{v: v, file: file}, nil
}

// Load resolves the current configuration.
func (l *Loader) Load() (*Config, error) {
	v := l.v
	cfg := &Config{
		Payer:         v.GetString("payer"),
		RPCURL:        v.GetString("rpc_https_url"),
		WSURL:         v.GetString("wss_https_url"),
		TrackedWallet: v.GetString("tracked_wallet"),
		TargetMint:    v.GetString("target_mint"),

		SpamLimit:     v.GetInt("spam_limit"),
		UnitLimit:     v.GetUint32("unit_limit"),
		UnitPrice:     v.GetUint64("unit_price"),
		Dwell:         v.GetDuration("dwell"),
		SkipPreflight: v.GetBool("skip_preflight"),
		SkipFailed:    v.GetBool("skip_failed"),

		Fanout: FanoutConfig{
			Strategy:           v.GetString("fanout.strategy"),
			BlockhashRetries:   v.GetInt("fanout.blockhash_retries"),
			BlockhashBaseDelay: v.GetDuration("fanout.blockhash_base_delay"),
			BaseDelay:          v.GetDuration("fanout.base_delay"),
			Spacing:            v.GetDuration("fanout.spacing"),
			MaxInFlight:        v.GetInt64("fanout.max_in_flight"),
		},
		Stream: StreamConfig{
			ReconnectDelay: v.GetDuration("stream.reconnect_delay"),
			PingInterval:   v.GetDuration("stream.ping_interval"),
			CaptureFile:    v.GetString("stream.capture_file"),
			ReplayFile:     v.GetString("stream.replay_file"),
			ReplayInterval: v.GetDuration("stream.replay_interval"),
		},
		RPC: RPCConfig{
			RateLimit: v.GetFloat64("rpc.rate_limit"),
			Burst:     v.GetInt("rpc.burst"),
			Timeout:   v.GetDuration("rpc.timeout"),
		},
		Snapshot: SnapshotConfig{
			Source: v.GetString("snapshot.source"),
			MaxAge: v.GetDuration("snapshot.max_age"),
			Record: v.GetBool("snapshot.record"),
		},
		Postgres: PostgresConfig{DSN: v.GetString("postgres.dsn")},
		Dedup: DedupConfig{
			Backend: v.GetString("dedup.backend"),
			TTL:     v.GetDuration("dedup.ttl"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
			JSON:  v.GetBool("log.json"),
		},
		MetricsAddr: v.GetString("metrics_addr"),
	}

	var err error
	if cfg.InvestmentSOL, err = decimalKey(v, "investment_sol"); err != nil {
		return nil, err
	}
	if cfg.SlippagePct, err = decimalKey(v, "slippage_pct"); err != nil {
		return nil, err
	}
	if cfg.Snapshot.SOLUSDPrice, err = decimalKey(v, "snapshot.sol_usd_price"); err != nil {
		return nil, err
	}
	if cfg.Eligibility, err = l.Rules(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Rules resolves only the eligibility section.
func (l *Loader) Rules() (eligibility.Rules, error) {
	minCap, err := decimalKey(l.v, "eligibility.min_market_cap")
	if err != nil {
		return eligibility.Rules{}, err
	}
	rules := eligibility.Rules{
		MinProgress:      l.v.GetFloat64("eligibility.min_progress"),
		MaxHolders:       l.v.GetInt("eligibility.max_holders"),
		MinMarketCap:     minCap,
		MaxConcentration: l.v.GetFloat64("eligibility.max_concentration"),
		RequireGraduated: l.v.GetBool("eligibility.require_graduated"),
	}
	if err := rules.Validate(); err != nil {
		return eligibility.Rules{}, fmt.Errorf("eligibility: %w", err)
	}
	return rules, nil
}

// Watch re-reads the eligibility rules whenever the config file changes and
// passes valid ones to apply. Invalid edits are logged and ignored.
// Without a config file Watch does nothing.
func (l *Loader) Watch(log logrus.FieldLogger, apply func(eligibility.Rules)) {
	if l.file == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		rules, err := l.Rules()
		if err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("ignoring invalid eligibility change")
			return
		}
		log.WithFields(logrus.Fields{"file": e.Name, "op": e.Op.String()}).Info("eligibility rules reloaded")
		apply(rules)
	})
	l.v.WatchConfig()
}

func decimalKey(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: invalid decimal %q: %w", key, raw, err)
	}
	return d, nil
}

// Validate checks required keys and value ranges. Warnings that do not stop
// startup are logged to log.
func (c *Config) Validate(log logrus.FieldLogger) error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.RPCURL == "" {
		add("rpc_https_url is required")
	}
	if c.WSURL == "" && c.Stream.ReplayFile == "" {
		add("wss_https_url is required")
	}

	if secret, err := base58.Decode(c.Payer); err != nil || len(secret) != 64 {
		add("payer must be a base58 64-byte secret key")
	}

	if key, err := decodeKey(c.TrackedWallet); err != nil {
		add("tracked_wallet: %v", err)
	} else if !onCurve(key) {
		log.WithField("tracked_wallet", c.TrackedWallet).Warn("tracked wallet is off-curve (program-derived address)")
	}
	if c.TargetMint != "" {
		if _, err := decodeKey(c.TargetMint); err != nil {
			add("target_mint: %v", err)
		}
	}

	if c.SpamLimit < 0 {
		add("spam_limit must be >= 0, got %d", c.SpamLimit)
	}
	if c.SpamLimit == 0 {
		log.Warn("spam_limit is 0, every fan-out is a no-op")
	}
	if !c.InvestmentSOL.IsPositive() {
		add("investment_sol must be > 0, got %s", c.InvestmentSOL)
	}
	if c.SlippagePct.IsNegative() || c.SlippagePct.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		add("slippage_pct must be in [0,100), got %s", c.SlippagePct)
	}
	if c.Dwell < 0 {
		add("dwell must be >= 0, got %s", c.Dwell)
	}

	switch c.Fanout.Strategy {
	case fanout.StrategySequential, fanout.StrategyConcurrent:
	default:
		add("fanout.strategy must be sequential or concurrent, got %q", c.Fanout.Strategy)
	}
	if c.Fanout.MaxInFlight <= 0 {
		add("fanout.max_in_flight must be > 0, got %d", c.Fanout.MaxInFlight)
	}

	switch c.Snapshot.Source {
	case SnapshotRPC:
	case SnapshotPostgres:
		if c.Postgres.DSN == "" {
			add("postgres.dsn is required for snapshot.source=postgres")
		}
	default:
		add("snapshot.source must be rpc or postgres, got %q", c.Snapshot.Source)
	}
	if c.Snapshot.Record && c.Postgres.DSN == "" {
		add("postgres.dsn is required for snapshot.record")
	}

	switch c.Dedup.Backend {
	case DedupMemory:
	case DedupRedis:
		if c.Redis.Addr == "" {
			add("redis.addr is required for dedup.backend=redis")
		}
	default:
		add("dedup.backend must be memory or redis, got %q", c.Dedup.Backend)
	}

	if err := c.Eligibility.Validate(); err != nil {
		add("eligibility: %v", err)
	}
	if c.Eligibility.RequireGraduated {
		// pump.fun routes refuse completed curves.
		log.Warn("eligibility.require_graduated is set but the pump.fun route cannot trade graduated assets, no trigger will trade")
	}

	return errors.Join(errs...)
}

func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("required")
	}
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base58: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	return b, nil
}

// onCurve reports whether key is a valid ed25519 point, i.e. a wallet rather
// than a program-derived address.
func onCurve(key []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(key)
	return err == nil
}
