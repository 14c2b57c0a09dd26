package goForwarder

import (
	"errors"

	"github.com/MrEthical07/goForwarder/internal/rate"
	"github.com/MrEthical07/goForwarder/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder can be used for one Build only.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  store.Store

	asset Asset
	venue Venue

	logger    *zap.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration, including any earlier
// WithMetricsEnabled or WithLatencyHistograms call.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used by the "redis" store backend and by the
// swap rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore overrides Config.Store. The engine does not close a store
// supplied here.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithAsset sets the token ledger the engine forwards exemption writes to.
func (b *Builder) WithAsset(asset Asset) *Builder {
	b.asset = asset
	return b
}

// WithVenue sets the swap venue.
func (b *Builder) WithVenue(venue Venue) *Builder {
	b.venue = venue
	return b
}

// WithLogger sets the engine logger. Nil means zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go when Config.Audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles Config.Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the engine. A Builder can be
// used only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.asset == nil {
		return nil, errors.New("asset required")
	}
	if b.venue == nil {
		return nil, errors.New("venue required")
	}
	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("RateLimit requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("forwarder")

	// -------- PERMISSION STORE --------
	s, owned, err := b.openStore(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := newPermissionRegistry(s, cfg.Permission.Flags)
	if err != nil {
		if owned {
			_ = s.Close()
		}
		return nil, err
	}

	metrics := NewMetrics(cfg.Metrics)

	engine := &Engine{
		config:      cloneConfig(cfg),
		registry:    registry,
		gate:        authorizationGate{administrator: cfg.Administrator},
		delegate:    newOwnershipDelegate(cfg, b.asset, b.venue, metrics, logger),
		locks:       newAccountLocks(),
		quarantined: make(map[common.Address]string),
		store:       s,
		ownsStore:   owned,
		audit:       newAuditDispatcher(cfg.Audit, b.auditSink, logger),
		metrics:     metrics,
		logger:      logger,
	}

	if cfg.RateLimit.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix: cfg.RateLimit.RedisPrefix,
			Max:    cfg.RateLimit.MaxSwaps,
			Window: cfg.RateLimit.Window,
		})
	}

	logger.Info("forwarder engine built",
		zap.String("administrator", cfg.Administrator.Hex()),
		zap.String("proxy", cfg.ProxyAddress.Hex()),
		zap.String("token", cfg.TokenAddress.Hex()),
		zap.String("venue", cfg.VenueAddress.Hex()),
		zap.String("liquidity_pool", addressOrEmpty(cfg.LiquidityPool)),
		zap.Strings("flags", registry.flags()),
	)

	b.built = true

	return engine, nil
}

func (b *Builder) openStore(cfg Config) (store.Store, bool, error) {
	if b.store != nil {
		return b.store, false, nil
	}

	switch cfg.Store.Backend {
	case "redis":
		if b.redis == nil {
			return nil, false, errors.New("redis store backend requires redis client")
		}
		return store.NewRedisStore(b.redis, cfg.Store.RedisPrefix), false, nil
	case "sqlite":
		s, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	default:
		return store.NewMemoryStore(), false, nil
	}
}
