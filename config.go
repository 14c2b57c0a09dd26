package goForwarder

import (
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds everything the engine needs. Addresses are fixed at Build and
// never change for the lifetime of an Engine.
type Config struct {
	// Administrator is the only caller allowed to mutate permissions.
	Administrator common.Address
	// ProxyAddress is the forwarder's own signing address. The ledger must
	// report it as owner for forwarded calls to succeed.
	ProxyAddress common.Address
	TokenAddress common.Address
	VenueAddress common.Address
	// LiquidityPool is the one account eligible for transient elevation in a
	// guarded swap. The zero address disables elevation.
	LiquidityPool common.Address

	Forwarding ForwardingConfig
	Breaker    BreakerConfig
	Permission PermissionConfig
	Store      StoreConfig
	RateLimit  RateLimitConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
	Auth       AuthConfig
}

/*
====================================
FORWARDING CONFIG
====================================
*/

// ForwardingConfig bounds calls to the ledger and the venue.
type ForwardingConfig struct {
	CallTimeout time.Duration
	// RestoreTimeout bounds the restore leg of an elevation bracket. It runs
	// on a context detached from the caller, so it must be bounded on its own.
	RestoreTimeout time.Duration
}

// BreakerConfig tunes the circuit breaker in front of the venue.
type BreakerConfig struct {
	Enabled             bool
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

/*
====================================
PERMISSION / STORE CONFIG
====================================
*/

// PermissionConfig lists flag names registered after EXTERNAL_PERMISSION,
// in bit order starting at bit 1.
type PermissionConfig struct {
	Flags []string
}

// StoreConfig selects the permission store backend.
type StoreConfig struct {
	Backend     string // "memory" (default), "redis", "sqlite"
	RedisPrefix string
	SQLitePath  string
}

// RateLimitConfig caps guarded swaps per caller in a fixed window.
type RateLimitConfig struct {
	Enabled     bool
	MaxSwaps    int
	Window      time.Duration
	RedisPrefix string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DAEMON CONFIG
====================================
*/

// LoggingConfig is consumed by the daemon when it builds the zap logger.
type LoggingConfig struct {
	Level       string // debug, info, warn, error
	Development bool
	Encoding    string // "json" or "console"
}

// AuthConfig configures operator login and API tokens.
type AuthConfig struct {
	LoginWindow   time.Duration
	TokenTTL      time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	// FailureThreshold bad signatures within FailureWindow lock an address
	// out of login until the window expires. Zero disables the lockout.
	FailureThreshold     int
	FailureWindow        time.Duration
	APIRequestsPerSecond float64
	APIBurst             int
}

func defaultConfig() Config {
	return Config{
		Forwarding: ForwardingConfig{
			CallTimeout:    30 * time.Second,
			RestoreTimeout: 90 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:             true,
			MaxRequests:         1,
			Interval:            time.Minute,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 3,
		},
		Store: StoreConfig{
			Backend:     "memory",
			RedisPrefix: "fw",
		},
		RateLimit: RateLimitConfig{
			Enabled:     false,
			MaxSwaps:    10,
			Window:      time.Minute,
			RedisPrefix: "fwr",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Auth: AuthConfig{
			LoginWindow:          5 * time.Minute,
			TokenTTL:             15 * time.Minute,
			SigningMethod:        "ed25519",
			Issuer:               "goForwarder",
			FailureThreshold:     5,
			FailureWindow:        15 * time.Minute,
			APIRequestsPerSecond: 20,
			APIBurst:             40,
		},
	}
}

// DefaultConfig returns the configuration used by [New] before any
// WithConfig call. Addresses are left zero and must be filled in.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Permission.Flags = append([]string(nil), cfg.Permission.Flags...)
	out.Auth.PrivateKey = cloneBytes(cfg.Auth.PrivateKey)
	out.Auth.PublicKey = cloneBytes(cfg.Auth.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found. Auth key material
// is only checked by the daemon, which is the component that issues tokens.
func (c *Config) Validate() error {
	// Addresses
	if c.Administrator == (common.Address{}) {
		return errors.New("Administrator address is required")
	}
	if c.ProxyAddress == (common.Address{}) {
		return errors.New("ProxyAddress is required")
	}
	if c.TokenAddress == (common.Address{}) {
		return errors.New("TokenAddress is required")
	}
	if c.VenueAddress == (common.Address{}) {
		return errors.New("VenueAddress is required")
	}
	if c.LiquidityPool != (common.Address{}) && c.LiquidityPool == c.ProxyAddress {
		return errors.New("LiquidityPool must differ from ProxyAddress")
	}

	// Forwarding
	if c.Forwarding.CallTimeout <= 0 {
		return errors.New("Forwarding CallTimeout must be > 0")
	}
	if c.Forwarding.RestoreTimeout <= 0 {
		return errors.New("Forwarding RestoreTimeout must be > 0")
	}

	// Breaker
	if c.Breaker.Enabled {
		if c.Breaker.ConsecutiveFailures == 0 {
			return errors.New("Breaker ConsecutiveFailures must be > 0 when enabled")
		}
		if c.Breaker.Timeout <= 0 {
			return errors.New("Breaker Timeout must be > 0 when enabled")
		}
		if c.Breaker.Interval < 0 {
			return errors.New("Breaker Interval must be >= 0")
		}
	}

	// Permission
	seen := map[string]struct{}{}
	for _, name := range c.Permission.Flags {
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("Permission Flags must not contain empty names")
		}
		if _, dup := seen[name]; dup {
			return errors.New("Permission Flags must be unique")
		}
		seen[name] = struct{}{}
	}
	if len(c.Permission.Flags) > 63 {
		return errors.New("Permission Flags must fit in 63 bits")
	}

	// Store
	switch c.Store.Backend {
	case "", "memory", "redis":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("Store SQLitePath is required for sqlite backend")
		}
	default:
		return errors.New("Store Backend must be 'memory', 'redis', or 'sqlite'")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxSwaps <= 0 {
			return errors.New("RateLimit MaxSwaps must be > 0 when enabled")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0 when enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("Logging Level must be debug, info, warn, or error")
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return errors.New("Logging Encoding must be 'json' or 'console'")
	}

	// Auth
	if c.Auth.LoginWindow <= 0 {
		return errors.New("Auth LoginWindow must be > 0")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("Auth TokenTTL must be > 0")
	}
	if c.Auth.SigningMethod != "ed25519" && c.Auth.SigningMethod != "hs256" {
		return errors.New("unsupported Auth signing method")
	}
	if c.Auth.Leeway < 0 || c.Auth.Leeway > 2*time.Minute {
		return errors.New("Auth Leeway must be between 0 and 2m")
	}
	if c.Auth.FailureThreshold < 0 {
		return errors.New("Auth FailureThreshold must be >= 0")
	}
	if c.Auth.FailureThreshold > 0 && c.Auth.FailureWindow <= 0 {
		return errors.New("Auth FailureWindow must be > 0 when FailureThreshold is set")
	}
	if c.Auth.APIRequestsPerSecond < 0 || c.Auth.APIBurst < 0 {
		return errors.New("Auth API rate settings must be >= 0")
	}

	return nil
}
