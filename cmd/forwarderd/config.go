package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strings"
	"time"

	goForwarder "github.com/MrEthical07/goForwarder"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// daemonConfig is the on-disk configuration. Secrets are normally supplied
// through ${VAR} references resolved from the environment.
type daemonConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RPCURL          string        `yaml:"rpc_url"`
	ChainID         int64         `yaml:"chain_id"`
	SignerKey       string        `yaml:"signer_key"`
	SwapDeadline    time.Duration `yaml:"swap_deadline"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`

	Administrator string `yaml:"administrator"`
	TokenAddress  string `yaml:"token_address"`
	VenueAddress  string `yaml:"venue_address"`
	LiquidityPool string `yaml:"liquidity_pool"`

	Forwarding struct {
		CallTimeout    time.Duration `yaml:"call_timeout"`
		RestoreTimeout time.Duration `yaml:"restore_timeout"`
	} `yaml:"forwarding"`
	Breaker struct {
		Enabled             bool          `yaml:"enabled"`
		MaxRequests         uint32        `yaml:"max_requests"`
		Interval            time.Duration `yaml:"interval"`
		Timeout             time.Duration `yaml:"timeout"`
		ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	} `yaml:"breaker"`
	Permission struct {
		Flags []string `yaml:"flags"`
	} `yaml:"permission"`
	Store struct {
		Backend     string `yaml:"backend"`
		RedisPrefix string `yaml:"redis_prefix"`
		SQLitePath  string `yaml:"sqlite_path"`
	} `yaml:"store"`
	RateLimit struct {
		Enabled     bool          `yaml:"enabled"`
		MaxSwaps    int           `yaml:"max_swaps"`
		Window      time.Duration `yaml:"window"`
		RedisPrefix string        `yaml:"redis_prefix"`
	} `yaml:"rate_limit"`
	Audit struct {
		Enabled    bool `yaml:"enabled"`
		BufferSize int  `yaml:"buffer_size"`
		DropIfFull bool `yaml:"drop_if_full"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled                 bool          `yaml:"enabled"`
		EnableLatencyHistograms bool          `yaml:"latency_histograms"`
		OTLPEndpoint            string        `yaml:"otlp_endpoint"`
		OTLPInsecure            bool          `yaml:"otlp_insecure"`
		OTLPInterval            time.Duration `yaml:"otlp_interval"`
	} `yaml:"metrics"`
	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
		Encoding    string `yaml:"encoding"`
	} `yaml:"logging"`
	Auth struct {
		LoginWindow          time.Duration `yaml:"login_window"`
		TokenTTL             time.Duration `yaml:"token_ttl"`
		SigningMethod        string        `yaml:"signing_method"`
		PrivateKey           string        `yaml:"private_key"`
		PublicKey            string        `yaml:"public_key"`
		Issuer               string        `yaml:"issuer"`
		Audience             string        `yaml:"audience"`
		Leeway               time.Duration `yaml:"leeway"`
		FailureThreshold     int           `yaml:"failure_threshold"`
		FailureWindow        time.Duration `yaml:"failure_window"`
		APIRequestsPerSecond float64       `yaml:"api_requests_per_second"`
		APIBurst             int           `yaml:"api_burst"`
	} `yaml:"auth"`
}

// defaultDaemonConfig mirrors goForwarder.DefaultConfig so keys absent from
// the file keep the engine defaults.
func defaultDaemonConfig() daemonConfig {
	def := goForwarder.DefaultConfig()
	var c daemonConfig
	c.Listen = ":8080"
	c.ShutdownTimeout = 15 * time.Second
	c.SwapDeadline = 5 * time.Minute

	c.Forwarding.CallTimeout = def.Forwarding.CallTimeout
	c.Forwarding.RestoreTimeout = def.Forwarding.RestoreTimeout
	c.Breaker.Enabled = def.Breaker.Enabled
	c.Breaker.MaxRequests = def.Breaker.MaxRequests
	c.Breaker.Interval = def.Breaker.Interval
	c.Breaker.Timeout = def.Breaker.Timeout
	c.Breaker.ConsecutiveFailures = def.Breaker.ConsecutiveFailures
	c.Store.Backend = def.Store.Backend
	c.Store.RedisPrefix = def.Store.RedisPrefix
	c.RateLimit.Enabled = def.RateLimit.Enabled
	c.RateLimit.MaxSwaps = def.RateLimit.MaxSwaps
	c.RateLimit.Window = def.RateLimit.Window
	c.RateLimit.RedisPrefix = def.RateLimit.RedisPrefix
	c.Audit.Enabled = def.Audit.Enabled
	c.Audit.BufferSize = def.Audit.BufferSize
	c.Audit.DropIfFull = def.Audit.DropIfFull
	c.Metrics.Enabled = true
	c.Metrics.EnableLatencyHistograms = true
	c.Metrics.OTLPInterval = 30 * time.Second
	c.Logging.Level = def.Logging.Level
	c.Logging.Development = def.Logging.Development
	c.Logging.Encoding = def.Logging.Encoding
	c.Auth.LoginWindow = def.Auth.LoginWindow
	c.Auth.TokenTTL = def.Auth.TokenTTL
	c.Auth.SigningMethod = def.Auth.SigningMethod
	c.Auth.Issuer = def.Auth.Issuer
	c.Auth.Leeway = def.Auth.Leeway
	c.Auth.FailureThreshold = def.Auth.FailureThreshold
	c.Auth.FailureWindow = def.Auth.FailureWindow
	c.Auth.APIRequestsPerSecond = def.Auth.APIRequestsPerSecond
	c.Auth.APIBurst = def.Auth.APIBurst
	return c
}

func loadConfig(path string) (daemonConfig, error) {
	c := defaultDaemonConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return parseConfig(c, data)
}

func parseConfig(base daemonConfig, data []byte) (daemonConfig, error) {
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &base); err != nil {
		return base, fmt.Errorf("failed to parse config: %w", err)
	}
	return base, nil
}

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(parts[1]); ok {
			return value
		}
		return parts[2]
	})
}

func parseAddress(field, value string, required bool) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			return common.Address{}, fmt.Errorf("%s is required", field)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s %q is not an address", field, value)
	}
	return common.HexToAddress(value), nil
}

// decodeKey accepts PEM text or hex, with or without 0x.
func decodeKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if strings.HasPrefix(value, "-----BEGIN") {
		return []byte(value), nil
	}
	out, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil {
		return nil, errors.New("key must be PEM or hex encoded")
	}
	return out, nil
}

// engineConfig converts the file form into goForwarder.Config. proxy is the
// signer's address, which is the forwarder's on-chain identity.
func (c daemonConfig) engineConfig(proxy common.Address) (goForwarder.Config, error) {
	cfg := goForwarder.DefaultConfig()
	var err error
	if cfg.Administrator, err = parseAddress("administrator", c.Administrator, true); err != nil {
		return cfg, err
	}
	if cfg.TokenAddress, err = parseAddress("token_address", c.TokenAddress, true); err != nil {
		return cfg, err
	}
	if cfg.VenueAddress, err = parseAddress("venue_address", c.VenueAddress, true); err != nil {
		return cfg, err
	}
	if cfg.LiquidityPool, err = parseAddress("liquidity_pool", c.LiquidityPool, false); err != nil {
		return cfg, err
	}
	cfg.ProxyAddress = proxy

	cfg.Forwarding.CallTimeout = c.Forwarding.CallTimeout
	cfg.Forwarding.RestoreTimeout = c.Forwarding.RestoreTimeout
	cfg.Breaker = goForwarder.BreakerConfig{
		Enabled:             c.Breaker.Enabled,
		MaxRequests:         c.Breaker.MaxRequests,
		Interval:            c.Breaker.Interval,
		Timeout:             c.Breaker.Timeout,
		ConsecutiveFailures: c.Breaker.ConsecutiveFailures,
	}
	cfg.Permission.Flags = append([]string(nil), c.Permission.Flags...)
	cfg.Store = goForwarder.StoreConfig{
		Backend:     c.Store.Backend,
		RedisPrefix: c.Store.RedisPrefix,
		SQLitePath:  c.Store.SQLitePath,
	}
	cfg.RateLimit = goForwarder.RateLimitConfig{
		Enabled:     c.RateLimit.Enabled,
		MaxSwaps:    c.RateLimit.MaxSwaps,
		Window:      c.RateLimit.Window,
		RedisPrefix: c.RateLimit.RedisPrefix,
	}
	cfg.Audit = goForwarder.AuditConfig{
		Enabled:    c.Audit.Enabled,
		BufferSize: c.Audit.BufferSize,
		DropIfFull: c.Audit.DropIfFull,
	}
	cfg.Metrics = goForwarder.MetricsConfig{
		Enabled:                 c.Metrics.Enabled,
		EnableLatencyHistograms: c.Metrics.EnableLatencyHistograms,
	}
	cfg.Logging = goForwarder.LoggingConfig{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		Encoding:    c.Logging.Encoding,
	}

	priv, err := decodeKey(c.Auth.PrivateKey)
	if err != nil {
		return cfg, fmt.Errorf("auth private_key: %w", err)
	}
	pub, err := decodeKey(c.Auth.PublicKey)
	if err != nil {
		return cfg, fmt.Errorf("auth public_key: %w", err)
	}
	cfg.Auth = goForwarder.AuthConfig{
		LoginWindow:          c.Auth.LoginWindow,
		TokenTTL:             c.Auth.TokenTTL,
		SigningMethod:        c.Auth.SigningMethod,
		PrivateKey:           priv,
		PublicKey:            pub,
		Issuer:               c.Auth.Issuer,
		Audience:             c.Auth.Audience,
		Leeway:               c.Auth.Leeway,
		FailureThreshold:     c.Auth.FailureThreshold,
		FailureWindow:        c.Auth.FailureWindow,
		APIRequestsPerSecond: c.Auth.APIRequestsPerSecond,
		APIBurst:             c.Auth.APIBurst,
	}
	return cfg, cfg.Validate()
}

func (c daemonConfig) chainID() *big.Int {
	if c.ChainID <= 0 {
		return nil
	}
	return big.NewInt(c.ChainID)
}
