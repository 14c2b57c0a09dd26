// Command forwarderd serves the forwarding engine over HTTP against a live
// chain. Configuration is read from a YAML file with ${VAR} substitution;
// secrets such as the signer key are expected in the environment or an
// optional .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goForwarder "github.com/MrEthical07/goForwarder"
	"github.com/MrEthical07/goForwarder/chain"
	"github.com/MrEthical07/goForwarder/internal/httpapi"
	"github.com/MrEthical07/goForwarder/internal/identity"
	"github.com/MrEthical07/goForwarder/internal/limiters"
	"github.com/MrEthical07/goForwarder/internal/security"
	"github.com/MrEthical07/goForwarder/internal/stores"
	"github.com/MrEthical07/goForwarder/jwt"
	otelexport "github.com/MrEthical07/goForwarder/metrics/export/otel"
	promexport "github.com/MrEthical07/goForwarder/metrics/export/prometheus"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "path to YAML config file")
		envFile    = pflag.String("env-file", ".env", "optional dotenv file loaded before the config")
		listen     = pflag.String("listen", "", "listen address, overrides the config file")
		report     = pflag.Bool("report", false, "print the configuration posture report and exit")
		logLevel   = pflag.String("log-level", "", "log level override (debug, info, warn, error)")
	)
	pflag.Parse()

	if err := run(*configPath, *envFile, *listen, *report, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "forwarderd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile, listen string, printReport bool, logLevel string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	dc, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		dc.Listen = listen
	}

	if printReport {
		return writeReport(dc)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := ethclient.DialContext(ctx, dc.RPCURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	chainID := dc.chainID()
	if chainID == nil {
		if chainID, err = client.ChainID(ctx); err != nil {
			return fmt.Errorf("query chain id: %w", err)
		}
	}
	signer, err := chain.NewSigner(dc.SignerKey, chainID)
	if err != nil {
		return err
	}

	cfg, err := dc.engineConfig(signer.Address())
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.Logging, logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var rdb redis.UniversalClient
	if dc.RedisAddr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{dc.RedisAddr},
			Password: dc.RedisPassword,
			DB:       dc.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	builder := goForwarder.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithAuditSink(goForwarder.NewZapSink(logger)).
		WithMetricsEnabled(cfg.Metrics.Enabled).
		WithLatencyHistograms(cfg.Metrics.EnableLatencyHistograms).
		WithAsset(chain.NewAsset(cfg.TokenAddress, client, signer)).
		WithVenue(chain.NewVenue(cfg.VenueAddress, cfg.TokenAddress, client, signer, dc.SwapDeadline))
	if rdb != nil {
		builder = builder.WithRedis(rdb)
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	if status, err := engine.VerifyOwnership(ctx); err != nil {
		logger.Warn("ownership check failed", zap.Error(err))
	} else if !status.Delegated {
		logger.Warn("forwarder does not own the asset ledger",
			zap.String("owner", status.Owner.Hex()),
			zap.String("forwarder", signer.Address().Hex()),
		)
	}

	if dc.Metrics.OTLPEndpoint != "" {
		pipeline, err := otelexport.StartEnginePipeline(ctx, otelexport.PipelineConfig{
			Endpoint:    dc.Metrics.OTLPEndpoint,
			Insecure:    dc.Metrics.OTLPInsecure,
			Interval:    dc.Metrics.OTLPInterval,
			ServiceName: "forwarderd",
		}, engine, logger)
		if err != nil {
			return fmt.Errorf("otlp metrics: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), dc.ShutdownTimeout)
			defer cancel()
			if err := pipeline.Shutdown(flushCtx); err != nil {
				logger.Warn("otlp metrics shutdown", zap.Error(err))
			}
		}()
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.Auth.TokenTTL,
		SigningMethod: jwt.SigningMethod(cfg.Auth.SigningMethod),
		PrivateKey:    cfg.Auth.PrivateKey,
		PublicKey:     cfg.Auth.PublicKey,
		Issuer:        cfg.Auth.Issuer,
		Audience:      cfg.Auth.Audience,
		Leeway:        cfg.Auth.Leeway,
		RequireIAT:    true,
	})
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	var nonces stores.NonceStore = stores.NewMemoryNonceStore()
	if rdb != nil {
		nonces = stores.NewRedisNonceStore(rdb, "fwn")
	}
	failures := limiters.NewLoginFailureLimiter(rdb, limiters.LoginFailureConfig{
		Threshold: cfg.Auth.FailureThreshold,
		Window:    cfg.Auth.FailureWindow,
	})

	api := httpapi.New(httpapi.Options{
		Forwarder:         engine,
		Tokens:            tokens,
		Verifier:          identity.NewVerifier(cfg.Auth.LoginWindow, nonces, failures),
		Logger:            logger,
		MetricsHandler:    promexport.NewExporter(engine).Handler(),
		RequestsPerSecond: cfg.Auth.APIRequestsPerSecond,
		Burst:             cfg.Auth.APIBurst,
	})
	go api.SweepLimiter(ctx, time.Minute)

	srv := &http.Server{
		Addr:              dc.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", dc.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), dc.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		return err
	}
	return nil
}

func writeReport(dc daemonConfig) error {
	r := security.BuildReport(security.ReportInput{
		SigningAlgorithm:     dc.Auth.SigningMethod,
		TokenTTL:             dc.Auth.TokenTTL,
		LoginWindow:          dc.Auth.LoginWindow,
		FailureThreshold:     dc.Auth.FailureThreshold,
		RedisConfigured:      dc.RedisAddr != "",
		SwapRateLimitEnabled: dc.RateLimit.Enabled,
		APIRequestsPerSecond: dc.Auth.APIRequestsPerSecond,
		BreakerEnabled:       dc.Breaker.Enabled,
		StoreBackend:         dc.Store.Backend,
		AuditEnabled:         dc.Audit.Enabled,
		CallTimeout:          dc.Forwarding.CallTimeout,
		RestoreTimeout:       dc.Forwarding.RestoreTimeout,
		PoolConfigured:       dc.LiquidityPool != "",
	})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
