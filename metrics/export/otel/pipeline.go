package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	goForwarder "github.com/MrEthical07/goForwarder"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"
)

// PipelineConfig configures OTLP/gRPC metric export.
type PipelineConfig struct {
	// Endpoint is the collector address, host:port.
	Endpoint string
	Insecure bool
	// Interval between pushes. Zero uses 30s.
	Interval    time.Duration
	ServiceName string
}

// Pipeline pushes an engine's metrics to an OTLP collector. It owns its
// MeterProvider and must be shut down to flush the last interval.
type Pipeline struct {
	provider *sdkmetric.MeterProvider
	exporter *OTelExporter
	logger   *zap.Logger
}

// StartPipeline builds an OTLP/gRPC exporter, a periodic reader and a
// MeterProvider, and registers an OTelExporter over source on it.
func StartPipeline(ctx context.Context, cfg PipelineConfig, source metricsSource, logger *zap.Logger) (*Pipeline, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("otlp endpoint required")
	}
	if source == nil {
		return nil, ErrNilSource
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "goforwarder"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Interval))),
	)

	exporter, err := NewOTelExporterFromSource(provider.Meter("github.com/MrEthical07/goForwarder"), source)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	logger.Info("otlp metrics pipeline started",
		zap.String("endpoint", cfg.Endpoint),
		zap.Duration("interval", cfg.Interval),
	)
	return &Pipeline{provider: provider, exporter: exporter, logger: logger}, nil
}

// StartEnginePipeline is StartPipeline over an engine.
func StartEnginePipeline(ctx context.Context, cfg PipelineConfig, engine *goForwarder.Engine, logger *zap.Logger) (*Pipeline, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return StartPipeline(ctx, cfg, engine, logger)
}

// Shutdown unregisters the instruments, flushes and closes the exporter.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return errors.Join(p.exporter.Close(), p.provider.Shutdown(ctx))
}
