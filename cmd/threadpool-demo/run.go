package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	threadpool "github.com/Swind/go-threadpool"
	"github.com/Swind/go-threadpool/config"
	"github.com/Swind/go-threadpool/core"
	"github.com/Swind/go-threadpool/lifecycle"
	otelobs "github.com/Swind/go-threadpool/observability/otel"
	promobs "github.com/Swind/go-threadpool/observability/prometheus"
)

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	restore := zap.ReplaceGlobals(logger)
	defer restore()

	reg := prom.NewRegistry()
	exporter, err := promobs.NewMetricsExporter(cfg.Metrics.Namespace, reg, promobs.ExporterOptions{})
	if err != nil {
		return fmt.Errorf("create metrics exporter: %w", err)
	}
	poller, err := promobs.NewSnapshotPoller(cfg.Metrics.Namespace, reg, cfg.Metrics.PollInterval)
	if err != nil {
		return fmt.Errorf("create snapshot poller: %w", err)
	}

	metrics := core.MultiMetrics{exporter}
	var reader *sdkmetric.ManualReader
	if c.Bool("otel-dump") {
		reader = sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = provider.Shutdown(context.Background()) }()

		otelMetrics, err := otelobs.NewMetrics(otelobs.WithMeterProvider(provider))
		if err != nil {
			return fmt.Errorf("create otel metrics: %w", err)
		}
		metrics = append(metrics, otelMetrics)
	}

	poolLogger := core.NewZapLogger(logger)
	opts := append(threadpool.OptionsFromConfig(cfg),
		threadpool.WithLogger(poolLogger),
		threadpool.WithMetrics(metrics),
		threadpool.WithPanicHandler(&core.LoggingPanicHandler{Logger: poolLogger}),
	)
	if err := threadpool.ConfigureInstance(opts...); err != nil {
		return err
	}

	pool := threadpool.Instance()
	if err := pool.Spawn(cfg.Workers); err != nil {
		return err
	}

	poller.AddPool(pool.ID(), pool)
	poller.Start(c.Context)
	// registered after the pool, so it stops before the pool is released
	lifecycle.BeforeExit("threadpool-demo.poller", poller.Stop)

	w := workload{
		pool:   pool,
		logger: logger,
		tasks:  c.Int("tasks"),
		delay:  c.Duration("delay"),
		linger: c.Duration("linger"),
	}
	services := []lifecycle.Service{w.run}
	if cfg.Metrics.Addr != "" {
		services = append(services, serveMetrics(cfg.Metrics.Addr, reg, logger))
	}

	err = lifecycle.Run(c.Context, services...)
	if reader != nil {
		dumpOTel(reader, logger)
	}
	return err
}

func loadConfig(c *cli.Context) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(nil, config.FormatYAML)
	}
	if err != nil {
		return config.Config{}, err
	}

	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func serveMetrics(addr string, reg *prom.Registry, logger *zap.Logger) lifecycle.Service {
	return func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()
		logger.Info("serving metrics", zap.String("addr", addr))

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("metrics server: %w", err)
		}
	}
}

func dumpOTel(reader *sdkmetric.ManualReader, logger *zap.Logger) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		logger.Warn("collect otel metrics", zap.Error(err))
		return
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					logger.Info("otel histogram", zap.String("name", m.Name), zap.Uint64("count", dp.Count), zap.Float64("sum", dp.Sum))
				}
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					logger.Info("otel counter", zap.String("name", m.Name), zap.Int64("value", dp.Value))
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					logger.Info("otel gauge", zap.String("name", m.Name), zap.Int64("value", dp.Value))
				}
			}
		}
	}
}
