// Package host wires the pieces every infinitygrid binary needs from a
// config.Config: logger, telemetry, a row provider and a data source.
package host

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	rowservice "github.com/sushant-115/infinitygrid/api/row_service"
	"github.com/sushant-115/infinitygrid/config"
	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/provider"
	internaltelemetry "github.com/sushant-115/infinitygrid/internal/telemetry"
	"github.com/sushant-115/infinitygrid/pkg/logger"
	"github.com/sushant-115/infinitygrid/pkg/telemetry"
)

// seedBatch is how many demo rows go into one SQLite transaction.
const seedBatch = 10_000

// Host holds the process-wide components built from a Config.
type Host struct {
	Config    config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Telemetry
	Metrics   *internaltelemetry.DataSourceMetrics

	shutdown telemetry.ShutdownFunc
	closers  []func() error
}

// Setup builds the logger and telemetry.
func Setup(cfg config.Config) (*Host, error) {
	l, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	tel, shutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	metrics, err := internaltelemetry.NewDataSourceMetrics(tel.Meter)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("failed to create data source metrics: %w", err)
	}
	return &Host{
		Config:    cfg,
		Logger:    l,
		Telemetry: tel,
		Metrics:   metrics,
		shutdown:  shutdown,
	}, nil
}

// Provider builds the configured row provider. Resources it opens are
// released by Close.
func (h *Host) Provider(ctx context.Context) (datasource.Provider[string], error) {
	pc := h.Config.Provider
	var p datasource.Provider[string]

	switch pc.Kind {
	case config.ProviderGenerated:
		p = provider.NewGenerated(pc.Rows, provider.DemoRow, pc.Latency)
	case config.ProviderSQLite:
		db, err := provider.OpenSQLite(pc.SQLitePath, h.Logger)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, db.Close)
		if err := seed(ctx, db, pc.Rows); err != nil {
			return nil, err
		}
		p = db
	case config.ProviderRemote:
		conn, err := rowservice.Dial(pc.RemoteAddress)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, conn.Close)
		p = rowservice.NewClient(conn, rowservice.StringCodec)
	default:
		return nil, fmt.Errorf("%w: unknown provider.kind %q", config.ErrInvalidConfig, pc.Kind)
	}

	if pc.RateLimit > 0 {
		p = provider.NewThrottled(p, pc.RateLimit, pc.Burst)
	}
	h.Logger.Info("row provider ready",
		zap.String("kind", pc.Kind),
		zap.Float64("rateLimit", pc.RateLimit))
	return p, nil
}

// seed fills an empty table with n demo rows.
func seed(ctx context.Context, db *provider.SQLite, n int) error {
	have, err := db.Len(ctx)
	if err != nil || have > 0 {
		return err
	}
	batch := make([]string, 0, seedBatch)
	for pos := 0; pos < n; pos++ {
		batch = append(batch, provider.DemoRow(pos))
		if len(batch) == seedBatch || pos == n-1 {
			if err := db.Append(ctx, batch...); err != nil {
				return fmt.Errorf("failed to seed rows: %w", err)
			}
			batch = batch[:0]
		}
	}
	return nil
}

// DataSource creates a coordinator over p instrumented with the host's
// logger, tracer and metrics.
func (h *Host) DataSource(p datasource.Provider[string], onChange func(datasource.Event)) (*datasource.Coordinator[string], error) {
	opts := []datasource.Option{
		datasource.WithLogger(h.Logger),
		datasource.WithTracer(h.Telemetry.Tracer),
		datasource.WithMetrics(h.Metrics),
	}
	if onChange != nil {
		opts = append(opts, datasource.WithOnChange(onChange))
	}
	return datasource.New(p, h.Config.DataSource, opts...)
}

// Close releases providers, flushes telemetry and syncs the logger.
func (h *Host) Close(ctx context.Context) error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	if err := h.shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = h.Logger.Sync()
	return errors.Join(errs...)
}
