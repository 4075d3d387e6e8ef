// Package daemon runs ward's continuous loop: periodic connector syncs
// feeding the detector, plus retention and campaign-deadline sweeps.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wardlabs/ward/connectors"
	"github.com/wardlabs/ward/detector"
	"github.com/wardlabs/ward/engine"
	"github.com/wardlabs/ward/review"
	"github.com/wardlabs/ward/telemetry"
)

// Config holds daemon configuration.
type Config struct {
	TenantID           string
	SyncInterval       time.Duration
	SweepInterval      time.Duration
	ExecutionRetention time.Duration
	MetricsPort        int
}

// Daemon drives the sync and sweep cycles.
type Daemon struct {
	cfg        Config
	connectors []connectors.Connector
	detector   *detector.Detector
	engine     *engine.Engine
	reviews    *review.Manager
	metrics    *Metrics
	logger     *telemetry.Logger
	startTime  time.Time
	syncCount  atomic.Int64
	sweepCount atomic.Int64
}

// New creates a daemon instance.
func New(cfg Config, conns []connectors.Connector, det *detector.Detector, eng *engine.Engine, reviews *review.Manager) (*Daemon, error) {
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("daemon requires a tenant ID")
	}
	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive")
	}

	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("init daemon metrics: %w", err)
	}

	return &Daemon{
		cfg:        cfg,
		connectors: conns,
		detector:   det,
		engine:     eng,
		reviews:    reviews,
		metrics:    metrics,
		logger:     telemetry.NewLogger("daemon"),
		startTime:  time.Now(),
	}, nil
}

// Start runs the sync and sweep loops until the context is cancelled. A sync
// runs immediately on startup so a fresh daemon is useful before the first
// tick.
func (d *Daemon) Start(ctx context.Context) error {
	syncTicker := time.NewTicker(d.cfg.SyncInterval)
	defer syncTicker.Stop()

	sweepInterval := d.cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()

	d.runSync(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-syncTicker.C:
			d.runSync(ctx)
		case <-sweepTicker.C:
			d.runSweeps(ctx)
		}
	}
}

// runSync pulls the current app snapshot from every connector and feeds it
// through the detector. Connector failures are isolated per connector.
func (d *Daemon) runSync(ctx context.Context) {
	d.syncCount.Add(1)
	start := time.Now()
	status := "success"

	for _, conn := range d.connectors {
		apps, err := conn.DiscoverApps(ctx, d.cfg.TenantID)
		if err != nil {
			status = "partial"
			d.logger.WithContext(ctx).Error().
				Err(err).
				Str("connector", conn.Name()).
				Msg("connector sync failed")
			continue
		}

		result, err := d.detector.ProcessApps(ctx, d.cfg.TenantID, apps)
		if err != nil {
			status = "partial"
			d.logger.WithContext(ctx).Error().
				Err(err).
				Str("connector", conn.Name()).
				Msg("discovery processing failed")
			continue
		}

		d.metrics.RecordAppsSynced(ctx, int64(result.Processed), conn.Name())
		if result.Failed > 0 {
			status = "partial"
		}
	}

	if count, err := d.detector.CatalogSize(d.cfg.TenantID); err == nil && telemetry.CatalogSize != nil {
		telemetry.CatalogSize.Record(ctx, int64(count),
			metric.WithAttributes(attribute.String("tenant", d.cfg.TenantID)))
	}

	d.metrics.RecordSync(ctx, status, time.Since(start).Seconds())
}

// runSweeps runs the retention and campaign-deadline sweeps. Both are
// idempotent, so a missed or doubled tick is harmless.
func (d *Daemon) runSweeps(ctx context.Context) {
	d.sweepCount.Add(1)

	if d.cfg.ExecutionRetention > 0 {
		if deleted, err := d.engine.SweepExecutions(ctx, d.cfg.ExecutionRetention); err != nil {
			d.logger.WithContext(ctx).Error().Err(err).Msg("execution sweep failed")
		} else {
			d.metrics.RecordSweep(ctx, "executions", int64(deleted))
		}
	}

	if closed, err := d.reviews.SweepOverdueCampaigns(ctx, d.cfg.TenantID); err != nil {
		d.logger.WithContext(ctx).Error().Err(err).Msg("campaign sweep failed")
	} else {
		d.metrics.RecordSweep(ctx, "campaigns", int64(closed))
	}
}

// ServeMetrics exposes Prometheus metrics and the health endpoint. Blocks
// until the listener fails or the context is cancelled.
func (d *Daemon) ServeMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := d.Health()
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "%s uptime=%ds syncs=%d\n", health.Status, health.Uptime, d.SyncCount())
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", d.cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// HealthStatus represents daemon health.
type HealthStatus struct {
	Status string
	Uptime int64
}

// Health returns daemon health status.
func (d *Daemon) Health() HealthStatus {
	return HealthStatus{
		Status: "healthy",
		Uptime: int64(time.Since(d.startTime).Seconds()),
	}
}

// SyncCount returns total syncs run.
func (d *Daemon) SyncCount() int64 {
	return d.syncCount.Load()
}

// SweepCount returns total sweep cycles run.
func (d *Daemon) SweepCount() int64 {
	return d.sweepCount.Load()
}
