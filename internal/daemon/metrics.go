package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the daemon's operational metrics using OTEL semantic
// conventions.
type Metrics struct {
	syncs        metric.Int64Counter
	syncDuration metric.Float64Histogram
	appsSynced   metric.Int64Gauge
	sweeps       metric.Int64Counter
}

// NewMetrics creates daemon metrics following OTEL semantic conventions.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("ward.daemon")

	syncs, err := meter.Int64Counter(
		"ward.daemon.syncs",
		metric.WithDescription("Number of connector sync cycles"),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		return nil, err
	}

	syncDuration, err := meter.Float64Histogram(
		"ward.daemon.sync.duration",
		metric.WithDescription("Duration of connector sync cycles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	appsSynced, err := meter.Int64Gauge(
		"ward.daemon.apps.synced",
		metric.WithDescription("Number of applications seen in the latest sync"),
		metric.WithUnit("{application}"),
	)
	if err != nil {
		return nil, err
	}

	sweeps, err := meter.Int64Counter(
		"ward.daemon.sweeps",
		metric.WithDescription("Number of retention and campaign sweep runs"),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		syncs:        syncs,
		syncDuration: syncDuration,
		appsSynced:   appsSynced,
		sweeps:       sweeps,
	}, nil
}

// RecordSync records a sync cycle with its outcome.
func (m *Metrics) RecordSync(ctx context.Context, status string, durationSeconds float64) {
	m.syncs.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
	m.syncDuration.Record(ctx, durationSeconds,
		metric.WithAttributes(attribute.String("status", status)))
}

// RecordAppsSynced records how many apps one connector returned.
func (m *Metrics) RecordAppsSynced(ctx context.Context, count int64, connector string) {
	m.appsSynced.Record(ctx, count,
		metric.WithAttributes(attribute.String("connector", connector)))
}

// RecordSweep records one sweep run and what it removed or closed.
func (m *Metrics) RecordSweep(ctx context.Context, kind string, affected int64) {
	m.sweeps.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.Int64("affected", affected)))
}
