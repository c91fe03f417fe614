// Package otel holds shared observability instruments for the daemon.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// QueueStatsFunc reports the current number of active and pending jobs.
type QueueStatsFunc func() (active, pending int)

// QueueMetrics observes the build queue.
type QueueMetrics struct {
	registration metric.Registration
}

// NewQueueMetrics registers observable gauges for build queue depth.
func NewQueueMetrics(meter metric.Meter, stats QueueStatsFunc) (*QueueMetrics, error) {
	activeGauge, err := meter.Int64ObservableGauge(
		"dmgforge_builds_active",
		metric.WithDescription("Number of builds currently running"),
	)
	if err != nil {
		return nil, err
	}

	pendingGauge, err := meter.Int64ObservableGauge(
		"dmgforge_builds_pending",
		metric.WithDescription("Number of builds waiting in the queue"),
	)
	if err != nil {
		return nil, err
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		active, pending := stats()
		o.ObserveInt64(activeGauge, int64(active))
		o.ObserveInt64(pendingGauge, int64(pending))
		return nil
	}, activeGauge, pendingGauge)
	if err != nil {
		return nil, err
	}

	return &QueueMetrics{registration: reg}, nil
}

// Unregister stops the queue observations.
func (m *QueueMetrics) Unregister() error {
	return m.registration.Unregister()
}
