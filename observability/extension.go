// Package observability provides a metrics extension that records
// membership lifecycle counts. Register it with the extension registry to
// track activations and deactivation fan-outs without touching the core.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/foreman/ext"
)

// instrumentationName is the OTel instrumentation scope for the
// observability extension.
const instrumentationName = "github.com/xraph/foreman/observability"

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.MasterActivated   = (*MetricsExtension)(nil)
	_ ext.MasterDeactivated = (*MetricsExtension)(nil)
)

// MetricsExtension records membership lifecycle metrics. If no
// MeterProvider is configured globally, noop instruments are used and the
// extension becomes a pass-through.
type MetricsExtension struct {
	activated   metric.Int64Counter
	deactivated metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(instrumentationName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific MeterProvider
// for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// The OTel API guarantees noop instruments on error, so the
	// extension degrades gracefully.
	activated, _ := meter.Int64Counter(
		"foreman.master.activated",
		metric.WithDescription("Masters that transitioned to active"),
		metric.WithUnit("{transition}"),
	)
	deactivated, _ := meter.Int64Counter(
		"foreman.master.deactivated",
		metric.WithDescription("Masters observed by the deactivation fan-out"),
		metric.WithUnit("{transition}"),
	)
	return &MetricsExtension{
		activated:   activated,
		deactivated: deactivated,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnMasterActivated implements ext.MasterActivated.
func (m *MetricsExtension) OnMasterActivated(ctx context.Context, _ int64, _ string) error {
	m.activated.Add(ctx, 1)
	return nil
}

// OnMasterDeactivated implements ext.MasterDeactivated.
func (m *MetricsExtension) OnMasterDeactivated(ctx context.Context, _ int64) error {
	m.deactivated.Add(ctx, 1)
	return nil
}
