package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pesio-ai/be-mfg-scans/internal/scancode"
)

const meterName = "github.com/pesio-ai/be-mfg-scans/internal/service"

// Metrics holds the scan counters
type Metrics struct {
	scans    metric.Int64Counter
	promoted metric.Int64Counter
}

// NewMetrics registers the counters on meter. A nil meter uses the global
// provider, which is a no-op until one is installed.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	scans, err := meter.Int64Counter("scans_total",
		metric.WithDescription("Scans handled, by kind and result tag"))
	if err != nil {
		return nil, err
	}

	promoted, err := meter.Int64Counter("promoted_units_total",
		metric.WithDescription("Unit records moved to the next packaging stage"),
		metric.WithUnit("{unit}"))
	if err != nil {
		return nil, err
	}

	return &Metrics{scans: scans, promoted: promoted}, nil
}

// RecordScan counts one handled scan
func (m *Metrics) RecordScan(ctx context.Context, kind ScanKind, reason scancode.Reason) {
	if m == nil {
		return
	}
	m.scans.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("result", string(reason)),
		attribute.String("category", string(reason.Category())),
	))
}

// RecordPromotion counts promoted unit records
func (m *Metrics) RecordPromotion(ctx context.Context, kind ScanKind, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.promoted.Add(ctx, n, metric.WithAttributes(attribute.String("kind", string(kind))))
}
