package license

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName identifies provisioning metrics
const MeterName = "license-provisioner"

// Metrics holds provisioning-specific OpenTelemetry metrics
type Metrics struct {
	ProvisionedTotal   metric.Int64Counter
	SkippedTotal       metric.Int64Counter
	StoreFailuresTotal metric.Int64Counter
	LookupsTotal       metric.Int64Counter
}

// InitializeMetrics creates all provisioning metrics on the given meter
func InitializeMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ProvisionedTotal, err = meter.Int64Counter(
		"licenses_provisioned_total",
		metric.WithDescription("Licenses provisioned from verified purchase events"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provisioned counter: %w", err)
	}

	m.SkippedTotal, err = meter.Int64Counter(
		"webhook_events_skipped_total",
		metric.WithDescription("Verified events acknowledged without provisioning"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create skipped counter: %w", err)
	}

	m.StoreFailuresTotal, err = meter.Int64Counter(
		"license_store_failures_total",
		metric.WithDescription("License store operations that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store failure counter: %w", err)
	}

	m.LookupsTotal, err = meter.Int64Counter(
		"license_lookups_total",
		metric.WithDescription("License lookup requests by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup counter: %w", err)
	}

	return m, nil
}

// The record helpers are nil-safe so callers can run without metrics.

func (m *Metrics) recordProvisioned(ctx context.Context, created bool) {
	if m == nil {
		return
	}
	m.ProvisionedTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("created", created)))
}

func (m *Metrics) recordSkip(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.SkippedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) recordStoreFailure(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.StoreFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordLookup counts a lookup request and whether it found a license
func (m *Metrics) RecordLookup(ctx context.Context, valid bool) {
	if m == nil {
		return
	}
	m.LookupsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid", valid)))
}
