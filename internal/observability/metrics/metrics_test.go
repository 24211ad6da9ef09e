package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("mode", "download"),
		attribute.String("guid", "f8d9a3c2"),
		attribute.String("status", "ok"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "mode" && attrs[1].Key != "mode" {
		t.Fatalf("expected mode to be retained")
	}
	if attrs[0].Key != "status" && attrs[1].Key != "status" {
		t.Fatalf("expected status to be retained")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordSyncChunk(ctx, "update", true)
	m.RecordVouchersIngested(ctx, 5)
	m.RecordRebuild(ctx, time.Second, nil)
	m.RecordCardFailure(ctx, "bar")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "salesdashboard"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected instruments")
	}
	m.RecordSyncChunk(context.Background(), "download", false)
}
