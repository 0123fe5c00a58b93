package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown failed: %v", err)
	}

	_, span := Tracer.Start(context.Background(), "test")
	span.End()
}

func TestInitTracing_RequiresEndpoint(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true}); err == nil {
		t.Fatal("expected error without endpoint")
	}
}

func TestMetricsRegistered(t *testing.T) {
	before := testutil.ToFloat64(QueriesTotal.WithLabelValues("stats", "OK"))
	QueriesTotal.WithLabelValues("stats", "OK").Inc()
	if got := testutil.ToFloat64(QueriesTotal.WithLabelValues("stats", "OK")); got != before+1 {
		t.Errorf("expected counter to increase, got %v", got)
	}
}
