package telemetry

import (
	"context"
	"testing"

	"github.com/dunamismax/curveflow/internal/config"
	"github.com/dunamismax/curveflow/internal/logging"
)

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "curveflow-test", config.TraceConfig{Exporter: "none"}, logging.Discard())
	if err != nil {
		t.Fatalf("setup tracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := SetupTracing(context.Background(), "curveflow-test", config.TraceConfig{Exporter: "jaeger"}, logging.Discard()); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestSetupTracingOTLPRequiresEndpoint(t *testing.T) {
	if _, err := SetupTracing(context.Background(), "curveflow-test", config.TraceConfig{Exporter: "otlp"}, logging.Discard()); err == nil {
		t.Fatal("expected error without endpoint")
	}
}
