package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"sales-console/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_AddsContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LoggerConfig{Level: "debug", Format: "json"})

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(WithRequestID(context.Background(), "req-42"), "op")
	logger.InfoContext(ctx, "hello")
	span.End()

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}

	if record["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", record["request_id"])
	}
	if record["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v", record["trace_id"])
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LoggerConfig{Level: "warn", Format: "text"})

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if bytes.Contains([]byte(out), []byte("dropped")) {
		t.Error("info record should be filtered at warn level")
	}
	if !bytes.Contains([]byte(out), []byte("msg=kept")) {
		t.Errorf("expected text record, got %q", out)
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("GetRequestID() = %q, want empty", id)
	}
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveBackend("orders", "GET", "ok", 20*time.Millisecond)
	m.ObserveBackend("orders", "GET", "ok", 30*time.Millisecond)
	m.ObserveBackend("orders", "POST", "response_error", time.Millisecond)
	m.Notification("orders", "error")
	m.VisitOpened("orders")
	m.VisitOpened("orders")
	m.VisitClosed("orders")

	if got := testutil.ToFloat64(m.backendRequests.WithLabelValues("orders", "GET", "ok")); got != 2 {
		t.Errorf("ok requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("orders", "error")); got != 1 {
		t.Errorf("notifications = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.openVisits.WithLabelValues("orders")); got != 1 {
		t.Errorf("open visits = %v, want 1", got)
	}

	// Registering twice reuses the existing collectors.
	again := NewMetrics(registry)
	again.Notification("orders", "error")
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("orders", "error")); got != 2 {
		t.Errorf("notifications after re-register = %v, want 2", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveBackend("orders", "GET", "ok", time.Second)
	m.Notification("orders", "success")
	m.VisitOpened("orders")
	m.VisitClosed("orders")
}
