package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func newBufferLogger(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	return logger, &buf
}

func TestLoggerTagsComponent(t *testing.T) {
	logger, buf := newBufferLogger(ComponentRecurring)

	logger.Info("materialized", FieldCount, 3)

	out := buf.String()
	if !strings.Contains(out, "component=recurring") {
		t.Errorf("expected component tag in output, got %q", out)
	}
	if !strings.Contains(out, "count=3") {
		t.Errorf("expected count field in output, got %q", out)
	}
}

func TestFromContextRoundTrip(t *testing.T) {
	logger, buf := newBufferLogger(ComponentHTTP)
	ctx := context.WithValue(context.Background(), LoggerContextKey, logger)

	FromContext(ctx).Warn("slow query")

	if !strings.Contains(buf.String(), "slow query") {
		t.Errorf("expected context logger to receive the record, got %q", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("expected a fallback logger, got nil")
	}
	// Must not panic without a context-carried logger.
	logger.Debug("fallback")
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"success logs info", 200, "level=INFO"},
		{"client error logs warn", 404, "level=WARN"},
		{"server error logs error", 500, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(ComponentHTTP)
			r := httptest.NewRequest("GET", "/report?period=currentMonth", nil)

			LogHTTPEnd(context.Background(), logger, r, tt.status, 12)

			out := buf.String()
			if !strings.Contains(out, tt.level) {
				t.Errorf("expected %s in output, got %q", tt.level, out)
			}
			if !strings.Contains(out, "status_code="+strconv.Itoa(tt.status)) {
				t.Errorf("expected status code field in output, got %q", out)
			}
		})
	}
}
