package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("slug", "health-overview").Info("Dashboard created")

	entry := logLine(t, &buf)
	if entry["msg"] != "Dashboard created" {
		t.Errorf("Unexpected message %v", entry["msg"])
	}
	if entry["slug"] != "health-overview" {
		t.Errorf("Expected slug field, got %v", entry["slug"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered at warn level, got %q", buf.String())
	}

	logger.Warnf("kept %d", 1)
	if buf.Len() == 0 {
		t.Error("Expected warn to be logged")
	}
}

func TestLoggerWithErrorAndResource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	logger.WithError(errors.New("boom")).WithResource("indicator", 11).Error("Check failed")

	entry := logLine(t, &buf)
	if entry["error"] != "boom" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
	if entry["resource_type"] != "indicator" || entry["resource_id"] != float64(11) {
		t.Errorf("Expected resource fields, got %v/%v", entry["resource_type"], entry["resource_id"])
	}

	if logger.WithError(nil) != logger {
		t.Error("Expected WithError(nil) to return the same logger")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"Warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLoggerContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-42")

	FromContext(ctx).Info("hello")

	entry := logLine(t, &buf)
	if entry["request_id"] != "req-42" {
		t.Errorf("Expected request_id field, got %v", entry["request_id"])
	}
}
