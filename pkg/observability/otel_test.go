package observability

import (
	"bytes"
	"context"
	"testing"
)

func TestInitOTelDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)
	if err != nil {
		t.Fatalf("InitOTel failed: %v", err)
	}
	if providers != nil {
		t.Error("Expected nil providers when disabled")
	}
	if err := ShutdownOTel(context.Background(), providers, logger); err != nil {
		t.Errorf("ShutdownOTel failed for nil providers: %v", err)
	}
}
