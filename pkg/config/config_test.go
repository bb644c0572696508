package config

import (
	"testing"
	"time"

	"github.com/unicef-drp/geosight/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" || cfg.Server.HealthPort != "9090" {
		t.Errorf("Unexpected default ports %s/%s", cfg.Server.Port, cfg.Server.HealthPort)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Expected info log level, got %v", cfg.Observability.LogLevel)
	}
	if cfg.Redis.URL != "" {
		t.Errorf("Expected Redis disabled by default, got %q", cfg.Redis.URL)
	}
	if !cfg.Janitor.Enabled || cfg.Janitor.Schedule == "" {
		t.Errorf("Expected janitor enabled with a schedule, got %+v", cfg.Janitor)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("GEOSIGHT_PORT", "8888")
	t.Setenv("GEOSIGHT_LOG_LEVEL", "debug")
	t.Setenv("GEOSIGHT_POSTGRES_URL", "postgres://geo:geo@db:5432/geo")
	t.Setenv("GEOSIGHT_READ_TIMEOUT", "45s")
	t.Setenv("GEOSIGHT_POLICY_FILE", "/etc/geosight/policy.yaml")
	t.Setenv("GEOSIGHT_JANITOR_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8888" {
		t.Errorf("Expected port 8888, got %s", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("Expected debug level, got %v", cfg.Observability.LogLevel)
	}
	if cfg.Database.URL != "postgres://geo:geo@db:5432/geo" {
		t.Errorf("Unexpected database URL %q", cfg.Database.URL)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Expected 45s read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Permission.PolicyFile != "/etc/geosight/policy.yaml" {
		t.Errorf("Unexpected policy file %q", cfg.Permission.PolicyFile)
	}
	if cfg.Janitor.Enabled {
		t.Error("Expected janitor disabled")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	t.Setenv("GEOSIGHT_HEALTH_PORT", "8080")
	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when API and health ports collide")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("GEOSIGHT_TEST_INT", "42")
	t.Setenv("GEOSIGHT_TEST_BOOL", "1")
	t.Setenv("GEOSIGHT_TEST_BAD_DURATION", "not-a-duration")

	if got := getEnvInt("GEOSIGHT_TEST_INT", 0); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	if !getEnvBool("GEOSIGHT_TEST_BOOL", false) {
		t.Error("Expected true for '1'")
	}
	if got := getEnvDuration("GEOSIGHT_TEST_BAD_DURATION", time.Minute); got != time.Minute {
		t.Errorf("Expected fallback duration, got %v", got)
	}
	if got := getEnv("GEOSIGHT_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %q", got)
	}
}
