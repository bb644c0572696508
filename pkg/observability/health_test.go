package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	_ "github.com/mattn/go-sqlite3"
)

func testHealthDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLivenessAlwaysHealthy(t *testing.T) {
	checker := NewHealthChecker(nil, nil)

	rec := httptest.NewRecorder()
	checker.Liveness(rec, httptest.NewRequest("GET", "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestReadinessWithHealthyDependencies(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	checker := NewHealthChecker(testHealthDB(t), client)

	rec := httptest.NewRecorder()
	checker.Readiness(rec, httptest.NewRequest("GET", "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if status.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", status.Status)
	}
	if status.Dependencies["database"].Status != StatusHealthy {
		t.Errorf("Expected healthy database, got %+v", status.Dependencies["database"])
	}
}

func TestCheckDegradedWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	checker := NewHealthChecker(testHealthDB(t), client)
	status := checker.Check(context.Background())

	// Redis is optional: an outage degrades, never fails, readiness.
	if status.Status != StatusDegraded {
		t.Errorf("Expected degraded, got %s", status.Status)
	}
}

func TestCheckUnhealthyWhenDatabaseDown(t *testing.T) {
	db := testHealthDB(t)
	db.Close()

	checker := NewHealthChecker(db, nil)
	status := checker.Check(context.Background())
	if status.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", status.Status)
	}
}
