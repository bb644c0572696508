package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/unicef-drp/geosight/pkg/auth"
	"github.com/unicef-drp/geosight/pkg/contextkeys"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(userID int64) *http.Request {
	req := httptest.NewRequest("GET", "/api/v1/dashboards", nil)
	user := &auth.User{ID: userID, Role: auth.RoleViewer}
	return req.WithContext(contextkeys.WithAuth(req.Context(), &auth.Context{User: user}))
}

func TestRateLimiterExhaustsAndRefills(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    100 * time.Millisecond,
		BurstSize:         0,
	})

	if !limiter.Allow("k") || !limiter.Allow("k") {
		t.Fatal("Expected first two requests to pass")
	}
	if limiter.Allow("k") {
		t.Error("Expected third request to be limited")
	}

	time.Sleep(120 * time.Millisecond)
	if !limiter.Allow("k") {
		t.Error("Expected tokens to refill after the window")
	}
}

func TestRateLimitMiddlewareKeysByUser(t *testing.T) {
	m := &RateLimitMiddleware{
		userLimiter:      NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}),
		anonymousLimiter: NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}),
	}
	handler := m.Handler(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(5))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("Expected limit header, got %q", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(5))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 for exhausted user, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header on 429")
	}

	// A different user has their own bucket.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(6))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for other user, got %d", rec.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    10 * time.Millisecond,
	})
	limiter.Allow("stale")

	time.Sleep(30 * time.Millisecond)
	limiter.Cleanup()

	limiter.mu.RLock()
	_, exists := limiter.buckets["stale"]
	limiter.mu.RUnlock()
	if exists {
		t.Error("Expected idle bucket to be removed")
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDistributedRateLimiter(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
	}, "test")

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "user:5")
		if err != nil || !allowed {
			t.Fatalf("Expected request %d to pass, allowed=%v err=%v", i, allowed, err)
		}
	}
	allowed, err := limiter.Allow(ctx, "user:5")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Error("Expected third request to be limited")
	}

	remaining, err := limiter.Remaining(ctx, "user:5")
	if err != nil || remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d err=%v", remaining, err)
	}

	if err := limiter.Reset(ctx, "user:5"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if allowed, _ := limiter.Allow(ctx, "user:5"); !allowed {
		t.Error("Expected request to pass after reset")
	}
}

func TestDistributedMiddlewareFailsOpen(t *testing.T) {
	client := newTestRedis(t)
	m := NewDistributedRateLimitMiddleware(client)
	handler := m.Handler(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(5))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	// Closing the client makes every Redis call fail; requests still pass.
	client.Close()
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(5))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected fail-open 200 on Redis outage, got %d", rec.Code)
	}
}
