package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/parleyhq/parley/pkg/observability"
)

// setupAttemptLimiter creates a miniredis instance and returns the limiter and cleanup function
func setupAttemptLimiter(t *testing.T) (*AttemptLimiter, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewAttemptLimiter(client, "throttle")

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return limiter, mr, cleanup
}

func TestAttemptLimiter_HitAndTooManyAttempts(t *testing.T) {
	limiter, _, cleanup := setupAttemptLimiter(t)
	defer cleanup()

	ctx := context.Background()
	key := "test-key"

	for i := 1; i <= 5; i++ {
		blocked, err := limiter.TooManyAttempts(ctx, key, 5)
		if err != nil {
			t.Fatalf("TooManyAttempts: %v", err)
		}
		if blocked {
			t.Fatalf("blocked after %d hits, want open until 5", i-1)
		}
		if _, err := limiter.Hit(ctx, key, 15*time.Minute); err != nil {
			t.Fatalf("Hit: %v", err)
		}
	}

	blocked, err := limiter.TooManyAttempts(ctx, key, 5)
	if err != nil {
		t.Fatalf("TooManyAttempts: %v", err)
	}
	if !blocked {
		t.Error("expected block after 5 hits")
	}
}

func TestAttemptLimiter_HitExtendsWindow(t *testing.T) {
	limiter, mr, cleanup := setupAttemptLimiter(t)
	defer cleanup()

	ctx := context.Background()
	key := "test-key"

	if _, err := limiter.Hit(ctx, key, 15*time.Minute); err != nil {
		t.Fatalf("Hit: %v", err)
	}
	mr.FastForward(10 * time.Minute)

	// A second hit resets the TTL back to the full window.
	if _, err := limiter.Hit(ctx, key, 15*time.Minute); err != nil {
		t.Fatalf("Hit: %v", err)
	}

	ttl, err := limiter.AvailableIn(ctx, key)
	if err != nil {
		t.Fatalf("AvailableIn: %v", err)
	}
	if ttl < 14*time.Minute {
		t.Errorf("TTL after second hit = %v, want full window", ttl)
	}
}

func TestAttemptLimiter_Clear(t *testing.T) {
	limiter, _, cleanup := setupAttemptLimiter(t)
	defer cleanup()

	ctx := context.Background()
	key := "test-key"

	for i := 0; i < 5; i++ {
		if _, err := limiter.Hit(ctx, key, time.Minute); err != nil {
			t.Fatalf("Hit: %v", err)
		}
	}
	if err := limiter.Clear(ctx, key); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	blocked, err := limiter.TooManyAttempts(ctx, key, 5)
	if err != nil {
		t.Fatalf("TooManyAttempts: %v", err)
	}
	if blocked {
		t.Error("key still blocked after Clear")
	}
}

func TestAttemptLimiter_WindowExpiry(t *testing.T) {
	limiter, mr, cleanup := setupAttemptLimiter(t)
	defer cleanup()

	ctx := context.Background()
	key := "test-key"

	for i := 0; i < 5; i++ {
		if _, err := limiter.Hit(ctx, key, time.Minute); err != nil {
			t.Fatalf("Hit: %v", err)
		}
	}
	mr.FastForward(2 * time.Minute)

	blocked, err := limiter.TooManyAttempts(ctx, key, 5)
	if err != nil {
		t.Fatalf("TooManyAttempts: %v", err)
	}
	if blocked {
		t.Error("key still blocked after window expired")
	}
}

func TestThrottleAttempts_SixthAttemptRejected(t *testing.T) {
	limiter, _, cleanup := setupAttemptLimiter(t)
	defer cleanup()

	// Handler always fails auth, so no attempt is forgiven.
	handler := ThrottleAttempts(limiter, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	for i := 1; i <= 5; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "http://api.test/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "http://api.test/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("6th attempt status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
	if got := rr.Body.String(); got == "" {
		t.Error("429 response missing body")
	}
}

func TestThrottleAttempts_RejectionIsCounted(t *testing.T) {
	limiter, _, cleanup := setupAttemptLimiter(t)
	defer cleanup()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	handler := ThrottleAttempts(limiter, nil, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	send := func() {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "http://api.test/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.9:5000"
		handler.ServeHTTP(rr, req)
	}

	for i := 0; i < 5; i++ {
		send()
	}
	if got := testutil.ToFloat64(metrics.RateLimitRejections); got != 0 {
		t.Fatalf("rejections after 5 allowed attempts = %v, want 0", got)
	}

	send()
	send()
	if got := testutil.ToFloat64(metrics.RateLimitRejections); got != 2 {
		t.Errorf("rejections after 2 blocked attempts = %v, want 2", got)
	}
}

func TestThrottleAttempts_SuccessClearsCounter(t *testing.T) {
	limiter, _, cleanup := setupAttemptLimiter(t)
	defer cleanup()

	status := http.StatusUnauthorized
	handler := ThrottleAttempts(limiter, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	send := func() int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "http://api.test/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.2:5000"
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 4; i++ {
		if code := send(); code != http.StatusUnauthorized {
			t.Fatalf("warm-up attempt status = %d, want 401", code)
		}
	}

	// A successful login forgives the prior failures.
	status = http.StatusOK
	if code := send(); code != http.StatusOK {
		t.Fatalf("successful attempt status = %d, want 200", code)
	}

	// Counter is reset: the next 5 attempts are allowed again.
	status = http.StatusUnauthorized
	for i := 0; i < 5; i++ {
		if code := send(); code != http.StatusUnauthorized {
			t.Fatalf("post-clear attempt %d status = %d, want 401", i+1, code)
		}
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("post-clear 6th attempt status = %d, want 429", code)
	}
}

func TestThrottleAttempts_KeysAreIsolatedByClient(t *testing.T) {
	limiter, _, cleanup := setupAttemptLimiter(t)
	defer cleanup()

	handler := ThrottleAttempts(limiter, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	for i := 0; i < 6; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "http://api.test/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.3:5000"
		handler.ServeHTTP(rr, req)
	}

	// A different client IP has its own counter.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "http://api.test/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.4:5000"
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("other client status = %d, want 401", rr.Code)
	}
}

func TestAttemptKey_Components(t *testing.T) {
	base := httptest.NewRequest("POST", "http://api.test/api/v1/auth/login", nil)
	base.RemoteAddr = "10.0.0.1:5000"

	same := httptest.NewRequest("POST", "http://api.test/api/v1/auth/login", nil)
	same.RemoteAddr = "10.0.0.1:6000" // port does not matter
	if AttemptKey(base) != AttemptKey(same) {
		t.Error("same method/host/ip/path should share a key")
	}

	otherPath := httptest.NewRequest("POST", "http://api.test/api/v1/auth/refresh", nil)
	otherPath.RemoteAddr = "10.0.0.1:5000"
	if AttemptKey(base) == AttemptKey(otherPath) {
		t.Error("different paths must not share a key")
	}

	otherIP := httptest.NewRequest("POST", "http://api.test/api/v1/auth/login", nil)
	otherIP.RemoteAddr = "10.9.9.9:5000"
	if AttemptKey(base) == AttemptKey(otherIP) {
		t.Error("different client IPs must not share a key")
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "http://api.test/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	if got := getClientIP(req); got != "10.0.0.1" {
		t.Errorf("getClientIP = %q, want 10.0.0.1", got)
	}

	req.Header.Set("X-Real-IP", "203.0.113.7")
	if got := getClientIP(req); got != "203.0.113.7" {
		t.Errorf("getClientIP = %q, want X-Real-IP value", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	if got := getClientIP(req); got != "198.51.100.4" {
		t.Errorf("getClientIP = %q, want first X-Forwarded-For entry", got)
	}
}
