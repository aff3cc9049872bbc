package middleware

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/parleyhq/parley/pkg/httputil"
	"github.com/parleyhq/parley/pkg/observability"
)

// AttemptLimiter counts authentication attempts in Redis so the limit is
// shared across instances. Counters use plain INCR with a TTL that is
// refreshed on every hit, so the window extends while attempts keep coming.
type AttemptLimiter struct {
	redis  *redis.Client
	prefix string
}

// NewAttemptLimiter creates a Redis-backed attempt limiter.
func NewAttemptLimiter(redisClient *redis.Client, prefix string) *AttemptLimiter {
	if prefix == "" {
		prefix = "throttle"
	}
	return &AttemptLimiter{redis: redisClient, prefix: prefix}
}

// TooManyAttempts reports whether the key has reached max attempts.
func (l *AttemptLimiter) TooManyAttempts(ctx context.Context, key string, max int) (bool, error) {
	count, err := l.redis.Get(ctx, l.prefix+":"+key).Int()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return count >= max, nil
}

// Hit records an attempt and refreshes the window TTL. Returns the new count.
func (l *AttemptLimiter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := l.prefix + ":" + key

	// Pipeline keeps increment-and-expire a single round trip. EXPIRE on
	// every hit is what extends the window; this is not a fixed window.
	pipe := l.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return incr.Val(), nil
}

// AvailableIn returns how long until the key's window expires.
func (l *AttemptLimiter) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.redis.TTL(ctx, l.prefix+":"+key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Clear removes the counter for a key.
func (l *AttemptLimiter) Clear(ctx context.Context, key string) error {
	return l.redis.Del(ctx, l.prefix+":"+key).Err()
}

// ThrottleConfig configures attempt throttling.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultThrottleConfig returns the auth-endpoint limits: 5 attempts per
// 15-minute window.
func DefaultThrottleConfig() *ThrottleConfig {
	return &ThrottleConfig{
		MaxAttempts: 5,
		Window:      15 * time.Minute,
	}
}

// AttemptKey derives the throttle key for a request from its method, server
// host, client IP and path. Requests from the same client to the same
// endpoint share one counter.
func AttemptKey(r *http.Request) string {
	raw := strings.Join([]string{r.Method, r.Host, getClientIP(r), r.URL.Path}, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ThrottleAttempts wraps authentication endpoints with attempt limiting.
// Every request counts as an attempt up front; a response in the 2xx range
// clears the counter, so successful auth forgives prior failures from the
// same key. Redis errors fail open to avoid locking out all logins on an
// infrastructure blip. A nil metrics skips rejection counting.
func ThrottleAttempts(limiter *AttemptLimiter, config *ThrottleConfig, metrics *observability.Metrics) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultThrottleConfig()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := AttemptKey(r)

			blocked, err := limiter.TooManyAttempts(ctx, key, config.MaxAttempts)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if blocked {
				if metrics != nil {
					metrics.RateLimitRejections.Inc()
				}
				retryAfter, _ := limiter.AvailableIn(ctx, key)
				seconds := int(retryAfter.Seconds())
				if seconds <= 0 {
					seconds = int(config.Window.Seconds())
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":       "Too many attempts",
					"retry_after": seconds,
				})
				return
			}

			if _, err := limiter.Hit(ctx, key, config.Window); err != nil {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= 200 && rec.status < 300 {
				limiter.Clear(ctx, key)
			}
		})
	}
}

// statusRecorder captures the response status so the throttle can forgive
// attempts that ended in success.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (if behind proxy)
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		if i := strings.Index(forwarded, ","); i >= 0 {
			forwarded = forwarded[:i]
		}
		return strings.TrimSpace(forwarded)
	}

	// Check X-Real-IP header
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
