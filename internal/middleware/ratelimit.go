package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const msgTooManyRequests = "Demasiadas solicitudes. Inténtalo más tarde."

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

// windowCounter is a fixed window counter stored in Redis
type windowCounter struct {
	client *redis.Client
	window time.Duration
}

// hit counts one request under key and returns the count so far and the
// time left in the window. The counter and its TTL are read in one round
// trip; a counter without TTL gets one.
func (c windowCounter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	left := ttl.Val()
	if left < 0 {
		if err := c.client.Expire(ctx, key, c.window).Err(); err != nil {
			return 0, 0, err
		}
		left = c.window
	}
	return incr.Val(), left, nil
}

// rateLimitClient identifies the caller: signed-in sessions by subject so
// that one user is counted once across addresses, anonymous callers by address
func rateLimitClient(r *http.Request) string {
	if session, ok := GetSession(r.Context()); ok && session.Subject != "" {
		return "sub:" + session.Subject
	}
	return r.RemoteAddr
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, reset time.Duration) {
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))
}

// RateLimitMiddleware limits stock writes per client. When Redis cannot be
// reached requests are let through.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	counter := windowCounter{client: redisClient, window: config.Window}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := rateLimitClient(r)
			key := fmt.Sprintf("%s:%s", config.KeyPrefix, clientID)

			count, reset, err := counter.hit(r.Context(), key)
			if err != nil {
				logger.Error("Failed to update rate limit counter",
					zap.Error(err),
					zap.String("key", key),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, config.RequestsPerWindow, int64(config.RequestsPerWindow)-count, reset)

			if count > int64(config.RequestsPerWindow) {
				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int64("count", count),
					zap.Int("limit", config.RequestsPerWindow),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())))
				RespondWithError(w, http.StatusTooManyRequests, msgTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
