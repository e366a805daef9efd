package http

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/apikeys/internal/errors"
	"github.com/allisson/apikeys/internal/httputil"
	"github.com/allisson/apikeys/internal/metrics"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTimeout     = time.Hour
)

// limiterStore holds token bucket limiters per key and evicts idle ones.
type limiterStore[K comparable] struct {
	limiters sync.Map // map[K]*limiterEntry
	rps      float64
	burst    int
}

type limiterEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

func newLimiterStore[K comparable](rps float64, burst int) *limiterStore[K] {
	return &limiterStore[K]{rps: rps, burst: burst}
}

// allow consumes a token for key. When none is left it returns the wait until the next one.
func (s *limiterStore[K]) allow(key K) (bool, time.Duration) {
	now := time.Now()
	val, _ := s.limiters.LoadOrStore(key, &limiterEntry{
		limiter:    rate.NewLimiter(rate.Limit(s.rps), s.burst),
		lastAccess: now,
	})
	entry := val.(*limiterEntry)

	entry.mu.Lock()
	entry.lastAccess = now
	entry.mu.Unlock()

	if entry.limiter.AllowN(now, 1) {
		return true, 0
	}

	reservation := entry.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return false, delay
}

// cleanupStale evicts limiters idle for longer than idle until ctx is done.
func (s *limiterStore[K]) cleanupStale(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictIdle(time.Now().Add(-idle))
		}
	}
}

func (s *limiterStore[K]) evictIdle(threshold time.Time) {
	s.limiters.Range(func(key, value any) bool {
		entry := value.(*limiterEntry)
		entry.mu.Lock()
		stale := entry.lastAccess.Before(threshold)
		entry.mu.Unlock()

		if stale {
			s.limiters.Delete(key)
		}
		return true
	})
}

func tooManyRequests(c *gin.Context, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.ErrorResponse{
		Error:   "rate_limit_exceeded",
		Message: "Too many requests. Please retry after the specified delay.",
	})
}

// RateLimitMiddleware enforces a token bucket per API key.
//
// MUST be used after AuthenticationMiddleware. The cleanup goroutine for idle limiters
// stops when ctx is cancelled.
func RateLimitMiddleware(
	ctx context.Context,
	rps float64,
	burst int,
	authMetrics metrics.AuthMetrics,
	logger *slog.Logger,
) gin.HandlerFunc {
	store := newLimiterStore[uuid.UUID](rps, burst)
	go store.cleanupStale(ctx, limiterCleanupInterval, limiterIdleTimeout)

	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c.Request.Context())
		if !ok {
			logger.Error("rate limit middleware: no authenticated principal in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		allowed, retryAfter := store.allow(principal.KeyID)
		if !allowed {
			logger.Info("rate limit exceeded",
				slog.String("key_id", principal.KeyID.String()),
				slog.Duration("retry_after", retryAfter),
			)
			authMetrics.RecordAuthentication(c.Request.Context(), metrics.AuthOutcomeRateLimited)
			tooManyRequests(c, retryAfter)
			return
		}

		c.Next()
	}
}

// IPRateLimitMiddleware enforces a token bucket per client IP. Placed in front of the
// authentication gate it slows down credential guessing, since rejected attempts still
// reach the store and often the hasher.
func IPRateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := newLimiterStore[string](rps, burst)
	go store.cleanupStale(ctx, limiterCleanupInterval, limiterIdleTimeout)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		allowed, retryAfter := store.allow(clientIP)
		if !allowed {
			logger.Info("ip rate limit exceeded",
				slog.String("client_ip", clientIP),
				slog.Duration("retry_after", retryAfter),
			)
			tooManyRequests(c, retryAfter)
			return
		}

		c.Next()
	}
}
