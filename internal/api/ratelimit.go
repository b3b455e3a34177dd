package api

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const visitorTTL = 5 * time.Minute

// RateLimiter throttles each authenticated actor independently.
type RateLimiter struct {
	visitors sync.Map
	limit    rate.Limit
	burst    int
	logger   *zap.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// NewRateLimiter allows perMinute requests per actor. A zero perMinute
// disables limiting.
func NewRateLimiter(perMinute, burst int, logger *zap.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limit:  rate.Limit(float64(perMinute) / 60.0),
		burst:  burst,
		logger: logger,
	}
}

func (l *RateLimiter) allow(key string) bool {
	now := time.Now()
	v, _ := l.visitors.LoadOrStore(key, &visitor{limiter: rate.NewLimiter(l.limit, l.burst)})
	vi := v.(*visitor)
	vi.mu.Lock()
	vi.lastSeen = now
	vi.mu.Unlock()
	return vi.limiter.AllowN(now, 1)
}

// Run evicts idle visitors until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now.Add(-visitorTTL))
		}
	}
}

func (l *RateLimiter) evict(cutoff time.Time) {
	l.visitors.Range(func(key, value any) bool {
		vi := value.(*visitor)
		vi.mu.Lock()
		idle := vi.lastSeen.Before(cutoff)
		vi.mu.Unlock()
		if idle {
			l.visitors.Delete(key)
		}
		return true
	})
}

func (l *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if l.limit <= 0 {
			return c.Next()
		}
		key := actorID(c)
		if key == "" {
			key = c.IP()
		}
		if !l.allow(key) {
			l.logger.Warn("rate limit exceeded", zap.String("actor", key), zap.String("path", c.Path()))
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}
