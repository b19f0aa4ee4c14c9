package dispatcher

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/metrics"
)

const breakerKey = "cb:renderer"

// CircuitBreaker keeps the renderer breaker state in Redis, shared by every
// worker process. It opens after threshold consecutive render failures.
type CircuitBreaker struct {
	redis       *redis.Client
	threshold   int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(redisClient *redis.Client, threshold int, baseBackoff, maxBackoff time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &CircuitBreaker{
		redis:       redisClient,
		threshold:   threshold,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
}

// cooldown doubles per opening: base, 2*base, 4*base, capped at max.
func cooldown(opens int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < opens; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Failure records a render failure and opens the breaker once the threshold
// of consecutive failures is reached.
func (cb *CircuitBreaker) Failure(ctx context.Context) {
	failures, err := cb.redis.HIncrBy(ctx, breakerKey, "failures", 1).Result()
	if err != nil || int(failures) < cb.threshold {
		return
	}

	opens, _ := cb.redis.HIncrBy(ctx, breakerKey, "opens", 1).Result()
	backoff := cooldown(int(opens), cb.baseBackoff, cb.maxBackoff)
	retryAt := time.Now().Add(backoff)

	cb.redis.HSet(ctx, breakerKey, map[string]any{
		"state":     "open",
		"retry_at":  retryAt.Unix(),
		"opened_at": time.Now().Unix(),
	})
	cb.redis.Expire(ctx, breakerKey, cb.maxBackoff+10*time.Minute)
	metrics.BreakerOpened()

	log.Warn().
		Dur("cooldown", backoff).
		Int64("failures", failures).
		Time("retry_at", retryAt).
		Msg("renderer circuit breaker OPENED")
}

// IsOpen checks if the breaker is open. After the cooldown it moves to
// half-open and lets a probe job through.
func (cb *CircuitBreaker) IsOpen(ctx context.Context) bool {
	state, err := cb.redis.HGet(ctx, breakerKey, "state").Result()
	if err != nil || state != "open" {
		return false
	}

	retryAtStr, _ := cb.redis.HGet(ctx, breakerKey, "retry_at").Result()
	retryAt, _ := strconv.ParseInt(retryAtStr, 10, 64)
	if time.Now().Unix() >= retryAt {
		cb.redis.HSet(ctx, breakerKey, "state", "half_open", "failures", cb.threshold-1)
		log.Info().Msg("renderer circuit breaker moved to HALF-OPEN")
		return false
	}
	return true
}

// Success closes (resets) the breaker.
func (cb *CircuitBreaker) Success(ctx context.Context) {
	state, _ := cb.redis.HGet(ctx, breakerKey, "state").Result()
	cb.redis.Del(ctx, breakerKey)
	if state != "" && state != "closed" {
		metrics.BreakerClosed()
		log.Info().Msg("renderer circuit breaker CLOSED (reset)")
	}
}
