package app

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConfirmRateLimitScope is the limiter scope for PIN-bearing confirm calls.
const ConfirmRateLimitScope = "payments_confirm"

// RateLimitRule is a fixed-window budget: at most Limit calls per user per Window.
type RateLimitRule struct {
	Scope  string
	Limit  int
	Window time.Duration
}

// ConfirmRateLimitRule is the confirm budget. A limit of zero disables it.
func ConfirmRateLimitRule(limit int, window time.Duration) RateLimitRule {
	if window <= 0 {
		window = time.Minute
	}
	return RateLimitRule{Scope: ConfirmRateLimitScope, Limit: limit, Window: window}
}

func (r RateLimitRule) enabled() bool {
	return r.Limit > 0 && r.Window >= time.Second && strings.TrimSpace(r.Scope) != ""
}

// bucket returns the window index now falls in and the instant that window ends.
func (r RateLimitRule) bucket(now time.Time) (int64, time.Time) {
	windowMs := r.Window.Milliseconds()
	index := now.UnixMilli() / windowMs
	return index, time.UnixMilli((index + 1) * windowMs)
}

// RateLimitDecision reports one consumed call.
type RateLimitDecision struct {
	Count      int
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter consumes one call of userID against rule.
type RateLimiter interface {
	Allow(ctx context.Context, rule RateLimitRule, userID int64) (RateLimitDecision, error)
}

// RedisRateLimiter keeps one counter per user, scope and window so all replicas
// share the budget.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "dummybank:rate_limit"
	}
	return &RedisRateLimiter{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisRateLimiter) key(scope string, userID int64, bucket int64) string {
	return strings.Join([]string{r.prefix, strings.TrimSpace(scope), "user", strconv.FormatInt(userID, 10), strconv.FormatInt(bucket, 10)}, ":")
}

// Allow increments the current window's counter. The key expires shortly after
// its window closes.
func (r *RedisRateLimiter) Allow(ctx context.Context, rule RateLimitRule, userID int64) (RateLimitDecision, error) {
	if r == nil || r.client == nil || !rule.enabled() {
		return RateLimitDecision{Allowed: true}, nil
	}

	now := r.now()
	bucket, resetAt := rule.bucket(now)
	key := r.key(rule.Scope, userID, bucket)

	var incr *redis.IntCmd
	if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, resetAt.Sub(now)+time.Second)
		return nil
	}); err != nil {
		return RateLimitDecision{}, fmt.Errorf("rate limit %s: %w", rule.Scope, err)
	}

	count := int(incr.Val())
	return RateLimitDecision{
		Count:      count,
		Allowed:    count <= rule.Limit,
		RetryAfter: resetAt.Sub(now),
	}, nil
}

// RateLimitError carries the wait before the caller may retry.
type RateLimitError struct {
	RetryAfterSeconds int
}

func newRateLimitError(retryAfter time.Duration) *RateLimitError {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return &RateLimitError{RetryAfterSeconds: seconds}
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s; retry after %ds", ErrRateLimited, e.RetryAfterSeconds)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// SetRateLimiter enables per-user limiting of confirm calls under rule.
func (s *Service) SetRateLimiter(limiter RateLimiter, rule RateLimitRule) {
	s.limiter = limiter
	s.confirmRule = rule
}

// consumeConfirmBudget fails open when the limiter itself errors.
func (s *Service) consumeConfirmBudget(ctx context.Context, userID int64) error {
	if s.limiter == nil || !s.confirmRule.enabled() {
		return nil
	}
	decision, err := s.limiter.Allow(ctx, s.confirmRule, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "rate limiter unavailable; allowing request", "scope", s.confirmRule.Scope, "err", err)
		return nil
	}
	if !decision.Allowed {
		return newRateLimitError(decision.RetryAfter)
	}
	return nil
}
