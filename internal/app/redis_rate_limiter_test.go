package app

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func TestNewRedisRateLimiterNormalizesPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "dummybank:rate_limit"},
		{prefix: "  bank:rl:  ", want: "bank:rl"},
		{prefix: "custom", want: "custom"},
	}
	for _, tt := range tests {
		if got := NewRedisRateLimiter(nil, tt.prefix).prefix; got != tt.want {
			t.Fatalf("prefix %q: expected %q, got %q", tt.prefix, tt.want, got)
		}
	}
}

func TestRateLimiterKeyIsPerUserAndWindow(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, "bank:rl")
	rule := ConfirmRateLimitRule(5, time.Minute)

	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	bucket, resetAt := rule.bucket(now)
	if want := time.Date(2026, 3, 14, 9, 27, 0, 0, time.UTC); !resetAt.Equal(want) {
		t.Fatalf("expected window to end at %s, got %s", want, resetAt)
	}
	if next, _ := rule.bucket(resetAt); next != bucket+1 {
		t.Fatalf("expected the next window at the reset instant")
	}

	got := limiter.key(rule.Scope, 7, bucket)
	want := "bank:rl:payments_confirm:user:7:" + strconv.FormatInt(bucket, 10)
	if got != want {
		t.Fatalf("expected key %q, got %q", want, got)
	}
	if limiter.key(rule.Scope, 8, bucket) == got {
		t.Fatalf("users must not share a counter")
	}
}

func TestRedisRateLimiterWithoutClientAllows(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, "")

	decision, err := limiter.Allow(context.Background(), ConfirmRateLimitRule(5, time.Minute), 7)
	if err != nil || !decision.Allowed {
		t.Fatalf("expected an allow, got %+v err=%v", decision, err)
	}
}

func TestConfirmRateLimitRuleDisabledAtZero(t *testing.T) {
	if ConfirmRateLimitRule(0, time.Minute).enabled() {
		t.Fatalf("a zero limit must disable the rule")
	}
	if rule := ConfirmRateLimitRule(3, 0); rule.Window != time.Minute || !rule.enabled() {
		t.Fatalf("expected a one minute default window, got %+v", rule)
	}
}

func TestRateLimitErrorRoundsUp(t *testing.T) {
	err := newRateLimitError(1200 * time.Millisecond)
	if err.RetryAfterSeconds != 2 {
		t.Fatalf("expected 2s, got %d", err.RetryAfterSeconds)
	}
	if newRateLimitError(0).RetryAfterSeconds != 1 {
		t.Fatalf("expected at least 1s")
	}
	if err.Unwrap() != ErrRateLimited {
		t.Fatalf("expected ErrRateLimited")
	}
}
