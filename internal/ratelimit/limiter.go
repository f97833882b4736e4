package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openbank/authcore/internal/store"
	"github.com/openbank/authcore/params"
)

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// BlockPolicy computes how long a key stays blocked after its nth
// consecutive window violation.
type BlockPolicy func(violations int64) time.Duration

// EscalatingBlock doubles the base block per prior violation, capped.
func EscalatingBlock(base, max time.Duration) BlockPolicy {
	return func(violations int64) time.Duration {
		d := base
		for i := int64(1); i < violations && d < max; i++ {
			d *= 2
		}
		if d > max {
			return max
		}
		return d
	}
}

// Limiter enforces fixed-window request ceilings with escalating block
// durations for repeat offenders. Windows live under one hash key per
// (key, window start) pair so the first increment creates the window and
// counts the request in a single atomic step.
type Limiter struct {
	windows        store.Storage
	blocks         store.Storage
	policy         BlockPolicy
	window         time.Duration
	defaultCeiling int
	now            func() time.Time
}

func NewLimiter(storage store.Storage, window time.Duration, defaultCeiling int) *Limiter {
	if window <= 0 {
		window = params.RateLimitWindow
	}
	if defaultCeiling <= 0 {
		defaultCeiling = params.DefaultRateLimitPerMin
	}
	return &Limiter{
		windows:        store.StorageWithPrefix(storage, params.RateLimitKeyPrefix),
		blocks:         store.StorageWithPrefix(storage, params.BlockKeyPrefix),
		policy:         EscalatingBlock(params.RateLimitBaseBlock, params.RateLimitMaxBlock),
		window:         window,
		defaultCeiling: defaultCeiling,
		now:            time.Now,
	}
}

// WithPolicy replaces the default escalating block policy.
func (l *Limiter) WithPolicy(policy BlockPolicy) *Limiter {
	l.policy = policy
	return l
}

// Check consumes one slot for key against the given per-window ceiling.
// A blocked key is rejected without consuming a slot. Crossing the ceiling
// blocks the key and escalates the block for each repeat violation.
func (l *Limiter) Check(ctx context.Context, key string, ceiling int) (*Decision, error) {
	if ceiling <= 0 {
		ceiling = l.defaultCeiling
	}
	now := l.now()

	var blockedUntil int64
	err := l.blocks.GetAttr(ctx, key, "until", &blockedUntil)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err == nil && blockedUntil > now.Unix() {
		return &Decision{RetryAfter: time.Duration(blockedUntil-now.Unix()) * time.Second}, nil
	}

	windowStart := now.Truncate(l.window)
	windowKey := fmt.Sprintf("%s:%d", key, windowStart.Unix())
	count, err := l.windows.IncrAttr(ctx, windowKey, "count", 1)
	if err != nil {
		return nil, err
	}
	if count == 1 {
		windowEnd := windowStart.Add(l.window)
		if err := l.windows.Expire(ctx, windowKey, windowEnd); err != nil {
			return nil, err
		}
	}
	if count <= int64(ceiling) {
		return &Decision{Allowed: true, Remaining: ceiling - int(count)}, nil
	}

	retryAfter, err := l.block(ctx, key, now)
	if err != nil {
		return nil, err
	}
	return &Decision{RetryAfter: retryAfter}, nil
}

// block records the violation and (re)arms the block for the key. Only the
// first rejection of a window escalates; subsequent rejections inside an
// armed block never reach here.
func (l *Limiter) block(ctx context.Context, key string, now time.Time) (time.Duration, error) {
	violations, err := l.blocks.IncrAttr(ctx, key, "violations", 1)
	if err != nil {
		return 0, err
	}
	duration := l.policy(violations)
	until := now.Add(duration)
	if err := l.blocks.SetAttr(ctx, key, "until", until.Unix()); err != nil {
		return 0, err
	}
	// The violation counter outlives the block so repeat offenders escalate;
	// it resets together with the block record on key expiry.
	if err := l.blocks.Expire(ctx, key, now.Add(2*params.RateLimitMaxBlock)); err != nil {
		return 0, err
	}
	return duration, nil
}

// Reset clears the window and block state for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.blocks.Delete(ctx, key); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	windowStart := l.now().Truncate(l.window)
	windowKey := fmt.Sprintf("%s:%d", key, windowStart.Unix())
	if err := l.windows.Delete(ctx, windowKey); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
