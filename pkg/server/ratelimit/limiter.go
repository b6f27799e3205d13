// Package ratelimit provides per-source admission control for upstream calls.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"tc.com/token-radar/pkg/logging"
)

const window = time.Minute

// Clock supplies time to the limiter. Injected so tests can run on a
// synthetic timeline without real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the production clock.
type RealClock struct{}

// Now returns the wall-clock time.
func (RealClock) Now() time.Time { return time.Now() }

// Sleep blocks for d or until the context is canceled.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports the limiter's current window for monitoring.
type Stats struct {
	CallCount int           `json:"call_count"`
	Quota     int           `json:"quota"`
	ResetsIn  time.Duration `json:"resets_in"`
}

// Limiter bounds calls to a per-minute quota and additionally spaces
// consecutive calls at least window/quota apart, so a caller paces smoothly
// instead of bursting to the cap. One instance per upstream source; instances
// are never shared.
//
// Limiter is not safe for concurrent use. Each source owns its limiter and
// calls Acquire from a single fetch sequence, which is the only access path.
type Limiter struct {
	quota       int
	minInterval time.Duration
	clock       Clock
	logger      *logging.Logger

	callCount int
	resetTime time.Time
	lastCall  time.Time
}

// New creates a limiter allowing callsPerMinute calls in any fixed one-minute
// window starting at the first call.
func New(callsPerMinute int, clock Clock, logger *logging.Logger) (*Limiter, error) {
	if callsPerMinute <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuota, callsPerMinute)
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Limiter{
		quota:       callsPerMinute,
		minInterval: window / time.Duration(callsPerMinute),
		clock:       clock,
		logger:      logger,
		resetTime:   clock.Now(),
	}, nil
}

// Acquire returns once it is safe to issue the next upstream call. It never
// admits more than the quota within the current window and never admits two
// calls closer together than the minimum inter-call interval. Returns early
// only on context cancellation.
func (l *Limiter) Acquire(ctx context.Context) error {
	now := l.clock.Now()

	// Window elapsed, start a fresh one.
	if now.Sub(l.resetTime) >= window {
		l.callCount = 0
		l.resetTime = now
	}

	// Quota exhausted: suspend until the window would reset.
	if l.callCount >= l.quota {
		wait := window - now.Sub(l.resetTime)
		l.logger.Warn("Rate limit quota reached, waiting for window reset",
			"quota", l.quota,
			"wait", wait)
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
		l.callCount = 0
		l.resetTime = l.clock.Now()
		now = l.resetTime
	}

	// Independent pacing: keep minInterval between admitted calls.
	if !l.lastCall.IsZero() {
		if elapsed := now.Sub(l.lastCall); elapsed < l.minInterval {
			if err := l.clock.Sleep(ctx, l.minInterval-elapsed); err != nil {
				return err
			}
		}
	}

	l.lastCall = l.clock.Now()
	l.callCount++
	return nil
}

// MinInterval returns the enforced spacing between calls.
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}

// Stats returns the current window state.
func (l *Limiter) Stats() Stats {
	resetsIn := window - l.clock.Now().Sub(l.resetTime)
	if resetsIn < 0 {
		resetsIn = 0
	}
	return Stats{
		CallCount: l.callCount,
		Quota:     l.quota,
		ResetsIn:  resetsIn,
	}
}
