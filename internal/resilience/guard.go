package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Settings are the user-facing knobs shared by every guarded service.
type Settings struct {
	MaxAttempts      int
	InitialBackoffMs int
	FailureThreshold int
	ResetTimeoutSecs int
}

// Guard wraps one external service with a breaker around a retry loop.
// A call that exhausts its retries counts once against the breaker.
type Guard struct {
	name    string
	retry   RetryPolicy
	breaker *Breaker
}

// NewGuard builds a guard for the named service.
func NewGuard(name string, s Settings) *Guard {
	log := zap.L().With(zap.String("service", name))

	retry := DefaultRetryPolicy()
	if s.MaxAttempts > 0 {
		retry.MaxAttempts = s.MaxAttempts
	}
	if s.InitialBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(s.InitialBackoffMs) * time.Millisecond
	}
	retry.OnRetry = func(attempt int, err error) {
		log.Warn("resilience: retrying call", zap.Int("attempt", attempt), zap.Error(err))
	}

	return &Guard{
		name:  name,
		retry: retry,
		breaker: NewBreaker(BreakerConfig{
			FailureThreshold: s.FailureThreshold,
			ResetTimeout:     time.Duration(s.ResetTimeoutSecs) * time.Second,
			OnStateChange: func(from, to State) {
				log.Info("resilience: circuit state changed",
					zap.Stringer("from", from), zap.Stringer("to", to))
			},
		}),
	}
}

// Name returns the guarded service name.
func (g *Guard) Name() string { return g.name }

// State returns the breaker state.
func (g *Guard) State() State { return g.breaker.State() }

// Call runs fn through g.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	return Execute(ctx, g.breaker, func(ctx context.Context) (T, error) {
		return DoVal(ctx, g.retry, fn)
	})
}
