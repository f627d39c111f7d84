package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = NewTransientError(errors.New("busy"), 503)

func failing(context.Context) error { return errBusy }
func passing(context.Context) error { return nil }

func newTestBreaker(threshold int) (*Breaker, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: threshold, ResetTimeout: time.Minute})
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(2)
	ctx := context.Background()

	assert.ErrorIs(t, b.Execute(ctx, failing), errBusy)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Execute(ctx, failing), errBusy)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = b.Execute(ctx, failing)
	require.NoError(t, b.Execute(ctx, passing))
	_ = b.Execute(ctx, failing)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_PermanentErrorsDoNotCount(t *testing.T) {
	b, _ := newTestBreaker(1)
	err := b.Execute(context.Background(), func(context.Context) error { return errors.New("bad input") })
	require.Error(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	var transitions []string
	b, now := newTestBreaker(1)
	b.cfg.OnStateChange = func(from, to State) { transitions = append(transitions, from.String()+">"+to.String()) }
	ctx := context.Background()

	_ = b.Execute(ctx, failing)
	assert.Equal(t, StateOpen, b.State())

	*now = now.Add(time.Minute)
	assert.Equal(t, StateHalfOpen, b.State())

	_ = b.Execute(ctx, failing)
	assert.Equal(t, StateOpen, b.State())

	*now = now.Add(time.Minute)
	require.NoError(t, b.Execute(ctx, passing))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{
		"closed>open", "open>half-open", "half-open>open", "open>half-open", "half-open>closed",
	}, transitions)
}

func TestExecute_Value(t *testing.T) {
	b, _ := newTestBreaker(3)
	v, err := Execute(context.Background(), b, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestBreaker_Concurrent(t *testing.T) {
	b, _ := newTestBreaker(1000)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = b.Execute(context.Background(), failing)
			} else {
				_ = b.Execute(context.Background(), passing)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, StateClosed, b.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unknown", State(9).String())
}
