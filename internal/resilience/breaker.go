package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is a circuit breaker state.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned without calling the service while the breaker is open.
var ErrCircuitOpen = eris.New("resilience: circuit open")

// BreakerConfig controls when a Breaker opens and how long it stays open.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	// Trips overrides IsTransient for deciding which failures count.
	Trips         func(error) bool
	OnStateChange func(from, to State)
}

// Breaker stops calling a failing service after FailureThreshold consecutive
// counted failures. After ResetTimeout one probe is let through; its outcome
// closes or reopens the circuit.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
	now      func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.Trips == nil {
		cfg.Trips = IsTransient
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// State returns the current state, moving open to half-open once the reset
// timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// Execute calls fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute is Breaker.Execute for calls that produce a value.
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.admit() {
		return zero, ErrCircuitOpen
	}
	v, err := fn(ctx)
	b.record(err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (b *Breaker) refresh() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		b.setState(StateHalfOpen)
	}
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	switch b.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	halfOpen := b.state == StateHalfOpen
	b.probing = false
	counted := err != nil && b.cfg.Trips(err)

	switch {
	case !counted:
		b.failures = 0
		if halfOpen {
			b.setState(StateClosed)
		}
	case halfOpen:
		b.open()
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	}
}

func (b *Breaker) open() {
	b.failures = 0
	b.openedAt = b.now()
	b.setState(StateOpen)
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
