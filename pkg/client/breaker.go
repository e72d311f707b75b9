package client

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the state of the connectivity breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the connectivity breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive network failures before
	// the client stops trying the API.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
	// OnStateChange is called after each transition.
	OnStateChange func(from, to BreakerState)
}

// DefaultBreakerConfig returns the client defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         15 * time.Second,
	}
}

// errBreakerOpen short-circuits calls while the API is considered down.
var errBreakerOpen = errors.New("api marked unavailable")

// breaker stops the client from waiting on a dead API for every call. While
// open, calls go straight to the mirror; after the cooldown one probe is let
// through.
type breaker struct {
	mu       sync.Mutex
	config   BreakerConfig
	state    BreakerState
	failures int
	openedAt time.Time
	now      func() time.Time
}

func newBreaker(cfg BreakerConfig) *breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &breaker{config: cfg, now: time.Now}
}

func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen {
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return errBreakerOpen
		}
		b.transition(BreakerHalfOpen)
	}
	return nil
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state != BreakerClosed {
		b.transition(BreakerClosed)
	}
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

func (b *breaker) current() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if to == BreakerOpen {
		b.openedAt = b.now()
	}
	if to == BreakerClosed {
		b.failures = 0
	}
	if b.config.OnStateChange != nil && from != to {
		go b.config.OnStateChange(from, to)
	}
}
