package ml

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("ml circuit breaker open")

// Service is what the HTTP handlers depend on.
type Service interface {
	PredictCareer(ctx context.Context, in CareerInput) ([]Prediction, error)
	MatchMentors(ctx context.Context, req MatchRequest) ([]Match, error)
}

type BreakerConfig struct {
	Timeout          time.Duration // hard timeout per call
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half_open"
)

// Breaker fails fast while the ML service keeps failing. It never retries.
type Breaker struct {
	inner Service
	cfg   BreakerConfig
	mu    sync.Mutex
	now   func() time.Time

	state string

	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewBreaker(inner Service, cfg BreakerConfig) *Breaker {
	//defaults
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &Breaker{
		inner: inner,
		cfg:   cfg,
		now:   time.Now,
		state: stateClosed,
	}
}

func (b *Breaker) PredictCareer(ctx context.Context, in CareerInput) ([]Prediction, error) {
	var out []Prediction

	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.inner.PredictCareer(ctx, in)
		return err
	})

	return out, err
}

func (b *Breaker) MatchMentors(ctx context.Context, req MatchRequest) ([]Match, error) {
	var out []Match

	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.inner.MatchMentors(ctx, req)
		return err
	})

	return out, err
}

func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) call(ctx context.Context, fn func(ctx context.Context) error) error {
	// fail-fast gate
	if !b.allowRequest() {
		return ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	err := fn(callCtx)

	b.afterRequest(ctx, err)

	return err
}

func (b *Breaker) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		// cooldown has passed? move to half open
		if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
			b.state = stateHalfOpen
			b.halfOpenInFlight = 1
			return true
		}
		return false
	case stateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return false
		}
		b.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (b *Breaker) afterRequest(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}

	// caller went away; says nothing about upstream health
	if err != nil && ctx.Err() != nil {
		return
	}

	if err == nil {
		b.consecutiveFailures = 0
		b.state = stateClosed
		return
	}

	b.consecutiveFailures++

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}

	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}
