// Package breaker wraps upstream calls in a circuit breaker so a failing
// service is skipped quickly instead of holding every request until its
// client timeout. Calls are never retried.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/studypath/studypath/internal/metrics"
)

// Settings tune when the breaker opens.
type Settings struct {
	MinRequests  uint32        // requests in Interval before the ratio is evaluated
	FailureRatio float64       // open at or above this failure ratio
	Interval     time.Duration // closed-state counting window
	Timeout      time.Duration // open duration before probing
	HalfOpenMax  uint32        // probe requests allowed while half-open

	// Expected reports errors that say nothing about upstream health, such
	// as rejected credentials. They do not count as failures.
	Expected func(error) bool
}

func DefaultSettings() Settings {
	return Settings{
		MinRequests:  5,
		FailureRatio: 0.6,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		HalfOpenMax:  1,
	}
}

type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func New(name string, s Settings) *Breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenMax,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("breaker: state change", "upstream", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return s.Expected != nil && s.Expected(err)
		},
	})
	return &Breaker{name: name, cb: cb}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Execute runs fn through b. When the circuit is open fn is not called and
// the returned error satisfies IsRejected. A nil Breaker calls fn directly.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if b == nil {
		return fn()
	}

	var zero T
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		outcome := "failure"
		if IsRejected(err) {
			outcome = "rejected"
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(b.name, outcome).Inc()
		if res == nil {
			return zero, err
		}
		typed, _ := res.(T)
		return typed, err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(b.name, "success").Inc()
	typed, ok := res.(T)
	if !ok && res != nil {
		return zero, fmt.Errorf("breaker %s: unexpected result type %T", b.name, res)
	}
	return typed, nil
}

// IsRejected reports whether err came from an open or saturated breaker.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
