package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

// Outcome tells the executor what a failed attempt means.
type Outcome struct {
	Retry       bool
	CountFailed bool
}

type Classifier func(err error) Outcome

// Executor runs remote calls under a per-operation circuit breaker and an
// optional retry loop. A nil *Executor runs calls directly.
type Executor struct {
	policy Policy
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(policy Policy, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		policy:   policy.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Call runs fn through e and returns its value.
func Call[T any](ctx context.Context, e *Executor, operation string, classify Classifier, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := e.Run(ctx, operation, classify, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (e *Executor) Run(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	if e == nil {
		return fn(ctx)
	}
	if operation == "" {
		operation = "unknown"
	}
	if classify == nil {
		classify = countEverything
	}
	if !e.policy.Breaker.Enabled {
		return e.attempt(ctx, operation, classify, fn)
	}

	_, err := e.breaker(operation, classify).Execute(func() (any, error) {
		return nil, e.attempt(ctx, operation, classify, fn)
	})
	return err
}

func (e *Executor) attempt(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	retry := e.policy.Retry
	wait := retry.InitialBackoff

	var err error
	for n := 1; ; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil || n >= retry.Attempts || !classify(err).Retry {
			return err
		}

		e.logger.Warn("remote_call_retry",
			"operation", operation,
			"attempt", n,
			"max_attempts", retry.Attempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		wait = min(time.Duration(float64(wait)*retry.Multiplier), retry.MaxBackoff)
	}
}

func (e *Executor) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}

	bp := e.policy.Breaker
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: bp.HalfOpenCalls,
		Timeout:     bp.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bp.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bp.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).CountFailed
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[operation] = cb
	return cb
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// MarkTemporary tags errors the classifier would retry, and open-circuit
// rejections, with domain.ErrTemporary.
func MarkTemporary(operation string, err error, classify Classifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if IsCircuitOpen(err) || (classify != nil && classify(err).Retry) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func countEverything(error) Outcome {
	return Outcome{CountFailed: true}
}
