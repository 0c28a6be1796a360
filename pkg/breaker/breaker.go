// Package breaker implements the circuit-breaker + retry fabric of
// spec.md §4.2: per-adapter failure isolation backed by
// github.com/sony/gobreaker, exponential backoff retries via
// github.com/cenkalti/backoff/v4, and a declared fallback path that
// flags every call it serves so callers can propagate "degraded" into
// persisted SearchRun detail.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
)

// Settings configures one named breaker (§4.2 defaults table).
type Settings struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before CLOSED -> OPEN
	RecoveryTimeout  time.Duration // OPEN -> HALF_OPEN
	SuccessThreshold uint32        // HALF_OPEN -> CLOSED
	MaxAttempts      int           // retry attempts inside CLOSED
	BaseDelay        time.Duration
	MaxDelay         time.Duration
}

// Defaults for the three named breakers spec.md §4.2 calls out explicitly.
func DatabaseDefaults() Settings {
	return Settings{Name: "database", FailureThreshold: 3, RecoveryTimeout: 30 * time.Second, SuccessThreshold: 2, MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 60 * time.Second}
}

func LLMDefaults() Settings {
	return Settings{Name: "llm", FailureThreshold: 5, RecoveryTimeout: 60 * time.Second, SuccessThreshold: 2, MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 60 * time.Second}
}

func VectorStoreDefaults() Settings {
	return Settings{Name: "vector-store", FailureThreshold: 5, RecoveryTimeout: 60 * time.Second, SuccessThreshold: 3, MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 60 * time.Second}
}

func EmailDefaults() Settings {
	return Settings{Name: "email", FailureThreshold: 5, RecoveryTimeout: 60 * time.Second, SuccessThreshold: 2, MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 60 * time.Second}
}

// Fallback produces a substitute result when the breaker is OPEN and the
// adapter is declared degradable (§4.2: LLM -> cached/default-structure
// response, vector store -> uniform similarity, email -> log-only).
type Fallback func(ctx context.Context) (any, error)

// Result wraps a call's return value together with the degraded flag the
// fabric must attach (§4.2 "MUST mark each call with a flag").
type Result struct {
	Value     any
	Degraded  bool
	FromRetry int
}

// Breaker wraps one gobreaker state machine with retry-then-fallback
// semantics over a single named dependency.
type Breaker struct {
	name     string
	cb       *gobreaker.CircuitBreaker
	settings Settings
	fallback Fallback
	log      *slog.Logger
}

// New constructs a breaker. fallback may be nil, meaning the adapter is
// NOT declared degradable: an OPEN breaker then surfaces
// SERVICE_UNAVAILABLE directly (§4.2 "(b)").
func New(s Settings, fallback Fallback) *Breaker {
	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.SuccessThreshold,
		Interval:    0, // counts never reset except on state transition
		Timeout:     s.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Info("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{
		name:     s.Name,
		cb:       gobreaker.NewCircuitBreaker(st),
		settings: s,
		fallback: fallback,
		log:      slog.With("component", "breaker", "breaker_name", s.Name),
	}
}

// State returns the current breaker state as a string (CLOSED/OPEN/HALF_OPEN),
// surfaced by the /health/circuit-breakers endpoint.
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return "OPEN"
	case gobreaker.StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// Counts exposes the rolling failure/success counters for §4.11's
// recovery-stats endpoint.
func (b *Breaker) Counts() gobreaker.Counts { return b.cb.Counts() }

// Call executes fn through the breaker with bounded exponential-backoff
// retries on TRANSIENT errors (§4.2 CLOSED-state retry policy). If the
// breaker is OPEN, it serves the fallback (when declared) or returns
// SERVICE_UNAVAILABLE without invoking fn.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) (any, error)) (Result, error) {
	if b.cb.State() == gobreaker.StateOpen {
		return b.serveFallback(ctx)
	}

	attempt := 0
	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = b.settings.BaseDelay
	boff.MaxInterval = b.settings.MaxDelay
	boff.MaxElapsedTime = 0 // bounded by MaxAttempts, not wall-clock

	var lastErr error
	for attempt < b.settings.MaxAttempts {
		attempt++
		val, err := b.cb.Execute(func() (any, error) { return fn(ctx) })
		if err == nil {
			return Result{Value: val, FromRetry: attempt - 1}, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return b.serveFallback(ctx)
		}
		if !apperrors.IsRetryable(err) {
			return Result{}, err
		}
		if attempt >= b.settings.MaxAttempts {
			break
		}

		wait := boff.NextBackOff()
		b.log.Debug("retrying after transient error", "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return Result{}, apperrors.Wrap(apperrors.KindTransient, "context cancelled during retry", ctx.Err())
		case <-time.After(wait):
		}
	}

	// Retries exhausted: TRANSIENT surfaces as 503 only now (§7).
	if apperrors.IsRetryable(lastErr) {
		return Result{}, apperrors.Wrap(apperrors.KindServiceUnavailable, "retries exhausted", lastErr)
	}
	return Result{}, lastErr
}

func (b *Breaker) serveFallback(ctx context.Context) (Result, error) {
	if b.fallback == nil {
		return Result{}, apperrors.New(apperrors.KindServiceUnavailable, b.name+" unavailable: breaker open, no fallback declared")
	}
	val, err := b.fallback(ctx)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindServiceUnavailable, b.name+" fallback failed", err)
	}
	b.log.Info("served fallback response", "breaker", b.name)
	return Result{Value: val, Degraded: true}, nil
}

// RetryAfter implements the 429 handling rule of §4.2: honor a
// server-supplied Retry-After when it is <= 5 minutes; longer values are
// treated as a daily quota and should trigger immediate fallback instead
// of a bounded retry.
func RetryAfter(d time.Duration) (retry bool, wait time.Duration) {
	const maxHonored = 5 * time.Minute
	if d <= maxHonored {
		return true, d
	}
	return false, 0
}
