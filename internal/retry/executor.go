// Package retry wraps failsafe-go's retry policy and circuit breaker the
// way pkg/clients/failsafe.go does for HTTP calls, generalized to any
// external-stage call (upload, feature extraction, LLM) the offline
// pipeline makes through a contract-only interface.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"shootcoach/internal/logging"
)

// BreakerState mirrors failsafe-go's circuit states under our own name so
// callers never need to import failsafe-go directly.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func convertState(state circuitbreaker.State) BreakerState {
	switch state {
	case circuitbreaker.ClosedState:
		return StateClosed
	case circuitbreaker.HalfOpenState:
		return StateHalfOpen
	case circuitbreaker.OpenState:
		return StateOpen
	default:
		return StateClosed
	}
}

// Config configures a retry executor for a single named external call site.
type Config struct {
	Name string

	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// EnableBreaker adds a circuit breaker inside the retry policy (every
	// attempt passes through it) that opens after FailureRatio of
	// MinRequests calls fail.
	EnableBreaker bool
	FailureRatio  float64
	MinRequests   uint32
	BreakerDelay  time.Duration

	Logger logging.Logger
}

// DefaultConfig mirrors the teacher's DefaultHTTPExecutorConfig /
// DefaultCircuitBreakerConfig numbers: 3 retries, 100ms base / 5s cap,
// 50% failure ratio over at least 10 calls, 15s open duration.
func DefaultConfig(name string) Config {
	return Config{
		Name:          name,
		MaxRetries:    3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		EnableBreaker: true,
		FailureRatio:  0.5,
		MinRequests:   10,
		BreakerDelay:  15 * time.Second,
	}
}

func normalize(cfg Config) Config {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.BreakerDelay <= 0 {
		cfg.BreakerDelay = 15 * time.Second
	}
	return cfg
}

// ShouldRetry decides whether a call's error is worth retrying. Stage
// functions return a plain error (no HTTP status to inspect); any non-nil
// error from a contract call is treated as transient unless it is a
// context cancellation/deadline, which is never retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Executor runs calls to a single external dependency with retry and an
// optional circuit breaker, logging state transitions.
type Executor struct {
	name   string
	policy failsafe.Executor[any]
	logger logging.Logger
}

// New builds an Executor for the given config.
func New(cfg Config) *Executor {
	cfg = normalize(cfg)

	retryBuilder := retrypolicy.NewBuilder[any]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ any, err error) bool {
			return ShouldRetry(err)
		})
	policies := []failsafe.Policy[any]{retryBuilder.Build()}

	if cfg.EnableBreaker {
		failureThreshold := uint(float64(cfg.MinRequests) * cfg.FailureRatio)
		if failureThreshold < 1 {
			failureThreshold = 1
		}
		cbBuilder := circuitbreaker.NewBuilder[any]().
			WithFailureThresholdRatio(failureThreshold, uint(cfg.MinRequests)).
			WithDelay(cfg.BreakerDelay).
			WithSuccessThreshold(1)
		if cfg.Logger != nil {
			logger := cfg.Logger
			name := cfg.Name
			cbBuilder = cbBuilder.OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
				logger.WithFields(logging.Fields{
					"breaker":    name,
					"from_state": convertState(event.OldState).String(),
					"to_state":   convertState(event.NewState).String(),
				}).Warn("circuit breaker state change")
			})
		}
		policies = append(policies, cbBuilder.Build())
	}

	return &Executor{
		name:   cfg.Name,
		policy: failsafe.With(policies...),
		logger: cfg.Logger,
	}
}

// Do executes fn, retrying transient failures per the configured policy.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := e.policy.WithContext(ctx).Get(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// Name returns the name this executor was configured with.
func (e *Executor) Name() string {
	return e.name
}
