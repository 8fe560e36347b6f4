package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/metrics"
	"github.com/matheus3301/lawdesk/internal/status"
)

// Policy bounds every backing-store call.
type Policy struct {
	// Timeout applies to each attempt.
	Timeout time.Duration
	// Attempts is the total number of tries, first one included.
	Attempts   int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration

	// BreakerMaxFailures consecutive transient failures open the breaker.
	BreakerMaxFailures uint32
	// BreakerOpenTimeout is how long the breaker stays open before probing.
	BreakerOpenTimeout time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:            5 * time.Second,
		Attempts:           3,
		BaseDelay:          100 * time.Millisecond,
		Multiplier:         2,
		MaxDelay:           2 * time.Second,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// Guard runs backing-store calls under the policy. A Guard without a
// backend answers every call with ErrNotConfigured.
type Guard struct {
	backend Backend
	policy  Policy
	cb      *gobreaker.CircuitBreaker
	health  *status.Machine
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewGuard wraps backend. backend may be nil, health and m may be nil.
func NewGuard(backend Backend, policy Policy, health *status.Machine, m *metrics.Metrics, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	if policy.BreakerMaxFailures == 0 {
		policy.BreakerMaxFailures = DefaultPolicy().BreakerMaxFailures
	}

	g := &Guard{
		backend: backend,
		policy:  policy,
		health:  health,
		metrics: m,
		logger:  logger,
	}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store",
		MaxRequests: 1,
		Timeout:     policy.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= policy.BreakerMaxFailures
		},
		IsSuccessful: func(err error) bool {
			return !isTransient(err)
		},
		OnStateChange: g.onBreakerChange,
	})
	return g
}

// Configured reports whether a backend is attached.
func (g *Guard) Configured() bool {
	return g.backend != nil
}

// BreakerState returns the breaker state name.
func (g *Guard) BreakerState() string {
	return g.cb.State().String()
}

// Do runs fn against the backend. Transient failures are retried with
// exponential backoff up to the policy's attempt count and then surface as
// ErrUnavailable. Other failures are returned unchanged after the first try.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context, b Backend) error) error {
	if g.backend == nil {
		g.observe(op, "not_configured", 0)
		return fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	start := time.Now()
	attempt := func() error {
		_, err := g.cb.Execute(func() (any, error) {
			cctx, cancel := context.WithTimeout(ctx, g.policy.Timeout)
			defer cancel()
			return nil, fn(cctx, g.backend)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(fmt.Errorf("%w: circuit %v", ErrUnavailable, err))
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		case isTransient(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	notify := func(err error, wait time.Duration) {
		if g.metrics != nil {
			g.metrics.StoreRetries.WithLabelValues(op).Inc()
		}
		g.logger.Debug("retrying store call",
			zap.String("op", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(g.backOff(), ctx), notify)
	switch {
	case err == nil:
		g.observe(op, "ok", time.Since(start))
		return nil
	case errors.Is(err, ErrUnavailable):
		g.observe(op, "unavailable", time.Since(start))
		return fmt.Errorf("%s: %w", op, err)
	case isTransient(err):
		g.observe(op, "unavailable", time.Since(start))
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	default:
		g.observe(op, "error", time.Since(start))
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (g *Guard) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.policy.BaseDelay
	b.Multiplier = g.policy.Multiplier
	b.RandomizationFactor = 0
	if g.policy.MaxDelay > 0 {
		b.MaxInterval = g.policy.MaxDelay
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(g.policy.Attempts-1))
}

func (g *Guard) observe(op, outcome string, d time.Duration) {
	if g.metrics == nil {
		return
	}
	g.metrics.StoreCalls.WithLabelValues(op, outcome).Inc()
	if d > 0 {
		g.metrics.StoreCallDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

func (g *Guard) onBreakerChange(name string, from, to gobreaker.State) {
	g.logger.Warn("circuit breaker state",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if g.metrics != nil {
		g.metrics.BreakerState.Set(float64(to))
	}
	if g.health == nil {
		return
	}
	var err error
	switch to {
	case gobreaker.StateOpen:
		err = g.health.Ensure(status.Degraded)
	case gobreaker.StateClosed:
		err = g.health.Ensure(status.Online)
	}
	if err != nil {
		g.logger.Warn("store health transition rejected", zap.Error(err))
	}
}

// isTransient reports whether err means the backing store could not be
// reached or was too busy to answer.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCantOpen, sqlite3.ErrProtocol:
			return true
		}
		return false
	}
	var ne net.Error
	return errors.As(err, &ne)
}
