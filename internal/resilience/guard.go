// Package resilience guards the external PDF and OCR binaries: crashed
// runs are retried, and a binary that is missing or keeps crashing is
// benched for a cooldown instead of being spawned for every page.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable is returned without running the command while its binary
// is benched.
var ErrUnavailable = errors.New("command unavailable")

type binaryBreaker struct {
	cb      *gobreaker.CircuitBreaker[struct{}]
	missing atomic.Bool
}

// CommandGuard runs commands with per-binary retry and circuit breaking.
type CommandGuard struct {
	cfg      Config
	logger   *slog.Logger
	classify func(error) Failure

	mu       sync.Mutex
	breakers map[string]*binaryBreaker
}

func NewCommandGuard(cfg Config, logger *slog.Logger) *CommandGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandGuard{
		cfg:      cfg.normalize(),
		logger:   logger,
		classify: Classify,
		breakers: make(map[string]*binaryBreaker),
	}
}

// Run calls fn, which runs binary once. Crashes are retried with backoff.
// A missing binary is benched at once; one that crashes BreakerFailures
// times in a row is benched until BreakerCooldown passes. Failures come
// back as *RunError, benched calls as ErrUnavailable.
func (g *CommandGuard) Run(ctx context.Context, binary string, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil run func for %s", binary)
	}
	if !g.cfg.BreakerEnabled {
		return g.retry(ctx, binary, fn)
	}

	b := g.breaker(binary)
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, g.retry(ctx, binary, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %w", binary, ErrUnavailable, err)
	}
	return err
}

// Benched reports whether binary is currently refused.
func (g *CommandGuard) Benched(binary string) bool {
	g.mu.Lock()
	b, ok := g.breakers[binary]
	g.mu.Unlock()
	return ok && b.cb.State() == gobreaker.StateOpen
}

func (g *CommandGuard) retry(ctx context.Context, binary string, fn func(context.Context) error) error {
	wait := g.cfg.RetryInitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return &RunError{Binary: binary, Failure: FailureCancelled, Attempts: attempt - 1, Err: err}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		failure := g.classify(err)
		if ctx.Err() != nil {
			// exec kills the process when ctx ends; that is not a crash
			failure = FailureCancelled
		}
		if !failure.retryable() || attempt >= g.cfg.RetryMaxAttempts {
			return &RunError{Binary: binary, Failure: failure, Attempts: attempt, Err: err}
		}

		g.logger.Warn("command crashed, retrying",
			"binary", binary,
			"attempt", attempt,
			"max_attempts", g.cfg.RetryMaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &RunError{Binary: binary, Failure: FailureCancelled, Attempts: attempt, Err: err}
		case <-timer.C:
		}
		wait = min(2*wait, g.cfg.RetryMaxBackoff)
	}
}

func (g *CommandGuard) breaker(binary string) *binaryBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[binary]; ok {
		return b
	}
	b := &binaryBreaker{}
	b.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        binary,
		MaxRequests: 1, // a single probe run after the cooldown
		Timeout:     g.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return b.missing.Load() || counts.ConsecutiveFailures >= g.cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			f := Classify(err)
			if f == FailureMissing {
				b.missing.Store(true)
			}
			return !f.blamesBinary()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateClosed {
				b.missing.Store(false)
			}
			level := slog.LevelWarn
			if to == gobreaker.StateClosed {
				level = slog.LevelInfo
			}
			g.logger.Log(context.Background(), level, "command breaker state change",
				"binary", name, "from", from.String(), "to", to.String())
		},
	})
	g.breakers[binary] = b
	return b
}
