package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
)

const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before half-opening.
	Timeout time.Duration
	// Interval clears failure counts while closed.
	Interval time.Duration
}

// CircuitBreakerGenerator fails fast once a model server keeps failing, so a
// dead backend costs one error per case instead of one timeout per case.
type CircuitBreakerGenerator struct {
	inner   portgenerator.Generator
	name    string
	breaker *gobreaker.CircuitBreaker[string]
}

func NewCircuitBreakerGenerator(inner portgenerator.Generator, name string, cfg CircuitBreakerConfig) *CircuitBreakerGenerator {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "generator:" + name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// A cancelled case says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &CircuitBreakerGenerator{inner: inner, name: name, breaker: cb}
}

func (g *CircuitBreakerGenerator) Generate(ctx context.Context, prompt string, maxNewTokens int, temperature float64) (string, error) {
	out, err := g.breaker.Execute(func() (string, error) {
		return g.inner.Generate(ctx, prompt, maxNewTokens, temperature)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("generator %q circuit open: %w", g.name, err)
		}
		return "", err
	}
	return out, nil
}

func (g *CircuitBreakerGenerator) State() gobreaker.State { return g.breaker.State() }
