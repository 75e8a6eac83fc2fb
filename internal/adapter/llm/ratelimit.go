package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
)

// RateLimitedGenerator keeps a run under a hosted API's request quota.
// Callers block until a token is available or ctx ends.
type RateLimitedGenerator struct {
	inner   portgenerator.Generator
	limiter *rate.Limiter
}

func NewRateLimitedGenerator(inner portgenerator.Generator, requestsPerMinute int) *RateLimitedGenerator {
	return &RateLimitedGenerator{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerMinute)/60.0, 1),
	}
}

func (g *RateLimitedGenerator) Generate(ctx context.Context, prompt string, maxNewTokens int, temperature float64) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limit: %w", err)
	}
	return g.inner.Generate(ctx, prompt, maxNewTokens, temperature)
}
