package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"time"

	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
)

// Cache is the byte cache CachingGenerator stores completions in.
// adapter/memory.Cache satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachingGenerator memoises greedy completions. Sampled calls (temperature
// above zero) are never cached because they are not reproducible.
type CachingGenerator struct {
	inner     portgenerator.Generator
	cache     Cache
	namespace string
	ttl       time.Duration
}

func NewCachingGenerator(inner portgenerator.Generator, cache Cache, namespace string, ttl time.Duration) *CachingGenerator {
	return &CachingGenerator{inner: inner, cache: cache, namespace: namespace, ttl: ttl}
}

func (g *CachingGenerator) Generate(ctx context.Context, prompt string, maxNewTokens int, temperature float64) (string, error) {
	if temperature > 0 {
		return g.inner.Generate(ctx, prompt, maxNewTokens, temperature)
	}

	key := g.key(prompt, maxNewTokens)
	if cached, err := g.cache.Get(ctx, key); err == nil {
		return string(cached), nil
	}

	out, err := g.inner.Generate(ctx, prompt, maxNewTokens, temperature)
	if err != nil {
		return "", err
	}
	if err := g.cache.Set(ctx, key, []byte(out), g.ttl); err != nil {
		slog.WarnContext(ctx, "failed to cache completion", "error", err)
	}
	return out, nil
}

func (g *CachingGenerator) key(prompt string, maxNewTokens int) string {
	sum := sha256.Sum256([]byte(prompt))
	return "gen:" + g.namespace + ":" + strconv.Itoa(maxNewTokens) + ":" + hex.EncodeToString(sum[:])
}
