package llm

import (
	"context"
	"strings"
	"sync"
)

// StaticGenerator replays canned completions for dry runs and tests.
// Responses maps a substring of the prompt to the completion returned when
// the prompt contains it; the first match in insertion order wins.
type StaticGenerator struct {
	mu       sync.Mutex
	rules    []staticRule
	fallback string
	echo     bool
	calls    int
}

type staticRule struct {
	match    string
	response string
}

// NewEchoGenerator returns the prompt followed by a fixed completion, the
// way an untrimmed causal model output looks.
func NewEchoGenerator() *StaticGenerator {
	return &StaticGenerator{fallback: "Clear. SQL: SELECT 1", echo: true}
}

func NewStaticGenerator(fallback string) *StaticGenerator {
	return &StaticGenerator{fallback: fallback}
}

// On registers response for prompts containing match.
func (g *StaticGenerator) On(match, response string) *StaticGenerator {
	g.mu.Lock()
	g.rules = append(g.rules, staticRule{match: match, response: response})
	g.mu.Unlock()
	return g
}

func (g *StaticGenerator) Generate(ctx context.Context, prompt string, _ int, _ float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	out := g.fallback
	for _, r := range g.rules {
		if strings.Contains(prompt, r.match) {
			out = r.response
			break
		}
	}
	if g.echo {
		return prompt + "\n" + out, nil
	}
	return out, nil
}

// Calls is how many times Generate ran.
func (g *StaticGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
