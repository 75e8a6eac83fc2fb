package generator

import "context"

// Generator is the text-generation capability every agent is built on.
// The prompt is the full composed prompt (system, blank line, user). The
// returned text may echo the prompt; callers strip it.
//
// [DIP] Agents depend on this interface, not on a model server or SDK.
// [LSP] TGI, OpenAI-compatible, Anthropic and static generators all satisfy it.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxNewTokens int, temperature float64) (string, error)
}
