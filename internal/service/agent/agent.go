package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	domainagent "github.com/alanyang/nlq-bench/internal/domain/agent"
	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
)

// Instructions is the read side of the instruction registry.
// [ISP] Agents only look instructions up; they never register them.
type Instructions interface {
	Get(key string) (domaininstruction.Instruction, bool)
}

// Spec is what distinguishes one agent kind from another. Everything else
// (resolution, rendering, generation, echo stripping) is shared.
type Spec struct {
	Task         domainagent.Task
	DefaultKey   string
	MaxNewTokens int

	// Fallback builds the prompt used when neither the requested nor the
	// default instruction is registered.
	Fallback func(input, context string) string

	// Extract fills the task field of r from the echo-stripped response.
	Extract func(r *domainagent.Result, response string)
}

// ProcessOptions selects the instruction and supplies stage context.
type ProcessOptions struct {
	InstructionKey string
	Context        string
}

type Option func(*Agent)

// WithTemperature overrides the sampling temperature. The default is 0,
// which generators treat as greedy decoding.
func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = t }
}

// Agent wraps one generation call in an instruction. It holds no per-call
// state, so a single Agent may serve concurrent callers if its generator can.
// [SRP] Prompt resolution and response extraction only.
// [DIP] Depends on the Generator port and a read-only instruction lookup.
type Agent struct {
	gen          portgenerator.Generator
	instructions Instructions
	spec         Spec
	temperature  float64
}

func New(gen portgenerator.Generator, instructions Instructions, spec Spec, opts ...Option) *Agent {
	a := &Agent{gen: gen, instructions: instructions, spec: spec}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Task() domainagent.Task { return a.spec.Task }

// Process runs input through the agent. An unknown InstructionKey falls back
// to the default instruction, then to the built-in prompt, without error.
// Generator failures are returned, never retried.
func (a *Agent) Process(ctx context.Context, input string, opts ProcessOptions) (*domainagent.Result, error) {
	prompt, key, err := a.buildPrompt(input, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.spec.Task, err)
	}

	raw, err := a.gen.Generate(ctx, prompt, a.spec.MaxNewTokens, a.temperature)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", a.spec.Task, err)
	}

	response := stripEcho(raw, prompt)
	res := &domainagent.Result{
		Input:          input,
		Task:           a.spec.Task,
		FullResponse:   response,
		Context:        opts.Context,
		InstructionKey: key,
	}
	a.spec.Extract(res, response)

	slog.DebugContext(ctx, "agent processed",
		"task", a.spec.Task,
		"instruction", key,
		"prompt_len", len(prompt),
		"response_len", len(response),
	)
	return res, nil
}

// buildPrompt resolves the instruction and renders the full prompt. The
// returned key is empty when the built-in fallback was used.
func (a *Agent) buildPrompt(input string, opts ProcessOptions) (prompt, key string, err error) {
	ins, key, ok := a.resolve(opts.InstructionKey)
	if !ok {
		return a.spec.Fallback(input, opts.Context), "", nil
	}
	system, user, err := ins.RenderPrompt(input, opts.Context)
	if err != nil {
		return "", key, err
	}
	return domaininstruction.Compose(system, user), key, nil
}

func (a *Agent) resolve(requested string) (domaininstruction.Instruction, string, bool) {
	if requested != "" {
		if ins, ok := a.instructions.Get(requested); ok {
			return ins, requested, true
		}
	}
	if ins, ok := a.instructions.Get(a.spec.DefaultKey); ok {
		return ins, a.spec.DefaultKey, true
	}
	return domaininstruction.Instruction{}, "", false
}

// stripEcho drops the prompt and everything before it when the generator
// returned it along with the completion.
func stripEcho(raw, prompt string) string {
	if i := strings.Index(raw, prompt); i >= 0 {
		return strings.TrimSpace(raw[i+len(prompt):])
	}
	return raw
}
