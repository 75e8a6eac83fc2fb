package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
	porteventbus "github.com/alanyang/nlq-bench/internal/port/eventbus"
	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
	portlocker "github.com/alanyang/nlq-bench/internal/port/locker"
	portreport "github.com/alanyang/nlq-bench/internal/port/report"
	agentsvc "github.com/alanyang/nlq-bench/internal/service/agent"
)

// ModelConfig is one entry of a multi-model run. Provider and BaseURL are
// optional and fall back to the caller's defaults.
type ModelConfig struct {
	ModelID                 string `json:"model_id" mapstructure:"model_id"`
	Provider                string `json:"provider,omitempty" mapstructure:"provider"`
	BaseURL                 string `json:"base_url,omitempty" mapstructure:"base_url"`
	Enabled                 *bool  `json:"enabled,omitempty" mapstructure:"enabled"`
	NLQInstructionKey       string `json:"nlq_instruction_key,omitempty" mapstructure:"nlq_instruction_key"`
	SQLInstructionKey       string `json:"sql_instruction_key,omitempty" mapstructure:"sql_instruction_key"`
	AmbiguityInstructionKey string `json:"ambiguity_instruction_key,omitempty" mapstructure:"ambiguity_instruction_key"`
}

// IsEnabled treats a missing flag as enabled.
func (m ModelConfig) IsEnabled() bool { return m.Enabled == nil || *m.Enabled }

func (m ModelConfig) InstructionKeys() domainrun.InstructionKeys {
	return domainrun.InstructionKeys{
		Ambiguity: m.AmbiguityInstructionKey,
		NLQ:       m.NLQInstructionKey,
		SQL:       m.SQLInstructionKey,
	}
}

// Config describes a multi-model benchmark.
type Config struct {
	Models           []ModelConfig `json:"models" mapstructure:"models"`
	Task             string        `json:"task,omitempty" mapstructure:"task"`
	BenchmarkDataset string        `json:"benchmark_dataset" mapstructure:"benchmark_dataset"`
	AmbiguityDataset string        `json:"ambiguity_dataset,omitempty" mapstructure:"ambiguity_dataset"`
	OutputDir        string        `json:"output_dir" mapstructure:"output_dir"`
	Notes            string        `json:"notes,omitempty" mapstructure:"notes"`
}

func (c Config) Kind() domainrun.Kind {
	if c.Task == "" {
		return domainrun.KindNLQSQL
	}
	return domainrun.Kind(c.Task)
}

// Dataset is the dataset path for the configured task. Ambiguity runs read
// AmbiguityDataset when it is set.
func (c Config) Dataset() string {
	if c.Kind() == domainrun.KindAmbiguity && c.AmbiguityDataset != "" {
		return c.AmbiguityDataset
	}
	return c.BenchmarkDataset
}

func (c Config) EnabledModels() []ModelConfig {
	out := make([]ModelConfig, 0, len(c.Models))
	for _, m := range c.Models {
		if m.IsEnabled() {
			out = append(out, m)
		}
	}
	return out
}

// DefaultConfig is the configuration written when none exists yet. Each
// model gets its own local server port.
func DefaultConfig() Config {
	ids := []string{
		"TinyLlama/TinyLlama-1.1B-Chat-v1.0",
		"infly/OpenCoder-8B-Instruct",
		"meta-llama/Llama-3.1-8B-Instruct",
		"Qwen/Qwen2.5-7B-Instruct",
		"mistralai/Mistral-7B-Instruct-v0.3",
	}
	models := make([]ModelConfig, len(ids))
	for i, id := range ids {
		enabled := true
		models[i] = ModelConfig{
			ModelID: id,
			BaseURL: fmt.Sprintf("http://localhost:%d", 8080+i),
			Enabled: &enabled,
		}
	}
	return Config{
		Models:           models,
		Task:             string(domainrun.KindNLQSQL),
		BenchmarkDataset: "test_data/benchmark_queries.csv",
		AmbiguityDataset: "test_data/ambiguity_intent.csv",
		OutputDir:        "./results",
		Notes:            "Edit this file to enable/disable models or customize instructions",
	}
}

// GeneratorFactory builds a fresh generator for a model.
type GeneratorFactory func(m ModelConfig) (portgenerator.Generator, error)

// MultiModel benchmarks every enabled model of a Config on the same cases.
// A model that fails to build or run is recorded and the next one proceeds.
type MultiModel struct {
	newGenerator GeneratorFactory
	instructions agentsvc.Instructions
	locker       portlocker.AdvisoryLocker
	bus          porteventbus.EventBus
	writer       portreport.Writer
	runnerOpts   []Option
	agentOpts    []agentsvc.Option
}

func NewMultiModel(
	newGenerator GeneratorFactory,
	instructions agentsvc.Instructions,
	locker portlocker.AdvisoryLocker,
	bus porteventbus.EventBus,
	writer portreport.Writer,
	runnerOpts []Option,
	agentOpts ...agentsvc.Option,
) *MultiModel {
	return &MultiModel{
		newGenerator: newGenerator,
		instructions: instructions,
		locker:       locker,
		bus:          bus,
		writer:       writer,
		runnerOpts:   runnerOpts,
		agentOpts:    agentOpts,
	}
}

// Run benchmarks each enabled model in order, writes one report per model and
// a final comparison, and returns the comparison with the path it was
// written to.
func (m *MultiModel) Run(ctx context.Context, cfg Config, cases []domainrun.Case) (domainrun.Comparison, string, error) {
	enabled := cfg.EnabledModels()
	if len(enabled) == 0 {
		return domainrun.Comparison{}, "", fmt.Errorf("no models enabled")
	}
	kind := cfg.Kind()
	if !kind.Valid() {
		return domainrun.Comparison{}, "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	cmp := domainrun.Comparison{
		StartTime: time.Now().UTC(),
		Dataset:   cfg.Dataset(),
		Kind:      kind,
		Models:    make([]domainrun.ModelOutcome, 0, len(enabled)),
	}

	for i, mc := range enabled {
		if err := ctx.Err(); err != nil {
			return cmp, "", fmt.Errorf("multi-model run cancelled: %w", err)
		}
		slog.InfoContext(ctx, "benchmarking model", "index", i+1, "of", len(enabled), "model", mc.ModelID)
		cmp.Models = append(cmp.Models, m.runModel(ctx, kind, cfg.Dataset(), mc, cases))
	}

	cmp.EndTime = time.Now().UTC()
	cmp.TotalTimeSeconds = cmp.EndTime.Sub(cmp.StartTime).Seconds()

	path, err := m.writer.WriteComparison(ctx, cmp)
	if err != nil {
		return cmp, "", fmt.Errorf("write comparison: %w", err)
	}
	return cmp, path, nil
}

func (m *MultiModel) runModel(ctx context.Context, kind domainrun.Kind, dataset string, mc ModelConfig, cases []domainrun.Case) domainrun.ModelOutcome {
	out := domainrun.ModelOutcome{
		Model:          mc.ModelID,
		NLQInstruction: mc.NLQInstructionKey,
		SQLInstruction: mc.SQLInstructionKey,
	}
	fail := func(err error) domainrun.ModelOutcome {
		slog.ErrorContext(ctx, "model benchmark failed", "model", mc.ModelID, "error", err)
		out.Status = domainrun.StatusFailed
		out.Error = err.Error()
		return out
	}

	start := time.Now()
	agents, err := NewAgents(func() (portgenerator.Generator, error) { return m.newGenerator(mc) }, m.instructions, m.agentOpts...)
	if err != nil {
		return fail(err)
	}

	rn := domainrun.New(mc.ModelID, kind, dataset, mc.InstructionKeys())
	out.RunID = rn.ID.String()
	if err := NewRunner(agents, m.locker, m.bus, m.runnerOpts...).Run(ctx, &rn, cases); err != nil {
		return fail(err)
	}

	path, err := m.writer.WriteRun(ctx, rn)
	if err != nil {
		return fail(fmt.Errorf("write report: %w", err))
	}

	summary := rn.Summary
	out.Status = domainrun.StatusCompleted
	out.TimeTaken = time.Since(start).Seconds()
	out.ReportPath = path
	out.Summary = &summary
	return out
}
