package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alanyang/nlq-bench/internal/adapter/dataset"
	"github.com/alanyang/nlq-bench/internal/adapter/llm"
	"github.com/alanyang/nlq-bench/internal/adapter/memory"
	"github.com/alanyang/nlq-bench/internal/adapter/report"
	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
	"github.com/alanyang/nlq-bench/internal/domain/schema"
	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
	"github.com/alanyang/nlq-bench/internal/service/benchmark"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Benchmark one model on one dataset",
		Example: `  bench run --task nlq_sql --dataset test_data/nl_to_sql.csv --model Qwen/Qwen2.5-7B-Instruct
  bench run --task ambiguity --dataset test_data/ambiguity_intent.csv --provider echo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind := domainrun.Kind(v.GetString("task"))
			if !kind.Valid() {
				return fmt.Errorf("invalid task %q (want ambiguity, nlq_sql, nlq or sql)", kind)
			}
			path := v.GetString("dataset")
			if path == "" {
				return fmt.Errorf("--dataset is required")
			}
			cases, err := dataset.Load(path)
			if err != nil {
				return fmt.Errorf("loading dataset: %w", err)
			}

			model := v.GetString("model")
			gcfg := generatorConfig(v, "", "", model)
			cache := memory.NewCache()
			agents, err := benchmark.NewAgents(func() (portgenerator.Generator, error) {
				return llm.New(gcfg, cache)
			}, instructionsvc.NewRegistry())
			if err != nil {
				return err
			}

			runner := benchmark.NewRunner(agents, memory.NewLocker(), memory.NewEventBus(),
				benchmark.WithSchemaContext(schema.UPI()),
				benchmark.WithCaseTimeout(v.GetDuration("case-timeout")),
				benchmark.WithProgress(logProgress),
			)

			rn := domainrun.New(model, kind, path, domainrun.InstructionKeys{
				Ambiguity: v.GetString("ambiguity-instruction"),
				NLQ:       v.GetString("nlq-instruction"),
				SQL:       v.GetString("sql-instruction"),
			})
			if err := runner.Run(cmd.Context(), &rn, cases); err != nil {
				return err
			}

			out, err := report.NewFileWriter(v.GetString("output-dir")).WriteRun(cmd.Context(), rn)
			if err != nil {
				return fmt.Errorf("writing report: %w", err)
			}

			printSummary(cmd.OutOrStdout(), rn)
			fmt.Fprintf(cmd.OutOrStdout(), "\nReport: %s\n", out)
			return nil
		},
	}

	f := cmd.Flags()
	f.String("task", string(domainrun.KindNLQSQL), "benchmark task (ambiguity, nlq_sql, nlq, sql)")
	f.String("dataset", "", "CSV or XLSX dataset path")
	f.String("model", "TinyLlama/TinyLlama-1.1B-Chat-v1.0", "model identifier")
	f.String("ambiguity-instruction", "", "ambiguity instruction key")
	f.String("nlq-instruction", "", "NLQ refinement instruction key")
	f.String("sql-instruction", "", "SQL generation instruction key")
	f.Duration("case-timeout", 0, "per-case timeout (0 = none)")
	// Bound at run time: run and multi share flag names.
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		return v.BindPFlags(cmd.Flags())
	}
	return cmd
}

func logProgress(c domainrun.CaseResult, total int) {
	attrs := []any{"case", c.Index, "of", total, "latency_ms", c.LatencyMS}
	if c.Error != "" {
		slog.Warn("case failed", append(attrs, "error", c.Error)...)
		return
	}
	if c.ExactMatch != nil {
		attrs = append(attrs, "exact", *c.ExactMatch)
	}
	slog.Info("case done", attrs...)
}
