package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alanyang/nlq-bench/internal/adapter/dataset"
	"github.com/alanyang/nlq-bench/internal/adapter/llm"
	"github.com/alanyang/nlq-bench/internal/adapter/memory"
	"github.com/alanyang/nlq-bench/internal/adapter/report"
	"github.com/alanyang/nlq-bench/internal/domain/schema"
	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
	"github.com/alanyang/nlq-bench/internal/service/benchmark"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
)

const defaultMultiConfig = "benchmark_config.json"

func newMultiCmd(v *viper.Viper) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "multi",
		Short: "Benchmark every enabled model of a config file on the same dataset",
		Long: `Runs the configured task for each enabled model in order and writes one
report per model plus a comparison summary. A default config listing five
open models is written when the file does not exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, created, err := loadMultiConfig(configPath)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration: %s\n", configPath)
				fmt.Fprintln(cmd.OutOrStdout(), "Edit the file to enable/disable models or add custom instructions")
			}

			if err := checkEndpoints(v, cfg.EnabledModels()); err != nil {
				return err
			}

			cases, err := dataset.Load(cfg.Dataset())
			if err != nil {
				return fmt.Errorf("loading dataset: %w", err)
			}

			outDir := cfg.OutputDir
			if cmd.Flags().Changed("output-dir") || outDir == "" {
				outDir = v.GetString("output-dir")
			}

			cache := memory.NewCache()
			newGenerator := func(m benchmark.ModelConfig) (portgenerator.Generator, error) {
				return llm.New(generatorConfig(v, m.Provider, m.BaseURL, m.ModelID), cache)
			}
			mm := benchmark.NewMultiModel(
				newGenerator,
				instructionsvc.NewRegistry(),
				memory.NewLocker(),
				memory.NewEventBus(),
				report.NewFileWriter(outDir),
				[]benchmark.Option{
					benchmark.WithSchemaContext(schema.UPI()),
					benchmark.WithCaseTimeout(v.GetDuration("case-timeout")),
					benchmark.WithProgress(logProgress),
				},
			)

			slog.Info("multi-model benchmark starting",
				"config", configPath, "models", len(cfg.EnabledModels()), "dataset", cfg.Dataset(), "cases", len(cases))

			cmp, path, err := mm.Run(cmd.Context(), cfg, cases)
			if err != nil {
				return err
			}
			printComparison(cmd.OutOrStdout(), cmp)
			fmt.Fprintf(cmd.OutOrStdout(), "\nSummary: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultMultiConfig, "multi-model config file (JSON or YAML)")
	cmd.Flags().Duration("case-timeout", 0, "per-case timeout (0 = none)")
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		return v.BindPFlags(cmd.Flags())
	}
	return cmd
}

// checkEndpoints refuses a config where two enabled models would reach the
// same single-model server and report identical runs under different names.
func checkEndpoints(v *viper.Viper, models []benchmark.ModelConfig) error {
	seen := make(map[string]string, len(models))
	for _, m := range models {
		endpoint, single := generatorConfig(v, m.Provider, m.BaseURL, m.ModelID).SingleModelEndpoint()
		if !single {
			continue
		}
		if other, ok := seen[endpoint]; ok {
			return fmt.Errorf("models %s and %s both use %s; give each model its own base_url", other, m.ModelID, endpoint)
		}
		seen[endpoint] = m.ModelID
	}
	return nil
}

// loadMultiConfig reads path, writing benchmark.DefaultConfig there first when
// it does not exist. created reports whether the default was written.
func loadMultiConfig(path string) (cfg benchmark.Config, created bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		if err := writeDefaultConfig(path); err != nil {
			return benchmark.Config{}, false, err
		}
		created = true
	}

	cv := viper.New()
	cv.SetConfigFile(path)
	if err := cv.ReadInConfig(); err != nil {
		return benchmark.Config{}, created, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := cv.Unmarshal(&cfg); err != nil {
		return benchmark.Config{}, created, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return cfg, created, nil
}

func writeDefaultConfig(path string) error {
	data, err := json.MarshalIndent(benchmark.DefaultConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
