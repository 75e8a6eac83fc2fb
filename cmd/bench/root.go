package main

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alanyang/nlq-bench/internal/adapter/llm"
)

const envPrefix = "NLQBENCH"

// newRootCmd builds the command tree. Each call gets its own viper instance
// so flags, environment and config files never leak between invocations.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "bench",
		Short:         "Benchmark LLM agents on ambiguity detection, query refinement and SQL generation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), v.GetBool("verbose")))
		},
	}

	pf := root.PersistentFlags()
	pf.Bool("verbose", false, "enable debug logging")
	pf.String("provider", llm.ProviderTGI, "generator provider (tgi, openai, anthropic, echo)")
	pf.String("base-url", "", "model server base URL (provider default when empty)")
	pf.String("api-key", "", "API key for hosted providers")
	pf.Duration("timeout", 300*time.Second, "per-request generation timeout")
	pf.Int("rpm", 0, "max generation requests per minute (0 = unlimited)")
	pf.Uint32("breaker-failures", 5, "consecutive failures before the circuit opens (0 = off)")
	pf.String("output-dir", "./results", "directory for JSON reports")
	pf.Duration("cache-ttl", 0, "memoise greedy completions for this long (0 = off)")

	for _, name := range []string{"verbose", "provider", "base-url", "api-key", "timeout", "rpm", "breaker-failures", "output-dir", "cache-ttl"} {
		_ = v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(
		newRunCmd(v),
		newMultiCmd(v),
		newInstructionsCmd(v),
	)
	return root
}

// generatorConfig is the shared generator configuration for model. Empty
// provider and baseURL take the global flags.
func generatorConfig(v *viper.Viper, provider, baseURL, model string) llm.Config {
	if provider == "" {
		provider = v.GetString("provider")
	}
	if baseURL == "" {
		baseURL = v.GetString("base-url")
	}
	return llm.Config{
		Provider:          provider,
		Model:             model,
		BaseURL:           baseURL,
		APIKey:            v.GetString("api-key"),
		Timeout:           v.GetDuration("timeout"),
		RequestsPerMinute: v.GetInt("rpm"),
		BreakerFailures:   v.GetUint32("breaker-failures"),
		CacheTTL:          v.GetDuration("cache-ttl"),
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}
