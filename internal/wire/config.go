package wire

import (
	"os"
	"strconv"
	"time"

	"github.com/alanyang/nlq-bench/internal/adapter/llm"
)

// Config is the server configuration read from the environment.
type Config struct {
	Port        string
	DatabaseURL string
	OutputDir   string
	Generator   llm.Config
	CaseTimeout time.Duration
	StallGrace  time.Duration
}

// LoadConfig reads Config from environment variables, applying defaults for
// anything unset.
func LoadConfig() Config {
	return Config{
		Port:        envString("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		OutputDir:   envString("OUTPUT_DIR", "./results"),
		Generator: llm.Config{
			Provider:          envString("GENERATOR_PROVIDER", llm.ProviderTGI),
			Model:             envString("GENERATOR_MODEL", "TinyLlama/TinyLlama-1.1B-Chat-v1.0"),
			BaseURL:           os.Getenv("GENERATOR_BASE_URL"),
			APIKey:            os.Getenv("GENERATOR_API_KEY"),
			Timeout:           envDuration("GENERATOR_TIMEOUT_SECONDS", 300*time.Second),
			RequestsPerMinute: envInt("GENERATOR_RPM", 0),
			BreakerFailures:   uint32(envInt("GENERATOR_BREAKER_FAILURES", 5)),
			CacheTTL:          envDuration("GENERATOR_CACHE_TTL_SECONDS", 0),
		},
		CaseTimeout: envDuration("CASE_TIMEOUT_SECONDS", 0),
		StallGrace:  envDuration("RUN_STALL_SECONDS", 15*time.Minute),
	}
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return defaultVal
}

// envDuration reads an integer-seconds env var and returns a Duration.
// Falls back to defaultVal if the var is unset or invalid.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
