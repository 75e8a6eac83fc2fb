// Package llm implements port/generator.Generator against model servers and
// hosted APIs, plus decorators that add resilience around any generator.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
)

var (
	ErrRateLimit     = errors.New("rate limit exceeded")
	ErrAuthInvalid   = errors.New("authentication failed")
	ErrServer        = errors.New("model server error")
	ErrEmptyResponse = errors.New("empty completion")
	ErrUnknownKind   = errors.New("unknown generator provider")
)

// Provider names accepted by New.
const (
	ProviderTGI       = "tgi"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderEcho      = "echo"
)

// Config selects and configures a generator. Zero values fall back to
// provider defaults.
type Config struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// RequestsPerMinute throttles calls when positive.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`

	// BreakerFailures opens the circuit after that many consecutive failures.
	// Zero disables the breaker.
	BreakerFailures uint32 `mapstructure:"breaker_failures"`

	// CacheTTL memoises greedy completions when positive.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// EchoPrompt makes TGI return the prompt along with the completion.
	EchoPrompt bool `mapstructure:"echo_prompt"`
}

// SingleModelEndpoint returns the server URL when the provider serves one
// model per endpoint and never sends Model, so two model names on the same
// URL reach the same weights.
func (c Config) SingleModelEndpoint() (string, bool) {
	switch strings.ToLower(c.Provider) {
	case ProviderTGI, "":
		return tgiBaseURL(c.BaseURL), true
	}
	return "", false
}

// New builds the generator named by cfg.Provider and wraps it in the
// decorators cfg enables, innermost first: cache, breaker, rate limit.
func New(cfg Config, cache Cache) (portgenerator.Generator, error) {
	var gen portgenerator.Generator
	switch strings.ToLower(cfg.Provider) {
	case ProviderTGI, "":
		gen = NewTGIGenerator(cfg)
	case ProviderOpenAI:
		gen = NewOpenAIGenerator(cfg)
	case ProviderAnthropic:
		if cfg.Model == "" {
			return nil, fmt.Errorf("anthropic generator: model is required")
		}
		gen = NewAnthropicGenerator(cfg)
	case ProviderEcho:
		gen = NewEchoGenerator()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Provider)
	}

	if cfg.CacheTTL > 0 && cache != nil {
		gen = NewCachingGenerator(gen, cache, cfg.Provider+":"+cfg.Model, cfg.CacheTTL)
	}
	if cfg.BreakerFailures > 0 {
		gen = NewCircuitBreakerGenerator(gen, cfg.Provider+":"+cfg.Model, CircuitBreakerConfig{MaxFailures: cfg.BreakerFailures})
	}
	if cfg.RequestsPerMinute > 0 {
		gen = NewRateLimitedGenerator(gen, cfg.RequestsPerMinute)
	}
	return gen, nil
}

// maxResponseBody caps what is read from a model server.
const maxResponseBody = 10 * 1024 * 1024

const (
	defaultConnTimeout = 10 * time.Second
	defaultRespTimeout = 300 * time.Second
)

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultRespTimeout
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   defaultConnTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       120 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: defaultConnTimeout + timeout,
	}
}

// doJSONRequest POSTs body and returns the response body, mapping non-200
// statuses to the package errors.
func doJSONRequest(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func mapHTTPError(statusCode int, body []byte) error {
	detail := fmt.Sprintf("API error %d: %s", statusCode, strings.TrimSpace(string(body)))
	switch {
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimit, detail)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthInvalid, detail)
	case statusCode >= 500:
		return fmt.Errorf("%w: %s", ErrServer, detail)
	default:
		return errors.New(detail)
	}
}
