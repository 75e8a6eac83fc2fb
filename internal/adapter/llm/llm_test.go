package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/nlq-bench/internal/adapter/memory"
)

// ── TGI ───────────────────────────────────────────────────────────────────────

func TestTGIGenerator_Greedy(t *testing.T) {
	var got tgiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(tgiResponse{GeneratedText: "SQL: SELECT 1"})
	}))
	defer server.Close()

	gen := NewTGIGenerator(Config{BaseURL: server.URL + "/", APIKey: "hf_test"})
	out, err := gen.Generate(context.Background(), "prompt", 200, 0)
	require.NoError(t, err)
	assert.Equal(t, "SQL: SELECT 1", out)

	assert.Equal(t, "prompt", got.Inputs)
	assert.Equal(t, 200, got.Parameters.MaxNewTokens)
	assert.False(t, got.Parameters.DoSample)
	assert.Nil(t, got.Parameters.Temperature)
	assert.False(t, got.Parameters.ReturnFullText)
}

func TestTGIGenerator_Sampling(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_ = json.NewEncoder(w).Encode(tgiResponse{GeneratedText: "x"})
	}))
	defer server.Close()

	_, err := NewTGIGenerator(Config{BaseURL: server.URL, EchoPrompt: true}).Generate(context.Background(), "p", 256, 0.7)
	require.NoError(t, err)

	params := raw["parameters"].(map[string]any)
	assert.Equal(t, true, params["do_sample"])
	assert.InDelta(t, 0.7, params["temperature"], 1e-9)
	assert.InDelta(t, 0.95, params["top_p"], 1e-9)
	assert.Equal(t, true, params["return_full_text"])
}

func TestTGIGenerator_HTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusTooManyRequests, want: ErrRateLimit},
		{status: http.StatusUnauthorized, want: ErrAuthInvalid},
		{status: http.StatusServiceUnavailable, want: ErrServer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":"nope"}`)
			}))
			defer server.Close()

			_, err := NewTGIGenerator(Config{BaseURL: server.URL}).Generate(context.Background(), "p", 10, 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMapHTTPError_ClientError(t *testing.T) {
	err := mapHTTPError(http.StatusBadRequest, []byte("input too long"))
	assert.EqualError(t, err, "API error 400: input too long")
}

// ── OpenAI-compatible ─────────────────────────────────────────────────────────

func TestOpenAIGenerator(t *testing.T) {
	var got openAICompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"text":" SELECT 1","finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	gen := NewOpenAIGenerator(Config{BaseURL: server.URL + "/v1", Model: "Qwen/Qwen2.5-7B-Instruct"})
	out, err := gen.Generate(context.Background(), "prompt", 200, 0)
	require.NoError(t, err)
	assert.Equal(t, " SELECT 1", out)
	assert.Equal(t, "Qwen/Qwen2.5-7B-Instruct", got.Model)
	assert.Equal(t, 200, got.MaxTokens)
	assert.Zero(t, got.TopP)
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	_, err := NewOpenAIGenerator(Config{BaseURL: server.URL}).Generate(context.Background(), "p", 10, 0)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

// ── Anthropic ─────────────────────────────────────────────────────────────────

func TestAnthropicGenerator(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Classification: Clear"}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`)
	}))
	defer server.Close()

	gen := NewAnthropicGenerator(Config{BaseURL: server.URL, APIKey: "sk-test", Model: "claude-3-5-haiku-latest"})
	out, err := gen.Generate(context.Background(), "the prompt", 256, 0)
	require.NoError(t, err)
	assert.Equal(t, "Classification: Clear", out)

	assert.Equal(t, "claude-3-5-haiku-latest", got["model"])
	assert.InDelta(t, 256, got["max_tokens"], 0)
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestAnthropicGenerator_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"overloaded"}}`)
	}))
	defer server.Close()

	_, err := NewAnthropicGenerator(Config{BaseURL: server.URL, APIKey: "k", Model: "m"}).Generate(context.Background(), "p", 10, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic API error")
}

// ── Static ────────────────────────────────────────────────────────────────────

func TestStaticGenerator(t *testing.T) {
	gen := NewStaticGenerator("Unknown").
		On("Refine this", "Fetch merchants").
		On("SQL Query:", "SQL: SELECT 1")

	out, err := gen.Generate(context.Background(), "Refine this natural language query", 256, 0)
	require.NoError(t, err)
	assert.Equal(t, "Fetch merchants", out)

	out, err = gen.Generate(context.Background(), "nothing matches", 256, 0)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", out)
	assert.Equal(t, 2, gen.Calls())
}

func TestEchoGenerator_ReturnsPromptFirst(t *testing.T) {
	out, err := NewEchoGenerator().Generate(context.Background(), "P", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "P\nClear. SQL: SELECT 1", out)
}

func TestStaticGenerator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStaticGenerator("x").Generate(ctx, "p", 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

// ── Decorators ────────────────────────────────────────────────────────────────

type failingGenerator struct{ calls int }

func (g *failingGenerator) Generate(context.Context, string, int, float64) (string, error) {
	g.calls++
	return "", ErrServer
}

func TestCircuitBreakerGenerator_OpensAfterFailures(t *testing.T) {
	inner := &failingGenerator{}
	gen := NewCircuitBreakerGenerator(inner, "tgi:test", CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := gen.Generate(context.Background(), "p", 1, 0)
		assert.ErrorIs(t, err, ErrServer)
	}
	assert.Equal(t, gobreaker.StateOpen, gen.State())

	_, err := gen.Generate(context.Background(), "p", 1, 0)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, 2, inner.calls)
}

func TestCircuitBreakerGenerator_PassesThrough(t *testing.T) {
	gen := NewCircuitBreakerGenerator(NewStaticGenerator("ok"), "static", CircuitBreakerConfig{})
	out, err := gen.Generate(context.Background(), "p", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, gobreaker.StateClosed, gen.State())
}

func TestRateLimitedGenerator_RespectsContext(t *testing.T) {
	gen := NewRateLimitedGenerator(NewStaticGenerator("ok"), 1)

	_, err := gen.Generate(context.Background(), "p", 1, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = gen.Generate(ctx, "p", 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait for rate limit")
}

func TestCachingGenerator(t *testing.T) {
	inner := NewStaticGenerator("SQL: SELECT 1")
	gen := NewCachingGenerator(inner, memory.NewCache(), "static:m", time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := gen.Generate(ctx, "same prompt", 200, 0)
		require.NoError(t, err)
		assert.Equal(t, "SQL: SELECT 1", out)
	}
	assert.Equal(t, 1, inner.Calls())

	_, err := gen.Generate(ctx, "same prompt", 256, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls(), "token budget is part of the key")

	_, err = gen.Generate(ctx, "same prompt", 200, 0.7)
	require.NoError(t, err)
	_, err = gen.Generate(ctx, "same prompt", 200, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 4, inner.Calls(), "sampled calls bypass the cache")
}

func TestCachingGenerator_ErrorsNotCached(t *testing.T) {
	inner := &failingGenerator{}
	gen := NewCachingGenerator(inner, memory.NewCache(), "x", time.Minute)
	for i := 0; i < 2; i++ {
		_, err := gen.Generate(context.Background(), "p", 1, 0)
		assert.True(t, errors.Is(err, ErrServer))
	}
	assert.Equal(t, 2, inner.calls)
}

// ── Factory ───────────────────────────────────────────────────────────────────

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want any
	}{
		{name: "default is tgi", cfg: Config{}, want: &TGIGenerator{}},
		{name: "openai", cfg: Config{Provider: "openai"}, want: &OpenAIGenerator{}},
		{name: "anthropic", cfg: Config{Provider: "Anthropic", Model: "claude-3-5-haiku-latest"}, want: &AnthropicGenerator{}},
		{name: "echo", cfg: Config{Provider: "echo"}, want: &StaticGenerator{}},
		{name: "rate limit outermost", cfg: Config{Provider: "echo", RequestsPerMinute: 60, BreakerFailures: 3}, want: &RateLimitedGenerator{}},
		{name: "breaker", cfg: Config{Provider: "echo", BreakerFailures: 3}, want: &CircuitBreakerGenerator{}},
		{name: "cache", cfg: Config{Provider: "echo", CacheTTL: time.Minute}, want: &CachingGenerator{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := New(tt.cfg, memory.NewCache())
			require.NoError(t, err)
			assert.IsType(t, tt.want, gen)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{Provider: "bedrock"}, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New(Config{Provider: "anthropic"}, nil)
	assert.Error(t, err)
}
