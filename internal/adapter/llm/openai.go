package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIGenerator calls an OpenAI-compatible text completions endpoint
// (vLLM, Ollama /v1, the Hugging Face router). The composed prompt is sent
// as-is, so instruction-tuned chat templates are the server's concern.
type OpenAIGenerator struct {
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
}

type openAICompletionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
}

type openAICompletionResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func NewOpenAIGenerator(cfg Config) *OpenAIGenerator {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAIGenerator{
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  newHTTPClient(cfg.Timeout),
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, maxNewTokens int, temperature float64) (string, error) {
	req := openAICompletionRequest{
		Model:       g.model,
		Prompt:      prompt,
		MaxTokens:   maxNewTokens,
		Temperature: temperature,
	}
	if temperature > 0 {
		req.TopP = 0.95
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	respBody, err := doJSONRequest(ctx, g.client, g.baseURL+"/completions", body, bearer(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}

	var resp openAICompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Text, nil
}
