package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const tgiDefaultBaseURL = "http://localhost:8080"

// TGIGenerator calls a Hugging Face text-generation-inference server.
// Temperature <= 0 selects greedy decoding.
type TGIGenerator struct {
	baseURL    string
	apiKey     string
	echoPrompt bool
	client     *http.Client
}

type tgiParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens"`
	DoSample       bool     `json:"do_sample"`
	Temperature    *float64 `json:"temperature,omitempty"`
	TopP           *float64 `json:"top_p,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
}

type tgiRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters tgiParameters `json:"parameters"`
}

type tgiResponse struct {
	GeneratedText string `json:"generated_text"`
}

func tgiBaseURL(raw string) string {
	if u := strings.TrimRight(raw, "/"); u != "" {
		return u
	}
	return tgiDefaultBaseURL
}

func NewTGIGenerator(cfg Config) *TGIGenerator {
	return &TGIGenerator{
		baseURL:    tgiBaseURL(cfg.BaseURL),
		apiKey:     cfg.APIKey,
		echoPrompt: cfg.EchoPrompt,
		client:     newHTTPClient(cfg.Timeout),
	}
}

func (g *TGIGenerator) Generate(ctx context.Context, prompt string, maxNewTokens int, temperature float64) (string, error) {
	params := tgiParameters{
		MaxNewTokens:   maxNewTokens,
		ReturnFullText: g.echoPrompt,
	}
	if temperature > 0 {
		topP := 0.95
		params.DoSample = true
		params.Temperature = &temperature
		params.TopP = &topP
	}

	body, err := json.Marshal(tgiRequest{Inputs: prompt, Parameters: params})
	if err != nil {
		return "", fmt.Errorf("encode tgi request: %w", err)
	}

	respBody, err := doJSONRequest(ctx, g.client, g.baseURL+"/generate", body, bearer(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("tgi generate: %w", err)
	}

	var resp tgiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode tgi response: %w", err)
	}
	return resp.GeneratedText, nil
}

func bearer(apiKey string) map[string]string {
	if apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + apiKey}
}
