package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicGenerator sends the composed prompt as a single user message.
type AnthropicGenerator struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewAnthropicGenerator(cfg Config) *AnthropicGenerator {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &AnthropicGenerator{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(cfg.Model),
	}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, maxNewTokens int, temperature float64) (string, error) {
	start := time.Now()
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       g.model,
		MaxTokens:   int64(maxNewTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	slog.DebugContext(ctx, "anthropic completion", "model", g.model, "duration", time.Since(start), "stop_reason", msg.StopReason)

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}
	return sb.String(), nil
}
