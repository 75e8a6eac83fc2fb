package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
)

// RegisterPrompts exposes every registered instruction as an MCP prompt named
// by its key. Getting the prompt renders it with the given input and context.
// [SRP] Prompt registration only.
func RegisterPrompts(s *mcpserver.MCPServer, svc *instructionsvc.Service) {
	for _, entry := range svc.List() {
		addInstructionPrompt(s, svc, entry.Key)
	}
}

func addInstructionPrompt(s *mcpserver.MCPServer, svc *instructionsvc.Service, key string) {
	description := key
	if ins, err := svc.Get(key); err == nil && ins.Description != "" {
		description = ins.Description
	}
	s.AddPrompt(
		mcpmcp.NewPrompt(key,
			mcpmcp.WithPromptDescription(description),
			mcpmcp.WithArgument("input",
				mcpmcp.ArgumentDescription("User query, refined query, or text to classify."),
				mcpmcp.RequiredArgument(),
			),
			mcpmcp.WithArgument("context",
				mcpmcp.ArgumentDescription("Optional context, such as the schema for SQL generation."),
			),
		),
		promptHandler(key, svc),
	)
}

func promptHandler(key string, svc *instructionsvc.Service) mcpserver.PromptHandlerFunc {
	return func(_ context.Context, req mcpmcp.GetPromptRequest) (*mcpmcp.GetPromptResult, error) {
		input := req.Params.Arguments["input"]
		if input == "" {
			return nil, errors.New("input is required")
		}

		rendered, err := svc.Render(key, input, req.Params.Arguments["context"])
		if err != nil {
			return nil, fmt.Errorf("render instruction %s: %w", key, err)
		}

		return mcpmcp.NewGetPromptResult(
			fmt.Sprintf("Rendered %s instruction", key),
			[]mcpmcp.PromptMessage{
				mcpmcp.NewPromptMessage(
					mcpmcp.RoleUser,
					mcpmcp.TextContent{
						Type: "text",
						Text: rendered.Prompt,
					},
				),
			},
		), nil
	}
}
