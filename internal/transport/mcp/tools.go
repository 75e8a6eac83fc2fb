package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
	agentsvc "github.com/alanyang/nlq-bench/internal/service/agent"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
	pipelinesvc "github.com/alanyang/nlq-bench/internal/service/pipeline"
	runsvc "github.com/alanyang/nlq-bench/internal/service/run"
)

// RegisterTools registers all MCP tools on the server.
// [SRP] Tool registration only.
// [OCP] New tools are added here with another AddTool call.
func RegisterTools(s *mcpserver.MCPServer, reg *SessionRegistry, deps Deps) {
	s.AddTool(mcpmcp.NewTool("detect_ambiguity",
		mcpmcp.WithDescription("Classify a natural-language query as Ambiguous, Clear or Unknown."),
		mcpmcp.WithString("query", mcpmcp.Required(), mcpmcp.Description("Natural-language query")),
		mcpmcp.WithString("instruction_key", mcpmcp.Description("Instruction to use. Defaults to ambiguity_detection.")),
	), agentHandler(deps.Agents.Ambiguity, ""))

	s.AddTool(mcpmcp.NewTool("refine_query",
		mcpmcp.WithDescription("Rewrite a natural-language query into a clear, specific one."),
		mcpmcp.WithString("query", mcpmcp.Required(), mcpmcp.Description("Natural-language query")),
		mcpmcp.WithString("instruction_key", mcpmcp.Description("Instruction to use. Defaults to nlq_refinement.")),
	), agentHandler(deps.Agents.NLQ, ""))

	s.AddTool(mcpmcp.NewTool("generate_sql",
		mcpmcp.WithDescription("Generate one SQL statement for a refined query. The server's schema is the context unless one is given."),
		mcpmcp.WithString("query", mcpmcp.Required(), mcpmcp.Description("Refined natural-language query")),
		mcpmcp.WithString("instruction_key", mcpmcp.Description("Instruction to use. Defaults to sql_generation.")),
		mcpmcp.WithString("context", mcpmcp.Description("Schema or other context for the SQL prompt")),
	), agentHandler(deps.Agents.SQL, deps.Schema))

	s.AddTool(mcpmcp.NewTool("run_pipeline",
		mcpmcp.WithDescription("Refine a query, then generate SQL from the refined query. Returns both stages."),
		mcpmcp.WithString("query", mcpmcp.Required(), mcpmcp.Description("Natural-language query")),
		mcpmcp.WithString("nlq_instruction_key", mcpmcp.Description("Instruction for the refinement stage")),
		mcpmcp.WithString("sql_instruction_key", mcpmcp.Description("Instruction for the SQL stage")),
	), runPipelineHandler(deps.NLQSQL))

	s.AddTool(mcpmcp.NewTool("list_instructions",
		mcpmcp.WithDescription("List every registered instruction key with its description."),
	), listInstructionsHandler(deps.Instructions))

	s.AddTool(mcpmcp.NewTool("add_instruction",
		mcpmcp.WithDescription("Register a custom instruction. Returns its key, which is the name prefixed with custom_. The user prompt template may use {input} and {context}."),
		mcpmcp.WithString("name", mcpmcp.Required(), mcpmcp.Description("Instruction name")),
		mcpmcp.WithString("system_prompt", mcpmcp.Required(), mcpmcp.Description("System prompt")),
		mcpmcp.WithString("user_prompt_template", mcpmcp.Required(), mcpmcp.Description("User prompt template")),
		mcpmcp.WithString("description", mcpmcp.Description("What the instruction is for")),
	), addInstructionHandler(s, deps.Instructions))

	s.AddTool(mcpmcp.NewTool("start_run",
		mcpmcp.WithDescription("Start a benchmark run over a server-side dataset. The calling session is subscribed to its progress notifications."),
		mcpmcp.WithString("task", mcpmcp.Required(), mcpmcp.Description("One of: ambiguity, nlq_sql, nlq, sql")),
		mcpmcp.WithString("dataset", mcpmcp.Required(), mcpmcp.Description("Dataset path on the server (.csv or .xlsx)")),
		mcpmcp.WithString("model", mcpmcp.Description("Model ID. Defaults to the server's model.")),
		mcpmcp.WithString("ambiguity_instruction_key", mcpmcp.Description("Instruction for the ambiguity agent")),
		mcpmcp.WithString("nlq_instruction_key", mcpmcp.Description("Instruction for the refinement agent")),
		mcpmcp.WithString("sql_instruction_key", mcpmcp.Description("Instruction for the SQL agent")),
	), startRunHandler(reg, deps.Runs))

	s.AddTool(mcpmcp.NewTool("get_run",
		mcpmcp.WithDescription("Return a run report: status, summary and per-case details."),
		mcpmcp.WithString("run_id", mcpmcp.Required(), mcpmcp.Description("Run UUID")),
	), getRunHandler(deps.Runs))

	s.AddTool(mcpmcp.NewTool("watch_run",
		mcpmcp.WithDescription("Subscribe this session to notifications when a run starts and finishes."),
		mcpmcp.WithString("run_id", mcpmcp.Required(), mcpmcp.Description("Run UUID")),
	), watchRunHandler(reg, deps.Runs))
}

// ── Tool handlers ─────────────────────────────────────────────────────────

func agentHandler(p pipelinesvc.Processor, defaultContext string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		query := mcpmcp.ParseString(req, "query", "")
		if query == "" {
			return mcpmcp.NewToolResultText("error: query is required"), nil
		}

		res, err := p.Process(ctx, query, agentsvc.ProcessOptions{
			InstructionKey: mcpmcp.ParseString(req, "instruction_key", ""),
			Context:        mcpmcp.ParseString(req, "context", defaultContext),
		})
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		return jsonResult(res), nil
	}
}

func runPipelineHandler(p *pipelinesvc.NLQSQLPipeline) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		query := mcpmcp.ParseString(req, "query", "")
		if query == "" {
			return mcpmcp.NewToolResultText("error: query is required"), nil
		}

		res, err := p.Execute(ctx, query,
			mcpmcp.ParseString(req, "nlq_instruction_key", ""),
			mcpmcp.ParseString(req, "sql_instruction_key", ""),
		)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		return jsonResult(res), nil
	}
}

func listInstructionsHandler(svc *instructionsvc.Service) mcpserver.ToolHandlerFunc {
	return func(_ context.Context, _ mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		return jsonResult(svc.List()), nil
	}
}

func addInstructionHandler(s *mcpserver.MCPServer, svc *instructionsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		key, err := svc.AddCustom(ctx,
			mcpmcp.ParseString(req, "name", ""),
			mcpmcp.ParseString(req, "system_prompt", ""),
			mcpmcp.ParseString(req, "user_prompt_template", ""),
			mcpmcp.ParseString(req, "description", ""),
		)
		if key == "" {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}

		addInstructionPrompt(s, svc, key)

		result := map[string]string{"key": key}
		if err != nil {
			// Registered for this process but not stored.
			result["warning"] = err.Error()
		}
		return jsonResult(result), nil
	}
}

func startRunHandler(reg *SessionRegistry, runs *runsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		rn, err := runs.Start(ctx, runsvc.StartRequest{
			Model:   mcpmcp.ParseString(req, "model", ""),
			Kind:    domainrun.Kind(mcpmcp.ParseString(req, "task", "")),
			Dataset: mcpmcp.ParseString(req, "dataset", ""),
			Instructions: domainrun.InstructionKeys{
				Ambiguity: mcpmcp.ParseString(req, "ambiguity_instruction_key", ""),
				NLQ:       mcpmcp.ParseString(req, "nlq_instruction_key", ""),
				SQL:       mcpmcp.ParseString(req, "sql_instruction_key", ""),
			},
		})
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}

		if session := mcpserver.ClientSessionFromContext(ctx); session != nil {
			reg.Watch(session.SessionID(), rn.ID)
		}
		return jsonResult(map[string]string{"run_id": rn.ID.String(), "status": string(rn.Status)}), nil
	}
}

func getRunHandler(runs *runsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		runID, err := uuid.Parse(mcpmcp.ParseString(req, "run_id", ""))
		if err != nil {
			return mcpmcp.NewToolResultText("error: invalid run_id"), nil
		}

		rn, err := runs.Get(ctx, runID)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		return jsonResult(rn), nil
	}
}

func watchRunHandler(reg *SessionRegistry, runs *runsvc.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		runID, err := uuid.Parse(mcpmcp.ParseString(req, "run_id", ""))
		if err != nil {
			return mcpmcp.NewToolResultText("error: invalid run_id"), nil
		}

		rn, err := runs.Get(ctx, runID)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}

		if rn.Status.Terminal() {
			return jsonResult(map[string]string{"run_id": runID.String(), "status": string(rn.Status)}), nil
		}

		session := mcpserver.ClientSessionFromContext(ctx)
		if session == nil {
			return mcpmcp.NewToolResultText("error: no session to notify"), nil
		}
		reg.Watch(session.SessionID(), runID)

		return jsonResult(map[string]string{"run_id": runID.String(), "status": string(rn.Status)}), nil
	}
}

func jsonResult(v any) *mcpmcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err))
	}
	return mcpmcp.NewToolResultText(string(data))
}
