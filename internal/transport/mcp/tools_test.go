package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/nlq-bench/internal/adapter/llm"
	"github.com/alanyang/nlq-bench/internal/adapter/memory"
	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
	"github.com/alanyang/nlq-bench/internal/mocks"
	agentsvc "github.com/alanyang/nlq-bench/internal/service/agent"
	"github.com/alanyang/nlq-bench/internal/service/benchmark"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
	pipelinesvc "github.com/alanyang/nlq-bench/internal/service/pipeline"
	runsvc "github.com/alanyang/nlq-bench/internal/service/run"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type finishedRunner struct{}

func (finishedRunner) Run(_ context.Context, rn *domainrun.Run, cases []domainrun.Case) error {
	rn.Status = domainrun.StatusCompleted
	rn.Summary = domainrun.Summary{Total: len(cases), Passed: len(cases)}
	return nil
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	reg := instructionsvc.NewRegistry()
	instructions := instructionsvc.NewService(reg, memory.NewInstructionRepository(), memory.NewEventBus())

	gen := llm.NewStaticGenerator("Unknown").
		On("Classification:", "Classification: Ambiguous").
		On("Refined Query:", "Show the top 10 merchants by transaction count").
		On("SQL Query:", "SQL: SELECT merchant, COUNT(*) FROM transactions GROUP BY merchant LIMIT 10")

	agents := benchmark.Agents{
		Ambiguity: agentsvc.NewAmbiguityAgent(gen, reg),
		NLQ:       agentsvc.NewNLQAgent(gen, reg),
		SQL:       agentsvc.NewSQLAgent(gen, reg),
	}

	loader := func(string) ([]domainrun.Case, error) {
		return []domainrun.Case{{Input: "q", Expected: "SELECT 1"}}, nil
	}
	runs := runsvc.NewService(memory.NewRunRepository(),
		func(string) (runsvc.Runner, error) { return finishedRunner{}, nil },
		loader, nil, nil, "test-model")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = runs.Wait(ctx)
	})

	return Deps{
		Instructions: instructions,
		Agents:       agents,
		NLQSQL:       pipelinesvc.NewNLQSQLPipeline(agents.NLQ, agents.SQL),
		Ambiguity:    pipelinesvc.NewAmbiguityPipeline(agents.Ambiguity),
		Runs:         runs,
		Schema:       "Table: transactions",
	}
}

func makeReq(args map[string]any) mcpmcp.CallToolRequest {
	var req mcpmcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(r *mcpmcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	b, _ := json.Marshal(r.Content[0])
	var m map[string]interface{}
	json.Unmarshal(b, &m) //nolint:errcheck
	if t, ok := m["text"].(string); ok {
		return t
	}
	return ""
}

func decode(t *testing.T, r *mcpmcp.CallToolResult, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), v), resultText(r))
}

// ── agent tools ───────────────────────────────────────────────────────────────

func TestAgentHandlers(t *testing.T) {
	d := newTestDeps(t)

	tests := []struct {
		name    string
		handler mcpserver.ToolHandlerFunc
		field   string
		want    string
	}{
		{name: "detect_ambiguity", handler: agentHandler(d.Agents.Ambiguity, ""), field: "classification", want: "Ambiguous"},
		{name: "refine_query", handler: agentHandler(d.Agents.NLQ, ""), field: "refined_query", want: "Show the top 10 merchants by transaction count"},
		{name: "generate_sql", handler: agentHandler(d.Agents.SQL, d.Schema), field: "sql", want: "SELECT merchant, COUNT(*) FROM transactions GROUP BY merchant LIMIT 10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.handler(context.Background(), makeReq(map[string]any{"query": "show me top merchants"}))
			require.NoError(t, err)

			var got map[string]any
			decode(t, res, &got)
			assert.Equal(t, tt.want, got[tt.field])
		})
	}
}

func TestAgentHandler_DefaultContext(t *testing.T) {
	d := newTestDeps(t)
	res, err := agentHandler(d.Agents.SQL, d.Schema)(context.Background(), makeReq(map[string]any{"query": "count rows"}))
	require.NoError(t, err)

	var got map[string]any
	decode(t, res, &got)
	assert.Equal(t, "Table: transactions", got["context"])
}

func TestAgentHandler_MissingQuery(t *testing.T) {
	d := newTestDeps(t)
	res, err := agentHandler(d.Agents.NLQ, "")(context.Background(), makeReq(map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, "error: query is required", resultText(res))
}

func TestAgentHandler_GeneratorError(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("model unavailable"))

	a := agentsvc.NewNLQAgent(gen, instructionsvc.NewRegistry())
	res, err := agentHandler(a, "")(context.Background(), makeReq(map[string]any{"query": "q"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "model unavailable")
}

// ── run_pipeline ──────────────────────────────────────────────────────────────

func TestRunPipelineHandler(t *testing.T) {
	d := newTestDeps(t)
	res, err := runPipelineHandler(d.NLQSQL)(context.Background(), makeReq(map[string]any{"query": "show me top merchants"}))
	require.NoError(t, err)

	var got struct {
		OriginalQuery string `json:"original_query"`
		RefinedQuery  string `json:"refined_query"`
		SQL           string `json:"sql"`
		Stages        struct {
			SQL struct {
				Context string `json:"context"`
			} `json:"sql"`
		} `json:"stages"`
	}
	decode(t, res, &got)
	assert.Equal(t, "show me top merchants", got.OriginalQuery)
	assert.Equal(t, "Show the top 10 merchants by transaction count", got.RefinedQuery)
	assert.Contains(t, got.SQL, "SELECT merchant")
	assert.Equal(t, "Refined from: show me top merchants", got.Stages.SQL.Context)
}

// ── instructions ──────────────────────────────────────────────────────────────

func TestAddAndListInstructions(t *testing.T) {
	d := newTestDeps(t)
	srv := mcpserver.NewMCPServer("test", "0.0.1", mcpserver.WithPromptCapabilities(true))
	ctx := context.Background()

	res, err := addInstructionHandler(srv, d.Instructions)(ctx, makeReq(map[string]any{
		"name":                 "terse_sql",
		"system_prompt":        "Answer with SQL only.",
		"user_prompt_template": "{input}",
	}))
	require.NoError(t, err)
	var added map[string]string
	decode(t, res, &added)
	assert.Equal(t, "custom_terse_sql", added["key"])

	res, err = listInstructionsHandler(d.Instructions)(ctx, makeReq(nil))
	require.NoError(t, err)
	var entries []instructionsvc.Entry
	decode(t, res, &entries)
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Contains(t, keys, "custom_terse_sql")
	assert.Contains(t, keys, "sql_generation")
}

func TestAddInstruction_MissingName(t *testing.T) {
	d := newTestDeps(t)
	srv := mcpserver.NewMCPServer("test", "0.0.1")
	res, err := addInstructionHandler(srv, d.Instructions)(context.Background(), makeReq(map[string]any{"system_prompt": "x"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "error:")
}

func TestPromptHandler_RendersInstruction(t *testing.T) {
	d := newTestDeps(t)
	var req mcpmcp.GetPromptRequest
	req.Params.Arguments = map[string]string{"input": "top merchants", "context": "Table: t"}

	res, err := promptHandler("sql_generation", d.Instructions)(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text, ok := res.Messages[0].Content.(mcpmcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "top merchants")
	assert.Contains(t, text.Text, "Table: t")

	req.Params.Arguments = map[string]string{}
	_, err = promptHandler("sql_generation", d.Instructions)(context.Background(), req)
	assert.Error(t, err)
}

// ── runs ──────────────────────────────────────────────────────────────────────

func TestStartAndGetRun(t *testing.T) {
	d := newTestDeps(t)
	reg := NewSessionRegistry()
	ctx := context.Background()

	res, err := startRunHandler(reg, d.Runs)(ctx, makeReq(map[string]any{"task": "nlq_sql", "dataset": "data/upi.csv"}))
	require.NoError(t, err)
	var started map[string]string
	decode(t, res, &started)
	assert.Equal(t, "pending", started["status"])

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, d.Runs.Wait(waitCtx))

	res, err = getRunHandler(d.Runs)(ctx, makeReq(map[string]any{"run_id": started["run_id"]}))
	require.NoError(t, err)
	var rn domainrun.Run
	decode(t, res, &rn)
	assert.Equal(t, domainrun.StatusCompleted, rn.Status)
	assert.Equal(t, "test-model", rn.Model)
}

func TestStartRun_InvalidTask(t *testing.T) {
	d := newTestDeps(t)
	res, err := startRunHandler(NewSessionRegistry(), d.Runs)(context.Background(), makeReq(map[string]any{"task": "translate", "dataset": "x.csv"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "invalid benchmark task")
}

func TestGetRun_Errors(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	res, err := getRunHandler(d.Runs)(ctx, makeReq(map[string]any{"run_id": "nope"}))
	require.NoError(t, err)
	assert.Equal(t, "error: invalid run_id", resultText(res))

	res, err = getRunHandler(d.Runs)(ctx, makeReq(map[string]any{"run_id": uuid.NewString()}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "run not found")
}

// holdRunner keeps a run in progress until its context is cancelled.
type holdRunner struct{}

func (holdRunner) Run(ctx context.Context, rn *domainrun.Run, _ []domainrun.Case) error {
	<-ctx.Done()
	rn.Status = domainrun.StatusCancelled
	return ctx.Err()
}

func TestWatchRun_NoSession(t *testing.T) {
	runs := runsvc.NewService(memory.NewRunRepository(),
		func(string) (runsvc.Runner, error) { return holdRunner{}, nil },
		nil, nil, nil, "test-model")
	t.Cleanup(func() {
		runs.CancelAll()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = runs.Wait(ctx)
	})
	ctx := context.Background()

	rn, err := runs.Start(ctx, runsvc.StartRequest{Kind: domainrun.KindNLQ, Cases: []domainrun.Case{{Input: "q"}}})
	require.NoError(t, err)

	res, err := watchRunHandler(NewSessionRegistry(), runs)(ctx, makeReq(map[string]any{"run_id": rn.ID.String()}))
	require.NoError(t, err)
	assert.Equal(t, "error: no session to notify", resultText(res))
}

func TestWatchRun_FinishedRunReturnsStatus(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	rn, err := d.Runs.Start(ctx, runsvc.StartRequest{Kind: domainrun.KindNLQ, Cases: []domainrun.Case{{Input: "q"}}})
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, d.Runs.Wait(waitCtx))

	res, err := watchRunHandler(NewSessionRegistry(), d.Runs)(ctx, makeReq(map[string]any{"run_id": rn.ID.String()}))
	require.NoError(t, err)
	var got map[string]string
	decode(t, res, &got)
	assert.Equal(t, string(domainrun.StatusCompleted), got["status"])
}
