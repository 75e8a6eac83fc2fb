package mcp

import (
	"context"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/nlq-bench/internal/service/benchmark"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
	pipelinesvc "github.com/alanyang/nlq-bench/internal/service/pipeline"
	runsvc "github.com/alanyang/nlq-bench/internal/service/run"
)

// Deps are the services the MCP tools and prompts call into.
type Deps struct {
	Instructions *instructionsvc.Service
	Agents       benchmark.Agents
	NLQSQL       *pipelinesvc.NLQSQLPipeline
	Ambiguity    *pipelinesvc.AmbiguityPipeline
	Runs         *runsvc.Service
	Schema       string
}

// Server wraps the mark3labs/mcp-go MCPServer and its StreamableHTTPServer.
// [SRP] HTTP server lifecycle only (start, stop, session close).
//
//	Tools are registered in tools.go, prompts in prompts.go, watch state in registry.go.
//
// [OCP] Adding new tools or prompts never requires changes to this file.
type Server struct {
	httpSrv *mcpserver.StreamableHTTPServer
	mcpSrv  *mcpserver.MCPServer
	reg     *SessionRegistry
}

// New creates the MCP transport server.
// The reg parameter is a pre-built SessionRegistry (created before the run
// service in the wire). The MCPServer reference is set on the registry after
// construction.
func New(reg *SessionRegistry, deps Deps) *Server {
	s := &Server{reg: reg}

	hooks := &mcpserver.Hooks{}
	hooks.OnUnregisterSession = append(hooks.OnUnregisterSession, s.onSessionClose)

	mcpSrv := mcpserver.NewMCPServer(
		"nlq-bench",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithHooks(hooks),
	)

	// Inject the mcp-go server into the registry (breaks the init cycle).
	reg.SetMCPServer(mcpSrv)

	RegisterTools(mcpSrv, reg, deps)
	RegisterPrompts(mcpSrv, deps.Instructions)

	s.mcpSrv = mcpSrv
	s.httpSrv = mcpserver.NewStreamableHTTPServer(mcpSrv)
	return s
}

// Handler returns an http.Handler that serves the MCP endpoint.
func (s *Server) Handler() http.Handler {
	return s.httpSrv
}

// Registry returns the session registry (implements RunNotifier).
func (s *Server) Registry() *SessionRegistry {
	return s.reg
}

// AddInstructionPrompt exposes an instruction registered after startup as a
// prompt, e.g. one added through REST or another replica.
func (s *Server) AddInstructionPrompt(svc *instructionsvc.Service, key string) {
	addInstructionPrompt(s.mcpSrv, svc, key)
}

func (s *Server) onSessionClose(ctx context.Context, session mcpserver.ClientSession) {
	if n := s.reg.Unregister(session.SessionID()); n > 0 {
		slog.InfoContext(ctx, "mcp: session closed, dropped run watches", "session_id", session.SessionID(), "runs", n)
	}
}
