package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/nlq-bench/internal/domain/event"
	porteventbus "github.com/alanyang/nlq-bench/internal/port/eventbus"
	portidempotency "github.com/alanyang/nlq-bench/internal/port/idempotency"
	"github.com/alanyang/nlq-bench/internal/service/benchmark"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
	pipelinesvc "github.com/alanyang/nlq-bench/internal/service/pipeline"
	runsvc "github.com/alanyang/nlq-bench/internal/service/run"

	agenthandler "github.com/alanyang/nlq-bench/internal/transport/agent"
	instructionhandler "github.com/alanyang/nlq-bench/internal/transport/instruction"
	mcptransport "github.com/alanyang/nlq-bench/internal/transport/mcp"
	pipelinehandler "github.com/alanyang/nlq-bench/internal/transport/pipeline"
	runhandler "github.com/alanyang/nlq-bench/internal/transport/run"
	wshandler "github.com/alanyang/nlq-bench/internal/transport/ws"
)

// Services groups what the HTTP surface exposes.
type Services struct {
	Instructions *instructionsvc.Service
	Agents       benchmark.Agents
	NLQSQL       *pipelinesvc.NLQSQLPipeline
	Ambiguity    *pipelinesvc.AmbiguityPipeline
	Runs         *runsvc.Service
	Schema       string
}

func NewRouter(
	ctx context.Context,
	svcs Services,
	mcpServer *mcptransport.Server,
	eventBus porteventbus.EventBus,
	idempotency portidempotency.Store,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())
	r.Use(IdempotencyMiddleware(idempotency))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	instructionhandler.Register(api.Group("/instructions"), svcs.Instructions)
	agenthandler.Register(api.Group("/agents"), svcs.Agents, svcs.Schema)
	pipelinehandler.Register(api.Group("/pipelines"), svcs.NLQSQL, svcs.Ambiguity)
	runhandler.Register(api.Group("/runs"), svcs.Runs)
	api.GET("/schema", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"schema": svcs.Schema})
	})

	hub := wshandler.NewHub()
	hub.Register(api.Group("/ws"))

	if mcpServer != nil {
		mcpHandler := gin.WrapH(mcpServer.Handler())
		r.Any("/mcp", mcpHandler)
	}

	// One subscription per domain channel. Instruction events also refresh the
	// MCP prompt list so keys added on another replica become prompts here.
	for _, ch := range []event.Channel{event.ChannelRun, event.ChannelInstruction} {
		c := ch
		if _, err := eventBus.Subscribe(ctx, c, func(ctx context.Context, e event.Event) {
			if e.Type == event.TypeInstructionAdded {
				syncInstruction(ctx, svcs.Instructions, mcpServer, e.Key)
			}
			hub.Broadcast(e)
		}); err != nil {
			slog.Error("failed to subscribe channel to WS hub", "channel", c, "error", err)
		}
	}

	return r
}

func syncInstruction(ctx context.Context, svc *instructionsvc.Service, mcpServer *mcptransport.Server, key string) {
	ok, err := svc.Ensure(ctx, key)
	if err != nil {
		slog.Error("failed to reload instructions", "key", key, "error", err)
		return
	}
	if !ok {
		slog.Warn("announced instruction not found", "key", key)
		return
	}
	if mcpServer != nil {
		mcpServer.AddInstructionPrompt(svc, key)
	}
}
