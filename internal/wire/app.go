package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyang/nlq-bench/internal/adapter/dataset"
	"github.com/alanyang/nlq-bench/internal/adapter/llm"
	"github.com/alanyang/nlq-bench/internal/adapter/memory"
	pgdb "github.com/alanyang/nlq-bench/internal/adapter/postgres"
	pgeventbus "github.com/alanyang/nlq-bench/internal/adapter/postgres/eventbus"
	pgidempotency "github.com/alanyang/nlq-bench/internal/adapter/postgres/idempotency"
	pginstruction "github.com/alanyang/nlq-bench/internal/adapter/postgres/instruction"
	pglocker "github.com/alanyang/nlq-bench/internal/adapter/postgres/locker"
	pgrun "github.com/alanyang/nlq-bench/internal/adapter/postgres/run"
	"github.com/alanyang/nlq-bench/internal/adapter/report"
	"github.com/alanyang/nlq-bench/internal/domain/schema"
	porteventbus "github.com/alanyang/nlq-bench/internal/port/eventbus"
	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
	portidempotency "github.com/alanyang/nlq-bench/internal/port/idempotency"
	portinstruction "github.com/alanyang/nlq-bench/internal/port/instruction"
	portlocker "github.com/alanyang/nlq-bench/internal/port/locker"
	portrun "github.com/alanyang/nlq-bench/internal/port/run"

	"github.com/alanyang/nlq-bench/internal/service/benchmark"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
	pipelinesvc "github.com/alanyang/nlq-bench/internal/service/pipeline"
	runsvc "github.com/alanyang/nlq-bench/internal/service/run"

	"github.com/alanyang/nlq-bench/internal/transport"
	mcptransport "github.com/alanyang/nlq-bench/internal/transport/mcp"
)

// App holds the top-level resources needed to run and gracefully stop the server.
type App struct {
	Pool      *pgxpool.Pool
	Server    *http.Server
	Runs      *runsvc.Service
	MCPServer *mcptransport.Server

	closers []func()
}

// Close releases the event bus and database pool. Safe when no database is
// configured.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// adapters is the storage set Build wires: Postgres when DATABASE_URL is set,
// in-process otherwise.
type adapters struct {
	instructions portinstruction.Repository
	runs         portrun.Repository
	bus          porteventbus.EventBus
	locker       portlocker.AdvisoryLocker
	idempotency  portidempotency.Store
}

// Build is the composition root: the only place concrete types are wired to their
// interface dependencies.
func Build(ctx context.Context, cfg Config) (*App, error) {
	app := &App{}

	// ── Storage ──────────────────────────────────────────────────────────────
	var ad adapters
	if cfg.DatabaseURL != "" {
		pool, err := pgdb.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		app.Pool = pool
		app.closers = append(app.closers, pool.Close)

		if err := pgdb.Migrate(ctx, pool); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}

		bus := pgeventbus.New(pool)
		app.closers = append(app.closers, bus.Close)
		ad = adapters{
			instructions: pginstruction.New(pool),
			runs:         pgrun.New(pool),
			bus:          bus,
			locker:       pglocker.New(pool),
			idempotency:  pgidempotency.New(pool),
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory storage")
		ad = adapters{
			instructions: memory.NewInstructionRepository(),
			runs:         memory.NewRunRepository(),
			bus:          memory.NewEventBus(),
			locker:       memory.NewLocker(),
			idempotency:  memory.NewIdempotencyStore(),
		}
	}

	// ── Instructions ─────────────────────────────────────────────────────────
	instructions := instructionsvc.NewService(instructionsvc.NewRegistry(), ad.instructions, ad.bus)
	n, err := instructions.Load(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("loading instructions: %w", err)
	}
	slog.Info("custom instructions loaded", "count", n)

	// ── Generators & agents ──────────────────────────────────────────────────
	cache := memory.NewCache()
	generatorFor := func(model string) func() (portgenerator.Generator, error) {
		gcfg := cfg.Generator
		gcfg.Model = model
		return func() (portgenerator.Generator, error) { return llm.New(gcfg, cache) }
	}

	agents, err := benchmark.NewAgents(generatorFor(cfg.Generator.Model), instructions.Registry())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("building agents: %w", err)
	}
	schemaContext := schema.UPI()
	nlqsql := pipelinesvc.NewNLQSQLPipeline(agents.NLQ, agents.SQL, pipelinesvc.WithSchemaContext(schemaContext))
	ambiguity := pipelinesvc.NewAmbiguityPipeline(agents.Ambiguity)

	// ── Runs ─────────────────────────────────────────────────────────────────
	newRunner := func(model string) (runsvc.Runner, error) {
		runAgents, err := benchmark.NewAgents(generatorFor(model), instructions.Registry())
		if err != nil {
			return nil, err
		}
		return benchmark.NewRunner(runAgents, ad.locker, ad.bus,
			benchmark.WithSchemaContext(schemaContext),
			benchmark.WithCaseTimeout(cfg.CaseTimeout),
		), nil
	}

	reg := mcptransport.NewSessionRegistry()
	runs := runsvc.NewService(
		ad.runs,
		newRunner,
		dataset.Load,
		reg, // implements port/notifier.RunNotifier
		report.NewFileWriter(cfg.OutputDir),
		cfg.Generator.Model,
	)
	app.Runs = runs

	// ── Transport ────────────────────────────────────────────────────────────
	svcs := transport.Services{
		Instructions: instructions,
		Agents:       agents,
		NLQSQL:       nlqsql,
		Ambiguity:    ambiguity,
		Runs:         runs,
		Schema:       schemaContext,
	}
	mcpServer := mcptransport.New(reg, mcptransport.Deps{
		Instructions: svcs.Instructions,
		Agents:       svcs.Agents,
		NLQSQL:       svcs.NLQSQL,
		Ambiguity:    svcs.Ambiguity,
		Runs:         svcs.Runs,
		Schema:       svcs.Schema,
	})
	app.MCPServer = mcpServer

	router := transport.NewRouter(ctx, svcs, mcpServer, ad.bus, ad.idempotency)
	app.Server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// ── Stalled-run reaper ───────────────────────────────────────────────────
	startReaper(ctx, runs, ad.bus, cfg.StallGrace)

	slog.Info("application wired",
		"port", cfg.Port,
		"provider", cfg.Generator.Provider,
		"model", cfg.Generator.Model,
		"postgres", app.Pool != nil,
	)
	return app, nil
}
