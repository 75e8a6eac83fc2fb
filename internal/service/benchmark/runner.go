package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainevent "github.com/alanyang/nlq-bench/internal/domain/event"
	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
	porteventbus "github.com/alanyang/nlq-bench/internal/port/eventbus"
	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
	portlocker "github.com/alanyang/nlq-bench/internal/port/locker"
	agentsvc "github.com/alanyang/nlq-bench/internal/service/agent"
	pipelinesvc "github.com/alanyang/nlq-bench/internal/service/pipeline"
)

// runLockKey serialises runs that share one model backend.
const runLockKey int64 = 0x6e6c7162 // "nlqb"

var ErrUnknownKind = errors.New("unknown benchmark task")

// Agents is the agent set a runner drives. Each agent should own its
// generator instance.
type Agents struct {
	Ambiguity pipelinesvc.Processor
	NLQ       pipelinesvc.Processor
	SQL       pipelinesvc.Processor
}

// NewAgents builds the three agents, asking newGenerator for a separate
// generator per agent.
func NewAgents(newGenerator func() (portgenerator.Generator, error), instructions agentsvc.Instructions, opts ...agentsvc.Option) (Agents, error) {
	gens := make([]portgenerator.Generator, 3)
	for i := range gens {
		g, err := newGenerator()
		if err != nil {
			return Agents{}, fmt.Errorf("build generator: %w", err)
		}
		gens[i] = g
	}
	return Agents{
		Ambiguity: agentsvc.NewAmbiguityAgent(gens[0], instructions, opts...),
		NLQ:       agentsvc.NewNLQAgent(gens[1], instructions, opts...),
		SQL:       agentsvc.NewSQLAgent(gens[2], instructions, opts...),
	}, nil
}

type Option func(*Runner)

// WithCaseTimeout bounds each case. Zero disables the bound.
func WithCaseTimeout(d time.Duration) Option {
	return func(r *Runner) { r.caseTimeout = d }
}

// WithSchemaContext supplies the schema given to SQL generation.
func WithSchemaContext(schema string) Option {
	return func(r *Runner) { r.schema = schema }
}

// WithProgress registers a callback invoked after every case.
func WithProgress(fn func(c domainrun.CaseResult, total int)) Option {
	return func(r *Runner) { r.progress = fn }
}

// Runner executes a dataset through one benchmark task, one case at a time.
// A failing case is recorded and never aborts the batch.
// [SRP] Case execution and scoring only; persistence belongs to the caller.
type Runner struct {
	agents      Agents
	nlqsql      *pipelinesvc.NLQSQLPipeline
	ambiguity   *pipelinesvc.AmbiguityPipeline
	locker      portlocker.AdvisoryLocker
	bus         porteventbus.EventBus
	caseTimeout time.Duration
	schema      string
	progress    func(domainrun.CaseResult, int)
}

func NewRunner(agents Agents, locker portlocker.AdvisoryLocker, bus porteventbus.EventBus, opts ...Option) *Runner {
	r := &Runner{agents: agents, locker: locker, bus: bus}
	for _, opt := range opts {
		opt(r)
	}
	r.nlqsql = pipelinesvc.NewNLQSQLPipeline(agents.NLQ, agents.SQL, pipelinesvc.WithSchemaContext(r.schema))
	r.ambiguity = pipelinesvc.NewAmbiguityPipeline(agents.Ambiguity)
	return r
}

// Run fills rn with case results and a summary, moving it to completed. It
// fails only when the run cannot start or ctx ends; rn is then left
// cancelled (or failed, on a deadline) with the cases finished so far. A
// case interrupted by ctx still counts as finished, but the run does not
// complete.
func (r *Runner) Run(ctx context.Context, rn *domainrun.Run, cases []domainrun.Case) error {
	if !rn.Kind.Valid() {
		return fmt.Errorf("run %s: %w: %q", rn.ID, ErrUnknownKind, rn.Kind)
	}

	return r.locker.WithLock(ctx, runLockKey, func(ctx context.Context) error {
		now := time.Now().UTC()
		rn.Status = domainrun.StatusRunning
		rn.StartedAt = &now
		rn.Cases = make([]domainrun.CaseResult, 0, len(cases))
		r.publish(ctx, domainevent.New(domainevent.TypeRunStarted, rn.ID))

		slog.InfoContext(ctx, "benchmark run started",
			"run_id", rn.ID, "task", rn.Kind, "model", rn.Model, "cases", len(cases))

		for i, c := range cases {
			if err := ctx.Err(); err != nil {
				r.finish(ctx, rn, err)
				return fmt.Errorf("run %s cancelled: %w", rn.ID, err)
			}

			cr := r.runCase(ctx, rn, i, c)
			rn.Cases = append(rn.Cases, cr)
			r.publish(ctx, domainevent.Progress(rn.ID, i+1, len(cases)))
			if r.progress != nil {
				r.progress(cr, len(cases))
			}
		}

		if err := ctx.Err(); err != nil {
			r.finish(ctx, rn, err)
			return fmt.Errorf("run %s cancelled: %w", rn.ID, err)
		}
		r.finish(ctx, rn, nil)
		return nil
	})
}

func (r *Runner) finish(ctx context.Context, rn *domainrun.Run, cause error) {
	now := time.Now().UTC()
	rn.CompletedAt = &now
	rn.Summary = Summarize(rn.Cases)

	if errors.Is(cause, context.Canceled) {
		rn.Status = domainrun.StatusCancelled
		rn.Error = cause.Error()
		r.publish(context.WithoutCancel(ctx), domainevent.New(domainevent.TypeRunCancelled, rn.ID))
		slog.WarnContext(ctx, "benchmark run cancelled", "run_id", rn.ID, "finished", len(rn.Cases))
		return
	}
	if cause != nil {
		rn.Status = domainrun.StatusFailed
		rn.Error = cause.Error()
		r.publish(context.WithoutCancel(ctx), domainevent.New(domainevent.TypeRunFailed, rn.ID))
		slog.ErrorContext(ctx, "benchmark run failed", "run_id", rn.ID, "error", cause)
		return
	}

	rn.Status = domainrun.StatusCompleted
	r.publish(ctx, domainevent.New(domainevent.TypeRunCompleted, rn.ID))
	slog.InfoContext(ctx, "benchmark run completed",
		"run_id", rn.ID,
		"passed", rn.Summary.Passed,
		"total", rn.Summary.Total,
		"errors", rn.Summary.Errors,
		"avg_similarity", rn.Summary.AvgSimilarity,
	)
}

func (r *Runner) runCase(ctx context.Context, rn *domainrun.Run, i int, c domainrun.Case) domainrun.CaseResult {
	if r.caseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.caseTimeout)
		defer cancel()
	}

	cr := domainrun.CaseResult{Index: i + 1, Input: c.Input, Expected: c.Expected}
	start := time.Now()
	predicted, err := r.execute(ctx, rn, c, &cr)
	cr.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		slog.WarnContext(ctx, "benchmark case failed", "run_id", rn.ID, "index", cr.Index, "error", err)
		cr.Error = err.Error()
		predicted = "Error: " + err.Error()
	}
	cr.Predicted = predicted

	ev := Evaluate(predicted, c.Expected)
	cr.ExactMatch = ev.ExactMatch
	cr.PartialMatch = ev.PartialMatch
	cr.Similarity = ev.Similarity
	return cr
}

// execute runs one case through the task's agents and returns the text that
// gets scored.
func (r *Runner) execute(ctx context.Context, rn *domainrun.Run, c domainrun.Case, cr *domainrun.CaseResult) (string, error) {
	keys := rn.Instructions
	switch rn.Kind {
	case domainrun.KindAmbiguity:
		res, err := r.ambiguity.Execute(ctx, c.Input, keys.Ambiguity)
		if err != nil {
			return "", err
		}
		cr.Agent = res
		return res.Output(), nil

	case domainrun.KindNLQSQL:
		res, err := r.nlqsql.Execute(ctx, c.Input, keys.NLQ, keys.SQL)
		if err != nil {
			return "", err
		}
		cr.Pipeline = res
		return res.SQL, nil

	case domainrun.KindNLQ:
		res, err := r.agents.NLQ.Process(ctx, c.Input, agentsvc.ProcessOptions{InstructionKey: keys.NLQ})
		if err != nil {
			return "", err
		}
		cr.Agent = res
		return res.Output(), nil

	case domainrun.KindSQL:
		res, err := r.agents.SQL.Process(ctx, c.Input, agentsvc.ProcessOptions{InstructionKey: keys.SQL, Context: r.schema})
		if err != nil {
			return "", err
		}
		cr.Agent = res
		return res.Output(), nil
	}
	return "", ErrUnknownKind
}

func (r *Runner) publish(ctx context.Context, e domainevent.Event) {
	if err := r.bus.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "failed to publish run event", "type", e.Type, "run_id", e.EntityID, "error", err)
	}
}
