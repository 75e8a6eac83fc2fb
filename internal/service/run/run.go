package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
	portnotifier "github.com/alanyang/nlq-bench/internal/port/notifier"
	portreport "github.com/alanyang/nlq-bench/internal/port/report"
	portrun "github.com/alanyang/nlq-bench/internal/port/run"
)

var (
	ErrNoCases       = errors.New("run has no cases")
	ErrInvalidKind   = errors.New("invalid benchmark task")
	ErrNotCancelable = errors.New("run is not in progress")
)

// interruptedMessage is recorded on runs that were in flight when the
// process stopped.
const interruptedMessage = "interrupted: server restarted before the run finished"

// Runner executes one run's cases. benchmark.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, rn *domainrun.Run, cases []domainrun.Case) error
}

// RunnerFactory builds a runner whose agents talk to model.
type RunnerFactory func(model string) (Runner, error)

// DatasetLoader reads cases from a server-side path.
type DatasetLoader func(path string) ([]domainrun.Case, error)

// StartRequest describes a run submitted through the API. Cases, when set,
// take precedence over Dataset.
type StartRequest struct {
	Model        string
	Kind         domainrun.Kind
	Dataset      string
	Cases        []domainrun.Case
	Instructions domainrun.InstructionKeys
}

// Service starts benchmark runs in the background and tracks them in the run
// repository.
// [SRP] Run lifecycle only; case execution belongs to benchmark.Runner.
// [DIP] Depends on port interfaces; the notifier is the MCP session registry
// in production.
type Service struct {
	repo         portrun.Repository
	newRunner    RunnerFactory
	loadDataset  DatasetLoader
	notifier     portnotifier.RunNotifier
	writer       portreport.Writer
	defaultModel string

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService wires the run lifecycle. writer may be nil to skip report files.
func NewService(
	repo portrun.Repository,
	newRunner RunnerFactory,
	loadDataset DatasetLoader,
	notifier portnotifier.RunNotifier,
	writer portreport.Writer,
	defaultModel string,
) *Service {
	return &Service{
		repo:         repo,
		newRunner:    newRunner,
		loadDataset:  loadDataset,
		notifier:     notifier,
		writer:       writer,
		defaultModel: defaultModel,
		cancels:      make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start validates req, stores a pending run and executes it in the
// background. The returned run is the pending snapshot.
func (s *Service) Start(ctx context.Context, req StartRequest) (domainrun.Run, error) {
	if !req.Kind.Valid() {
		return domainrun.Run{}, fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	cases := req.Cases
	if len(cases) == 0 && req.Dataset != "" {
		loaded, err := s.loadDataset(req.Dataset)
		if err != nil {
			return domainrun.Run{}, fmt.Errorf("loading dataset: %w", err)
		}
		cases = loaded
	}
	if len(cases) == 0 {
		return domainrun.Run{}, ErrNoCases
	}

	runner, err := s.newRunner(model)
	if err != nil {
		return domainrun.Run{}, fmt.Errorf("building runner for %s: %w", model, err)
	}

	rn := domainrun.New(model, req.Kind, req.Dataset, req.Instructions)
	created, err := s.repo.Create(ctx, rn)
	if err != nil {
		return domainrun.Run{}, fmt.Errorf("creating run: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancels[created.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(created.ID)
		s.execute(runCtx, created, runner, cases)
	}()

	slog.InfoContext(ctx, "run submitted", "run_id", created.ID, "task", created.Kind, "model", model, "cases", len(cases))
	return created, nil
}

func (s *Service) execute(ctx context.Context, rn domainrun.Run, runner Runner, cases []domainrun.Case) {
	if err := s.repo.UpdateStatus(ctx, rn.ID, domainrun.StatusPending, domainrun.StatusRunning); err != nil {
		slog.ErrorContext(ctx, "run could not start", "run_id", rn.ID, "error", err)
		return
	}
	s.notify(ctx, rn.ID, map[string]any{"type": "run_started", "run_id": rn.ID})

	runErr := runner.Run(ctx, &rn, cases)
	if runErr != nil && !rn.Status.Terminal() {
		// Runner refused to start (bad task, lock wait cancelled).
		rn.Status = domainrun.StatusFailed
		if errors.Is(runErr, context.Canceled) {
			rn.Status = domainrun.StatusCancelled
		}
		rn.Error = runErr.Error()
	}
	final := rn.Status

	// The run's own ctx may be cancelled; storing the outcome must not be.
	storeCtx := context.WithoutCancel(ctx)
	if err := s.repo.Update(storeCtx, rn); err != nil {
		slog.ErrorContext(storeCtx, "failed to store run report", "run_id", rn.ID, "error", err)
	}
	if err := s.repo.UpdateStatus(storeCtx, rn.ID, domainrun.StatusRunning, final); err != nil {
		slog.ErrorContext(storeCtx, "failed to finalise run status", "run_id", rn.ID, "status", final, "error", err)
	}

	if s.writer != nil && final == domainrun.StatusCompleted {
		if path, err := s.writer.WriteRun(storeCtx, rn); err != nil {
			slog.WarnContext(storeCtx, "failed to write report file", "run_id", rn.ID, "error", err)
		} else {
			slog.InfoContext(storeCtx, "report written", "run_id", rn.ID, "path", path)
		}
	}

	s.notify(storeCtx, rn.ID, map[string]any{
		"type":    "run_" + string(final),
		"run_id":  rn.ID,
		"summary": rn.Summary,
		"error":   rn.Error,
	})
}

func (s *Service) notify(ctx context.Context, runID uuid.UUID, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRunWatchers(ctx, runID, payload); err != nil {
		slog.WarnContext(ctx, "failed to notify run watchers", "run_id", runID, "error", err)
	}
}

func (s *Service) forget(id uuid.UUID) {
	s.mu.Lock()
	delete(s.cancels, id)
	s.mu.Unlock()
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domainrun.Run, error) {
	rn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domainrun.Run{}, fmt.Errorf("getting run: %w", err)
	}
	return rn, nil
}

func (s *Service) List(ctx context.Context, filters domainrun.ListFilters) ([]domainrun.Run, error) {
	runs, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Cancel stops a run executing in this process. The runner records the cases
// finished so far and marks the run cancelled; no report file is written.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("cancel run %s: %w", id, ErrNotCancelable)
	}
	cancel()
	slog.InfoContext(ctx, "run cancellation requested", "run_id", id)
	return nil
}

// Wait blocks until every background run has finished or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAll stops every run in this process, used on shutdown.
func (s *Service) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
}

// FailOrphaned marks runs left pending or running by a previous process as
// failed and returns their IDs. Call it once at startup, before any run is
// submitted.
func (s *Service) FailOrphaned(ctx context.Context) ([]uuid.UUID, error) {
	var failed []uuid.UUID
	for _, status := range []domainrun.Status{domainrun.StatusRunning, domainrun.StatusPending} {
		st := status
		runs, err := s.repo.List(ctx, domainrun.ListFilters{Status: &st})
		if err != nil {
			return failed, fmt.Errorf("listing %s runs: %w", status, err)
		}
		for _, rn := range runs {
			rn.Error = interruptedMessage
			if err := s.repo.Update(ctx, rn); err != nil {
				return failed, fmt.Errorf("updating orphaned run %s: %w", rn.ID, err)
			}
			if err := s.repo.UpdateStatus(ctx, rn.ID, status, domainrun.StatusFailed); err != nil {
				if errors.Is(err, domainrun.ErrStatusConflict) {
					continue
				}
				return failed, fmt.Errorf("failing orphaned run %s: %w", rn.ID, err)
			}
			failed = append(failed, rn.ID)
		}
	}
	return failed, nil
}
