package wire

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyang/nlq-bench/internal/domain/event"
	porteventbus "github.com/alanyang/nlq-bench/internal/port/eventbus"
	runsvc "github.com/alanyang/nlq-bench/internal/service/run"
)

// runReaper is the slice of the run service the reaper drives.
type runReaper interface {
	Cancel(ctx context.Context, id uuid.UUID) error
	FailOrphaned(ctx context.Context) ([]uuid.UUID, error)
}

// startReaper first fails runs a previous process left pending or running,
// then watches the run channel and cancels any run that goes stallGrace
// without finishing a case. Every progress event re-arms the run's timer; a
// terminal event clears it.
func startReaper(ctx context.Context, runs runReaper, bus porteventbus.EventBus, stallGrace time.Duration) {
	orphaned, err := runs.FailOrphaned(ctx)
	if err != nil {
		slog.Error("reaper: startup scan failed", "error", err)
	}
	if len(orphaned) > 0 {
		slog.Info("reaper: failed runs orphaned by a restart", "count", len(orphaned))
	}

	if stallGrace <= 0 {
		return
	}

	var (
		mu     sync.Mutex
		timers = make(map[uuid.UUID]*time.Timer)
	)

	stop := func(runID uuid.UUID) {
		mu.Lock()
		if t, ok := timers[runID]; ok {
			t.Stop()
			delete(timers, runID)
		}
		mu.Unlock()
	}

	arm := func(runID uuid.UUID) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[runID]; ok {
			t.Stop()
		}
		timers[runID] = time.AfterFunc(stallGrace, func() {
			mu.Lock()
			delete(timers, runID)
			mu.Unlock()

			err := runs.Cancel(context.Background(), runID)
			switch {
			case errors.Is(err, runsvc.ErrNotCancelable):
				// Owned by another replica, or already finished.
				slog.Debug("reaper: stalled run not owned here", "run_id", runID)
			case err != nil:
				slog.Error("reaper: cancel stalled run failed", "run_id", runID, "error", err)
			default:
				slog.Warn("reaper: cancelled stalled run", "run_id", runID, "grace", stallGrace)
			}
		})
	}

	if _, err := bus.Subscribe(ctx, event.ChannelRun, func(_ context.Context, e event.Event) {
		switch e.Type {
		case event.TypeRunStarted, event.TypeCaseCompleted:
			arm(e.EntityID)
		case event.TypeRunCompleted, event.TypeRunFailed, event.TypeRunCancelled:
			stop(e.EntityID)
		}
	}); err != nil {
		slog.Error("reaper: failed to subscribe to run channel", "error", err)
	}
}
