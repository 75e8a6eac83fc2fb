package wire

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/nlq-bench/internal/adapter/memory"
	"github.com/alanyang/nlq-bench/internal/domain/event"
)

type fakeRuns struct {
	mu        sync.Mutex
	cancelled []uuid.UUID
	orphaned  []uuid.UUID
	scanErr   error
}

func (f *fakeRuns) Cancel(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeRuns) FailOrphaned(context.Context) ([]uuid.UUID, error) {
	return f.orphaned, f.scanErr
}

func (f *fakeRuns) Cancelled() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.cancelled...)
}

func TestReaper_CancelsStalledRun(t *testing.T) {
	ctx := context.Background()
	bus := memory.NewEventBus()
	runs := &fakeRuns{}
	startReaper(ctx, runs, bus, 20*time.Millisecond)

	id := uuid.New()
	require.NoError(t, bus.Publish(ctx, event.New(event.TypeRunStarted, id)))

	require.Eventually(t, func() bool { return len(runs.Cancelled()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, id, runs.Cancelled()[0])
}

func TestReaper_FinishedRunIsNotCancelled(t *testing.T) {
	for _, final := range []event.Type{event.TypeRunCompleted, event.TypeRunFailed, event.TypeRunCancelled} {
		t.Run(string(final), func(t *testing.T) {
			ctx := context.Background()
			bus := memory.NewEventBus()
			runs := &fakeRuns{}
			startReaper(ctx, runs, bus, 30*time.Millisecond)

			id := uuid.New()
			require.NoError(t, bus.Publish(ctx, event.New(event.TypeRunStarted, id)))
			require.NoError(t, bus.Publish(ctx, event.Progress(id, 1, 1)))
			require.NoError(t, bus.Publish(ctx, event.New(final, id)))

			time.Sleep(80 * time.Millisecond)
			assert.Empty(t, runs.Cancelled())
		})
	}
}

func TestReaper_StartupScanError(t *testing.T) {
	runs := &fakeRuns{scanErr: errors.New("db down")}
	startReaper(context.Background(), runs, memory.NewEventBus(), 0)
	assert.Empty(t, runs.Cancelled())
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_SECONDS", "7")
	assert.Equal(t, 7*time.Second, envDuration("TEST_SECONDS", time.Minute))

	t.Setenv("TEST_SECONDS", "-1")
	assert.Equal(t, time.Minute, envDuration("TEST_SECONDS", time.Minute))

	t.Setenv("TEST_SECONDS", "")
	assert.Equal(t, time.Minute, envDuration("TEST_SECONDS", time.Minute))
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "OUTPUT_DIR", "GENERATOR_PROVIDER", "GENERATOR_RPM", "CASE_TIMEOUT_SECONDS"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "./results", cfg.OutputDir)
	assert.Equal(t, "tgi", cfg.Generator.Provider)
	assert.Equal(t, uint32(5), cfg.Generator.BreakerFailures)
	assert.Zero(t, cfg.CaseTimeout)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GENERATOR_PROVIDER", "echo")
	t.Setenv("GENERATOR_RPM", "30")
	t.Setenv("CASE_TIMEOUT_SECONDS", "45")

	cfg := LoadConfig()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "echo", cfg.Generator.Provider)
	assert.Equal(t, 30, cfg.Generator.RequestsPerMinute)
	assert.Equal(t, 45*time.Second, cfg.CaseTimeout)
}
