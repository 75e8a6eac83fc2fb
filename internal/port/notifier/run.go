package notifier

import (
	"context"

	"github.com/google/uuid"
)

// RunNotifier pushes run progress to the sessions watching a run.
// [DIP] The run service depends on this abstraction, not on the MCP transport.
type RunNotifier interface {
	NotifyRunWatchers(ctx context.Context, runID uuid.UUID, event any) error
}
