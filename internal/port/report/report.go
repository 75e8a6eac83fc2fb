package report

import (
	"context"

	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
)

// Writer persists finished reports outside the run repository, e.g. as files
// next to the dataset. Each method returns where the report was written.
type Writer interface {
	WriteRun(ctx context.Context, r domainrun.Run) (string, error)
	WriteComparison(ctx context.Context, c domainrun.Comparison) (string, error)
}
