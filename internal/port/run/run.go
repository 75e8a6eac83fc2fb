package run

import (
	"context"

	"github.com/google/uuid"

	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
)

type Repository interface {
	Create(ctx context.Context, r domainrun.Run) (domainrun.Run, error)
	GetByID(ctx context.Context, id uuid.UUID) (domainrun.Run, error)
	List(ctx context.Context, filters domainrun.ListFilters) ([]domainrun.Run, error)

	// Update replaces the stored report. Status changes go through UpdateStatus.
	Update(ctx context.Context, r domainrun.Run) error

	// UpdateStatus performs an atomic CAS: only transitions if current status matches `from`.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domainrun.Status) error
}
