package instruction

import (
	"context"

	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
)

// Repository stores custom instructions so they survive a restart.
// [DIP] service/instruction depends on this interface, not on any concrete storage.
type Repository interface {
	// List returns every stored instruction keyed by registry key.
	List(ctx context.Context) (map[string]domaininstruction.Instruction, error)

	// Upsert stores the instruction under key, replacing any previous value.
	Upsert(ctx context.Context, key string, i domaininstruction.Instruction) error
}
