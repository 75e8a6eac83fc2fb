package memory

import (
	"context"
	"sync"

	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
)

// InstructionRepository keeps custom instructions for the life of the
// process only.
type InstructionRepository struct {
	mu    sync.RWMutex
	items map[string]domaininstruction.Instruction
}

func NewInstructionRepository() *InstructionRepository {
	return &InstructionRepository{items: make(map[string]domaininstruction.Instruction)}
}

func (r *InstructionRepository) List(_ context.Context) (map[string]domaininstruction.Instruction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domaininstruction.Instruction, len(r.items))
	for k, v := range r.items {
		out[k] = v
	}
	return out, nil
}

func (r *InstructionRepository) Upsert(_ context.Context, key string, i domaininstruction.Instruction) error {
	r.mu.Lock()
	r.items[key] = i
	r.mu.Unlock()
	return nil
}
