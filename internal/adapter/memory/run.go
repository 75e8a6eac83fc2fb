package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
)

var (
	ErrRunNotFound    = domainrun.ErrNotFound
	ErrStatusConflict = domainrun.ErrStatusConflict
)

// RunRepository stores run reports in memory. Reports are deep-copied on the
// way in and out so callers cannot mutate stored state.
type RunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID][]byte
}

func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[uuid.UUID][]byte)}
}

func (r *RunRepository) Create(_ context.Context, rn domainrun.Run) (domainrun.Run, error) {
	data, err := json.Marshal(rn)
	if err != nil {
		return domainrun.Run{}, fmt.Errorf("encode run: %w", err)
	}
	r.mu.Lock()
	r.runs[rn.ID] = data
	r.mu.Unlock()
	return rn, nil
}

func (r *RunRepository) GetByID(_ context.Context, id uuid.UUID) (domainrun.Run, error) {
	r.mu.RLock()
	data, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return domainrun.Run{}, ErrRunNotFound
	}
	return decodeRun(data)
}

// List returns runs newest first.
func (r *RunRepository) List(_ context.Context, filters domainrun.ListFilters) ([]domainrun.Run, error) {
	r.mu.RLock()
	all := make([]domainrun.Run, 0, len(r.runs))
	for _, data := range r.runs {
		rn, err := decodeRun(data)
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		all = append(all, rn)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	out := make([]domainrun.Run, 0, len(all))
	for _, rn := range all {
		if filters.Model != nil && rn.Model != *filters.Model {
			continue
		}
		if filters.Kind != nil && rn.Kind != *filters.Kind {
			continue
		}
		if filters.Status != nil && rn.Status != *filters.Status {
			continue
		}
		out = append(out, rn)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}

// Update keeps the stored status; only UpdateStatus moves it.
func (r *RunRepository) Update(_ context.Context, rn domainrun.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.runs[rn.ID]
	if !ok {
		return ErrRunNotFound
	}
	stored, err := decodeRun(existing)
	if err != nil {
		return err
	}
	rn.Status = stored.Status

	data, err := json.Marshal(rn)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	r.runs[rn.ID] = data
	return nil
}

func (r *RunRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to domainrun.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	rn, err := decodeRun(data)
	if err != nil {
		return err
	}
	if rn.Status != from {
		return fmt.Errorf("%w: run %s is %s, not %s", ErrStatusConflict, id, rn.Status, from)
	}
	rn.Status = to
	updated, err := json.Marshal(rn)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	r.runs[id] = updated
	return nil
}

func decodeRun(data []byte) (domainrun.Run, error) {
	var rn domainrun.Run
	if err := json.Unmarshal(data, &rn); err != nil {
		return domainrun.Run{}, fmt.Errorf("decode run: %w", err)
	}
	return rn, nil
}
