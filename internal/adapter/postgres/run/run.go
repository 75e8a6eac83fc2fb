package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
)

// Repository implements port/run.Repository on benchmark_runs. The report is
// stored whole as JSONB; status and timestamps live in their own columns and
// win over the copies inside the report.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `id, status, report, created_at, started_at, completed_at`

func (r *Repository) Create(ctx context.Context, rn domainrun.Run) (domainrun.Run, error) {
	report, err := json.Marshal(rn)
	if err != nil {
		return domainrun.Run{}, fmt.Errorf("encoding run report: %w", err)
	}

	query := `
		INSERT INTO benchmark_runs (id, model, task, dataset, status, report, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + selectColumns

	created, err := scanRun(r.pool.QueryRow(ctx, query,
		rn.ID, rn.Model, string(rn.Kind), rn.Dataset, string(rn.Status), report,
		rn.CreatedAt, rn.StartedAt, rn.CompletedAt,
	))
	if err != nil {
		return domainrun.Run{}, fmt.Errorf("inserting run: %w", err)
	}
	return created, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domainrun.Run, error) {
	rn, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM benchmark_runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainrun.Run{}, fmt.Errorf("run %s: %w", id, domainrun.ErrNotFound)
		}
		return domainrun.Run{}, fmt.Errorf("querying run: %w", err)
	}
	return rn, nil
}

func (r *Repository) List(ctx context.Context, filters domainrun.ListFilters) ([]domainrun.Run, error) {
	query := `SELECT ` + selectColumns + ` FROM benchmark_runs WHERE 1=1`

	args := []interface{}{}
	argIdx := 1

	if filters.Model != nil {
		query += fmt.Sprintf(" AND model = $%d", argIdx)
		args = append(args, *filters.Model)
		argIdx++
	}
	if filters.Kind != nil {
		query += fmt.Sprintf(" AND task = $%d", argIdx)
		args = append(args, string(*filters.Kind))
		argIdx++
	}
	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*filters.Status))
		argIdx++
	}

	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []domainrun.Run
	for rows.Next() {
		rn, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, rn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, nil
}

// Update stores the report and timestamps. The status column is untouched.
func (r *Repository) Update(ctx context.Context, rn domainrun.Run) error {
	report, err := json.Marshal(rn)
	if err != nil {
		return fmt.Errorf("encoding run report: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE benchmark_runs SET
			report = $2, started_at = $3, completed_at = $4
		WHERE id = $1`,
		rn.ID, report, rn.StartedAt, rn.CompletedAt)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", rn.ID, domainrun.ErrNotFound)
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domainrun.Status) error {
	now := time.Now().UTC()
	var query string

	switch to {
	case domainrun.StatusRunning:
		query = `UPDATE benchmark_runs SET status = $1, started_at = COALESCE(started_at, $2) WHERE id = $3 AND status = $4`
	case domainrun.StatusCompleted, domainrun.StatusFailed, domainrun.StatusCancelled:
		query = `UPDATE benchmark_runs SET status = $1, completed_at = COALESCE(completed_at, $2) WHERE id = $3 AND status = $4`
	default:
		query = `UPDATE benchmark_runs SET status = $1 WHERE id = $3 AND status = $4 AND $2::timestamptz IS NOT NULL`
	}

	tag, err := r.pool.Exec(ctx, query, string(to), now, id, string(from))
	if err != nil {
		return fmt.Errorf("updating run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: run %s expected status %s", domainrun.ErrStatusConflict, id, from)
	}
	return nil
}

func scanRun(row pgx.Row) (domainrun.Run, error) {
	var (
		id          uuid.UUID
		status      string
		report      []byte
		createdAt   time.Time
		startedAt   *time.Time
		completedAt *time.Time
	)
	if err := row.Scan(&id, &status, &report, &createdAt, &startedAt, &completedAt); err != nil {
		return domainrun.Run{}, err
	}

	var rn domainrun.Run
	if err := json.Unmarshal(report, &rn); err != nil {
		return domainrun.Run{}, fmt.Errorf("decoding run report %s: %w", id, err)
	}
	rn.ID = id
	rn.Status = domainrun.Status(status)
	rn.CreatedAt = createdAt
	rn.StartedAt = startedAt
	rn.CompletedAt = completedAt
	return rn, nil
}
