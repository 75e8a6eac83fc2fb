package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	portidempotency "github.com/alanyang/nlq-bench/internal/port/idempotency"
)

// Repository implements port/idempotency.Store on processed_requests.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Check(ctx context.Context, key string) (portidempotency.Response, bool, error) {
	query := `SELECT operation, status_code, response_body FROM processed_requests WHERE idempotency_key = $1`

	var resp portidempotency.Response
	err := r.pool.QueryRow(ctx, query, key).Scan(&resp.Operation, &resp.StatusCode, &resp.Body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return portidempotency.Response{}, false, nil
		}
		return portidempotency.Response{}, false, fmt.Errorf("checking idempotency key: %w", err)
	}
	return resp, true, nil
}

func (r *Repository) Save(ctx context.Context, key, operation string, resp portidempotency.Response) error {
	query := `
		INSERT INTO processed_requests (idempotency_key, operation, status_code, response_body, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, key, operation, resp.StatusCode, resp.Body); err != nil {
		return fmt.Errorf("storing idempotency key: %w", err)
	}
	return nil
}
