package instruction

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
)

// Repository implements port/instruction.Repository on the
// custom_instructions table.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context) (map[string]domaininstruction.Instruction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT key, name, system_prompt, user_prompt_template, description
		FROM custom_instructions
		ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing custom instructions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domaininstruction.Instruction)
	for rows.Next() {
		var key string
		var i domaininstruction.Instruction
		if err := rows.Scan(&key, &i.Name, &i.SystemPrompt, &i.UserPromptTemplate, &i.Description); err != nil {
			return nil, fmt.Errorf("scanning instruction row: %w", err)
		}
		out[key] = i
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating instruction rows: %w", err)
	}
	return out, nil
}

func (r *Repository) Upsert(ctx context.Context, key string, i domaininstruction.Instruction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO custom_instructions (key, name, system_prompt, user_prompt_template, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name,
			system_prompt = EXCLUDED.system_prompt,
			user_prompt_template = EXCLUDED.user_prompt_template,
			description = EXCLUDED.description,
			updated_at = NOW()`,
		key, i.Name, i.SystemPrompt, i.UserPromptTemplate, i.Description)
	if err != nil {
		return fmt.Errorf("upserting instruction %s: %w", key, err)
	}
	return nil
}
