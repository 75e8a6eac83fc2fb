//go:build integration

package instruction_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pginstruction "github.com/alanyang/nlq-bench/internal/adapter/postgres/instruction"
	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
	"github.com/alanyang/nlq-bench/internal/testutil"
)

func TestInstructionRepository_UpsertAndList(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := pginstruction.New(pool)
	ctx := context.Background()

	key := domaininstruction.CustomPrefix + uuid.New().String()[:8]
	require.NoError(t, repo.Upsert(ctx, key, domaininstruction.New("terse", "v1", "Q: {input}", "first")))
	require.NoError(t, repo.Upsert(ctx, key, domaininstruction.New("terse", "v2", "Q: {input}", "second")))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	got, ok := all[key]
	require.True(t, ok)
	assert.Equal(t, "v2", got.SystemPrompt)
	assert.Equal(t, "second", got.Description)
	assert.Equal(t, "Q: {input}", got.UserPromptTemplate)
}
