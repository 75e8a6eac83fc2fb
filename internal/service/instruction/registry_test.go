package instruction_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
)

func TestNewRegistry_SeedsDefaults(t *testing.T) {
	reg := instructionsvc.NewRegistry()

	assert.Equal(t, []string{"ambiguity_detection", "nlq_refinement", "sql_generation"}, reg.Keys())
	assert.Equal(t, map[string]string{
		"nlq_refinement":      "NLQ refinement with SQL preparation",
		"sql_generation":      "SQL generation from refined NLQ",
		"ambiguity_detection": "Detect ambiguity in queries",
	}, reg.ListAll())
}

func TestNewRegistry_DefaultsRenderWithEmptyContext(t *testing.T) {
	reg := instructionsvc.NewRegistry()
	for _, key := range reg.Keys() {
		ins, ok := reg.Get(key)
		require.True(t, ok, key)
		_, user, err := ins.RenderPrompt("show me top merchants", "")
		require.NoError(t, err, key)
		assert.Contains(t, user, "show me top merchants", key)
	}
}

func TestNewEmptyRegistry(t *testing.T) {
	reg := instructionsvc.NewEmptyRegistry()
	assert.Empty(t, reg.Keys())
	assert.Empty(t, reg.ListAll())
}

func TestRegistries_AreIndependent(t *testing.T) {
	a := instructionsvc.NewRegistry()
	b := instructionsvc.NewRegistry()

	a.AddCustom("only_in_a", "sys", "{input}", "desc")

	_, ok := b.Get("custom_only_in_a")
	assert.False(t, ok)
}

func TestGet_Missing(t *testing.T) {
	reg := instructionsvc.NewRegistry()
	_, ok := reg.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegister_LastWriteWins(t *testing.T) {
	reg := instructionsvc.NewEmptyRegistry()
	reg.Register("k", domaininstruction.New("first", "s1", "{input}", "one"))
	reg.Register("k", domaininstruction.New("second", "s2", "{input}", "two"))

	got, ok := reg.Get("k")
	require.True(t, ok)
	assert.Equal(t, "second", got.Name)
	assert.Equal(t, map[string]string{"k": "two"}, reg.ListAll())
}

func TestRegister_DoesNotValidate(t *testing.T) {
	reg := instructionsvc.NewEmptyRegistry()
	reg.Register("bad", domaininstruction.New("bad", "s", "{foo}", "broken"))

	got, ok := reg.Get("bad")
	require.True(t, ok)

	_, _, err := got.RenderPrompt("x", "")
	assert.ErrorIs(t, err, domaininstruction.ErrMalformedTemplate)
}

func TestAddCustom(t *testing.T) {
	reg := instructionsvc.NewRegistry()

	key := reg.AddCustom("terse_sql", "Be brief.", "Q: {input}\n{context}", "Terse SQL")
	assert.Equal(t, "custom_terse_sql", key)

	got, ok := reg.Get(key)
	require.True(t, ok)
	assert.Equal(t, "terse_sql", got.Name)
	assert.Equal(t, "Be brief.", got.SystemPrompt)
	assert.Equal(t, "Terse SQL", reg.ListAll()[key])
	assert.Len(t, reg.Keys(), 4)
}

func TestAddCustom_Replaces(t *testing.T) {
	reg := instructionsvc.NewEmptyRegistry()
	reg.AddCustom("x", "v1", "{input}", "first")
	reg.AddCustom("x", "v2", "{input}", "second")

	got, _ := reg.Get("custom_x")
	assert.Equal(t, "v2", got.SystemPrompt)
	assert.Len(t, reg.Keys(), 1)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := instructionsvc.NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			reg.AddCustom(fmt.Sprintf("c%d", n), "s", "{input}", "d")
		}(i)
		go func() {
			defer wg.Done()
			_, _ = reg.Get(domaininstruction.KeySQLGeneration)
			_ = reg.ListAll()
		}()
	}
	wg.Wait()

	assert.Len(t, reg.Keys(), 23)
}
