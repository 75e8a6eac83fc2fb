package instruction_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainevent "github.com/alanyang/nlq-bench/internal/domain/event"
	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
	"github.com/alanyang/nlq-bench/internal/mocks"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
)

func newInstructionSvc(t *testing.T) (*instructionsvc.Service, *mocks.MockInstructionRepository, *mocks.MockEventBus) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockInstructionRepository(ctrl)
	bus := mocks.NewMockEventBus(ctrl)
	return instructionsvc.NewService(instructionsvc.NewRegistry(), repo, bus), repo, bus
}

func TestLoad_RegistersStored(t *testing.T) {
	svc, repo, _ := newInstructionSvc(t)
	repo.EXPECT().List(gomock.Any()).Return(map[string]domaininstruction.Instruction{
		"custom_terse": domaininstruction.New("terse", "s", "{input}", "Terse"),
	}, nil)

	n, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.Get("custom_terse")
	require.NoError(t, err)
	assert.Equal(t, "terse", got.Name)
}

func TestLoad_Error(t *testing.T) {
	svc, repo, _ := newInstructionSvc(t)
	repo.EXPECT().List(gomock.Any()).Return(nil, errors.New("db error"))

	_, err := svc.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load custom instructions")
}

func TestEnsure_KnownKeySkipsRepository(t *testing.T) {
	svc, _, _ := newInstructionSvc(t)

	ok, err := svc.Ensure(context.Background(), domaininstruction.KeyNLQRefinement)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsure_ReloadsUnknownKey(t *testing.T) {
	svc, repo, _ := newInstructionSvc(t)
	repo.EXPECT().List(gomock.Any()).Return(map[string]domaininstruction.Instruction{
		"custom_remote": domaininstruction.New("remote", "s", "{input}", "Remote"),
	}, nil)

	ok, err := svc.Ensure(context.Background(), "custom_remote")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsure_StillMissing(t *testing.T) {
	svc, repo, _ := newInstructionSvc(t)
	repo.EXPECT().List(gomock.Any()).Return(map[string]domaininstruction.Instruction{}, nil)

	ok, err := svc.Ensure(context.Background(), "custom_gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := newInstructionSvc(t)
	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, instructionsvc.ErrNotFound)
}

func TestList_SortedWithCustomFlag(t *testing.T) {
	svc, repo, bus := newInstructionSvc(t)
	repo.EXPECT().Upsert(gomock.Any(), "custom_a", gomock.Any()).Return(nil)
	bus.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	_, err := svc.AddCustom(context.Background(), "a", "s", "{input}", "A")
	require.NoError(t, err)

	got := svc.List()
	require.Len(t, got, 4)
	assert.Equal(t, "ambiguity_detection", got[0].Key)
	assert.False(t, got[0].Custom)
	assert.Equal(t, "custom_a", got[1].Key)
	assert.True(t, got[1].Custom)
}

func TestAddCustom_PersistsAndPublishes(t *testing.T) {
	svc, repo, bus := newInstructionSvc(t)
	repo.EXPECT().Upsert(gomock.Any(), "custom_terse", domaininstruction.New("terse", "Be brief.", "{input}", "Terse")).Return(nil)
	bus.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e domainevent.Event) error {
		assert.Equal(t, domainevent.TypeInstructionAdded, e.Type)
		assert.Equal(t, "custom_terse", e.Key)
		return nil
	})

	key, err := svc.AddCustom(context.Background(), "terse", "Be brief.", "{input}", "Terse")
	require.NoError(t, err)
	assert.Equal(t, "custom_terse", key)
}

func TestAddCustom_EmptyName(t *testing.T) {
	svc, _, _ := newInstructionSvc(t)
	_, err := svc.AddCustom(context.Background(), "  ", "s", "{input}", "d")
	assert.ErrorIs(t, err, instructionsvc.ErrInvalidName)
}

func TestAddCustom_PersistFailureKeepsRegistration(t *testing.T) {
	svc, repo, _ := newInstructionSvc(t)
	repo.EXPECT().Upsert(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("db error"))

	key, err := svc.AddCustom(context.Background(), "x", "s", "{input}", "d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist instruction")

	_, getErr := svc.Get(key)
	assert.NoError(t, getErr)
}

func TestAddCustom_PublishFailureIsNotFatal(t *testing.T) {
	svc, repo, bus := newInstructionSvc(t)
	repo.EXPECT().Upsert(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	bus.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("bus down"))

	_, err := svc.AddCustom(context.Background(), "x", "s", "{input}", "d")
	assert.NoError(t, err)
}

func TestRender(t *testing.T) {
	svc, _, _ := newInstructionSvc(t)

	got, err := svc.Render(domaininstruction.KeySQLGeneration, "top merchants by volume", "Refined from: show me top merchants")
	require.NoError(t, err)
	assert.Equal(t, got.System+"\n\n"+got.User, got.Prompt)
	assert.Contains(t, got.User, "top merchants by volume")
	assert.Contains(t, got.User, "Refined from: show me top merchants")
}

func TestRender_Malformed(t *testing.T) {
	svc, repo, bus := newInstructionSvc(t)
	repo.EXPECT().Upsert(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	bus.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	key, err := svc.AddCustom(context.Background(), "broken", "s", "{foo}", "d")
	require.NoError(t, err)

	_, err = svc.Render(key, "x", "")
	assert.ErrorIs(t, err, domaininstruction.ErrMalformedTemplate)
}
