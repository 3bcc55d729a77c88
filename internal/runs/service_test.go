package runs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkastler/poolcart-backend/internal/notifications"
	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/internal/storage/memstore"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	pkgerrors "github.com/mkastler/poolcart-backend/pkg/errors"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

type recordingHooks struct {
	materialized int
	distributed  int
	fail         error
}

func (h *recordingHooks) MaterializeShoppingList(context.Context, storage.Store, *models.Run) error {
	h.materialized++
	return h.fail
}

func (h *recordingHooks) DistributePurchases(context.Context, storage.Store, *models.Run) error {
	h.distributed++
	return h.fail
}

func newTestService(t *testing.T, hooks LifecycleHooks) (Service, storage.Store) {
	t.Helper()
	store := memstore.New()
	if hooks == nil {
		hooks = NopHooks{}
	}
	svc, err := NewService(store, hooks, notifications.NopNotifier{}, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return svc, store
}

func mustCreateRun(t *testing.T, svc Service) *models.Run {
	t.Helper()
	run, err := svc.CreateRun(context.Background(), CreateRunInput{
		GroupID:   uuid.New(),
		StoreID:   uuid.New(),
		CreatorID: uuid.New(),
	})
	require.NoError(t, err)
	return run
}

func advance(t *testing.T, svc Service, runID uuid.UUID, states ...enums.RunState) *models.Run {
	t.Helper()
	var run *models.Run
	var err error
	for _, target := range states {
		run, err = svc.Transition(context.Background(), TransitionInput{RunID: runID, Target: target})
		require.NoError(t, err, "transition to %s", target)
	}
	return run
}

func TestTransitionTableShape(t *testing.T) {
	for _, state := range []enums.RunState{
		enums.RunStatePlanning, enums.RunStateActive, enums.RunStateConfirmed,
		enums.RunStateShopping, enums.RunStateAdjusting, enums.RunStateDistributing,
	} {
		assert.NotEmpty(t, AllowedTargets(state), "non-terminal %s needs outgoing edges", state)
		assert.True(t, CanTransition(state, enums.RunStateCancelled), "%s must be cancellable", state)
	}
	assert.Empty(t, AllowedTargets(enums.RunStateCompleted))
	assert.Empty(t, AllowedTargets(enums.RunStateCancelled))

	assert.True(t, CanTransition(enums.RunStateActive, enums.RunStatePlanning))
	assert.True(t, CanTransition(enums.RunStateConfirmed, enums.RunStateActive))
	assert.True(t, CanTransition(enums.RunStateShopping, enums.RunStateDistributing))
	assert.False(t, CanTransition(enums.RunStatePlanning, enums.RunStateConfirmed))
	assert.False(t, CanTransition(enums.RunStateDistributing, enums.RunStateShopping))
}

func TestGatingPredicates(t *testing.T) {
	for _, s := range []enums.RunState{enums.RunStatePlanning, enums.RunStateActive, enums.RunStateAdjusting} {
		assert.True(t, CanPlaceBid(s), "bids allowed in %s", s)
		assert.True(t, CanRetractBid(s))
	}
	for _, s := range []enums.RunState{enums.RunStateConfirmed, enums.RunStateShopping, enums.RunStateDistributing, enums.RunStateCompleted, enums.RunStateCancelled} {
		assert.False(t, CanPlaceBid(s), "bids blocked in %s", s)
	}

	assert.True(t, CanToggleReady(enums.RunStatePlanning))
	assert.True(t, CanToggleReady(enums.RunStateActive))
	assert.False(t, CanToggleReady(enums.RunStateConfirmed))

	assert.True(t, CanViewShoppingList(enums.RunStateConfirmed))
	assert.True(t, CanViewShoppingList(enums.RunStateCompleted))
	assert.False(t, CanViewShoppingList(enums.RunStateActive))

	assert.True(t, CanRecordPurchase(enums.RunStateShopping))
	assert.True(t, CanRecordPurchase(enums.RunStateAdjusting))
	assert.False(t, CanRecordPurchase(enums.RunStateDistributing))

	assert.True(t, CanViewDistribution(enums.RunStateDistributing))
	assert.True(t, CanViewDistribution(enums.RunStateCompleted))
	assert.False(t, CanViewDistribution(enums.RunStateAdjusting))

	assert.True(t, CanCompleteDistribution(enums.RunStateDistributing))
	assert.False(t, CanCompleteDistribution(enums.RunStateCompleted))
}

func TestCreateRunSetsUpLeader(t *testing.T) {
	svc, store := newTestService(t, nil)
	creatorID := uuid.New()

	run, err := svc.CreateRun(context.Background(), CreateRunInput{
		GroupID:   uuid.New(),
		StoreID:   uuid.New(),
		CreatorID: creatorID,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.RunStatePlanning, run.State)

	members, err := store.Participations().ListByRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, creatorID, members[0].UserID)
	assert.True(t, members[0].IsLeader)
}

func TestTransitionRejectsIllegalTarget(t *testing.T) {
	svc, _ := newTestService(t, nil)
	run := mustCreateRun(t, svc)

	_, err := svc.Transition(context.Background(), TransitionInput{RunID: run.ID, Target: enums.RunStateConfirmed})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))

	// run untouched by the rejected transition
	detail, err := svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RunStatePlanning, detail.Run.State)
}

func TestTransitionAffectsOnlyTargetRun(t *testing.T) {
	svc, _ := newTestService(t, nil)
	first := mustCreateRun(t, svc)
	second := mustCreateRun(t, svc)

	_, err := svc.Transition(context.Background(), TransitionInput{RunID: first.ID, Target: enums.RunStateActive})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RunStatePlanning, got.Run.State)
}

func TestCancellationFromEveryState(t *testing.T) {
	paths := map[enums.RunState][]enums.RunState{
		enums.RunStatePlanning:     {},
		enums.RunStateActive:       {enums.RunStateActive},
		enums.RunStateConfirmed:    {enums.RunStateActive, enums.RunStateConfirmed},
		enums.RunStateShopping:     {enums.RunStateActive, enums.RunStateConfirmed, enums.RunStateShopping},
		enums.RunStateAdjusting:    {enums.RunStateActive, enums.RunStateConfirmed, enums.RunStateShopping, enums.RunStateAdjusting},
		enums.RunStateDistributing: {enums.RunStateActive, enums.RunStateConfirmed, enums.RunStateShopping, enums.RunStateAdjusting, enums.RunStateDistributing},
	}

	for from, path := range paths {
		t.Run(from.String(), func(t *testing.T) {
			svc, _ := newTestService(t, nil)
			run := mustCreateRun(t, svc)
			if len(path) > 0 {
				advance(t, svc, run.ID, path...)
			}

			cancelled, err := svc.Transition(context.Background(), TransitionInput{RunID: run.ID, Target: enums.RunStateCancelled})
			require.NoError(t, err)
			assert.Equal(t, enums.RunStateCancelled, cancelled.State)
			require.NotNil(t, cancelled.CancelledAt)
		})
	}

	for _, terminalPath := range [][]enums.RunState{
		{enums.RunStateActive, enums.RunStateConfirmed, enums.RunStateShopping, enums.RunStateDistributing, enums.RunStateCompleted},
		{enums.RunStateCancelled},
	} {
		svc, _ := newTestService(t, nil)
		run := mustCreateRun(t, svc)
		final := advance(t, svc, run.ID, terminalPath...)

		_, err := svc.Transition(context.Background(), TransitionInput{RunID: run.ID, Target: enums.RunStateCancelled})
		require.Error(t, err, "cancel from %s must fail", final.State)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
	}
}

func TestStateEntryTimestampsStampOnce(t *testing.T) {
	svc, _ := newTestService(t, nil)
	run := mustCreateRun(t, svc)

	first := advance(t, svc, run.ID, enums.RunStateActive)
	require.NotNil(t, first.ActivatedAt)
	stamp := *first.ActivatedAt

	// bounce back to planning and re-activate; the original stamp survives
	again := advance(t, svc, run.ID, enums.RunStatePlanning, enums.RunStateActive)
	require.NotNil(t, again.ActivatedAt)
	assert.True(t, stamp.Equal(*again.ActivatedAt))
}

func TestMaterializeHookOnFirstConfirmOnly(t *testing.T) {
	hooks := &recordingHooks{}
	svc, _ := newTestService(t, hooks)
	run := mustCreateRun(t, svc)

	advance(t, svc, run.ID, enums.RunStateActive, enums.RunStateConfirmed)
	assert.Equal(t, 1, hooks.materialized)

	advance(t, svc, run.ID, enums.RunStateActive, enums.RunStateConfirmed)
	assert.Equal(t, 1, hooks.materialized, "re-entering confirmed must not re-materialize")

	advance(t, svc, run.ID, enums.RunStateShopping, enums.RunStateDistributing)
	assert.Equal(t, 1, hooks.distributed)
}

func TestHookFailureRollsBackTransition(t *testing.T) {
	hooks := &recordingHooks{fail: assert.AnError}
	svc, _ := newTestService(t, hooks)
	run := mustCreateRun(t, svc)
	advance(t, svc, run.ID, enums.RunStateActive)

	_, err := svc.Transition(context.Background(), TransitionInput{RunID: run.ID, Target: enums.RunStateConfirmed})
	require.ErrorIs(t, err, assert.AnError)

	got, err := svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RunStateActive, got.Run.State)
	assert.Nil(t, got.Run.ConfirmedAt)
}

func TestJoinLeaveRejoin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	run := mustCreateRun(t, svc)
	memberID := uuid.New()

	p, err := svc.Join(ctx, run.ID, memberID)
	require.NoError(t, err)
	assert.False(t, p.IsLeader)

	_, err = svc.Join(ctx, run.ID, memberID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	require.NoError(t, svc.Leave(ctx, run.ID, memberID))

	rejoined, err := svc.Join(ctx, run.ID, memberID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, rejoined.ID, "rejoin restores the original participation")
	assert.False(t, rejoined.IsRemoved)
	assert.False(t, rejoined.IsReady)
}

func TestLeaderCannotLeave(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	creatorID := uuid.New()
	run, err := svc.CreateRun(ctx, CreateRunInput{GroupID: uuid.New(), StoreID: uuid.New(), CreatorID: creatorID})
	require.NoError(t, err)

	err = svc.Leave(ctx, run.ID, creatorID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestToggleReadyGatedByState(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	run := mustCreateRun(t, svc)
	memberID := uuid.New()
	_, err := svc.Join(ctx, run.ID, memberID)
	require.NoError(t, err)

	p, err := svc.ToggleReady(ctx, run.ID, memberID)
	require.NoError(t, err)
	assert.True(t, p.IsReady)

	p, err = svc.ToggleReady(ctx, run.ID, memberID)
	require.NoError(t, err)
	assert.False(t, p.IsReady)

	advance(t, svc, run.ID, enums.RunStateActive, enums.RunStateConfirmed)
	_, err = svc.ToggleReady(ctx, run.ID, memberID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeActionNotAllowed))
}

func TestUpdateCommentBlockedOnTerminalRun(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	run := mustCreateRun(t, svc)

	comment := "bring crates"
	updated, err := svc.UpdateComment(ctx, run.ID, &comment)
	require.NoError(t, err)
	require.NotNil(t, updated.Comment)
	assert.Equal(t, comment, *updated.Comment)

	advance(t, svc, run.ID, enums.RunStateCancelled)
	_, err = svc.UpdateComment(ctx, run.ID, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeActionNotAllowed))
}
