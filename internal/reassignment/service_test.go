package reassignment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkastler/poolcart-backend/internal/notifications"
	"github.com/mkastler/poolcart-backend/internal/runs"
	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/internal/storage/memstore"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	pkgerrors "github.com/mkastler/poolcart-backend/pkg/errors"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

type fixture struct {
	store    storage.Store
	runs     runs.Service
	svc      Service
	runID    uuid.UUID
	leaderID uuid.UUID
	memberID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	logg := logger.New(logger.Options{ServiceName: "test"})

	runSvc, err := runs.NewService(store, runs.NopHooks{}, notifications.NopNotifier{}, logg)
	require.NoError(t, err)
	svc, err := NewService(store, notifications.NopNotifier{}, logg)
	require.NoError(t, err)

	leaderID := uuid.New()
	run, err := runSvc.CreateRun(ctx, runs.CreateRunInput{
		GroupID:   uuid.New(),
		StoreID:   uuid.New(),
		CreatorID: leaderID,
	})
	require.NoError(t, err)

	memberID := uuid.New()
	_, err = runSvc.Join(ctx, run.ID, memberID)
	require.NoError(t, err)

	return &fixture{
		store:    store,
		runs:     runSvc,
		svc:      svc,
		runID:    run.ID,
		leaderID: leaderID,
		memberID: memberID,
	}
}

func (f *fixture) leaders(t *testing.T) []uuid.UUID {
	t.Helper()
	members, err := f.store.Participations().ListByRun(context.Background(), f.runID)
	require.NoError(t, err)
	var out []uuid.UUID
	for _, p := range members {
		if p.IsLeader && !p.IsRemoved {
			out = append(out, p.UserID)
		}
	}
	return out
}

func TestAcceptFlipsLeadershipAtomically(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req, err := f.svc.Request(ctx, f.runID, f.leaderID, f.memberID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReassignmentStatusPending, req.Status)

	resolved, err := f.svc.Accept(ctx, req.ID, f.memberID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReassignmentStatusAccepted, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	leaders := f.leaders(t)
	require.Len(t, leaders, 1, "exactly one leader after handover")
	assert.Equal(t, f.memberID, leaders[0])
}

func TestSecondPendingRequestConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Request(ctx, f.runID, f.leaderID, f.memberID)
	require.NoError(t, err)

	_, err = f.svc.Request(ctx, f.runID, f.leaderID, f.memberID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestOnlyLeaderMayRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Request(ctx, f.runID, f.memberID, f.leaderID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestTargetMustBeActiveParticipant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Request(ctx, f.runID, f.leaderID, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, f.runs.Leave(ctx, f.runID, f.memberID))
	_, err = f.svc.Request(ctx, f.runID, f.leaderID, f.memberID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestDoubleResolveConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req, err := f.svc.Request(ctx, f.runID, f.leaderID, f.memberID)
	require.NoError(t, err)

	_, err = f.svc.Decline(ctx, req.ID, f.memberID)
	require.NoError(t, err)

	_, err = f.svc.Decline(ctx, req.ID, f.memberID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.Accept(ctx, req.ID, f.memberID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	// declined request keeps leadership where it was
	leaders := f.leaders(t)
	require.Len(t, leaders, 1)
	assert.Equal(t, f.leaderID, leaders[0])
}

func TestResolutionActorChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req, err := f.svc.Request(ctx, f.runID, f.leaderID, f.memberID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, req.ID, f.leaderID)
	require.Error(t, err, "only the proposed leader accepts")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Cancel(ctx, req.ID, f.memberID)
	require.Error(t, err, "only the requester cancels")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	cancelled, err := f.svc.Cancel(ctx, req.ID, f.leaderID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReassignmentStatusCancelled, cancelled.Status)

	// cancellation frees the run for a new request
	_, err = f.svc.Request(ctx, f.runID, f.leaderID, f.memberID)
	require.NoError(t, err)
}

func TestPendingAndHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Pending(ctx, f.runID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	req, err := f.svc.Request(ctx, f.runID, f.leaderID, f.memberID)
	require.NoError(t, err)

	pending, err := f.svc.Pending(ctx, f.runID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, pending.ID)

	_, err = f.svc.Decline(ctx, req.ID, f.memberID)
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, f.runID, f.leaderID, f.memberID)
	require.NoError(t, err)

	history, err := f.svc.History(ctx, f.runID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRequestBlockedOnTerminalRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.runs.Transition(ctx, runs.TransitionInput{RunID: f.runID, Target: enums.RunStateCancelled})
	require.NoError(t, err)

	_, err = f.svc.Request(ctx, f.runID, f.leaderID, f.memberID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeActionNotAllowed))
}
