package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkastler/poolcart-backend/internal/storage/memstore"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

func TestStoreNotifierPersistsFact(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	notifier, err := NewStoreNotifier(store, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	runID := uuid.New()
	from := enums.RunStatePlanning
	to := enums.RunStateActive
	notifier.Notify(ctx, Fact{
		Kind:      enums.NotificationRunStateChanged,
		RunID:     runID,
		FromState: &from,
		ToState:   &to,
	})

	rows, err := store.Notifications().ListByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.NotificationRunStateChanged, rows[0].Kind)

	var fact Fact
	require.NoError(t, json.Unmarshal(rows[0].Payload, &fact))
	assert.Equal(t, runID, fact.RunID)
	require.NotNil(t, fact.FromState)
	assert.Equal(t, enums.RunStatePlanning, *fact.FromState)
	require.NotNil(t, fact.ToState)
	assert.Equal(t, enums.RunStateActive, *fact.ToState)
}

func TestStoreNotifierScopesToRun(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	notifier, err := NewStoreNotifier(store, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	first := uuid.New()
	second := uuid.New()
	notifier.Notify(ctx, Fact{Kind: enums.NotificationBidPlaced, RunID: first})
	notifier.Notify(ctx, Fact{Kind: enums.NotificationBidPlaced, RunID: second})
	notifier.Notify(ctx, Fact{Kind: enums.NotificationBidRetracted, RunID: first})

	rows, err := store.Notifications().ListByRun(ctx, first)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, enums.NotificationBidPlaced, rows[0].Kind)
	assert.Equal(t, enums.NotificationBidRetracted, rows[1].Kind)
}
