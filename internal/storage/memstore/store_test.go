package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/internal/storage/storagetest"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
)

func TestMemStoreContract(t *testing.T) {
	storagetest.RunSuite(t, func(t *testing.T) storage.Store {
		return New()
	})
}

func TestConcurrentAtomicSerialises(t *testing.T) {
	store := New()
	ctx := context.Background()

	run, err := store.Runs().Create(ctx, &models.Run{
		GroupID: uuid.New(),
		StoreID: uuid.New(),
		State:   enums.RunStatePlanning,
	})
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = store.Atomic(ctx, func(tx storage.Store) error {
				_, err := tx.Participations().Create(ctx, &models.Participation{
					RunID:  run.ID,
					UserID: uuid.New(),
				})
				return err
			})
		}()
	}
	wg.Wait()

	list, err := store.Participations().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, list, workers)
}
