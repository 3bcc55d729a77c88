package runs

import (
	"context"
	"time"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	pkgerrors "github.com/mkastler/poolcart-backend/pkg/errors"
)

// TransitionDetails identifies a rejected or executed transition.
type TransitionDetails struct {
	RunID string `json:"run_id"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Apply validates and executes one lifecycle transition inside the caller's
// unit of work. The state-entry timestamp is written only if the run has
// never been in the target state, so re-entered states keep their original
// stamp. The returned run reflects the new state; hooks and notification
// emission stay with the caller.
func Apply(ctx context.Context, tx storage.Store, run *models.Run, target enums.RunState, now time.Time) (*models.Run, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown run state").
			WithDetails(TransitionDetails{RunID: run.ID.String(), From: run.State.String(), To: target.String()})
	}
	if !CanTransition(run.State, target) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "transition not allowed").
			WithDetails(TransitionDetails{RunID: run.ID.String(), From: run.State.String(), To: target.String()})
	}

	update := storage.RunUpdate{State: &target}
	stamp := now.UTC()
	switch target {
	case enums.RunStateActive:
		if run.ActivatedAt == nil {
			update.ActivatedAt = &stamp
		}
	case enums.RunStateConfirmed:
		if run.ConfirmedAt == nil {
			update.ConfirmedAt = &stamp
		}
	case enums.RunStateShopping:
		if run.ShoppingStartedAt == nil {
			update.ShoppingStartedAt = &stamp
		}
	case enums.RunStateAdjusting:
		if run.AdjustingStartedAt == nil {
			update.AdjustingStartedAt = &stamp
		}
	case enums.RunStateDistributing:
		if run.DistributingStartedAt == nil {
			update.DistributingStartedAt = &stamp
		}
	case enums.RunStateCompleted:
		if run.CompletedAt == nil {
			update.CompletedAt = &stamp
		}
	case enums.RunStateCancelled:
		if run.CancelledAt == nil {
			update.CancelledAt = &stamp
		}
	}

	if err := tx.Runs().Update(ctx, run.ID, update); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist transition")
	}

	updated, err := tx.Runs().Find(ctx, run.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload run")
	}
	return updated, nil
}
