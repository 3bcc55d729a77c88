package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkastler/poolcart-backend/internal/notifications"
	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	pkgerrors "github.com/mkastler/poolcart-backend/pkg/errors"
	"github.com/mkastler/poolcart-backend/pkg/logger"
	"github.com/mkastler/poolcart-backend/pkg/pagination"
)

// LifecycleHooks are the side effects a transition triggers inside its unit
// of work. The shopping engine implements them; failures roll the whole
// transition back.
type LifecycleHooks interface {
	// MaterializeShoppingList builds the shopping list on the run's first
	// entry into the confirmed state.
	MaterializeShoppingList(ctx context.Context, tx storage.Store, run *models.Run) error
	// DistributePurchases apportions purchases back onto bids when the run
	// enters distribution.
	DistributePurchases(ctx context.Context, tx storage.Store, run *models.Run) error
}

// NopHooks is a LifecycleHooks that does nothing. For tests.
type NopHooks struct{}

func (NopHooks) MaterializeShoppingList(context.Context, storage.Store, *models.Run) error {
	return nil
}
func (NopHooks) DistributePurchases(context.Context, storage.Store, *models.Run) error { return nil }

// Service drives the run lifecycle and membership.
type Service interface {
	CreateRun(ctx context.Context, input CreateRunInput) (*models.Run, error)
	Get(ctx context.Context, runID uuid.UUID) (*RunDetail, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID, filter storage.RunFilter, params pagination.Params) (*storage.RunPage, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Run, error)
	Join(ctx context.Context, runID, userID uuid.UUID) (*models.Participation, error)
	Leave(ctx context.Context, runID, userID uuid.UUID) error
	ToggleReady(ctx context.Context, runID, userID uuid.UUID) (*models.Participation, error)
	SetHelper(ctx context.Context, runID, userID uuid.UUID, helper bool) (*models.Participation, error)
	UpdateComment(ctx context.Context, runID uuid.UUID, comment *string) (*models.Run, error)
}

// CreateRunInput carries run creation parameters. The creator becomes the
// standing leader.
type CreateRunInput struct {
	GroupID   uuid.UUID
	StoreID   uuid.UUID
	CreatorID uuid.UUID
	Comment   *string
}

// TransitionInput identifies the requested lifecycle move. ActorUserID is
// carried into the emitted fact; identity-based permission sits with the
// authorization layer.
type TransitionInput struct {
	RunID       uuid.UUID
	Target      enums.RunState
	ActorUserID uuid.UUID
}

// RunDetail is a run with its memberships.
type RunDetail struct {
	Run            models.Run
	Participations []models.Participation
}

type service struct {
	store    storage.Store
	hooks    LifecycleHooks
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the run service.
func NewService(store storage.Store, hooks LifecycleHooks, notifier notifications.Notifier, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if hooks == nil {
		return nil, fmt.Errorf("lifecycle hooks required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		store:    store,
		hooks:    hooks,
		notifier: notifier,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) CreateRun(ctx context.Context, input CreateRunInput) (*models.Run, error) {
	if input.GroupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.CreatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var created *models.Run
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := tx.Runs().Create(ctx, &models.Run{
			GroupID: input.GroupID,
			StoreID: input.StoreID,
			State:   enums.RunStatePlanning,
			Comment: input.Comment,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create run")
		}

		_, err = tx.Participations().Create(ctx, &models.Participation{
			RunID:    run.ID,
			UserID:   input.CreatorID,
			IsLeader: true,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create leader participation")
		}

		created = run
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Fact{
		Kind:   enums.NotificationParticipantJoined,
		RunID:  created.ID,
		UserID: &input.CreatorID,
	})
	return created, nil
}

func (s *service) Get(ctx context.Context, runID uuid.UUID) (*RunDetail, error) {
	run, err := s.loadRun(ctx, s.store, runID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Participations().ListByRun(ctx, runID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participations")
	}
	return &RunDetail{Run: *run, Participations: members}, nil
}

func (s *service) ListByGroup(ctx context.Context, groupID uuid.UUID, filter storage.RunFilter, params pagination.Params) (*storage.RunPage, error) {
	if groupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	page, err := s.store.Runs().ListByGroup(ctx, groupID, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list runs")
	}
	return page, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Run, error) {
	if input.RunID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}

	var (
		updated *models.Run
		from    enums.RunState
	)
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := s.loadRun(ctx, tx, input.RunID)
		if err != nil {
			return err
		}
		from = run.State

		firstConfirm := input.Target == enums.RunStateConfirmed && run.ConfirmedAt == nil
		entersDistribution := input.Target == enums.RunStateDistributing

		updated, err = Apply(ctx, tx, run, input.Target, s.now())
		if err != nil {
			return err
		}

		if firstConfirm {
			if err := s.hooks.MaterializeShoppingList(ctx, tx, updated); err != nil {
				return err
			}
		}
		if entersDistribution {
			if err := s.hooks.DistributePurchases(ctx, tx, updated); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	target := input.Target
	fact := notifications.Fact{
		Kind:      enums.NotificationRunStateChanged,
		RunID:     updated.ID,
		FromState: &from,
		ToState:   &target,
	}
	if input.ActorUserID != uuid.Nil {
		fact.UserID = &input.ActorUserID
	}
	s.notifier.Notify(ctx, fact)
	return updated, nil
}

func (s *service) Join(ctx context.Context, runID, userID uuid.UUID) (*models.Participation, error) {
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var joined *models.Participation
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := s.loadRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if !CanJoin(run.State) {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "run is not open for joining").
				WithDetails(TransitionDetails{RunID: runID.String(), From: run.State.String()})
		}

		existing, err := tx.Participations().FindByRunAndUser(ctx, runID, userID)
		switch {
		case err == nil && !existing.IsRemoved:
			return pkgerrors.New(pkgerrors.CodeConflict, "already participating")
		case err == nil:
			// rejoin: clear the soft-remove, ready resets
			active, ready := false, false
			if err := tx.Participations().Update(ctx, existing.ID, storage.ParticipationUpdate{
				IsRemoved: &active,
				IsReady:   &ready,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore participation")
			}
			joined, err = tx.Participations().Find(ctx, existing.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload participation")
			}
			return nil
		case errors.Is(err, storage.ErrNotFound):
			joined, err = tx.Participations().Create(ctx, &models.Participation{
				RunID:  runID,
				UserID: userID,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create participation")
			}
			return nil
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participation")
		}
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Fact{
		Kind:   enums.NotificationParticipantJoined,
		RunID:  runID,
		UserID: &userID,
	})
	return joined, nil
}

func (s *service) Leave(ctx context.Context, runID, userID uuid.UUID) error {
	if runID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := s.loadRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if run.State.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "run accepts no further changes")
		}

		p, err := s.loadParticipation(ctx, tx, runID, userID)
		if err != nil {
			return err
		}
		if p.IsLeader {
			return pkgerrors.New(pkgerrors.CodeConflict, "leader must hand over leadership before leaving")
		}

		removed, ready := true, false
		if err := tx.Participations().Update(ctx, p.ID, storage.ParticipationUpdate{
			IsRemoved: &removed,
			IsReady:   &ready,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove participation")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, notifications.Fact{
		Kind:   enums.NotificationParticipantLeft,
		RunID:  runID,
		UserID: &userID,
	})
	return nil
}

func (s *service) ToggleReady(ctx context.Context, runID, userID uuid.UUID) (*models.Participation, error) {
	var toggled *models.Participation
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := s.loadRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if !CanToggleReady(run.State) {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "readiness cannot change in current state").
				WithDetails(TransitionDetails{RunID: runID.String(), From: run.State.String()})
		}

		p, err := s.loadParticipation(ctx, tx, runID, userID)
		if err != nil {
			return err
		}

		ready := !p.IsReady
		if err := tx.Participations().Update(ctx, p.ID, storage.ParticipationUpdate{IsReady: &ready}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update readiness")
		}
		toggled, err = tx.Participations().Find(ctx, p.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload participation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toggled, nil
}

func (s *service) SetHelper(ctx context.Context, runID, userID uuid.UUID, helper bool) (*models.Participation, error) {
	var updated *models.Participation
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := s.loadRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if run.State.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "run accepts no further changes")
		}

		p, err := s.loadParticipation(ctx, tx, runID, userID)
		if err != nil {
			return err
		}
		if err := tx.Participations().Update(ctx, p.ID, storage.ParticipationUpdate{IsHelper: &helper}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update helper flag")
		}
		updated, err = tx.Participations().Find(ctx, p.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload participation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) UpdateComment(ctx context.Context, runID uuid.UUID, comment *string) (*models.Run, error) {
	var updated *models.Run
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := s.loadRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if run.State.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "run accepts no further changes")
		}

		if err := tx.Runs().Update(ctx, runID, storage.RunUpdate{Comment: comment, SetComment: true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update comment")
		}
		updated, err = tx.Runs().Find(ctx, runID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload run")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) loadRun(ctx context.Context, tx storage.Store, runID uuid.UUID) (*models.Run, error) {
	run, err := tx.Runs().Find(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "run not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load run")
	}
	return run, nil
}

func (s *service) loadParticipation(ctx context.Context, tx storage.Store, runID, userID uuid.UUID) (*models.Participation, error) {
	p, err := tx.Participations().FindByRunAndUser(ctx, runID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "participation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participation")
	}
	if p.IsRemoved {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "participation not found")
	}
	return p, nil
}
