// Package reassignment moves run leadership between participants through a
// request/accept flow. Leadership mutation is a read-check-write inside one
// unit of work so a run can never end up with zero or two leaders.
package reassignment

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
)

// Service manages leadership handovers.
type Service interface {
	Request(ctx context.Context, runID, fromUserID, toUserID uuid.UUID) (*models.ReassignmentRequest, error)
	Accept(ctx context.Context, requestID, actorUserID uuid.UUID) (*models.ReassignmentRequest, error)
	Decline(ctx context.Context, requestID, actorUserID uuid.UUID) (*models.ReassignmentRequest, error)
	Cancel(ctx context.Context, requestID, actorUserID uuid.UUID) (*models.ReassignmentRequest, error)
	Pending(ctx context.Context, runID uuid.UUID) (*models.ReassignmentRequest, error)
	History(ctx context.Context, runID uuid.UUID) ([]models.ReassignmentRequest, error)
}

type service struct {
	store    storage.Store
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the reassignment service.
func NewService(store storage.Store, notifier notifications.Notifier, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: store, notifier: notifier, logg: logg, now: time.Now}, nil
}

func (s *service) Request(ctx context.Context, runID, fromUserID, toUserID uuid.UUID) (*models.ReassignmentRequest, error) {
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	if fromUserID == uuid.Nil || toUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from and to users required")
	}
	if fromUserID == toUserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot reassign leadership to the current leader")
	}

	var created *models.ReassignmentRequest
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := s.loadRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if run.State.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "run accepts no further changes")
		}

		from, err := s.loadActiveParticipation(ctx, tx, runID, fromUserID)
		if err != nil {
			return err
		}
		if !from.IsLeader {
			return pkgerrors.New(pkgerrors.CodeConflict, "only the current leader can hand over leadership")
		}
		if _, err := s.loadActiveParticipation(ctx, tx, runID, toUserID); err != nil {
			return err
		}

		if _, err := tx.Reassignments().FindPendingByRun(ctx, runID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "a pending reassignment already exists")
		} else if !errors.Is(err, storage.ErrNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending reassignment")
		}

		created, err = tx.Reassignments().Create(ctx, &models.ReassignmentRequest{
			RunID:      runID,
			FromUserID: fromUserID,
			ToUserID:   toUserID,
			Status:     enums.ReassignmentStatusPending,
		})
		if err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return pkgerrors.New(pkgerrors.CodeConflict, "a pending reassignment already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reassignment request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Fact{
		Kind:   enums.NotificationReassignmentRequested,
		RunID:  runID,
		UserID: &toUserID,
	})
	return created, nil
}

func (s *service) Accept(ctx context.Context, requestID, actorUserID uuid.UUID) (*models.ReassignmentRequest, error) {
	resolved, err := s.resolve(ctx, requestID, actorUserID, enums.ReassignmentStatusAccepted)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, notifications.Fact{
		Kind:   enums.NotificationReassignmentResolved,
		RunID:  resolved.RunID,
		UserID: &actorUserID,
	})
	return resolved, nil
}

func (s *service) Decline(ctx context.Context, requestID, actorUserID uuid.UUID) (*models.ReassignmentRequest, error) {
	resolved, err := s.resolve(ctx, requestID, actorUserID, enums.ReassignmentStatusDeclined)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, notifications.Fact{
		Kind:   enums.NotificationReassignmentResolved,
		RunID:  resolved.RunID,
		UserID: &actorUserID,
	})
	return resolved, nil
}

func (s *service) Cancel(ctx context.Context, requestID, actorUserID uuid.UUID) (*models.ReassignmentRequest, error) {
	resolved, err := s.resolve(ctx, requestID, actorUserID, enums.ReassignmentStatusCancelled)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, notifications.Fact{
		Kind:   enums.NotificationReassignmentResolved,
		RunID:  resolved.RunID,
		UserID: &actorUserID,
	})
	return resolved, nil
}

func (s *service) Pending(ctx context.Context, runID uuid.UUID) (*models.ReassignmentRequest, error) {
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	req, err := s.store.Reassignments().FindPendingByRun(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no pending reassignment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending reassignment")
	}
	return req, nil
}

func (s *service) History(ctx context.Context, runID uuid.UUID) ([]models.ReassignmentRequest, error) {
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	out, err := s.store.Reassignments().ListByRun(ctx, runID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reassignments")
	}
	return out, nil
}

// resolve moves a pending request into a terminal status. Accepting also
// flips both leader flags; every write commits together or not at all.
func (s *service) resolve(ctx context.Context, requestID, actorUserID uuid.UUID, target enums.ReassignmentStatus) (*models.ReassignmentRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var resolved *models.ReassignmentRequest
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		req, err := tx.Reassignments().Find(ctx, requestID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reassignment request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reassignment request")
		}
		if req.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeConflict, "reassignment request already resolved")
		}

		switch target {
		case enums.ReassignmentStatusAccepted, enums.ReassignmentStatusDeclined:
			if actorUserID != req.ToUserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "only the proposed leader can resolve this request")
			}
		case enums.ReassignmentStatusCancelled:
			if actorUserID != req.FromUserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "only the requester can cancel this request")
			}
		}

		if target == enums.ReassignmentStatusAccepted {
			if err := s.flipLeadership(ctx, tx, req); err != nil {
				return err
			}
		}

		status := target
		now := s.now().UTC()
		if err := tx.Reassignments().Update(ctx, req.ID, storage.ReassignmentUpdate{
			Status:     &status,
			ResolvedAt: &now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve reassignment")
		}

		resolved, err = tx.Reassignments().Find(ctx, req.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload reassignment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (s *service) flipLeadership(ctx context.Context, tx storage.Store, req *models.ReassignmentRequest) error {
	oldLeader, err := s.loadActiveParticipation(ctx, tx, req.RunID, req.FromUserID)
	if err != nil {
		return err
	}
	if !oldLeader.IsLeader {
		return pkgerrors.New(pkgerrors.CodeConflict, "requester is no longer the leader")
	}
	newLeader, err := s.loadActiveParticipation(ctx, tx, req.RunID, req.ToUserID)
	if err != nil {
		return err
	}

	off, on := false, true
	if err := tx.Participations().Update(ctx, oldLeader.ID, storage.ParticipationUpdate{IsLeader: &off}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "demote old leader")
	}
	if err := tx.Participations().Update(ctx, newLeader.ID, storage.ParticipationUpdate{IsLeader: &on}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote new leader")
	}
	return nil
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

func (s *service) loadActiveParticipation(ctx context.Context, tx storage.Store, runID, userID uuid.UUID) (*models.Participation, error) {
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
