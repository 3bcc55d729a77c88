// Package notifications carries committed domain facts to the delivery
// collaborator. Services call Notify strictly after their unit of work has
// committed, so a rollback is never followed by an announcement.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

// Fact is one committed domain event. Only ids and deltas; user-facing text
// is the delivery layer's problem.
type Fact struct {
	Kind      enums.NotificationKind `json:"kind"`
	RunID     uuid.UUID              `json:"run_id"`
	UserID    *uuid.UUID             `json:"user_id,omitempty"`
	ProductID *uuid.UUID             `json:"product_id,omitempty"`
	FromState *enums.RunState        `json:"from_state,omitempty"`
	ToState   *enums.RunState        `json:"to_state,omitempty"`
	Quantity  *decimal.Decimal       `json:"quantity,omitempty"`
}

// Notifier receives committed facts. Implementations must tolerate being
// called on the hot path; failures are logged, never propagated back into
// the request.
type Notifier interface {
	Notify(ctx context.Context, fact Fact)
}

// StoreNotifier persists each fact as a Notification row and logs it. It is
// the default Notifier; external delivery tails the notifications table.
type StoreNotifier struct {
	store storage.Store
	logg  *logger.Logger
}

// NewStoreNotifier builds the persisting notifier.
func NewStoreNotifier(store storage.Store, logg *logger.Logger) (*StoreNotifier, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &StoreNotifier{store: store, logg: logg}, nil
}

// Notify writes the fact outside any caller transaction. Persistence errors
// are logged and swallowed; the owning mutation already committed.
func (n *StoreNotifier) Notify(ctx context.Context, fact Fact) {
	ctx = n.logg.WithRunID(ctx, fact.RunID.String())
	ctx = n.logg.WithField(ctx, "kind", string(fact.Kind))

	payload, err := json.Marshal(fact)
	if err != nil {
		n.logg.Error(ctx, "marshal notification fact", err)
		return
	}

	_, err = n.store.Notifications().Create(ctx, &models.Notification{
		RunID:   fact.RunID,
		Kind:    fact.Kind,
		Payload: payload,
	})
	if err != nil {
		n.logg.Error(ctx, "persist notification fact", err)
		return
	}

	n.logg.Info(ctx, "domain fact recorded")
}

// NopNotifier drops every fact. Used by tests that do not assert on
// notification output.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Fact) {}
