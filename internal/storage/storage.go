// Package storage defines the persistence contract shared by the SQL and
// in-memory backends. Services depend on Store only; a backend is selected
// at wiring time. All list methods that feed allocation logic order rows by
// (created_at, id) so both backends produce identical traversal order.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	"github.com/mkastler/poolcart-backend/pkg/pagination"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when an insert violates a uniqueness rule.
	ErrDuplicate = errors.New("storage: duplicate")
)

// Store aggregates the per-entity repositories and the unit-of-work entry
// point. Atomic runs fn against a transactional view of the store; fn's
// error rolls every write back, nil commits them. Nested Atomic calls join
// the enclosing transaction.
type Store interface {
	Atomic(ctx context.Context, fn func(Store) error) error

	Runs() RunRepository
	Participations() ParticipationRepository
	Bids() BidRepository
	ShoppingItems() ShoppingItemRepository
	Reassignments() ReassignmentRepository
	Availability() AvailabilityRepository
	Products() ProductRepository
	Notifications() NotificationRepository
}

// RunFilter narrows run listings.
type RunFilter struct {
	States []enums.RunState
}

// RunPage is one cursor page of runs.
type RunPage struct {
	Runs       []models.Run
	NextCursor string
}

// RunUpdate carries a partial run update; nil fields are left untouched.
// State-entry timestamps are written via the pointer fields and never
// cleared. SetComment distinguishes "clear the comment" from "leave it".
type RunUpdate struct {
	State      *enums.RunState
	Comment    *string
	SetComment bool

	ActivatedAt           *time.Time
	ConfirmedAt           *time.Time
	ShoppingStartedAt     *time.Time
	AdjustingStartedAt    *time.Time
	DistributingStartedAt *time.Time
	CompletedAt           *time.Time
	CancelledAt           *time.Time
}

// RunRepository persists runs.
type RunRepository interface {
	Create(ctx context.Context, run *models.Run) (*models.Run, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID, filter RunFilter, params pagination.Params) (*RunPage, error)
	Update(ctx context.Context, id uuid.UUID, update RunUpdate) error
}

// ParticipationUpdate carries a partial participation update.
type ParticipationUpdate struct {
	IsLeader  *bool
	IsHelper  *bool
	IsReady   *bool
	IsRemoved *bool
}

// ParticipationRepository persists run memberships. ListByRun returns rows
// ordered by (created_at, id) and includes removed participations; callers
// filter on IsRemoved where it matters.
type ParticipationRepository interface {
	Create(ctx context.Context, p *models.Participation) (*models.Participation, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Participation, error)
	FindByRunAndUser(ctx context.Context, runID, userID uuid.UUID) (*models.Participation, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Participation, error)
	Update(ctx context.Context, id uuid.UUID, update ParticipationUpdate) error
}

// BidUpdate carries a partial bid update.
type BidUpdate struct {
	Quantity       *decimal.Decimal
	InterestedOnly *bool
	Comment        *string
	SetComment     bool

	DistributedQuantity     *decimal.Decimal
	DistributedPricePerUnit *decimal.Decimal
	IsPickedUp              *bool
}

// BidRepository persists bids. Run-scoped listings join through
// participations and are ordered by bid (created_at, id); that order is the
// remainder round-robin order during distribution.
type BidRepository interface {
	Create(ctx context.Context, bid *models.Bid) (*models.Bid, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	FindByParticipationAndProduct(ctx context.Context, participationID, productID uuid.UUID) (*models.Bid, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Bid, error)
	ListByRunAndProduct(ctx context.Context, runID, productID uuid.UUID) ([]models.Bid, error)
	ListByParticipation(ctx context.Context, participationID uuid.UUID) ([]models.Bid, error)
	Update(ctx context.Context, id uuid.UUID, update BidUpdate) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ShoppingItemUpdate carries a partial shopping list item update.
type ShoppingItemUpdate struct {
	RequestedQuantity     *decimal.Decimal
	IsPurchased           *bool
	PurchasedQuantity     *decimal.Decimal
	PurchasedPricePerUnit *decimal.Decimal
	PurchasedTotal        *decimal.Decimal
	PurchaseOrder         *int
}

// ShoppingItemRepository persists the materialized shopping list. ListByRun
// orders by (created_at, id). DeleteByRun discards a stale materialization
// when a run drops back out of the confirmed state.
type ShoppingItemRepository interface {
	CreateBatch(ctx context.Context, items []models.ShoppingListItem) error
	Find(ctx context.Context, id uuid.UUID) (*models.ShoppingListItem, error)
	FindByRunAndProduct(ctx context.Context, runID, productID uuid.UUID) (*models.ShoppingListItem, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]models.ShoppingListItem, error)
	Update(ctx context.Context, id uuid.UUID, update ShoppingItemUpdate) error
	DeleteByRun(ctx context.Context, runID uuid.UUID) error
	MaxPurchaseOrder(ctx context.Context, runID uuid.UUID) (int, error)
}

// ReassignmentUpdate carries a partial reassignment request update.
type ReassignmentUpdate struct {
	Status     *enums.ReassignmentStatus
	ResolvedAt *time.Time
}

// ReassignmentRepository persists leadership handover requests.
// FindPendingByRun returns ErrNotFound when no pending request exists.
type ReassignmentRepository interface {
	Create(ctx context.Context, req *models.ReassignmentRequest) (*models.ReassignmentRequest, error)
	Find(ctx context.Context, id uuid.UUID) (*models.ReassignmentRequest, error)
	FindPendingByRun(ctx context.Context, runID uuid.UUID) (*models.ReassignmentRequest, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]models.ReassignmentRequest, error)
	Update(ctx context.Context, id uuid.UUID, update ReassignmentUpdate) error
}

// AvailabilityRepository persists append-only price observations. Latest
// returns the most recent observation by (observed_at, created_at, id).
type AvailabilityRepository interface {
	Create(ctx context.Context, obs *models.ProductAvailability) (*models.ProductAvailability, error)
	Latest(ctx context.Context, productID, storeID uuid.UUID) (*models.ProductAvailability, error)
	ListByProductAndStore(ctx context.Context, productID, storeID uuid.UUID) ([]models.ProductAvailability, error)
}

// ProductRepository persists product reference data.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
}

// NotificationRepository persists committed domain facts for delivery.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Notification, error)
}
