// Package memstore implements the storage contract entirely in memory. It is
// the development and test backend; a coarse mutex serialises top-level
// transactions and a copy-on-begin snapshot gives rollback semantics.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
)

type dataset struct {
	runs           map[uuid.UUID]models.Run
	participations map[uuid.UUID]models.Participation
	bids           map[uuid.UUID]models.Bid
	shoppingItems  map[uuid.UUID]models.ShoppingListItem
	reassignments  map[uuid.UUID]models.ReassignmentRequest
	availabilities []models.ProductAvailability
	products       map[uuid.UUID]models.Product
	notifications  []models.Notification
}

func newDataset() *dataset {
	return &dataset{
		runs:           map[uuid.UUID]models.Run{},
		participations: map[uuid.UUID]models.Participation{},
		bids:           map[uuid.UUID]models.Bid{},
		shoppingItems:  map[uuid.UUID]models.ShoppingListItem{},
		reassignments:  map[uuid.UUID]models.ReassignmentRequest{},
		products:       map[uuid.UUID]models.Product{},
	}
}

// Rows are stored by value and pointer fields are replaced, never mutated,
// so a shallow per-map copy is a full snapshot.
func (d *dataset) clone() *dataset {
	out := &dataset{
		runs:           make(map[uuid.UUID]models.Run, len(d.runs)),
		participations: make(map[uuid.UUID]models.Participation, len(d.participations)),
		bids:           make(map[uuid.UUID]models.Bid, len(d.bids)),
		shoppingItems:  make(map[uuid.UUID]models.ShoppingListItem, len(d.shoppingItems)),
		reassignments:  make(map[uuid.UUID]models.ReassignmentRequest, len(d.reassignments)),
		availabilities: append([]models.ProductAvailability(nil), d.availabilities...),
		products:       make(map[uuid.UUID]models.Product, len(d.products)),
		notifications:  append([]models.Notification(nil), d.notifications...),
	}
	for k, v := range d.runs {
		out.runs[k] = v
	}
	for k, v := range d.participations {
		out.participations[k] = v
	}
	for k, v := range d.bids {
		out.bids[k] = v
	}
	for k, v := range d.shoppingItems {
		out.shoppingItems[k] = v
	}
	for k, v := range d.reassignments {
		out.reassignments[k] = v
	}
	for k, v := range d.products {
		out.products[k] = v
	}
	return out
}

// Store is the in-memory storage.Store. The zero value is not usable; call
// New.
type Store struct {
	mu   sync.Mutex
	data *dataset
	tx   bool
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{data: newDataset()}
}

// Atomic snapshots the dataset, runs fn against a transactional view and
// keeps the writes only when fn returns nil. A nested call inside a
// transaction behaves like a savepoint.
func (s *Store) Atomic(ctx context.Context, fn func(storage.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.tx {
		work := s.data.clone()
		if err := fn(&Store{data: work, tx: true}); err != nil {
			return err
		}
		*s.data = *work
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&Store{data: work, tx: true}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// write runs fn with the dataset held exclusively.
func (s *Store) write(fn func(d *dataset) error) error {
	if s.tx {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// read takes the same lock; the coarse mutex keeps reads consistent with
// in-flight transactions.
func (s *Store) read(fn func(d *dataset) error) error {
	return s.write(fn)
}

func (s *Store) Runs() storage.RunRepository                     { return &runRepo{store: s} }
func (s *Store) Participations() storage.ParticipationRepository { return &participationRepo{store: s} }
func (s *Store) Bids() storage.BidRepository                     { return &bidRepo{store: s} }
func (s *Store) ShoppingItems() storage.ShoppingItemRepository   { return &shoppingItemRepo{store: s} }
func (s *Store) Reassignments() storage.ReassignmentRepository   { return &reassignmentRepo{store: s} }
func (s *Store) Availability() storage.AvailabilityRepository    { return &availabilityRepo{store: s} }
func (s *Store) Products() storage.ProductRepository             { return &productRepo{store: s} }
func (s *Store) Notifications() storage.NotificationRepository   { return &notificationRepo{store: s} }

// stamp fills id and timestamps the way the SQL backend's defaults would.
func stamp(id *uuid.UUID, createdAt, updatedAt *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	now := time.Now().UTC()
	if createdAt != nil && createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt != nil && updatedAt.IsZero() {
		*updatedAt = now
	}
}
