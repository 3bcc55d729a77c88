// Package gormstore implements the storage contract on top of gorm. It is
// the production backend; runs against postgres and against sqlite in tests.
package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db"
)

// Store is the gorm-backed storage.Store.
type Store struct {
	db *gorm.DB
}

// New constructs a Store bound to the provided gorm DB.
func New(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// Atomic runs fn inside a database transaction. Gorm turns nested calls into
// savepoints, so hooks invoked from within a transition share its fate.
func (s *Store) Atomic(ctx context.Context, fn func(storage.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Runs() storage.RunRepository                     { return &runRepo{db: s.db} }
func (s *Store) Participations() storage.ParticipationRepository { return &participationRepo{db: s.db} }
func (s *Store) Bids() storage.BidRepository                     { return &bidRepo{db: s.db} }
func (s *Store) ShoppingItems() storage.ShoppingItemRepository   { return &shoppingItemRepo{db: s.db} }
func (s *Store) Reassignments() storage.ReassignmentRepository   { return &reassignmentRepo{db: s.db} }
func (s *Store) Availability() storage.AvailabilityRepository    { return &availabilityRepo{db: s.db} }
func (s *Store) Products() storage.ProductRepository             { return &productRepo{db: s.db} }
func (s *Store) Notifications() storage.NotificationRepository   { return &notificationRepo{db: s.db} }

// translate maps driver errors onto the storage sentinels services test for.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case db.IsUniqueViolation(err, ""):
		return storage.ErrDuplicate
	default:
		return err
	}
}
