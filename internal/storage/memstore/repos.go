package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	"github.com/mkastler/poolcart-backend/pkg/pagination"
)

// creationOrder matches the SQL backend's ORDER BY created_at, id with ids
// compared as their canonical string form.
func creationOrder(aCreated time.Time, aID uuid.UUID, bCreated time.Time, bID uuid.UUID) bool {
	if !aCreated.Equal(bCreated) {
		return aCreated.Before(bCreated)
	}
	return strings.Compare(aID.String(), bID.String()) < 0
}

type runRepo struct {
	store *Store
}

func (r *runRepo) Create(ctx context.Context, run *models.Run) (*models.Run, error) {
	err := r.store.write(func(d *dataset) error {
		stamp(&run.ID, &run.CreatedAt, &run.UpdatedAt)
		if _, ok := d.runs[run.ID]; ok {
			return storage.ErrDuplicate
		}
		d.runs[run.ID] = *run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *runRepo) Find(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var out models.Run
	err := r.store.read(func(d *dataset) error {
		run, ok := d.runs[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *runRepo) ListByGroup(ctx context.Context, groupID uuid.UUID, filter storage.RunFilter, params pagination.Params) (*storage.RunPage, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	cursor, err := pagination.ParseCursor(strings.TrimSpace(params.Cursor))
	if err != nil {
		return nil, err
	}

	states := map[enums.RunState]bool{}
	for _, s := range filter.States {
		states[s] = true
	}

	var runs []models.Run
	err = r.store.read(func(d *dataset) error {
		for _, run := range d.runs {
			if run.GroupID != groupID {
				continue
			}
			if len(states) > 0 && !states[run.State] {
				continue
			}
			if cursor != nil && !creationOrder(cursor.CreatedAt, cursor.ID, run.CreatedAt, run.ID) {
				continue
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return creationOrder(runs[i].CreatedAt, runs[i].ID, runs[j].CreatedAt, runs[j].ID)
	})

	page := &storage.RunPage{Runs: runs}
	if len(runs) > limit {
		page.Runs = runs[:limit]
		last := page.Runs[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (r *runRepo) Update(ctx context.Context, id uuid.UUID, update storage.RunUpdate) error {
	return r.store.write(func(d *dataset) error {
		run, ok := d.runs[id]
		if !ok {
			return storage.ErrNotFound
		}
		if update.State != nil {
			run.State = *update.State
		}
		if update.SetComment {
			run.Comment = update.Comment
		}
		if update.ActivatedAt != nil {
			run.ActivatedAt = update.ActivatedAt
		}
		if update.ConfirmedAt != nil {
			run.ConfirmedAt = update.ConfirmedAt
		}
		if update.ShoppingStartedAt != nil {
			run.ShoppingStartedAt = update.ShoppingStartedAt
		}
		if update.AdjustingStartedAt != nil {
			run.AdjustingStartedAt = update.AdjustingStartedAt
		}
		if update.DistributingStartedAt != nil {
			run.DistributingStartedAt = update.DistributingStartedAt
		}
		if update.CompletedAt != nil {
			run.CompletedAt = update.CompletedAt
		}
		if update.CancelledAt != nil {
			run.CancelledAt = update.CancelledAt
		}
		run.UpdatedAt = time.Now().UTC()
		d.runs[id] = run
		return nil
	})
}

type participationRepo struct {
	store *Store
}

func (r *participationRepo) Create(ctx context.Context, p *models.Participation) (*models.Participation, error) {
	err := r.store.write(func(d *dataset) error {
		for _, existing := range d.participations {
			if existing.RunID == p.RunID && existing.UserID == p.UserID {
				return storage.ErrDuplicate
			}
		}
		stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		d.participations[p.ID] = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *participationRepo) Find(ctx context.Context, id uuid.UUID) (*models.Participation, error) {
	var out models.Participation
	err := r.store.read(func(d *dataset) error {
		p, ok := d.participations[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *participationRepo) FindByRunAndUser(ctx context.Context, runID, userID uuid.UUID) (*models.Participation, error) {
	var out models.Participation
	err := r.store.read(func(d *dataset) error {
		for _, p := range d.participations {
			if p.RunID == runID && p.UserID == userID {
				out = p
				return nil
			}
		}
		return storage.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *participationRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Participation, error) {
	var out []models.Participation
	err := r.store.read(func(d *dataset) error {
		for _, p := range d.participations {
			if p.RunID == runID {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return creationOrder(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

func (r *participationRepo) Update(ctx context.Context, id uuid.UUID, update storage.ParticipationUpdate) error {
	return r.store.write(func(d *dataset) error {
		p, ok := d.participations[id]
		if !ok {
			return storage.ErrNotFound
		}
		if update.IsLeader != nil {
			p.IsLeader = *update.IsLeader
		}
		if update.IsHelper != nil {
			p.IsHelper = *update.IsHelper
		}
		if update.IsReady != nil {
			p.IsReady = *update.IsReady
		}
		if update.IsRemoved != nil {
			p.IsRemoved = *update.IsRemoved
		}
		p.UpdatedAt = time.Now().UTC()
		d.participations[id] = p
		return nil
	})
}

type bidRepo struct {
	store *Store
}

func (r *bidRepo) Create(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	err := r.store.write(func(d *dataset) error {
		for _, existing := range d.bids {
			if existing.ParticipationID == bid.ParticipationID && existing.ProductID == bid.ProductID {
				return storage.ErrDuplicate
			}
		}
		stamp(&bid.ID, &bid.CreatedAt, &bid.UpdatedAt)
		d.bids[bid.ID] = *bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

func (r *bidRepo) Find(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var out models.Bid
	err := r.store.read(func(d *dataset) error {
		bid, ok := d.bids[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *bidRepo) FindByParticipationAndProduct(ctx context.Context, participationID, productID uuid.UUID) (*models.Bid, error) {
	var out models.Bid
	err := r.store.read(func(d *dataset) error {
		for _, bid := range d.bids {
			if bid.ParticipationID == participationID && bid.ProductID == productID {
				out = bid
				return nil
			}
		}
		return storage.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *bidRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Bid, error) {
	var out []models.Bid
	err := r.store.read(func(d *dataset) error {
		for _, bid := range d.bids {
			p, ok := d.participations[bid.ParticipationID]
			if ok && p.RunID == runID {
				out = append(out, bid)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortBids(out)
	return out, nil
}

func (r *bidRepo) ListByRunAndProduct(ctx context.Context, runID, productID uuid.UUID) ([]models.Bid, error) {
	all, err := r.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	var out []models.Bid
	for _, bid := range all {
		if bid.ProductID == productID {
			out = append(out, bid)
		}
	}
	return out, nil
}

func (r *bidRepo) ListByParticipation(ctx context.Context, participationID uuid.UUID) ([]models.Bid, error) {
	var out []models.Bid
	err := r.store.read(func(d *dataset) error {
		for _, bid := range d.bids {
			if bid.ParticipationID == participationID {
				out = append(out, bid)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortBids(out)
	return out, nil
}

func sortBids(bids []models.Bid) {
	sort.Slice(bids, func(i, j int) bool {
		return creationOrder(bids[i].CreatedAt, bids[i].ID, bids[j].CreatedAt, bids[j].ID)
	})
}

func (r *bidRepo) Update(ctx context.Context, id uuid.UUID, update storage.BidUpdate) error {
	return r.store.write(func(d *dataset) error {
		bid, ok := d.bids[id]
		if !ok {
			return storage.ErrNotFound
		}
		if update.Quantity != nil {
			bid.Quantity = *update.Quantity
		}
		if update.InterestedOnly != nil {
			bid.InterestedOnly = *update.InterestedOnly
		}
		if update.SetComment {
			bid.Comment = update.Comment
		}
		if update.DistributedQuantity != nil {
			bid.DistributedQuantity = *update.DistributedQuantity
		}
		if update.DistributedPricePerUnit != nil {
			bid.DistributedPricePerUnit = *update.DistributedPricePerUnit
		}
		if update.IsPickedUp != nil {
			bid.IsPickedUp = *update.IsPickedUp
		}
		bid.UpdatedAt = time.Now().UTC()
		d.bids[id] = bid
		return nil
	})
}

func (r *bidRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.write(func(d *dataset) error {
		delete(d.bids, id)
		return nil
	})
}

type shoppingItemRepo struct {
	store *Store
}

func (r *shoppingItemRepo) CreateBatch(ctx context.Context, items []models.ShoppingListItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.store.write(func(d *dataset) error {
		seen := map[[2]uuid.UUID]bool{}
		for _, existing := range d.shoppingItems {
			seen[[2]uuid.UUID{existing.RunID, existing.ProductID}] = true
		}
		for i := range items {
			key := [2]uuid.UUID{items[i].RunID, items[i].ProductID}
			if seen[key] {
				return storage.ErrDuplicate
			}
			seen[key] = true
		}
		for i := range items {
			stamp(&items[i].ID, &items[i].CreatedAt, &items[i].UpdatedAt)
			d.shoppingItems[items[i].ID] = items[i]
		}
		return nil
	})
}

func (r *shoppingItemRepo) Find(ctx context.Context, id uuid.UUID) (*models.ShoppingListItem, error) {
	var out models.ShoppingListItem
	err := r.store.read(func(d *dataset) error {
		item, ok := d.shoppingItems[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *shoppingItemRepo) FindByRunAndProduct(ctx context.Context, runID, productID uuid.UUID) (*models.ShoppingListItem, error) {
	var out models.ShoppingListItem
	err := r.store.read(func(d *dataset) error {
		for _, item := range d.shoppingItems {
			if item.RunID == runID && item.ProductID == productID {
				out = item
				return nil
			}
		}
		return storage.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *shoppingItemRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.ShoppingListItem, error) {
	var out []models.ShoppingListItem
	err := r.store.read(func(d *dataset) error {
		for _, item := range d.shoppingItems {
			if item.RunID == runID {
				out = append(out, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return creationOrder(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

func (r *shoppingItemRepo) Update(ctx context.Context, id uuid.UUID, update storage.ShoppingItemUpdate) error {
	return r.store.write(func(d *dataset) error {
		item, ok := d.shoppingItems[id]
		if !ok {
			return storage.ErrNotFound
		}
		if update.RequestedQuantity != nil {
			item.RequestedQuantity = *update.RequestedQuantity
		}
		if update.IsPurchased != nil {
			item.IsPurchased = *update.IsPurchased
		}
		if update.PurchasedQuantity != nil {
			item.PurchasedQuantity = *update.PurchasedQuantity
		}
		if update.PurchasedPricePerUnit != nil {
			item.PurchasedPricePerUnit = *update.PurchasedPricePerUnit
		}
		if update.PurchasedTotal != nil {
			item.PurchasedTotal = *update.PurchasedTotal
		}
		if update.PurchaseOrder != nil {
			item.PurchaseOrder = *update.PurchaseOrder
		}
		item.UpdatedAt = time.Now().UTC()
		d.shoppingItems[id] = item
		return nil
	})
}

func (r *shoppingItemRepo) DeleteByRun(ctx context.Context, runID uuid.UUID) error {
	return r.store.write(func(d *dataset) error {
		for id, item := range d.shoppingItems {
			if item.RunID == runID {
				delete(d.shoppingItems, id)
			}
		}
		return nil
	})
}

func (r *shoppingItemRepo) MaxPurchaseOrder(ctx context.Context, runID uuid.UUID) (int, error) {
	max := 0
	err := r.store.read(func(d *dataset) error {
		for _, item := range d.shoppingItems {
			if item.RunID == runID && item.PurchaseOrder > max {
				max = item.PurchaseOrder
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return max, nil
}

type reassignmentRepo struct {
	store *Store
}

func (r *reassignmentRepo) Create(ctx context.Context, req *models.ReassignmentRequest) (*models.ReassignmentRequest, error) {
	err := r.store.write(func(d *dataset) error {
		if req.Status == "" {
			req.Status = enums.ReassignmentStatusPending
		}
		if req.Status == enums.ReassignmentStatusPending {
			for _, existing := range d.reassignments {
				if existing.RunID == req.RunID && existing.Status == enums.ReassignmentStatusPending {
					return storage.ErrDuplicate
				}
			}
		}
		stamp(&req.ID, &req.CreatedAt, &req.UpdatedAt)
		d.reassignments[req.ID] = *req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *reassignmentRepo) Find(ctx context.Context, id uuid.UUID) (*models.ReassignmentRequest, error) {
	var out models.ReassignmentRequest
	err := r.store.read(func(d *dataset) error {
		req, ok := d.reassignments[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reassignmentRepo) FindPendingByRun(ctx context.Context, runID uuid.UUID) (*models.ReassignmentRequest, error) {
	var out models.ReassignmentRequest
	err := r.store.read(func(d *dataset) error {
		for _, req := range d.reassignments {
			if req.RunID == runID && req.Status == enums.ReassignmentStatusPending {
				out = req
				return nil
			}
		}
		return storage.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reassignmentRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.ReassignmentRequest, error) {
	var out []models.ReassignmentRequest
	err := r.store.read(func(d *dataset) error {
		for _, req := range d.reassignments {
			if req.RunID == runID {
				out = append(out, req)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return creationOrder(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

func (r *reassignmentRepo) Update(ctx context.Context, id uuid.UUID, update storage.ReassignmentUpdate) error {
	return r.store.write(func(d *dataset) error {
		req, ok := d.reassignments[id]
		if !ok {
			return storage.ErrNotFound
		}
		if update.Status != nil {
			req.Status = *update.Status
		}
		if update.ResolvedAt != nil {
			req.ResolvedAt = update.ResolvedAt
		}
		req.UpdatedAt = time.Now().UTC()
		d.reassignments[id] = req
		return nil
	})
}

type availabilityRepo struct {
	store *Store
}

func (r *availabilityRepo) Create(ctx context.Context, obs *models.ProductAvailability) (*models.ProductAvailability, error) {
	err := r.store.write(func(d *dataset) error {
		if obs.ID == uuid.Nil {
			obs.ID = uuid.New()
		}
		if obs.CreatedAt.IsZero() {
			obs.CreatedAt = time.Now().UTC()
		}
		d.availabilities = append(d.availabilities, *obs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obs, nil
}

func (r *availabilityRepo) Latest(ctx context.Context, productID, storeID uuid.UUID) (*models.ProductAvailability, error) {
	history, err := r.ListByProductAndStore(ctx, productID, storeID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, storage.ErrNotFound
	}
	return &history[0], nil
}

func (r *availabilityRepo) ListByProductAndStore(ctx context.Context, productID, storeID uuid.UUID) ([]models.ProductAvailability, error) {
	var out []models.ProductAvailability
	err := r.store.read(func(d *dataset) error {
		for _, obs := range d.availabilities {
			if obs.ProductID == productID && obs.StoreID == storeID {
				out = append(out, obs)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ObservedAt.After(out[j].ObservedAt)
		}
		return !creationOrder(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

type productRepo struct {
	store *Store
}

func (r *productRepo) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	err := r.store.write(func(d *dataset) error {
		stamp(&product.ID, &product.CreatedAt, &product.UpdatedAt)
		if _, ok := d.products[product.ID]; ok {
			return storage.ErrDuplicate
		}
		d.products[product.ID] = *product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (r *productRepo) Find(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var out models.Product
	err := r.store.read(func(d *dataset) error {
		p, ok := d.products[id]
		if !ok {
			return storage.ErrNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	err := r.store.read(func(d *dataset) error {
		for _, id := range ids {
			if p, ok := d.products[id]; ok {
				out[id] = p
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) List(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := r.store.read(func(d *dataset) error {
		for _, p := range d.products {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})
	return out, nil
}

type notificationRepo struct {
	store *Store
}

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	err := r.store.write(func(d *dataset) error {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		d.notifications = append(d.notifications, *n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *notificationRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Notification, error) {
	var out []models.Notification
	err := r.store.read(func(d *dataset) error {
		for _, n := range d.notifications {
			if n.RunID == runID {
				out = append(out, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return creationOrder(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}
