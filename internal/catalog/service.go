package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/amestel/coffee-catalog/internal/model"
)

// DefaultLimit is the page size used when the caller does not supply
// a positive limit.
const DefaultLimit = 20

// Event tags written by Recommend.  Consumers filter the audit trail
// on these values, so they are fixed constants rather than free text.
const (
	EventRecommendCoffee = "recommend_coffee" // events.name
	EventTypeCoffee      = "coffee"           // events.type
)

// Service implements the catalog operations on top of a Store.  It
// owns the find-or-create flavour reconciliation and the transactional
// recommend mutation; everything else is a thin delegation to the
// store.
type Service struct {
	store Store
}

// NewService constructs a Service and panics if the store is nil.
func NewService(store Store) *Service {
	if store == nil {
		panic("nil store passed to NewService")
	}
	return &Service{store: store}
}

// Page carries pagination parameters for FindAll.  Zero values are
// replaced by defaults: offset 0 and DefaultLimit rows.
type Page struct {
	Offset int
	Limit  int
}

// CreateInput is the plain-data input of Create.  All fields are
// required; Flavours may be empty.
type CreateInput struct {
	Title    string
	Brand    string
	Flavours []string
}

// UpdateInput is the partial input of Update.  Nil pointers leave the
// corresponding column untouched.  A non-nil Flavours (even pointing
// at an empty slice) replaces the association set entirely.
type UpdateInput struct {
	Title    *string
	Brand    *string
	Flavours *[]string
}

// FindAll returns one page of coffees with flavours eager-loaded.
// Out-of-range pages yield an empty, non-error result.
func (s *Service) FindAll(ctx context.Context, page Page) ([]model.Coffee, error) {
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	limit := page.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return s.store.ListCoffees(ctx, offset, limit)
}

// FindOne returns the coffee with the given id or a *NotFoundError.
// It never returns a nil coffee on success.
func (s *Service) FindOne(ctx context.Context, id uint64) (*model.Coffee, error) {
	return s.store.GetCoffee(ctx, id)
}

// Create persists a new coffee.  Each flavour name is reconciled
// against existing rows in input order: an existing flavour is reused
// by id, a missing one is constructed unsaved and inserted as part of
// the same save.  The new coffee starts with an empty description and
// a zero recommendation counter.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Coffee, error) {
	flavours, err := s.resolveFlavours(ctx, in.Flavours)
	if err != nil {
		return nil, err
	}
	coffee := &model.Coffee{
		Title:           in.Title,
		Brand:           in.Brand,
		Description:     "",
		Recommendations: 0,
		Flavours:        flavours,
	}
	if err := s.store.InsertCoffee(ctx, coffee); err != nil {
		return nil, fmt.Errorf("create coffee: %w", err)
	}
	return coffee, nil
}

// Update applies a partial update to an existing coffee.  When the
// input carries a flavour list it is resolved with the same
// find-or-create algorithm as Create and replaces the current
// associations wholesale.  The not-found check happens inside the
// store's load-merge-save transaction, so a concurrent delete cannot
// slip between check and write.
func (s *Service) Update(ctx context.Context, id uint64, in UpdateInput) (*model.Coffee, error) {
	patch := CoffeePatch{Title: in.Title, Brand: in.Brand}
	if in.Flavours != nil {
		flavours, err := s.resolveFlavours(ctx, *in.Flavours)
		if err != nil {
			return nil, err
		}
		patch.Flavours = flavours
	}
	return s.store.UpdateCoffee(ctx, id, patch)
}

// Remove deletes the coffee with the given id and returns its
// last-known state.  The lookup uses FindOne semantics, so a missing
// id propagates the same *NotFoundError unchanged.  Flavour rows are
// never deleted here; they are shared resources.
func (s *Service) Remove(ctx context.Context, id uint64) (*model.Coffee, error) {
	coffee, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteCoffee(ctx, coffee); err != nil {
		return nil, fmt.Errorf("remove coffee %d: %w", id, err)
	}
	return coffee, nil
}

// Recommend increments the coffee's recommendation counter and appends
// one audit event, as a single unit of work: both writes commit
// together or neither takes effect.  On success the passed coffee's
// counter is bumped in place; on failure it is left untouched and the
// error is returned after rollback so callers can tell "recommended"
// from "failed".
func (s *Service) Recommend(ctx context.Context, coffee *model.Coffee) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("recommend coffee %d: begin: %w", coffee.ID, err)
	}

	bumped := *coffee
	bumped.Recommendations++
	if err := tx.SaveCoffee(ctx, &bumped); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("recommend coffee %d: %w", coffee.ID, err)
	}

	ev := &model.Event{
		Name:    EventRecommendCoffee,
		Type:    EventTypeCoffee,
		Payload: map[string]any{"coffeeId": coffee.ID},
	}
	if err := tx.InsertEvent(ctx, ev); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("recommend coffee %d: append event: %w", coffee.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("recommend coffee %d: commit: %w", coffee.ID, err)
	}
	coffee.Recommendations = bumped.Recommendations
	return nil
}

// resolveFlavours maps flavour names to Flavour values in input order.
// Names matching an existing row reuse its id; the rest come back
// unsaved (ID 0) for the store to insert alongside the coffee.  The
// returned slice is always non-nil so an explicitly empty list is
// distinguishable from an omitted one.
func (s *Service) resolveFlavours(ctx context.Context, names []string) ([]model.Flavour, error) {
	flavours := make([]model.Flavour, 0, len(names))
	for _, name := range names {
		f, err := s.store.FindFlavourByName(ctx, name)
		if err == nil {
			flavours = append(flavours, *f)
			continue
		}
		if !errors.Is(err, ErrFlavourNotFound) {
			return nil, fmt.Errorf("resolve flavour %q: %w", name, err)
		}
		flavours = append(flavours, model.Flavour{Name: name})
	}
	return flavours, nil
}
