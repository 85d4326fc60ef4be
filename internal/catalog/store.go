package catalog

import (
	"context"

	"github.com/amestel/coffee-catalog/internal/model"
)

// Store is the persistence contract consumed by the catalog service.
// Two implementations exist: the SQL repository used in production and
// the in-memory store used in tests and local development.  All read
// operations return coffees with their flavours eager-loaded.
type Store interface {
	// ListCoffees returns at most limit coffees, skipping the first
	// offset rows, ordered by id.  An empty result is not an error.
	ListCoffees(ctx context.Context, offset, limit int) ([]model.Coffee, error)

	// GetCoffee returns the coffee with the given id or a
	// *NotFoundError when no row matches.  It never returns (nil, nil).
	GetCoffee(ctx context.Context, id uint64) (*model.Coffee, error)

	// FindFlavourByName returns the flavour with the exact given name
	// or ErrFlavourNotFound when absent.
	FindFlavourByName(ctx context.Context, name string) (*model.Flavour, error)

	// InsertCoffee persists a new coffee together with its flavour
	// associations.  Flavours with ID 0 are inserted as part of the
	// same save; on return the coffee and all flavours carry their
	// generated ids.
	InsertCoffee(ctx context.Context, c *model.Coffee) error

	// UpdateCoffee loads the coffee by id, merges the non-nil patch
	// fields onto it and saves the result, all within one transaction
	// so the existence check cannot race the write.  A non-nil
	// patch.Flavours (even empty) replaces the association set
	// entirely.  Returns the merged coffee or a *NotFoundError.
	UpdateCoffee(ctx context.Context, id uint64, patch CoffeePatch) (*model.Coffee, error)

	// DeleteCoffee removes the coffee row and its association rows.
	// Flavour rows are left untouched; they may be referenced by
	// other coffees.
	DeleteCoffee(ctx context.Context, c *model.Coffee) error

	// Begin opens a unit of work for grouped writes.  The caller must
	// finish it with exactly one Commit or Rollback.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a unit of work: writes issued through it become visible
// all-or-nothing on Commit and are discarded on Rollback.
type Tx interface {
	// SaveCoffee writes the coffee's scalar columns (title, brand,
	// description, recommendations) within the transaction.
	SaveCoffee(ctx context.Context, c *model.Coffee) error

	// InsertEvent appends one audit event row within the transaction.
	InsertEvent(ctx context.Context, ev *model.Event) error

	Commit() error
	Rollback() error
}

// CoffeePatch carries the partial update applied by UpdateCoffee.
// Nil pointers leave the column untouched.  Flavours follows the same
// convention at the slice level: nil means keep the current set, a
// non-nil slice (including an empty one) is the full new state.
type CoffeePatch struct {
	Title    *string
	Brand    *string
	Flavours []model.Flavour
}
