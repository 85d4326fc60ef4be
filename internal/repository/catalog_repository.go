// Package repository contains the MySQL-backed data access layer.  It
// implements the catalog.Store contract with hand-written SQL so the
// service layer stays free of database concerns.  Coffee rows, shared
// flavour rows and the coffee_flavours join table are managed here;
// audit events are appended through the transactional unit of work.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/amestel/coffee-catalog/internal/catalog"
	"github.com/amestel/coffee-catalog/internal/model"
)

// CatalogRepo encapsulates all database queries for the coffee
// catalog.  It depends on a sql.DB connection pool which is configured
// at startup and injected here.
type CatalogRepo struct {
	db *sql.DB // underlying connection pool
}

// NewCatalogRepo constructs a CatalogRepo with the provided DB handle.
// This allows dependency injection of the database in tests and at
// startup; there is no initialization logic beyond assigning the field.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// querier is the subset of sql.DB/sql.Tx used by the read helpers, so
// the same code can run inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ListCoffees returns one page of coffees ordered by id with their
// flavours eager-loaded.  An empty page is a valid, non-error result.
func (r *CatalogRepo) ListCoffees(ctx context.Context, offset, limit int) ([]model.Coffee, error) {
	const q = `SELECT id, title, brand, description, recommendations, created_at, updated_at
	           FROM coffees ORDER BY id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Coffee{}
	for rows.Next() {
		var c model.Coffee
		if err := rows.Scan(&c.ID, &c.Title, &c.Brand, &c.Description, &c.Recommendations, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Flavours = []model.Flavour{}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadFlavours(ctx, r.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCoffee fetches a single coffee by id with flavours loaded.  It
// returns *catalog.NotFoundError when no row matches.
func (r *CatalogRepo) GetCoffee(ctx context.Context, id uint64) (*model.Coffee, error) {
	return getCoffee(ctx, r.db, id)
}

// getCoffee is the shared lookup used by GetCoffee and by UpdateCoffee
// inside its transaction.
func getCoffee(ctx context.Context, q querier, id uint64) (*model.Coffee, error) {
	const query = `SELECT id, title, brand, description, recommendations, created_at, updated_at
	               FROM coffees WHERE id = ?`
	var c model.Coffee
	err := q.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Title, &c.Brand, &c.Description, &c.Recommendations, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &catalog.NotFoundError{ID: id}
		}
		return nil, err
	}
	c.Flavours = []model.Flavour{}
	page := []model.Coffee{c}
	if err := loadFlavours(ctx, q, page); err != nil {
		return nil, err
	}
	return &page[0], nil
}

// FindFlavourByName looks up a flavour by exact name match.  Missing
// rows map to catalog.ErrFlavourNotFound so the service can fall back
// to constructing a fresh flavour.
func (r *CatalogRepo) FindFlavourByName(ctx context.Context, name string) (*model.Flavour, error) {
	const q = `SELECT id, name FROM flavours WHERE name = ?`
	var f model.Flavour
	if err := r.db.QueryRowContext(ctx, q, name).Scan(&f.ID, &f.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrFlavourNotFound
		}
		return nil, err
	}
	return &f, nil
}

// InsertCoffee persists a new coffee and its flavour associations in
// one transaction.  Flavours with ID 0 are inserted first; a duplicate
// name raced in by a concurrent create is resolved by re-selecting the
// winning row, which the UNIQUE KEY on flavours.name makes safe.
// After the insert the row is re-read so callers receive the DB's
// generated timestamps.
func (r *CatalogRepo) InsertCoffee(ctx context.Context, c *model.Coffee) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const qInsert = `INSERT INTO coffees (title, brand, description, recommendations) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, qInsert, c.Title, c.Brand, c.Description, c.Recommendations)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)

	if err = saveAssociations(ctx, tx, c.ID, c.Flavours); err != nil {
		return err
	}

	// Follow-up SELECT to populate the DB-generated timestamp fields.
	const qSelect = `SELECT created_at, updated_at FROM coffees WHERE id = ?`
	if err = tx.QueryRowContext(ctx, qSelect, c.ID).Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// UpdateCoffee loads the coffee, merges the patch and saves it inside
// a single transaction.  The row lock taken by FOR UPDATE means the
// existence check and the write cannot be split by a concurrent
// delete.  A non-nil patch.Flavours replaces the association set
// entirely; nil leaves it alone.
func (r *CatalogRepo) UpdateCoffee(ctx context.Context, id uint64, patch catalog.CoffeePatch) (*model.Coffee, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const qLoad = `SELECT id, title, brand, description, recommendations FROM coffees WHERE id = ? FOR UPDATE`
	var c model.Coffee
	err = tx.QueryRowContext(ctx, qLoad, id).Scan(&c.ID, &c.Title, &c.Brand, &c.Description, &c.Recommendations)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = &catalog.NotFoundError{ID: id}
		}
		return nil, err
	}

	if patch.Title != nil {
		c.Title = *patch.Title
	}
	if patch.Brand != nil {
		c.Brand = *patch.Brand
	}
	const qSave = `UPDATE coffees SET title = ?, brand = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err = tx.ExecContext(ctx, qSave, c.Title, c.Brand, c.ID); err != nil {
		return nil, err
	}

	if patch.Flavours != nil {
		if _, err = tx.ExecContext(ctx, `DELETE FROM coffee_flavours WHERE coffee_id = ?`, c.ID); err != nil {
			return nil, err
		}
		c.Flavours = patch.Flavours
		if err = saveAssociations(ctx, tx, c.ID, c.Flavours); err != nil {
			return nil, err
		}
	}

	const qTimes = `SELECT created_at, updated_at FROM coffees WHERE id = ?`
	if err = tx.QueryRowContext(ctx, qTimes, c.ID).Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if patch.Flavours == nil {
		// Flavours untouched: reload the current association set so the
		// returned coffee is fully populated.
		c.Flavours = []model.Flavour{}
		page := []model.Coffee{c}
		if err = loadFlavours(ctx, tx, page); err != nil {
			return nil, err
		}
		c = page[0]
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCoffee removes the coffee and its association rows.  Flavour
// rows are never touched by this path: they may be referenced by other
// coffees.
func (r *CatalogRepo) DeleteCoffee(ctx context.Context, c *model.Coffee) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM coffee_flavours WHERE coffee_id = ?`, c.ID); err != nil {
		return err
	}
	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM coffees WHERE id = ?`, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = &catalog.NotFoundError{ID: c.ID}
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// Begin opens a unit of work for grouped writes, used by the recommend
// mutation to make the counter increment and the audit event atomic.
func (r *CatalogRepo) Begin(ctx context.Context) (catalog.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &catalogTx{tx: tx}, nil
}

// saveAssociations inserts unsaved flavour rows and rewrites the join
// rows for one coffee, preserving input order via the position column.
func saveAssociations(ctx context.Context, q querier, coffeeID uint64, flavours []model.Flavour) error {
	for i := range flavours {
		if flavours[i].ID == 0 {
			if err := insertFlavour(ctx, q, &flavours[i]); err != nil {
				return err
			}
		}
		const qJoin = `INSERT INTO coffee_flavours (coffee_id, flavour_id, position) VALUES (?, ?, ?)`
		if _, err := q.ExecContext(ctx, qJoin, coffeeID, flavours[i].ID, i); err != nil {
			return err
		}
	}
	return nil
}

// insertFlavour inserts a new flavour row.  When a concurrent insert
// wins the race on the UNIQUE name key (MySQL error 1062), the
// existing row is re-selected and reused instead.
func insertFlavour(ctx context.Context, q querier, f *model.Flavour) error {
	res, err := q.ExecContext(ctx, `INSERT INTO flavours (name) VALUES (?)`, f.Name)
	if err != nil {
		if isDuplicateKey(err) {
			return q.QueryRowContext(ctx, `SELECT id, name FROM flavours WHERE name = ?`, f.Name).Scan(&f.ID, &f.Name)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	return nil
}

// isDuplicateKey reports whether err is a MySQL duplicate-entry error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "1062")
}

// loadFlavours populates the Flavours slice of every coffee in the
// page with a single join query ordered by the stored position.
func loadFlavours(ctx context.Context, q querier, coffees []model.Coffee) error {
	if len(coffees) == 0 {
		return nil
	}
	placeholders := make([]string, len(coffees))
	args := make([]any, len(coffees))
	index := make(map[uint64]int, len(coffees))
	for i := range coffees {
		placeholders[i] = "?"
		args[i] = coffees[i].ID
		index[coffees[i].ID] = i
	}
	query := fmt.Sprintf(`SELECT cf.coffee_id, f.id, f.name
	                      FROM coffee_flavours cf
	                      JOIN flavours f ON f.id = cf.flavour_id
	                      WHERE cf.coffee_id IN (%s)
	                      ORDER BY cf.coffee_id, cf.position`, strings.Join(placeholders, ", "))
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var coffeeID uint64
		var f model.Flavour
		if err := rows.Scan(&coffeeID, &f.ID, &f.Name); err != nil {
			return err
		}
		i := index[coffeeID]
		coffees[i].Flavours = append(coffees[i].Flavours, f)
	}
	return rows.Err()
}

// catalogTx adapts *sql.Tx to the catalog.Tx contract.
type catalogTx struct {
	tx *sql.Tx
}

// SaveCoffee writes the coffee's scalar columns within the
// transaction.  Zero rows affected means the coffee vanished since it
// was loaded, which surfaces as a not-found error.
func (t *catalogTx) SaveCoffee(ctx context.Context, c *model.Coffee) error {
	const q = `UPDATE coffees
	           SET title = ?, brand = ?, description = ?, recommendations = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, q, c.Title, c.Brand, c.Description, c.Recommendations, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &catalog.NotFoundError{ID: c.ID}
	}
	return nil
}

// InsertEvent appends one audit event row within the transaction.  The
// payload is serialized to the JSON column.
func (t *catalogTx) InsertEvent(ctx context.Context, ev *model.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	const q = `INSERT INTO events (name, type, payload) VALUES (?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, ev.Name, ev.Type, payload)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		ev.ID = uint64(id)
	}
	return nil
}

func (t *catalogTx) Commit() error   { return t.tx.Commit() }
func (t *catalogTx) Rollback() error { return t.tx.Rollback() }
