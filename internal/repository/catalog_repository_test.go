package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amestel/coffee-catalog/internal/catalog"
	"github.com/amestel/coffee-catalog/internal/model"
)

var coffeeColumns = []string{"id", "title", "brand", "description", "recommendations", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*CatalogRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCatalogRepo(db), mock
}

func TestListCoffeesPagesAndEagerLoads(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM coffees ORDER BY id LIMIT ? OFFSET ?")).
		WithArgs(5, 10).
		WillReturnRows(sqlmock.NewRows(coffeeColumns).
			AddRow(11, "Shipwreck Roast", "Buddy Brew", "", 0, now, now).
			AddRow(12, "Salty Sea Dog", "Buddy Brew", "", 2, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("JOIN flavours f ON f.id = cf.flavour_id")).
		WithArgs(uint64(11), uint64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"coffee_id", "id", "name"}).
			AddRow(11, 1, "vanilla").
			AddRow(12, 1, "vanilla").
			AddRow(12, 2, "caramel"))

	out, err := repo.ListCoffees(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []model.Flavour{{ID: 1, Name: "vanilla"}}, out[0].Flavours)
	assert.Equal(t, []model.Flavour{{ID: 1, Name: "vanilla"}, {ID: 2, Name: "caramel"}}, out[1].Flavours)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCoffeeNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM coffees WHERE id = ?")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(coffeeColumns))

	coffee, err := repo.GetCoffee(context.Background(), 42)
	require.Error(t, err)
	assert.Nil(t, coffee)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
	assert.Equal(t, "Coffee 42 not found", err.Error())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindFlavourByName(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM flavours WHERE name = ?")).
		WithArgs("vanilla").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "vanilla"))

	f, err := repo.FindFlavourByName(context.Background(), "vanilla")
	require.NoError(t, err)
	assert.Equal(t, &model.Flavour{ID: 3, Name: "vanilla"}, f)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM flavours WHERE name = ?")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err = repo.FindFlavourByName(context.Background(), "nope")
	assert.True(t, errors.Is(err, catalog.ErrFlavourNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCoffeeCascadesNewFlavours(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coffees (title, brand, description, recommendations)")).
		WithArgs("Shipwreck Roast", "Buddy Brew", "", 0).
		WillReturnResult(sqlmock.NewResult(7, 1))
	// Existing flavour (ID set) skips the insert; the new one is saved first.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coffee_flavours (coffee_id, flavour_id, position)")).
		WithArgs(uint64(7), uint64(1), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO flavours (name)")).
		WithArgs("caramel").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coffee_flavours (coffee_id, flavour_id, position)")).
		WithArgs(uint64(7), uint64(2), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at, updated_at FROM coffees WHERE id = ?")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	coffee := &model.Coffee{
		Title:    "Shipwreck Roast",
		Brand:    "Buddy Brew",
		Flavours: []model.Flavour{{ID: 1, Name: "vanilla"}, {Name: "caramel"}},
	}
	require.NoError(t, repo.InsertCoffee(context.Background(), coffee))
	assert.Equal(t, uint64(7), coffee.ID)
	assert.Equal(t, uint64(2), coffee.Flavours[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCoffeeResolvesDuplicateFlavourRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coffees")).
		WithArgs("T", "B", "", 0).
		WillReturnResult(sqlmock.NewResult(7, 1))
	// A concurrent create won the unique-key race; re-select the winner.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO flavours (name)")).
		WithArgs("vanilla").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'vanilla'"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM flavours WHERE name = ?")).
		WithArgs("vanilla").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(9, "vanilla"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coffee_flavours")).
		WithArgs(uint64(7), uint64(9), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at, updated_at")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	coffee := &model.Coffee{Title: "T", Brand: "B", Flavours: []model.Flavour{{Name: "vanilla"}}}
	require.NoError(t, repo.InsertCoffee(context.Background(), coffee))
	assert.Equal(t, uint64(9), coffee.Flavours[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCoffeeNotFoundInsideTx(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM coffees WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "brand", "description", "recommendations"}))
	mock.ExpectRollback()

	title := "X"
	_, err := repo.UpdateCoffee(context.Background(), 5, catalog.CoffeePatch{Title: &title})
	require.Error(t, err)
	assert.Equal(t, "Coffee 5 not found", err.Error())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCoffeeRemovesAssociationsOnly(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM coffee_flavours WHERE coffee_id = ?")).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM coffees WHERE id = ?")).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DeleteCoffee(context.Background(), &model.Coffee{ID: 7})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendTxCommitsCounterAndEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE coffees")).
		WithArgs("T", "B", "", 3, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events (name, type, payload)")).
		WithArgs("recommend_coffee", "coffee", []byte(`{"coffeeId":7}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	svc := catalog.NewService(repo)
	coffee := &model.Coffee{ID: 7, Title: "T", Brand: "B", Recommendations: 2}
	require.NoError(t, svc.Recommend(ctx, coffee))
	assert.Equal(t, uint32(3), coffee.Recommendations)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendTxRollsBackWhenEventInsertFails(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE coffees")).
		WithArgs("T", "B", "", 1, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	svc := catalog.NewService(repo)
	coffee := &model.Coffee{ID: 7, Title: "T", Brand: "B"}
	err := svc.Recommend(ctx, coffee)
	require.Error(t, err)
	// The caller-visible counter is untouched after rollback.
	assert.Equal(t, uint32(0), coffee.Recommendations)
	require.NoError(t, mock.ExpectationsWereMet())
}
