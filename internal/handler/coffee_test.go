package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amestel/coffee-catalog/internal/auth"
	"github.com/amestel/coffee-catalog/internal/catalog"
	"github.com/amestel/coffee-catalog/internal/config"
	"github.com/amestel/coffee-catalog/internal/handler"
	"github.com/amestel/coffee-catalog/internal/model"
	"github.com/amestel/coffee-catalog/internal/queue"
	"github.com/amestel/coffee-catalog/internal/router"
)

const (
	testAPIKey    = "super-secret-key"
	testJWTSecret = "test-signing-secret"
)

// env is a fully wired API instance over the in-memory store, with the
// broker publisher replaced by a capture hook.
type env struct {
	e         *echo.Echo
	store     *catalog.MemoryStore
	published []queue.CoffeeRecommendedEvent
	token     string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	hash, err := auth.HashAPIKey(testAPIKey, 4)
	require.NoError(t, err)

	store := catalog.NewMemoryStore()
	te := &env{e: echo.New(), store: store}

	svc := catalog.NewService(store)
	coffees := handler.NewCoffeeHandler(svc, func(ctx context.Context, ev queue.CoffeeRecommendedEvent) error {
		te.published = append(te.published, ev)
		return nil
	})
	authHandler := handler.NewAuthHandler(hash, testJWTSecret, 5)

	// Redis is absent in tests; cache and rate limiting degrade to
	// pass-through exactly as in a broker-less deployment.
	router.RegisterRoutes(te.e, authHandler)
	router.RegisterCatalog(te.e, coffees, testJWTSecret, nil, config.CacheConfig{}, config.RateLimitConfig{})

	te.token = te.fetchToken(t)
	return te
}

func (te *env) fetchToken(t *testing.T) string {
	t.Helper()
	rec := te.do(t, http.MethodPost, "/v1/auth/token", map[string]any{"api_key": testAPIKey}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func (te *env) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(bs)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	te.e.ServeHTTP(rec, req)
	return rec
}

func (te *env) createCoffee(t *testing.T, title, brand string, flavours []string) model.Coffee {
	t.Helper()
	rec := te.do(t, http.MethodPost, "/v1/coffees", map[string]any{
		"title": title, "brand": brand, "flavours": flavours,
	}, te.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c model.Coffee
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	return c
}

func TestTokenExchange(t *testing.T) {
	te := newEnv(t)

	rec := te.do(t, http.MethodPost, "/v1/auth/token", map[string]any{"api_key": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = te.do(t, http.MethodPost, "/v1/auth/token", map[string]any{"api_key": testAPIKey}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMutationsRequireToken(t *testing.T) {
	te := newEnv(t)

	rec := te.do(t, http.MethodPost, "/v1/coffees", map[string]any{"title": "T", "brand": "B"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = te.do(t, http.MethodPost, "/v1/coffees", map[string]any{"title": "T", "brand": "B"}, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateCoffee(t *testing.T) {
	te := newEnv(t)

	coffee := te.createCoffee(t, "Caronn's brew", "Carson Inc.", []string{"Vanilla"})
	assert.Equal(t, "Caronn's brew", coffee.Title)
	assert.Equal(t, "Carson Inc.", coffee.Brand)
	assert.Equal(t, uint32(0), coffee.Recommendations)
	require.Len(t, coffee.Flavours, 1)
	assert.Equal(t, "Vanilla", coffee.Flavours[0].Name)
}

func TestCreateValidation(t *testing.T) {
	te := newEnv(t)

	rec := te.do(t, http.MethodPost, "/v1/coffees", map[string]any{"brand": "B"}, te.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = te.do(t, http.MethodPost, "/v1/coffees", map[string]any{"title": "  ", "brand": "B"}, te.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = te.do(t, http.MethodPost, "/v1/coffees", map[string]any{"title": "T", "brand": "B", "flavours": []string{" "}}, te.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSharedFlavourIsNotDuplicated(t *testing.T) {
	te := newEnv(t)

	first := te.createCoffee(t, "First", "B", []string{"Vanilla"})
	second := te.createCoffee(t, "Second", "B", []string{"Vanilla"})

	assert.Equal(t, first.Flavours[0].ID, second.Flavours[0].ID)
	assert.Equal(t, 1, te.store.FlavourCount())
}

func TestListPagination(t *testing.T) {
	te := newEnv(t)
	for i := 0; i < 12; i++ {
		te.createCoffee(t, fmt.Sprintf("Coffee %d", i), "B", nil)
	}

	rec := te.do(t, http.MethodGet, "/v1/coffees?limit=5&offset=10", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []model.Coffee `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Items, 2)

	rec = te.do(t, http.MethodGet, "/v1/coffees?limit=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNotFound(t *testing.T) {
	te := newEnv(t)

	rec := te.do(t, http.MethodGet, "/v1/coffees/999", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Coffee 999 not found"}`, rec.Body.String())
}

func TestUpdateReplacesAndClearsFlavours(t *testing.T) {
	te := newEnv(t)
	coffee := te.createCoffee(t, "T", "B", []string{"Vanilla", "Caramel"})

	rec := te.do(t, http.MethodPatch, fmt.Sprintf("/v1/coffees/%d", coffee.ID),
		map[string]any{"flavours": []string{}}, te.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.Coffee
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Empty(t, updated.Flavours)

	// Omitting flavours leaves the (now empty) set alone and merges fields.
	rec = te.do(t, http.MethodPatch, fmt.Sprintf("/v1/coffees/%d", coffee.ID),
		map[string]any{"title": "Renamed"}, te.token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "B", updated.Brand)
	assert.Empty(t, updated.Flavours)
}

func TestUpdateNotFound(t *testing.T) {
	te := newEnv(t)

	rec := te.do(t, http.MethodPatch, "/v1/coffees/77", map[string]any{"title": "X"}, te.token)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Coffee 77 not found"}`, rec.Body.String())
}

func TestDeleteCoffee(t *testing.T) {
	te := newEnv(t)
	coffee := te.createCoffee(t, "T", "B", []string{"Vanilla"})

	rec := te.do(t, http.MethodDelete, fmt.Sprintf("/v1/coffees/%d", coffee.ID), nil, te.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = te.do(t, http.MethodGet, fmt.Sprintf("/v1/coffees/%d", coffee.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Flavour rows are shared resources and survive the delete.
	assert.Equal(t, 1, te.store.FlavourCount())

	rec = te.do(t, http.MethodDelete, "/v1/coffees/999", nil, te.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecommendCoffee(t *testing.T) {
	te := newEnv(t)
	coffee := te.createCoffee(t, "T", "B", nil)

	rec := te.do(t, http.MethodPost, fmt.Sprintf("/v1/coffees/%d/recommend", coffee.ID), nil, te.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var recommended model.Coffee
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recommended))
	assert.Equal(t, uint32(1), recommended.Recommendations)

	// One audit event row and one broker notification.
	events := te.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, catalog.EventRecommendCoffee, events[0].Name)
	require.Len(t, te.published, 1)
	assert.Equal(t, coffee.ID, te.published[0].CoffeeID)
	assert.Equal(t, uint32(1), te.published[0].Recommendations)

	rec = te.do(t, http.MethodPost, "/v1/coffees/999/recommend", nil, te.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
