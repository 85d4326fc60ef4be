package handler // handler package contains the coffee catalog HTTP handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/amestel/coffee-catalog/internal/catalog"
	"github.com/amestel/coffee-catalog/internal/queue"
)

// CoffeeHandler exposes the catalog service over HTTP.  Publish is the
// broker hook invoked after a successful recommendation; main wires it
// to the RabbitMQ publisher and tests substitute a capture function.
type CoffeeHandler struct {
	Catalog *catalog.Service
	Publish func(ctx context.Context, ev queue.CoffeeRecommendedEvent) error
}

// NewCoffeeHandler constructs a CoffeeHandler and panics if the
// catalog service is nil.  A nil publish hook disables broker
// notifications, which is the right behavior for tests and for
// deployments without a broker.
func NewCoffeeHandler(svc *catalog.Service, publish func(ctx context.Context, ev queue.CoffeeRecommendedEvent) error) *CoffeeHandler {
	if svc == nil {
		panic("nil catalog service passed to NewCoffeeHandler")
	}
	return &CoffeeHandler{Catalog: svc, Publish: publish}
}

// List handles GET /v1/coffees and returns one page of coffees.
// Optional limit and offset query parameters page the result; both
// must be numeric when present and limit must be positive.
func (h *CoffeeHandler) List(c echo.Context) error {
	page := catalog.Page{}
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		page.Limit = n
	}
	if s := c.QueryParam("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "offset must be a non-negative integer"})
		}
		page.Offset = n
	}

	items, err := h.Catalog.FindAll(c.Request().Context(), page)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list coffees"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/coffees/:id.
func (h *CoffeeHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	coffee, err := h.Catalog.FindOne(c.Request().Context(), id)
	if err != nil {
		return coffeeError(c, err)
	}
	return c.JSON(http.StatusOK, coffee)
}

// Create handles POST /v1/coffees.  Title and brand are required;
// flavours may be empty.  Validation is explicit here so the service
// only ever sees well-formed input.
func (h *CoffeeHandler) Create(c echo.Context) error {
	var body struct {
		Title    string   `json:"title"`
		Brand    string   `json:"brand"`
		Flavours []string `json:"flavours"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	title := strings.TrimSpace(body.Title)
	brand := strings.TrimSpace(body.Brand)
	if title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if brand == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "brand is required"})
	}
	flavours, ok := cleanFlavours(body.Flavours)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "flavour names must be non-empty"})
	}

	coffee, err := h.Catalog.Create(c.Request().Context(), catalog.CreateInput{
		Title:    title,
		Brand:    brand,
		Flavours: flavours,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create coffee"})
	}
	return c.JSON(http.StatusCreated, coffee)
}

// Update handles PATCH /v1/coffees/:id.  Absent fields are left
// untouched; a present flavours list (even empty) replaces the
// coffee's flavour set entirely.
func (h *CoffeeHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		Title    *string   `json:"title"`
		Brand    *string   `json:"brand"`
		Flavours *[]string `json:"flavours"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	in := catalog.UpdateInput{}
	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "title must not be empty"})
		}
		in.Title = &title
	}
	if body.Brand != nil {
		brand := strings.TrimSpace(*body.Brand)
		if brand == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "brand must not be empty"})
		}
		in.Brand = &brand
	}
	if body.Flavours != nil {
		flavours, ok := cleanFlavours(*body.Flavours)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "flavour names must be non-empty"})
		}
		in.Flavours = &flavours
	}

	coffee, err := h.Catalog.Update(c.Request().Context(), id, in)
	if err != nil {
		return coffeeError(c, err)
	}
	return c.JSON(http.StatusOK, coffee)
}

// Delete handles DELETE /v1/coffees/:id and returns the removed
// coffee's last-known state.
func (h *CoffeeHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	coffee, err := h.Catalog.Remove(c.Request().Context(), id)
	if err != nil {
		return coffeeError(c, err)
	}
	return c.JSON(http.StatusOK, coffee)
}

// Recommend handles POST /v1/coffees/:id/recommend.  The coffee is
// loaded first, then the counter increment and the audit event are
// committed as one unit.  The broker notification runs after the
// commit and never fails the request; the database event row is the
// durable audit record.
func (h *CoffeeHandler) Recommend(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx := c.Request().Context()
	coffee, err := h.Catalog.FindOne(ctx, id)
	if err != nil {
		return coffeeError(c, err)
	}
	if err := h.Catalog.Recommend(ctx, coffee); err != nil {
		log.Printf("recommend coffee %d failed: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not recommend coffee"})
	}

	if h.Publish != nil {
		ev := queue.CoffeeRecommendedEvent{
			CoffeeID:        coffee.ID,
			Title:           coffee.Title,
			Brand:           coffee.Brand,
			Recommendations: coffee.Recommendations,
			RecommendedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		_ = h.Publish(ctx, ev) // best-effort, logged by the publisher
	}
	return c.JSON(http.StatusOK, coffee)
}

// parseID extracts the numeric :id path parameter.
func parseID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// cleanFlavours trims every flavour name and reports false when any
// name is empty after trimming.  The slice identity is preserved so an
// explicitly empty list stays distinguishable from an omitted one.
func cleanFlavours(names []string) ([]string, bool) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, false
		}
		out = append(out, name)
	}
	return out, true
}

// coffeeError translates domain errors into HTTP responses: Not-Found
// becomes 404 carrying the canonical message, everything else a
// generic 500.
func coffeeError(c echo.Context, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
