package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/amestel/coffee-catalog/internal/config"
	"github.com/amestel/coffee-catalog/internal/handler"
	"github.com/amestel/coffee-catalog/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication: the
// health check and the token exchange.
func RegisterRoutes(e *echo.Echo, a *handler.AuthHandler) {
	// Load balancers and monitoring probe this endpoint.
	e.GET("/healthz", handler.Health)
	e.POST("/v1/auth/token", a.Token)
}

// RegisterCatalog registers the coffee catalog endpoints.  Reads are
// public and rate limited; the listing additionally runs through the
// Redis response cache.  Mutations require a bearer token issued by
// the auth handler.
func RegisterCatalog(e *echo.Echo, h *handler.CoffeeHandler, jwtSecret string, rdb *redis.Client, cacheCfg config.CacheConfig, rlCfg config.RateLimitConfig) {
	public := e.Group("/v1")
	public.Use(middleware.NewTokenBucket(rlCfg, rdb))
	public.GET("/coffees", h.List, middleware.NewRedisCache(cacheCfg, rdb))
	public.GET("/coffees/:id", h.Get)

	protected := e.Group("/v1")
	protected.Use(middleware.JWTAuth(jwtSecret))
	protected.POST("/coffees", h.Create)
	protected.PATCH("/coffees/:id", h.Update)
	protected.DELETE("/coffees/:id", h.Delete)
	protected.POST("/coffees/:id/recommend", h.Recommend)
}
