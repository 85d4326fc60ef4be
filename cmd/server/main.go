package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/amestel/coffee-catalog/internal/catalog"
	"github.com/amestel/coffee-catalog/internal/config"
	"github.com/amestel/coffee-catalog/internal/database"
	"github.com/amestel/coffee-catalog/internal/handler"
	"github.com/amestel/coffee-catalog/internal/queue"
	"github.com/amestel/coffee-catalog/internal/repository"
	"github.com/amestel/coffee-catalog/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb := config.NewRedisClient() // nil disables cache and rate limiting
	if rdb == nil {
		log.Println("redis unavailable; response cache and rate limiting disabled")
	}

	svc := catalog.NewService(repository.NewCatalogRepo(db))
	coffees := handler.NewCoffeeHandler(svc, queue.PublishCoffeeRecommended)
	auth := handler.NewAuthHandler(cfg.APIKeyHash, cfg.JWTSecret, cfg.AccessTTLMin)

	e := echo.New()
	router.RegisterRoutes(e, auth)
	router.RegisterCatalog(e, coffees, cfg.JWTSecret, rdb, config.LoadCacheConfig(), config.LoadRateLimitConfig())

	// Tail the recommendation queue into the audit log.
	go func() {
		if err := queue.StartRecommendConsumer(); err != nil {
			log.Printf("recommend consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
