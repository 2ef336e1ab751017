package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"      // Loads .env files in local development
	"github.com/labstack/echo/v4"   // Echo web framework

	"github.com/samuraidojo/dojo/internal/config"
	"github.com/samuraidojo/dojo/internal/database"
	"github.com/samuraidojo/dojo/internal/handler"
	"github.com/samuraidojo/dojo/internal/queue"
	"github.com/samuraidojo/dojo/internal/repository"
	"github.com/samuraidojo/dojo/internal/router"
	queue_publisher "github.com/samuraidojo/dojo/internal/service"
)

func main() {
	// Load .env if present; deployed environments set real variables.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; auth rate limiting disabled")
	}

	users := repository.NewUserRepo(db, cfg.LoginMaxAttempts, cfg.LockoutDuration)
	tokens := repository.NewTokenRepo(db)
	workspaces := repository.NewWorkspaceRepo(db)
	members := repository.NewMemberRepo(db)

	authHandler := handler.NewAuthHandler(cfg, users, tokens, workspaces, members, queue_publisher.PublishEmail)
	workspaceHandler := handler.NewWorkspaceHandler(users, workspaces, members, queue_publisher.PublishEmail)

	// Drain outbound email events in the background; the consumer keeps its
	// own reconnect loop.
	go func() {
		if err := queue.StartEmailConsumer(); err != nil {
			log.Printf("email consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, rdb, config.LoadAuthLimitConfig(), users)
	router.RegisterWorkspaces(e, workspaceHandler, cfg.AccessSecret, users, members)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
