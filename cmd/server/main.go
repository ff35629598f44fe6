package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/storefront"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, "storefront"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront", zap.String("api", cfg.API.BaseURL))

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	readyChecks := map[string]api.Checker{}
	var sessions session.Backend
	var purger worker.Purger
	dropOnEvict := false

	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Session.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")

		sessions = redisClient
		readyChecks["redis"] = redisClient.Ping

	case config.SessionBackendPostgres:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to prepare session schema: %v", err)
		}
		log.Println("Database connected")

		backend := store.NewSessionBackend(db, cfg.Session.TTL)
		sessions = backend
		purger = backend
		readyChecks["database"] = db.Ping

	case config.SessionBackendMemory:
		sessions = session.NewMemory()
		dropOnEvict = true

	default:
		log.Fatalf("Unknown session backend %q", cfg.Session.Backend)
	}

	var publisher service.EventPublisher = broker.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		log.Println("Kafka producer initialized")

		publisher = broker.NewEventPublisher(producer)
	}

	registry := storefront.NewRegistry(storefront.Deps{
		BaseURL:      cfg.API.BaseURL,
		HTTPClient:   &http.Client{Timeout: cfg.API.Timeout},
		Sessions:     sessions,
		Publisher:    publisher,
		LoginView:    cfg.Shop.LoginView,
		PageSize:     cfg.Shop.ListingPageSize,
		QuantitySync: cfg.Shop.CartQuantitySync,

		DropSessionOnEvict: dropOnEvict,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	janitor := worker.NewJanitor(registry, purger, time.Minute, cfg.Session.IdleAfter)
	go func() {
		if err := janitor.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Janitor error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(registry, api.Options{
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Server.Env == "production",
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadyChecks:  readyChecks,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	janitor.Stop()
	workerCancel()

	log.Println("Server exited")
}
