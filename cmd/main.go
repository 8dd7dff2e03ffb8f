package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"desktour/internal/config"
	"desktour/internal/core/analyze"
	"desktour/internal/core/describe"
	"desktour/internal/core/extract"
	"desktour/internal/core/job"
	"desktour/internal/core/match"
	"desktour/internal/logger"
	"desktour/internal/platform/amazon"
	"desktour/internal/platform/catalog"
	"desktour/internal/platform/eino"
	"desktour/internal/platform/rakuten"
	rds "desktour/internal/platform/redis"
	tasks "desktour/internal/platform/tasks"
	"desktour/internal/server"
	"desktour/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log.Printf("[desktour] starting at %s (env=%s, marketplace=%s)\n", cfg.HTTPAddr, cfg.AppEnv, cfg.Marketplace)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Product catalog (postgres)
	catalogStore, err := catalog.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("catalog store: %v", err)
	}
	defer catalogStore.Close()

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"default": 1},
	})

	// Marketplace clients
	var searchClient match.SearchClient
	var asinLookup analyze.ASINLookup
	switch cfg.Marketplace {
	case "rakuten":
		searchClient = rakuten.New(cfg.RakutenAppID, cfg.RakutenAffiliateID)
	default:
		amazonClient := amazon.New(amazon.Config{
			AccessKey:  cfg.AmazonAccessKey,
			SecretKey:  cfg.AmazonSecretKey,
			PartnerTag: cfg.AmazonPartnerTag,
			Host:       cfg.AmazonHost,
			Region:     cfg.AmazonRegion,
		})
		searchClient = amazonClient
		asinLookup = amazonClient
	}

	// Eino (LLM) service initialized from environment variables
	einoSvc, err := eino.NewService(eino.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.DefaultLLMModel,
	})
	if err != nil {
		log.Fatalf("failed to initialize Eino service: %v", err)
	}

	// Core services
	jobSvc := job.NewJobService(redisSvc)
	extractSvc := extract.NewService(einoSvc)
	describeSvc := describe.NewService()
	reconciler := match.NewReconciler(catalogStore, searchClient, cfg.ExcludedBrands, time.Duration(cfg.SearchDelayMS)*time.Millisecond)
	analyzeSvc := analyze.NewService(jobSvc, taskClient, extractSvc, describeSvc, asinLookup, reconciler, cfg)

	// Worker mux
	mux := worker.NewMux(analyzeSvc.HandleAnalyzeTask)

	// Start worker
	_, workerCancel := context.WithCancel(context.Background())
	go func() {
		if err := asynqServer.Start(mux); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Desktour Engine",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	// Register routes with health handler
	deps := server.Dependencies{
		Job:     jobSvc,
		Analyze: analyzeSvc,
		Catalog: catalogStore,
		Redis:   redisSvc,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	// Mark application as ready after all services are initialized
	go func() {
		time.Sleep(5 * time.Second)
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		workerCancel()
		asynqServer.Shutdown()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
