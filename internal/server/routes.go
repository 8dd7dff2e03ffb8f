package server

import (
	"desktour/internal/core/analyze"
	"desktour/internal/core/job"
	"desktour/internal/health"
	"desktour/internal/platform/catalog"
	"desktour/internal/platform/redis"

	"github.com/gofiber/fiber/v2"
)

type Dependencies struct {
	Job     *job.JobService
	Analyze *analyze.Service
	Catalog *catalog.Store
	Redis   *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(d.Redis, d.Catalog)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	analyzeHandler := analyze.NewHandler(d.Job, d.Analyze, d.Catalog)
	api.Post("/analyze", analyzeHandler.HandleCreateAnalyze)
	api.Get("/analyze/:jobId", analyzeHandler.HandleGetAnalyze)
	api.Post("/match", analyzeHandler.HandleMatch)
	api.Get("/catalog/search", analyzeHandler.HandleCatalogSearch)

	return healthHandler
}
