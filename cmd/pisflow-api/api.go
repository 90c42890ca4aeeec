// Package main provides the PISFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/pisflow/pisflow/pkg/eventbus"
	"github.com/pisflow/pisflow/pkg/persistence"
	"github.com/pisflow/pisflow/pkg/services"
	"github.com/pisflow/pisflow/pkg/taxonomy"
	"github.com/pisflow/pisflow/pkg/web"
	"github.com/pisflow/pisflow/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	matcher     *taxonomy.Matcher
	engine      *workflow.Engine
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	matcher *taxonomy.Matcher,
	engine *workflow.Engine,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		matcher:     matcher,
		engine:      engine,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	productService := services.NewProduct(a.persistence, a.eventBus, a.logger)
	historyService := services.NewHistory(a.persistence)
	classificationService := services.NewClassification(a.matcher)

	handlers := web.NewAPIHandlers(productService, historyService, classificationService, a.engine, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("PISFlow API")
	})

	p := app.Group("/products")
	p.Get("/", handlers.GetProducts)
	p.Post("/", handlers.CreateProduct)
	p.Get("/:id", handlers.GetProduct)
	p.Post("/:id/transitions", handlers.TransitionProduct)
	p.Get("/:id/history", handlers.GetProductHistory)
	p.Get("/:id/actions", handlers.GetProductActions)

	app.Get("/metrics/stages", handlers.GetStageMetrics)
	app.Post("/classify", handlers.Classify)
	app.Get("/taxonomy", handlers.GetTaxonomy)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
