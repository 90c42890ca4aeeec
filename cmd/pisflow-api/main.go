package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/pisflow/pisflow/pkg/cmd"
	"github.com/pisflow/pisflow/pkg/log"
	"github.com/pisflow/pisflow/pkg/otelhelper"
	"github.com/pisflow/pisflow/pkg/workflow"
)

const defaultPort = 9080

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "pisflow-api",
		Usage:                 "Serve the product information sheet workflow API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "generation-api-url",
				Usage:   "Base URL of the AI generation backend (empty disables AI assistance)",
				Sources: cli.EnvVars("GENERATION_API_URL"),
			},
			&cli.StringFlag{
				Name:    "generation-api-key",
				Usage:   "API key for the AI generation backend",
				Sources: cli.EnvVars("GENERATION_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the classification cache (empty disables caching)",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password for the classification cache",
				Sources: cli.EnvVars("REDIS_PASSWORD"),
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database for the classification cache",
				Value:   0,
				Sources: cli.EnvVars("REDIS_DB"),
			},
			&cli.StringFlag{
				Name:    "revision-mode",
				Usage:   "Behavior when AI revision assistance fails (degrade, block)",
				Value:   string(workflow.RevisionModeDegrade),
				Sources: cli.EnvVars("REVISION_MODE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing PISFlow API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "pisflow-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			generator := cmd.NewGenerationService(
				command.String("generation-api-url"),
				command.String("generation-api-key"),
				logger,
			)

			matcher := cmd.NewMatcher(ctx, generator,
				command.String("redis-addr"),
				command.String("redis-password"),
				int(command.Int("redis-db")),
				logger,
			)

			engineOpts := []workflow.EngineOption{
				workflow.WithPublisher(eventBus),
				workflow.WithRevisionMode(workflow.RevisionMode(command.String("revision-mode"))),
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "pisflow-api")
				if err != nil {
					return err
				}

				engineOpts = append(engineOpts, workflow.WithTracer(tracer))
			}

			engine := workflow.NewEngine(persistence.ProductRepository(), matcher, generator, logger, engineOpts...)

			api := NewAPI(logger, persistence, matcher, engine, eventBus)

			err := api.Start(int(command.Int("port")))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
