package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/pisflow/pisflow/pkg/cmd"
	"github.com/pisflow/pisflow/pkg/log"
	"github.com/pisflow/pisflow/pkg/workflow"
)

func main() {
	logger := log.WithModule("auditor")

	command := &cli.Command{
		Name:                  "pisflow-auditor",
		Usage:                 "Periodically replay transition ledgers and report divergence",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron schedule for audit sweeps",
				Value:   "@every 1h",
				Sources: cli.EnvVars("AUDIT_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single sweep and exit non-zero on divergence",
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

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			auditor := workflow.NewAuditor(store.ProductRepository(), store.HistoryRepository(), logger)

			if command.Bool("once") {
				report, err := auditor.Run(ctx)
				if err != nil {
					return err
				}

				logSweep(ctx, logger, report)

				if !report.Clean() {
					return fmt.Errorf("audit found %d divergent products", len(report.Divergent))
				}

				return nil
			}

			scheduler := cron.New()

			_, err := scheduler.AddFunc(command.String("schedule"), func() {
				report, err := auditor.Run(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Audit sweep failed", "error", err)

					return
				}

				logSweep(ctx, logger, report)
			})
			if err != nil {
				return fmt.Errorf("invalid audit schedule: %w", err)
			}

			logger.InfoContext(ctx, "Starting audit scheduler", "schedule", command.String("schedule"))
			scheduler.Start()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			logger.InfoContext(ctx, "Stopping audit scheduler")
			<-scheduler.Stop().Done()

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("Auditor failed", "error", err)
		os.Exit(1)
	}
}

func logSweep(ctx context.Context, logger *slog.Logger, report workflow.Report) {
	if report.Clean() {
		logger.InfoContext(ctx, "Audit sweep clean", "checked", report.Checked)

		return
	}

	logger.WarnContext(ctx, "Audit sweep found divergence",
		"checked", report.Checked,
		"divergent", report.Divergent,
	)
}
