package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/pisflow/pisflow/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "pisflow",
		Usage:                 "Inspect and drive product information sheets from the command line",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			createCommand(),
			getCommand(),
			listCommand(),
			transitionCommand(),
			historyCommand(),
			classifyCommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		log.WithModule("cli").Error("Command failed", "error", err)
		os.Exit(1)
	}
}
