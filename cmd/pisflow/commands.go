package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/pisflow/pisflow/pkg/cmd"
	"github.com/pisflow/pisflow/pkg/log"
	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
	"github.com/pisflow/pisflow/pkg/services"
	"github.com/pisflow/pisflow/pkg/workflow"
)

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

func openPersistence(ctx context.Context, command *cli.Command) persistence.Persistence {
	log.Setup(command.String("log-level"))

	return cmd.NewPersistence(ctx, log.WithModule("cli"), command.String("database-url"))
}

// parseFieldFlags turns repeated --field name=text flags into a field map.
func parseFieldFlags(raw []string) (map[models.Field]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	fields := make(map[models.Field]string, len(raw))

	for _, pair := range raw {
		name, text, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field %q, expected name=text", pair)
		}

		fields[models.Field(strings.TrimSpace(name))] = text
	}

	return fields, nil
}

// parseCategoryFlag turns "Main > Sub > SubSub" into a category triple.
func parseCategoryFlag(raw string) (*models.Category, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ">")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid category %q, expected 'Main > Sub > SubSub'", raw)
	}

	return &models.Category{
		Main:   strings.TrimSpace(parts[0]),
		Sub:    strings.TrimSpace(parts[1]),
		SubSub: strings.TrimSpace(parts[2]),
	}, nil
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Register a new product sheet in the draft stage",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Product name", Required: true},
			&cli.StringSliceFlag{Name: "field", Usage: "Initial content field as name=text (repeatable)"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			store := openPersistence(ctx, command)
			defer store.Close(ctx) //nolint:errcheck

			fields, err := parseFieldFlags(command.StringSlice("field"))
			if err != nil {
				return err
			}

			service := services.NewProduct(store, nil, log.WithModule("cli"))

			product, err := service.Create(ctx, services.CreateProductRequest{
				Name:   command.String("name"),
				Fields: fields,
			})
			if err != nil {
				return err
			}

			return printJSON(product)
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one product",
		ArgsUsage: "<product-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			store := openPersistence(ctx, command)
			defer store.Close(ctx) //nolint:errcheck

			product, err := store.ProductRepository().GetByID(ctx, command.Args().First())
			if err != nil {
				return err
			}

			return printJSON(product)
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List products, optionally filtered by stage",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "stage", Usage: "Stage filter (repeatable)"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of products", Value: 20},
			&cli.IntFlag{Name: "offset", Usage: "Listing offset", Value: 0},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			store := openPersistence(ctx, command)
			defer store.Close(ctx) //nolint:errcheck

			stages := make([]models.Stage, 0, len(command.StringSlice("stage")))
			for _, raw := range command.StringSlice("stage") {
				stages = append(stages, models.Stage(raw))
			}

			service := services.NewProduct(store, nil, log.WithModule("cli"))

			result, err := service.ListProducts(ctx, services.ListProductsRequest{
				Stages: stages,
				Limit:  int(command.Int("limit")),
				Offset: int(command.Int("offset")),
			})
			if err != nil {
				return err
			}

			return printJSON(result)
		},
	}
}

func transitionCommand() *cli.Command {
	return &cli.Command{
		Name:      "transition",
		Usage:     "Perform one workflow action on a product",
		ArgsUsage: "<product-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "action", Usage: "Workflow action to perform", Required: true},
			&cli.StringFlag{Name: "actor-id", Usage: "Acting user id", Required: true},
			&cli.StringFlag{Name: "role", Usage: "Acting user role", Required: true},
			&cli.IntFlag{Name: "expected-version", Usage: "Product version the action was decided against", Required: true},
			&cli.StringFlag{Name: "note", Usage: "Reviewer note"},
			&cli.StringSliceFlag{Name: "field", Usage: "Content field update as name=text (repeatable)"},
			&cli.StringFlag{Name: "suggested-category", Usage: "Manual category as 'Main > Sub > SubSub'"},
			&cli.BoolFlag{Name: "assist-revision", Usage: "Ask the AI backend to rework fields on resubmit"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			store := openPersistence(ctx, command)
			defer store.Close(ctx) //nolint:errcheck

			fields, err := parseFieldFlags(command.StringSlice("field"))
			if err != nil {
				return err
			}

			suggested, err := parseCategoryFlag(command.String("suggested-category"))
			if err != nil {
				return err
			}

			logger := log.WithModule("cli")
			generator := cmd.NewGenerationService(
				command.String("generation-api-url"),
				command.String("generation-api-key"),
				logger,
			)
			matcher := cmd.NewMatcher(ctx, generator, "", "", 0, logger)
			engine := workflow.NewEngine(store.ProductRepository(), matcher, generator, logger)

			result, err := engine.Transition(ctx, workflow.TransitionRequest{
				ProductID: command.Args().First(),
				Action:    models.Action(command.String("action")),
				Actor: models.Actor{
					ID:   command.String("actor-id"),
					Role: models.Role(command.String("role")),
				},
				ExpectedVersion:   int64(command.Int("expected-version")),
				Note:              command.String("note"),
				FieldUpdates:      fields,
				SuggestedCategory: suggested,
				AssistRevision:    command.Bool("assist-revision"),
			})
			if err != nil {
				return err
			}

			return printJSON(result)
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show a product's transition timeline and its replayed stage",
		ArgsUsage: "<product-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			store := openPersistence(ctx, command)
			defer store.Close(ctx) //nolint:errcheck

			service := services.NewHistory(store)

			timeline, err := service.Timeline(ctx, command.Args().First())
			if err != nil {
				return err
			}

			return printJSON(timeline)
		},
	}
}

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Resolve a taxonomy category for free text",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Usage: "Text to classify", Required: true},
			&cli.StringFlag{Name: "suggested-category", Usage: "Manual category as 'Main > Sub > SubSub'"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			suggested, err := parseCategoryFlag(command.String("suggested-category"))
			if err != nil {
				return err
			}

			logger := log.WithModule("cli")
			generator := cmd.NewGenerationService(
				command.String("generation-api-url"),
				command.String("generation-api-key"),
				logger,
			)
			matcher := cmd.NewMatcher(ctx, generator, "", "", 0, logger)

			service := services.NewClassification(matcher)

			result, err := service.Classify(ctx, services.ClassifyRequest{
				Text:              command.String("text"),
				SuggestedCategory: suggested,
			})
			if err != nil {
				return err
			}

			return printJSON(result)
		},
	}
}
