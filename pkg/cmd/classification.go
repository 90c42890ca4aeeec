package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pisflow/pisflow/pkg/generation"
	"github.com/pisflow/pisflow/pkg/taxonomy"
)

// NewGenerationService builds the AI backend client. A missing base URL
// disables generation entirely; the workflow then relies on the alias table
// and manual suggestions alone.
func NewGenerationService(baseURL, apiKey string, logger *slog.Logger) generation.Service {
	if baseURL == "" {
		return nil
	}

	return generation.NewHTTPService(baseURL, apiKey, logger)
}

// NewMatcher loads the embedded taxonomy table and builds the classification
// matcher. A Redis address enables caching of AI classification results.
func NewMatcher(ctx context.Context, generator generation.Service, redisAddr, redisPassword string, redisDB int, logger *slog.Logger) *taxonomy.Matcher {
	table, err := taxonomy.Load()
	if err != nil {
		panic(fmt.Errorf("failed to load taxonomy table: %w", err))
	}

	opts := []taxonomy.MatcherOption{}

	if redisAddr != "" {
		cache, err := taxonomy.NewRedisCache(ctx, redisAddr, redisPassword, redisDB)
		if err != nil {
			panic(fmt.Errorf("failed to connect classification cache: %w", err))
		}

		opts = append(opts, taxonomy.WithCache(cache))
	}

	return taxonomy.NewMatcher(table, generator, logger, opts...)
}
