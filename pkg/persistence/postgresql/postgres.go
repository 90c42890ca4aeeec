// Package postgresql provides PostgreSQL persistence for products and their
// transition history.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/pisflow/pisflow/pkg/persistence"
	"github.com/pisflow/pisflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db          *sql.DB
	logger      *slog.Logger
	productRepo *ProductRepository
	historyRepo *HistoryRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	historyRepo := NewHistoryRepository(database, logger)
	productRepo := NewProductRepository(database, logger, historyRepo)

	postgres := &Persistence{
		db:          database,
		logger:      logger,
		productRepo: productRepo,
		historyRepo: historyRepo,
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// ProductRepository returns the product repository implementation.
func (p *Persistence) ProductRepository() persistence.ProductRepository {
	return p.productRepo
}

// HistoryRepository returns the history repository implementation.
func (p *Persistence) HistoryRepository() persistence.HistoryRepository {
	return p.historyRepo
}
