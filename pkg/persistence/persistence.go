// Package persistence provides the data storage abstraction for products and
// their transition history.
package persistence

import (
	"context"

	"github.com/pisflow/pisflow/pkg/models"
)

type Persistence interface {
	ProductRepository() ProductRepository
	HistoryRepository() HistoryRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// ListProductsOptions filters and pages product listings.
type ListProductsOptions struct {
	Stages []models.Stage
	Limit  int
	Offset int
}

// ProductRepository stores products. CommitTransition is the sole write path
// for stage, category, fields and version: it must persist the product's new
// state and append the ledger entry as one atomic unit, guarded by the
// caller's expected version.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, opts ListProductsOptions) ([]*models.Product, error)
	CountByStage(ctx context.Context) (map[models.Stage]int64, error)

	// CommitTransition persists product (whose Version has already been
	// advanced past expectedVersion) and entry in a single committed unit.
	// A stored version other than expectedVersion fails with
	// ErrVersionConflict and writes nothing.
	CommitTransition(ctx context.Context, product *models.Product, expectedVersion int64, entry *models.HistoryEntry) error
}

// HistoryRepository is the append-only ledger of stage transitions.
type HistoryRepository interface {
	// Append inserts an entry. Entries are never mutated or deleted.
	Append(ctx context.Context, entry *models.HistoryEntry) error
	// ListByProduct returns the product's entries in occurrence order.
	ListByProduct(ctx context.Context, productID string) ([]*models.HistoryEntry, error)
	// ProductIDs returns every product id that has at least one entry, for
	// audit sweeps.
	ProductIDs(ctx context.Context) ([]string, error)
}
