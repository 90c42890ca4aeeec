package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
)

// ProductRepository handles product-related database operations.
type ProductRepository struct {
	db      *sql.DB
	logger  *slog.Logger
	history *HistoryRepository
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *sql.DB, logger *slog.Logger, history *HistoryRepository) *ProductRepository {
	return &ProductRepository{db: db, logger: logger, history: history}
}

const productColumns = `
	id
  , name
  , stage
  , category
  , fields
  , version
  , created_at
  , updated_at
`

// Create inserts a new product row.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	now := time.Now().UTC()

	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}

	product.UpdatedAt = now

	if product.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate product ID: %w", err)
		}

		product.ID = id.String()
	}

	if product.Version == 0 {
		product.Version = 1
	}

	categoryJSON, fieldsJSON, err := marshalProductJSON(product)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, name, stage, category, fields, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		product.ID,
		product.Name,
		product.Stage,
		categoryJSON,
		fieldsJSON,
		product.Version,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewProductError("Create", product.ID, persistence.ErrProductAlreadyExists)
		}

		return fmt.Errorf("%w: failed to insert product: %w", persistence.ErrStorageUnavailable, err)
	}

	return nil
}

// GetByID returns a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewProductError("GetByID", id, persistence.ErrProductNotFound)
		}

		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	return product, nil
}

// List returns products filtered by stage, newest first.
func (r *ProductRepository) List(ctx context.Context, opts persistence.ListProductsOptions) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`

	args := make([]any, 0, 3)

	if len(opts.Stages) > 0 {
		placeholders := make([]string, len(opts.Stages))
		for i, stage := range opts.Stages {
			args = append(args, string(stage))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}

		query += ` WHERE stage IN (` + strings.Join(placeholders, ", ") + `)`
	}

	query += ` ORDER BY created_at DESC`

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query products: %w", persistence.ErrStorageUnavailable, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	products := make([]*models.Product, 0)

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		products = append(products, product)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// CountByStage returns the number of products in each stage.
func (r *ProductRepository) CountByStage(ctx context.Context) (map[models.Stage]int64, error) {
	query := `SELECT stage, COUNT(*) FROM products GROUP BY stage`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query stage counts: %w", persistence.ErrStorageUnavailable, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	counts := make(map[models.Stage]int64)

	for rows.Next() {
		var (
			stage models.Stage
			count int64
		)

		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stage count: %w", err)
		}

		counts[stage] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage counts: %w", err)
	}

	return counts, nil
}

// CommitTransition persists the product's new state and its ledger entry in
// one transaction, guarded by the expected version. A version mismatch
// writes nothing and fails with ErrVersionConflict.
func (r *ProductRepository) CommitTransition(ctx context.Context, product *models.Product, expectedVersion int64, entry *models.HistoryEntry) error {
	categoryJSON, fieldsJSON, err := marshalProductJSON(product)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", persistence.ErrStorageUnavailable, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	product.UpdatedAt = time.Now().UTC()

	updateQuery := `
		UPDATE products
		SET stage = $1, category = $2, fields = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7
	`

	result, err := tx.ExecContext(ctx, updateQuery,
		product.Stage,
		categoryJSON,
		fieldsJSON,
		product.Version,
		product.UpdatedAt,
		product.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update product: %w", persistence.ErrStorageUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool

		err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", product.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check product existence: %w", err)
		}

		if !exists {
			err = persistence.NewProductError("CommitTransition", product.ID, persistence.ErrProductNotFound)

			return err
		}

		err = persistence.NewProductError("CommitTransition", product.ID, persistence.ErrVersionConflict)

		return err
	}

	err = r.history.appendTx(ctx, tx, entry)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", persistence.ErrStorageUnavailable, err)
	}

	return nil
}

func marshalProductJSON(product *models.Product) ([]byte, []byte, error) {
	var (
		categoryJSON []byte
		err          error
	)

	if product.Category != nil {
		categoryJSON, err = json.Marshal(product.Category)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal category: %w", err)
		}
	}

	fieldsJSON, err := json.Marshal(product.Fields)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal fields: %w", err)
	}

	return categoryJSON, fieldsJSON, nil
}

func scanProduct(scanner interface {
	Scan(dest ...any) error
}) (*models.Product, error) {
	var (
		product                  models.Product
		categoryJSON, fieldsJSON []byte
	)

	err := scanner.Scan(
		&product.ID,
		&product.Name,
		&product.Stage,
		&categoryJSON,
		&fieldsJSON,
		&product.Version,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if categoryJSON != nil {
		var category models.Category

		err := json.Unmarshal(categoryJSON, &category)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal category: %w", err)
		}

		product.Category = &category
	}

	if fieldsJSON != nil {
		err := json.Unmarshal(fieldsJSON, &product.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
		}
	}

	return &product, nil
}

func isUniqueViolation(err error) bool {
	// lib/pq unique_violation SQLSTATE
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}
