package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
)

// HistoryRepository handles the append-only product transition ledger.
type HistoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *sql.DB, logger *slog.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Append inserts an entry outside a product transition. Normal transitions
// go through ProductRepository.CommitTransition, which appends inside the
// same transaction.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.HistoryEntry) error {
	return r.append(ctx, r.db, entry)
}

func (r *HistoryRepository) appendTx(ctx context.Context, tx *sql.Tx, entry *models.HistoryEntry) error {
	return r.append(ctx, tx, entry)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *HistoryRepository) append(ctx context.Context, db execer, entry *models.HistoryEntry) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate entry ID: %w", err)
		}

		entry.ID = id.String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO product_history (id, product_id, from_stage, to_stage, action, actor_role, actor_id, note, payload_digest, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := db.ExecContext(ctx, query,
		entry.ID,
		entry.ProductID,
		entry.FromStage,
		entry.ToStage,
		entry.Action,
		entry.ActorRole,
		entry.ActorID,
		entry.Note,
		entry.PayloadDigest,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert history entry: %w", persistence.ErrStorageUnavailable, err)
	}

	return nil
}

// ListByProduct returns the product's entries in occurrence order.
func (r *HistoryRepository) ListByProduct(ctx context.Context, productID string) ([]*models.HistoryEntry, error) {
	query := `
		SELECT
			id
		  , product_id
		  , from_stage
		  , to_stage
		  , action
		  , actor_role
		  , actor_id
		  , note
		  , payload_digest
		  , occurred_at
		FROM product_history
		WHERE product_id = $1
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query history: %w", persistence.ErrStorageUnavailable, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.HistoryEntry, 0)

	for rows.Next() {
		var entry models.HistoryEntry

		err := rows.Scan(
			&entry.ID,
			&entry.ProductID,
			&entry.FromStage,
			&entry.ToStage,
			&entry.Action,
			&entry.ActorRole,
			&entry.ActorID,
			&entry.Note,
			&entry.PayloadDigest,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history entries: %w", err)
	}

	return entries, nil
}

// ProductIDs returns every product id with at least one ledger entry.
func (r *HistoryRepository) ProductIDs(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT product_id FROM product_history`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query history product ids: %w", persistence.ErrStorageUnavailable, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	ids := make([]string, 0)

	for rows.Next() {
		var id string

		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product ids: %w", err)
	}

	return ids, nil
}
