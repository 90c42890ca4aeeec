package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
)

// HistoryRepository stores each product's ledger as an append-only JSON array
// under <root>/history.
type HistoryRepository struct {
	root string
	mu   *sync.Mutex
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(root string, mu *sync.Mutex) *HistoryRepository {
	return &HistoryRepository{root: root, mu: mu}
}

func (hr *HistoryRepository) historyPath(productID string) string {
	return filepath.Join(hr.root, "history", productID+".json")
}

// Append inserts an entry at the end of the product's ledger.
func (hr *HistoryRepository) Append(ctx context.Context, entry *models.HistoryEntry) error {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	return hr.appendLocked(entry)
}

// appendLocked assumes the persistence mutex is held, so CommitTransition can
// reuse it inside its own critical section.
func (hr *HistoryRepository) appendLocked(entry *models.HistoryEntry) error {
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

	entries, err := hr.read(entry.ProductID)
	if err != nil {
		return err
	}

	entries = append(entries, entry)

	dir := filepath.Join(hr.root, "history")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: failed to create history directory: %w", persistence.ErrStorageUnavailable, err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history for product %s: %w", entry.ProductID, err)
	}

	if err := os.WriteFile(hr.historyPath(entry.ProductID), data, 0o600); err != nil {
		return fmt.Errorf("%w: failed to write history for product %s: %w", persistence.ErrStorageUnavailable, entry.ProductID, err)
	}

	return nil
}

// snapshotLocked captures the raw ledger bytes for a product so a failed
// multi-file commit can put them back. existed is false when the product has
// no ledger file yet.
func (hr *HistoryRepository) snapshotLocked(productID string) ([]byte, bool, error) {
	data, err := os.ReadFile(hr.historyPath(productID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%w: failed to read history for product %s: %w", persistence.ErrStorageUnavailable, productID, err)
	}

	return data, true, nil
}

// restoreLocked rewinds the ledger file to a snapshot taken by snapshotLocked.
func (hr *HistoryRepository) restoreLocked(productID string, data []byte, existed bool) error {
	if !existed {
		if err := os.Remove(hr.historyPath(productID)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove history for product %s: %w", productID, err)
		}

		return nil
	}

	if err := os.WriteFile(hr.historyPath(productID), data, 0o600); err != nil {
		return fmt.Errorf("failed to restore history for product %s: %w", productID, err)
	}

	return nil
}

// ListByProduct returns the product's entries in occurrence order.
func (hr *HistoryRepository) ListByProduct(ctx context.Context, productID string) ([]*models.HistoryEntry, error) {
	return hr.read(productID)
}

// ProductIDs returns every product id with at least one ledger entry.
func (hr *HistoryRepository) ProductIDs(ctx context.Context) ([]string, error) {
	root := os.DirFS(filepath.Join(hr.root, "history"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list history files: %w", err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, file[:len(file)-5])
	}

	return ids, nil
}

func (hr *HistoryRepository) read(productID string) ([]*models.HistoryEntry, error) {
	data, err := os.ReadFile(hr.historyPath(productID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.HistoryEntry{}, nil
		}

		return nil, fmt.Errorf("%w: failed to read history for product %s: %w", persistence.ErrStorageUnavailable, productID, err)
	}

	var entries []*models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history for product %s: %w", productID, err)
	}

	return entries, nil
}
