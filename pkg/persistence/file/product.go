package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
)

// ProductRepository handles product-related file operations. Products are
// stored as one JSON document per product under <root>/products.
type ProductRepository struct {
	root    string
	mu      *sync.Mutex
	history *HistoryRepository
}

// NewProductRepository creates a new product repository.
func NewProductRepository(root string, mu *sync.Mutex, history *HistoryRepository) *ProductRepository {
	return &ProductRepository{root: root, mu: mu, history: history}
}

func (pr *ProductRepository) productPath(id string) string {
	return filepath.Join(pr.root, "products", id+".json")
}

// Create stores a new product. An existing file with the same id is an error.
func (pr *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

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

	if _, err := os.Stat(pr.productPath(product.ID)); err == nil {
		return persistence.NewProductError("Create", product.ID, persistence.ErrProductAlreadyExists)
	}

	return pr.write(product)
}

// GetByID returns a product by its id.
func (pr *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	data, err := os.ReadFile(pr.productPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewProductError("GetByID", id, persistence.ErrProductNotFound)
		}

		return nil, fmt.Errorf("%w: failed to read product %s: %w", persistence.ErrStorageUnavailable, id, err)
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product %s: %w", id, err)
	}

	return &product, nil
}

// List returns products filtered by stage, newest first.
func (pr *ProductRepository) List(ctx context.Context, opts persistence.ListProductsOptions) ([]*models.Product, error) {
	root := os.DirFS(filepath.Join(pr.root, "products"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list product files: %w", err)
	}

	products := make([]*models.Product, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5] // strip .json

		product, err := pr.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load product %s: %w", id, err)
		}

		if len(opts.Stages) > 0 && !stageIn(product.Stage, opts.Stages) {
			continue
		}

		products = append(products, product)
	}

	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(products) {
			return []*models.Product{}, nil
		}

		products = products[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(products) {
		products = products[:opts.Limit]
	}

	return products, nil
}

// CountByStage returns the number of products in each stage.
func (pr *ProductRepository) CountByStage(ctx context.Context) (map[models.Stage]int64, error) {
	products, err := pr.List(ctx, persistence.ListProductsOptions{})
	if err != nil {
		return nil, err
	}

	counts := make(map[models.Stage]int64)
	for _, product := range products {
		counts[product.Stage]++
	}

	return counts, nil
}

// CommitTransition writes the product's new state and appends the ledger
// entry under one lock. The stored version must equal expectedVersion.
func (pr *ProductRepository) CommitTransition(ctx context.Context, product *models.Product, expectedVersion int64, entry *models.HistoryEntry) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	data, err := os.ReadFile(pr.productPath(product.ID))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewProductError("CommitTransition", product.ID, persistence.ErrProductNotFound)
		}

		return fmt.Errorf("%w: failed to read product %s: %w", persistence.ErrStorageUnavailable, product.ID, err)
	}

	var stored models.Product
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal product %s: %w", product.ID, err)
	}

	if stored.Version != expectedVersion {
		return persistence.NewProductError("CommitTransition", product.ID, persistence.ErrVersionConflict)
	}

	product.UpdatedAt = time.Now().UTC()

	// Two files change here and there is no transaction to lean on. The
	// ledger is appended first and rewound if the product write fails, so a
	// partial commit can never leave an advanced product without its entry.
	snapshot, existed, err := pr.history.snapshotLocked(product.ID)
	if err != nil {
		return err
	}

	if err := pr.history.appendLocked(entry); err != nil {
		return err
	}

	if err := pr.write(product); err != nil {
		if restoreErr := pr.history.restoreLocked(product.ID, snapshot, existed); restoreErr != nil {
			return fmt.Errorf("%w; ledger rollback also failed: %w", err, restoreErr)
		}

		return err
	}

	return nil
}

func (pr *ProductRepository) write(product *models.Product) error {
	dir := filepath.Join(pr.root, "products")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: failed to create products directory: %w", persistence.ErrStorageUnavailable, err)
	}

	data, err := json.MarshalIndent(product, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal product %s: %w", product.ID, err)
	}

	if err := os.WriteFile(pr.productPath(product.ID), data, 0o600); err != nil {
		return fmt.Errorf("%w: failed to write product %s: %w", persistence.ErrStorageUnavailable, product.ID, err)
	}

	return nil
}

func stageIn(stage models.Stage, stages []models.Stage) bool {
	for _, s := range stages {
		if s == stage {
			return true
		}
	}

	return false
}
