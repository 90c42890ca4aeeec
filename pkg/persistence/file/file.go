// Package file provides file-based persistence for products and their
// transition history, intended for development and tests.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/pisflow/pisflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file
// system. A single mutex serializes writes so that CommitTransition stays
// atomic from the caller's perspective.
type Persistence struct {
	root        string
	mu          sync.Mutex
	productRepo *ProductRepository
	historyRepo *HistoryRepository
}

// NewPersistence creates a new instance rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	fp := &Persistence{root: cleanRoot}
	fp.historyRepo = NewHistoryRepository(cleanRoot, &fp.mu)
	fp.productRepo = NewProductRepository(cleanRoot, &fp.mu, fp.historyRepo)

	return fp
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) ProductRepository() persistence.ProductRepository {
	return fp.productRepo
}

func (fp *Persistence) HistoryRepository() persistence.HistoryRepository {
	return fp.historyRepo
}
