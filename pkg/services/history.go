package services

import (
	"context"
	"fmt"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
	"github.com/pisflow/pisflow/pkg/workflow"
)

// History is the read side of the transition ledger: product timelines and
// their replayed stage.
type History struct {
	persistence persistence.Persistence
}

// NewHistory creates a new history service.
func NewHistory(persistence persistence.Persistence) *History {
	return &History{
		persistence: persistence,
	}
}

// TimelineResponse is one product's full transition history plus the stage
// the ledger folds to. FoldedStage matching the stored stage is the ledger
// consistency invariant; Consistent reports it so callers can surface
// divergence without repair.
type TimelineResponse struct {
	ProductID   string                 `json:"product_id"`
	Entries     []*models.HistoryEntry `json:"entries"`
	FoldedStage models.Stage           `json:"folded_stage"`
	StoredStage models.Stage           `json:"stored_stage"`
	Consistent  bool                   `json:"consistent"`
}

// Timeline returns the product's ledger entries in occurrence order together
// with the replay result.
func (h *History) Timeline(ctx context.Context, productID string) (*TimelineResponse, error) {
	product, err := h.persistence.ProductRepository().GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	entries, err := h.persistence.HistoryRepository().ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	folded, err := workflow.FoldStage(entries)
	if err != nil {
		// A broken chain is reported, not hidden; the folded stage is
		// wherever the replay got to.
		return &TimelineResponse{
			ProductID:   productID,
			Entries:     entries,
			FoldedStage: folded,
			StoredStage: product.Stage,
			Consistent:  false,
		}, nil
	}

	return &TimelineResponse{
		ProductID:   productID,
		Entries:     entries,
		FoldedStage: folded,
		StoredStage: product.Stage,
		Consistent:  folded == product.Stage,
	}, nil
}
