// Package generation defines the contract with the external AI generation
// service used for category suggestions and content revision assistance.
//
// The service is best-effort: callers treat every result as a proposal and
// re-validate it before letting it touch the data model.
package generation

import (
	"context"

	"github.com/pisflow/pisflow/pkg/models"
)

// Service is the outbound interface to the generation backend.
type Service interface {
	// SuggestCategory asks the backend to pick the best-fitting category
	// triple for the given text out of the candidate list, or to declare
	// no match. A nil Category in the result means no match.
	SuggestCategory(ctx context.Context, req SuggestCategoryRequest) (*SuggestCategoryResult, error)

	// ReviseContent asks the backend to rewrite the given content fields
	// according to a reviewer note. Only fields present in the result are
	// considered revised.
	ReviseContent(ctx context.Context, req ReviseContentRequest) (*ReviseContentResult, error)
}

// SuggestCategoryRequest carries the product text and the full candidate list.
type SuggestCategoryRequest struct {
	Text       string            `json:"text"`
	Candidates []models.Category `json:"candidates"`
}

// SuggestCategoryResult is the backend's category proposal.
type SuggestCategoryResult struct {
	Category   *models.Category `json:"category"`
	Confidence float64          `json:"confidence"`
}

// ReviseContentRequest carries the current field texts and the reviewer note
// that motivated the revision.
type ReviseContentRequest struct {
	Fields map[models.Field]string `json:"fields"`
	Note   string                  `json:"note"`
}

// ReviseContentResult holds the revised field texts.
type ReviseContentResult struct {
	Fields map[models.Field]string `json:"fields"`
}
