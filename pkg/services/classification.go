package services

import (
	"context"
	"strings"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/taxonomy"
)

// Classification exposes the taxonomy matcher as a standalone dry-run
// service, so content teams can probe category resolution before a specsheet
// submission depends on it.
type Classification struct {
	matcher *taxonomy.Matcher
}

// NewClassification creates a new classification service.
func NewClassification(matcher *taxonomy.Matcher) *Classification {
	return &Classification{
		matcher: matcher,
	}
}

// ClassifyRequest contains the free text to classify and an optional manual
// category suggestion.
type ClassifyRequest struct {
	Text              string `validate:"required"`
	SuggestedCategory *models.Category
}

// ClassifyResponse reports the match outcome. Category is nil when nothing in
// the taxonomy table matched.
type ClassifyResponse struct {
	Category   *models.Category `json:"category,omitempty"`
	Confidence float64          `json:"confidence"`
	Source     taxonomy.Source  `json:"source"`
	Matched    bool             `json:"matched"`
}

// Classify resolves a category for the given text. Backend failures propagate
// so the caller can distinguish "no match" from "could not try".
func (s *Classification) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, NewValidationError("Classify", "EMPTY_TEXT",
			"classification text cannot be empty", ErrEmptyText)
	}

	match, err := s.matcher.Classify(ctx, req.Text, req.SuggestedCategory)
	if err != nil {
		return nil, err
	}

	return &ClassifyResponse{
		Category:   match.Category,
		Confidence: match.Confidence,
		Source:     match.Source,
		Matched:    !match.Unclassified(),
	}, nil
}

// TaxonomyInfo describes the loaded taxonomy table.
type TaxonomyInfo struct {
	Version string `json:"version"`
	Entries int    `json:"entries"`
}

// Taxonomy returns version and size of the classification table in use.
func (s *Classification) Taxonomy() TaxonomyInfo {
	table := s.matcher.Table()

	return TaxonomyInfo{
		Version: table.Version(),
		Entries: table.Len(),
	}
}
