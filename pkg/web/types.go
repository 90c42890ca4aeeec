// Package web provides HTTP request and response types for the PIS workflow API.
package web

import (
	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/taxonomy"
)

// CreateProductRequest represents the request body for registering a new
// product sheet.
type CreateProductRequest struct {
	Name   string            `json:"name"             validate:"required,min=2"`
	Fields map[string]string `json:"fields,omitempty"`
}

// CategoryPayload is a classification triple in request or response bodies.
type CategoryPayload struct {
	Main   string `json:"main"    validate:"required"`
	Sub    string `json:"sub"     validate:"required"`
	SubSub string `json:"sub_sub" validate:"required"`
}

func (c *CategoryPayload) toModel() *models.Category {
	if c == nil {
		return nil
	}

	return &models.Category{Main: c.Main, Sub: c.Sub, SubSub: c.SubSub}
}

// TransitionProductRequest represents the request body for one workflow
// transition attempt.
type TransitionProductRequest struct {
	Action            string            `json:"action"             validate:"required"`
	ActorID           string            `json:"actor_id"           validate:"required"`
	ActorRole         string            `json:"actor_role"         validate:"required"`
	ExpectedVersion   int64             `json:"expected_version"   validate:"required,gte=1"`
	Note              string            `json:"note,omitempty"`
	Fields            map[string]string `json:"fields,omitempty"`
	SuggestedCategory *CategoryPayload  `json:"suggested_category,omitempty"`
	AssistRevision    bool              `json:"assist_revision,omitempty"`
}

// TransitionResponse reports a committed transition.
type TransitionResponse struct {
	Product        *models.Product       `json:"product"`
	Entry          *models.HistoryEntry  `json:"entry"`
	Classification *ClassificationResult `json:"classification,omitempty"`
}

// ClassificationResult mirrors a taxonomy match in API responses.
type ClassificationResult struct {
	Category   *models.Category `json:"category,omitempty"`
	Confidence float64          `json:"confidence"`
	Source     taxonomy.Source  `json:"source"`
}

// ClassifyRequest represents the request body for a classification dry run.
type ClassifyRequest struct {
	Text              string           `json:"text"                         validate:"required"`
	SuggestedCategory *CategoryPayload `json:"suggested_category,omitempty"`
}

// fieldUpdates converts the wire field map to the typed one. Unknown field
// names are rejected later by the content model.
func fieldUpdates(raw map[string]string) map[models.Field]string {
	if len(raw) == 0 {
		return nil
	}

	updates := make(map[models.Field]string, len(raw))
	for name, text := range raw {
		updates[models.Field(name)] = text
	}

	return updates
}
