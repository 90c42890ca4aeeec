package models

import "time"

// Product is one Product Information Sheet moving through the approval
// workflow. The stage and version are mutated only through engine
// transitions; version is the optimistic concurrency token and strictly
// increases with every committed mutation.
type Product struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"               validate:"required,min=2"`
	Stage     Stage         `json:"stage"              validate:"required"`
	Category  *Category     `json:"category,omitempty"`
	Fields    ContentFields `json:"fields"`
	Version   int64         `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Clone returns a deep copy, so an in-flight transition can be abandoned
// without side effects on the loaded product.
func (p *Product) Clone() *Product {
	clone := *p
	clone.Fields = p.Fields.Clone()

	if p.Category != nil {
		category := *p.Category
		clone.Category = &category
	}

	return &clone
}
