package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Field names the fixed, enumerated set of PIS content sections. The set is
// part of the schema; unknown fields are rejected at the edge instead of
// drifting into storage.
type Field string

const (
	FieldDescription    Field = "description"
	FieldSalesArguments Field = "sales_arguments"
	FieldTechnicalSpecs Field = "technical_specifications"
	FieldWarranty       Field = "warranty"
	FieldSEOKeywords    Field = "seo_keywords"
)

// Fields returns the full field set in canonical order.
func Fields() []Field {
	return []Field{
		FieldDescription,
		FieldSalesArguments,
		FieldTechnicalSpecs,
		FieldWarranty,
		FieldSEOKeywords,
	}
}

// Valid reports whether f is part of the enumerated field set.
func (f Field) Valid() bool {
	switch f {
	case FieldDescription, FieldSalesArguments, FieldTechnicalSpecs,
		FieldWarranty, FieldSEOKeywords:
		return true
	default:
		return false
	}
}

// FieldValue is the current text of one content field plus its revision
// counter. The counter increments every time the text changes.
type FieldValue struct {
	Text     string `json:"text"`
	Revision int    `json:"revision"`
}

// ContentFields maps field names to their current values.
type ContentFields map[Field]FieldValue

// NewContentFields returns a field map with every field present and empty.
func NewContentFields() ContentFields {
	fields := make(ContentFields, len(Fields()))
	for _, f := range Fields() {
		fields[f] = FieldValue{}
	}

	return fields
}

// Clone returns an independent copy of the field map.
func (c ContentFields) Clone() ContentFields {
	clone := make(ContentFields, len(c))
	for name, value := range c {
		clone[name] = value
	}

	return clone
}

// Apply returns a copy of c with the given texts applied. Fields whose text
// actually changes get their revision counter bumped; unknown field names are
// an error.
func (c ContentFields) Apply(updates map[Field]string) (ContentFields, error) {
	next := c.Clone()

	for name, text := range updates {
		if !name.Valid() {
			return nil, fmt.Errorf("unknown content field %q", name)
		}

		current := next[name]
		if current.Text == text {
			continue
		}

		next[name] = FieldValue{Text: text, Revision: current.Revision + 1}
	}

	return next, nil
}

// Digest returns a stable hex-encoded content hash of the field map, used to
// stamp ledger entries for later diffing. Identical field maps always produce
// identical digests.
func (c ContentFields) Digest() string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, string(name))
	}

	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		value := c[Field(name)]
		fmt.Fprintf(h, "%s\x00%d\x00%s\x00", name, value.Revision, value.Text)
	}

	return hex.EncodeToString(h.Sum(nil))
}
