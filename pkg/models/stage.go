// Package models defines the core domain models for the PIS approval workflow.
package models

// Stage represents one discrete state in a product's approval lifecycle.
//
// The pipeline order is:
//
//	draft -> pis_review -> web_production -> final_review -> finalized
//
// with bounded revision loops pis_review <-> pis_revision_requested and
// final_review <-> final_revision_requested.
type Stage string

const (
	StageDraft         Stage = "draft"
	StagePISReview     Stage = "pis_review"
	StagePISRevision   Stage = "pis_revision_requested"
	StageWebProduction Stage = "web_production"
	StageFinalReview   Stage = "final_review"
	StageFinalRevision Stage = "final_revision_requested"
	StageFinalized     Stage = "finalized"
)

// Stages returns all stages in pipeline order.
func Stages() []Stage {
	return []Stage{
		StageDraft,
		StagePISReview,
		StagePISRevision,
		StageWebProduction,
		StageFinalReview,
		StageFinalRevision,
		StageFinalized,
	}
}

// Valid reports whether the stage is one of the defined enum values.
func (s Stage) Valid() bool {
	switch s {
	case StageDraft, StagePISReview, StagePISRevision,
		StageWebProduction, StageFinalReview, StageFinalRevision, StageFinalized:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are permitted from s.
func (s Stage) Terminal() bool {
	return s == StageFinalized
}
