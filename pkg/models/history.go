package models

import "time"

// HistoryEntry is one immutable audit record of a single stage transition.
// Entries are append-only; the per-product sequence, folded over ToStage,
// reconstructs the product's current stage.
type HistoryEntry struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"     validate:"required"`
	FromStage     Stage     `json:"from_stage"     validate:"required"`
	ToStage       Stage     `json:"to_stage"       validate:"required"`
	Action        Action    `json:"action"         validate:"required"`
	ActorRole     Role      `json:"actor_role"     validate:"required"`
	ActorID       string    `json:"actor_id"       validate:"required"`
	Note          string    `json:"note,omitempty"`
	PayloadDigest string    `json:"payload_digest"`
	Timestamp     time.Time `json:"timestamp"`
}
