// Package events defines event types published on product lifecycle changes.
package events

import (
	"time"

	"github.com/pisflow/pisflow/pkg/models"
)

type EventType string

// Topic carries all product lifecycle events.
const Topic = "pisflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ProductCreatedEvent      EventType = "product.created"
	ProductTransitionedEvent EventType = "product.transitioned"
	ProductFinalizedEvent    EventType = "product.finalized"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ProductID string         `json:"product_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ProductCreated is published when a new product enters the pipeline.
type ProductCreated struct {
	BaseEvent

	Name string `json:"name"`
}

func (p ProductCreated) GetType() EventType {
	return ProductCreatedEvent
}

// ProductTransitioned is published after every committed stage transition,
// including save_draft self-loops.
type ProductTransitioned struct {
	BaseEvent

	FromStage models.Stage  `json:"from_stage"`
	ToStage   models.Stage  `json:"to_stage"`
	Action    models.Action `json:"action"`
	ActorRole models.Role   `json:"actor_role"`
	ActorID   string        `json:"actor_id"`
	Version   int64         `json:"version"`
	Note      string        `json:"note,omitempty"`
}

func (p ProductTransitioned) GetType() EventType {
	return ProductTransitionedEvent
}

// ProductFinalized is published when a product reaches its terminal stage.
type ProductFinalized struct {
	BaseEvent

	Category *models.Category `json:"category,omitempty"`
	Version  int64            `json:"version"`
}

func (p ProductFinalized) GetType() EventType {
	return ProductFinalizedEvent
}
