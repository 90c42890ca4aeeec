// Package workflow implements the product approval state machine: the
// transition table, the engine that executes transitions atomically against
// storage, and the ledger consistency audit.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/pisflow/pisflow/pkg/eventbus"
	"github.com/pisflow/pisflow/pkg/events"
	"github.com/pisflow/pisflow/pkg/generation"
	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/otelhelper"
	"github.com/pisflow/pisflow/pkg/persistence"
	"github.com/pisflow/pisflow/pkg/taxonomy"
)

// RevisionMode decides what happens when AI revision assistance is requested
// during a resubmit and the generation backend fails.
type RevisionMode string

const (
	// RevisionModeBlock fails the transition on backend failure.
	RevisionModeBlock RevisionMode = "block"
	// RevisionModeDegrade proceeds with the author's own edits on backend
	// failure. This is the default.
	RevisionModeDegrade RevisionMode = "degrade"
)

// TransitionRequest carries everything the engine needs for one transition
// attempt. Actor identity and role are explicit; the engine holds no ambient
// session state.
type TransitionRequest struct {
	ProductID       string        `validate:"required"`
	Action          models.Action `validate:"required"`
	Actor           models.Actor  `validate:"required"`
	ExpectedVersion int64         `validate:"gte=1"`
	Note            string
	FieldUpdates    map[models.Field]string
	// SuggestedCategory lets a user override classification manually. It
	// is honored only if it exists in the taxonomy table.
	SuggestedCategory *models.Category
	// AssistRevision requests AI help rewriting content during a resubmit.
	AssistRevision bool
}

// TransitionResult reports a committed transition.
type TransitionResult struct {
	Product        *models.Product
	Entry          *models.HistoryEntry
	Classification *taxonomy.Match
}

// Engine executes workflow transitions. It is the sole write path for
// products: validation, classification gating, version increment, and ledger
// append all funnel through Transition.
type Engine struct {
	products     persistence.ProductRepository
	matcher      *taxonomy.Matcher
	generator    generation.Service
	publisher    eventbus.EventPublisher
	validator    *validator.Validate
	tracer       trace.Tracer
	revisionMode RevisionMode
	logger       *slog.Logger
}

// EngineOption customizes an engine.
type EngineOption func(*Engine)

// WithPublisher installs an event publisher for transition notifications.
func WithPublisher(publisher eventbus.EventPublisher) EngineOption {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithTracer installs a tracer for transition spans.
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithRevisionMode overrides the AI revision failure policy.
func WithRevisionMode(mode RevisionMode) EngineOption {
	return func(e *Engine) {
		e.revisionMode = mode
	}
}

// NewEngine creates a workflow engine. The generator may be nil; resubmit
// transitions then never receive AI assistance.
func NewEngine(
	products persistence.ProductRepository,
	matcher *taxonomy.Matcher,
	generator generation.Service,
	logger *slog.Logger,
	opts ...EngineOption,
) *Engine {
	engine := &Engine{
		products:     products,
		matcher:      matcher,
		generator:    generator,
		validator:    validator.New(),
		tracer:       noop.NewTracerProvider().Tracer("workflow"),
		revisionMode: RevisionModeDegrade,
		logger:       logger.With("module", "workflow"),
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Transition attempts one state machine step. On success the product's new
// state and its ledger entry have been committed atomically; on any error
// nothing was written.
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.transition",
		attribute.String(otelhelper.ProductIDKey, req.ProductID),
		attribute.String(otelhelper.ActionKey, string(req.Action)),
		attribute.String(otelhelper.ActorRoleKey, string(req.Actor.Role)),
	)
	defer span.End()

	result, err := e.transition(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.ProductStageKey, string(result.Product.Stage)),
		attribute.Int64(otelhelper.ProductVersionKey, result.Product.Version),
	)

	return result, nil
}

func (e *Engine) transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if err := e.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid transition request: %w", err)
	}

	if !req.Actor.Role.Valid() {
		return nil, fmt.Errorf("invalid transition request: unknown role %q", req.Actor.Role)
	}

	product, err := e.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	rule, err := e.resolveRule(product, req)
	if err != nil {
		return nil, err
	}

	// Fast pre-check; the commit repeats the comparison inside the
	// transaction, which is the authoritative guard.
	if product.Version != req.ExpectedVersion {
		return nil, newTransitionError(product, req.Action, ErrStaleVersion)
	}

	next := product.Clone()
	next.Stage = rule.To
	next.Version = product.Version + 1

	if len(req.FieldUpdates) > 0 {
		fields, err := next.Fields.Apply(req.FieldUpdates)
		if err != nil {
			return nil, newTransitionError(product, req.Action, err)
		}

		next.Fields = fields
	}

	if req.Action == models.ActionResubmit && req.AssistRevision {
		if err := e.assistRevision(ctx, next, req.Note); err != nil {
			return nil, newTransitionError(product, req.Action, err)
		}
	}

	var match *taxonomy.Match

	if rule.RequiresCategory && next.Category == nil {
		match, err = e.classify(ctx, next, req.SuggestedCategory)
		if err != nil {
			return nil, newTransitionError(product, req.Action, err)
		}
	}

	entry := &models.HistoryEntry{
		ProductID:     next.ID,
		FromStage:     product.Stage,
		ToStage:       next.Stage,
		Action:        req.Action,
		ActorRole:     req.Actor.Role,
		ActorID:       req.Actor.ID,
		Note:          req.Note,
		PayloadDigest: next.Fields.Digest(),
	}

	err = e.products.CommitTransition(ctx, next, req.ExpectedVersion, entry)
	if err != nil {
		if persistence.IsVersionConflict(err) {
			return nil, newTransitionError(product, req.Action, ErrStaleVersion)
		}

		return nil, err
	}

	e.logger.InfoContext(ctx, "Transition committed",
		"product_id", next.ID,
		"action", req.Action,
		"from_stage", product.Stage,
		"to_stage", next.Stage,
		"version", next.Version,
		"actor_role", req.Actor.Role,
	)

	e.publishTransition(ctx, product, next, req, entry)

	return &TransitionResult{Product: next, Entry: entry, Classification: match}, nil
}

// resolveRule finds the rule for the request and enforces role eligibility.
// A missing (stage, action) pair is InvalidTransition; a present pair with
// the wrong role is Forbidden; a missing note where one is mandated is its
// own validation error.
func (e *Engine) resolveRule(product *models.Product, req TransitionRequest) (Rule, error) {
	if product.Stage.Terminal() {
		return Rule{}, newTransitionError(product, req.Action, ErrProductFinalized)
	}

	rule, ok := RuleFor(product.Stage, req.Action)
	if !ok {
		return Rule{}, newTransitionError(product, req.Action, ErrInvalidTransition)
	}

	if rule.Role != req.Actor.Role {
		return Rule{}, newTransitionError(product, req.Action, ErrForbidden)
	}

	if rule.RequiresNote && req.Note == "" {
		return Rule{}, newTransitionError(product, req.Action, ErrNoteRequired)
	}

	return rule, nil
}

// assistRevision asks the generation backend to rewrite the product's fields
// according to the reviewer note that sent it back. Backend failure either
// blocks the transition or degrades to the author's own edits, depending on
// the configured mode.
func (e *Engine) assistRevision(ctx context.Context, next *models.Product, note string) error {
	if e.generator == nil {
		return nil
	}

	current := make(map[models.Field]string, len(next.Fields))
	for name, value := range next.Fields {
		current[name] = value.Text
	}

	result, err := e.generator.ReviseContent(ctx, generation.ReviseContentRequest{
		Fields: current,
		Note:   note,
	})
	if err != nil {
		if e.revisionMode == RevisionModeBlock {
			return fmt.Errorf("%w: %w", ErrRevisionAssistUnavailable, err)
		}

		e.logger.WarnContext(ctx, "Revision assistance failed, proceeding without it",
			"product_id", next.ID,
			"error", err,
		)

		return nil
	}

	fields, err := next.Fields.Apply(result.Fields)
	if err != nil {
		return fmt.Errorf("revised fields rejected: %w", err)
	}

	next.Fields = fields

	return nil
}

// classify runs the classification gate for specsheet submission. Any
// outcome other than a confident, table-validated match blocks the
// transition with ErrUnclassifiedProduct.
func (e *Engine) classify(ctx context.Context, next *models.Product, suggested *models.Category) (*taxonomy.Match, error) {
	if e.matcher == nil {
		return nil, ErrUnclassifiedProduct
	}

	match, err := e.matcher.Classify(ctx, classificationText(next), suggested)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnclassifiedProduct, err)
	}

	if match.Unclassified() {
		return nil, ErrUnclassifiedProduct
	}

	next.Category = match.Category

	return &match, nil
}

// classificationText assembles the free text handed to the matcher.
func classificationText(product *models.Product) string {
	text := product.Name

	if description, ok := product.Fields[models.FieldDescription]; ok && description.Text != "" {
		text += " " + description.Text
	}

	return text
}

func (e *Engine) publishTransition(ctx context.Context, previous, next *models.Product, req TransitionRequest, entry *models.HistoryEntry) {
	if e.publisher == nil {
		return
	}

	transitioned := events.ProductTransitioned{
		BaseEvent: events.BaseEvent{
			ID:        entry.ID,
			Type:      events.ProductTransitionedEvent,
			Timestamp: entry.Timestamp,
			ProductID: next.ID,
		},
		FromStage: previous.Stage,
		ToStage:   next.Stage,
		Action:    req.Action,
		ActorRole: req.Actor.Role,
		ActorID:   req.Actor.ID,
		Version:   next.Version,
		Note:      req.Note,
	}

	if err := e.publisher.Publish(ctx, next.ID, transitioned); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish transition event",
			"product_id", next.ID,
			"error", err,
		)
	}

	if !next.Stage.Terminal() {
		return
	}

	finalized := events.ProductFinalized{
		BaseEvent: events.BaseEvent{
			ID:        entry.ID,
			Type:      events.ProductFinalizedEvent,
			Timestamp: entry.Timestamp,
			ProductID: next.ID,
		},
		Category: next.Category,
		Version:  next.Version,
	}

	if err := e.publisher.Publish(ctx, next.ID, finalized); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish finalized event",
			"product_id", next.ID,
			"error", err,
		)
	}
}
