package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pisflow/pisflow/pkg/eventbus"
	"github.com/pisflow/pisflow/pkg/events"
	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
)

// ErrProductNotFound is returned when a product is not found.
var ErrProductNotFound = persistence.ErrProductNotFound

// Product is the application service for product CRUD and listing. All stage
// mutations go through the workflow engine instead; this service only ever
// creates drafts and reads.
type Product struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewProduct creates a new product service. The publisher may be nil; creation
// events are then skipped.
func NewProduct(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Product {
	return &Product{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "services"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (p *Product) HealthCheck(ctx context.Context) (string, bool) {
	if p.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := p.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateProductRequest contains the data for registering a new product sheet.
type CreateProductRequest struct {
	Name   string `validate:"required,min=2"`
	Fields map[models.Field]string
}

// Create registers a new product in the draft stage. Initial content fields
// may be supplied; unknown field names are rejected.
func (p *Product) Create(ctx context.Context, req CreateProductRequest) (*models.Product, error) {
	if len(req.Name) < 2 {
		return nil, NewValidationError("Create", "NAME_REQUIRED",
			"product name must be at least 2 characters", ErrNameRequired)
	}

	fields := models.NewContentFields()

	if len(req.Fields) > 0 {
		applied, err := fields.Apply(req.Fields)
		if err != nil {
			return nil, NewValidationError("Create", "INVALID_FIELD", err.Error(), ErrInvalidContentField)
		}

		fields = applied
	}

	product := &models.Product{
		Name:   req.Name,
		Stage:  models.StageDraft,
		Fields: fields,
	}

	err := p.persistence.ProductRepository().Create(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	p.publishCreated(ctx, product)

	return product, nil
}

func (p *Product) publishCreated(ctx context.Context, product *models.Product) {
	if p.publisher == nil {
		return
	}

	event := events.ProductCreated{
		BaseEvent: events.BaseEvent{
			ID:        product.ID,
			Type:      events.ProductCreatedEvent,
			Timestamp: time.Now().UTC(),
			ProductID: product.ID,
		},
		Name: product.Name,
	}

	if err := p.publisher.Publish(ctx, product.ID, event); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish product created event",
			"product_id", product.ID,
			"error", err,
		)
	}
}

// FetchByID retrieves a product by its ID.
func (p *Product) FetchByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := p.persistence.ProductRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return product, nil
}

// ListProductsRequest contains options for listing products.
type ListProductsRequest struct {
	// Pagination
	Limit  int `validate:"min=1,max=100"`
	Offset int `validate:"min=0"`

	// Filtering
	Stages []models.Stage
}

// ListProductsResponse contains the result of listing products.
type ListProductsResponse struct {
	Products    []*models.Product `json:"products"`
	TotalCount  int64             `json:"total_count"`
	HasNextPage bool              `json:"has_next_page"`
}

// ListProducts retrieves products with stage filtering and pagination.
func (p *Product) ListProducts(ctx context.Context, req ListProductsRequest) (*ListProductsResponse, error) {
	if err := p.validateListProductsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	opts := persistence.ListProductsOptions{
		Stages: req.Stages,
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	products, err := p.persistence.ProductRepository().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	total, err := p.countForStages(ctx, req.Stages)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	return &ListProductsResponse{
		Products:    products,
		TotalCount:  total,
		HasNextPage: int64(req.Offset+len(products)) < total,
	}, nil
}

// validateListProductsRequest validates and sets defaults for the request.
func (p *Product) validateListProductsRequest(req *ListProductsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	for _, stage := range req.Stages {
		if !stage.Valid() {
			return NewValidationError(
				"validateListProductsRequest",
				"INVALID_STAGE",
				fmt.Sprintf("unknown stage %q", stage),
				ErrInvalidStageFilter,
			)
		}
	}

	return nil
}

func (p *Product) countForStages(ctx context.Context, stages []models.Stage) (int64, error) {
	counts, err := p.persistence.ProductRepository().CountByStage(ctx)
	if err != nil {
		return 0, err
	}

	if len(stages) == 0 {
		var total int64
		for _, count := range counts {
			total += count
		}

		return total, nil
	}

	var total int64
	for _, stage := range stages {
		total += counts[stage]
	}

	return total, nil
}

// StageCounts returns the number of products currently parked in each stage.
// Stages with no products are present with a zero count.
func (p *Product) StageCounts(ctx context.Context) (map[models.Stage]int64, error) {
	counts, err := p.persistence.ProductRepository().CountByStage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count products by stage: %w", err)
	}

	for _, stage := range models.Stages() {
		if _, ok := counts[stage]; !ok {
			counts[stage] = 0
		}
	}

	return counts, nil
}
