// Package web provides the HTTP handlers for the PIS workflow API.
package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
	"github.com/pisflow/pisflow/pkg/services"
	"github.com/pisflow/pisflow/pkg/workflow"
)

type APIHandlers struct {
	productService        *services.Product
	historyService        *services.History
	classificationService *services.Classification
	engine                *workflow.Engine
	validator             *validator.Validate
}

func NewAPIHandlers(
	productService *services.Product,
	historyService *services.History,
	classificationService *services.Classification,
	engine *workflow.Engine,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		productService:        productService,
		historyService:        historyService,
		classificationService: classificationService,
		engine:                engine,
		validator:             validator,
	}
}

func (h *APIHandlers) CreateProduct(c fiber.Ctx) error {
	var req CreateProductRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	product, err := h.productService.Create(c.Context(), services.CreateProductRequest{
		Name:   req.Name,
		Fields: fieldUpdates(req.Fields),
	})
	if err != nil {
		return handleWorkflowError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *APIHandlers) GetProducts(c fiber.Ctx) error {
	req, err := h.parseListProductsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.productService.ListProducts(c.Context(), *req)
	if err != nil {
		return handleWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{
		"products":      result.Products,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

// parseListProductsRequest parses and validates query parameters for listing products.
func (h *APIHandlers) parseListProductsRequest(c fiber.Ctx) (*services.ListProductsRequest, error) {
	req := &services.ListProductsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if stagesStr := c.Query("stage"); stagesStr != "" {
		for _, raw := range strings.Split(stagesStr, ",") {
			req.Stages = append(req.Stages, models.Stage(strings.TrimSpace(raw)))
		}
	}

	return req, nil
}

func (h *APIHandlers) GetProduct(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Product ID is required")
	}

	product, err := h.productService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsProductNotFound(err) {
			return notFound(c, "Product not found")
		}

		return internalError(c, err)
	}

	return c.JSON(product)
}

func (h *APIHandlers) TransitionProduct(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Product ID is required")
	}

	var req TransitionProductRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.Transition(c.Context(), workflow.TransitionRequest{
		ProductID: id,
		Action:    models.Action(req.Action),
		Actor: models.Actor{
			ID:   req.ActorID,
			Role: models.Role(req.ActorRole),
		},
		ExpectedVersion:   req.ExpectedVersion,
		Note:              req.Note,
		FieldUpdates:      fieldUpdates(req.Fields),
		SuggestedCategory: req.SuggestedCategory.toModel(),
		AssistRevision:    req.AssistRevision,
	})
	if err != nil {
		return handleWorkflowError(c, err)
	}

	response := TransitionResponse{
		Product: result.Product,
		Entry:   result.Entry,
	}

	if result.Classification != nil {
		response.Classification = &ClassificationResult{
			Category:   result.Classification.Category,
			Confidence: result.Classification.Confidence,
			Source:     result.Classification.Source,
		}
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetProductHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Product ID is required")
	}

	timeline, err := h.historyService.Timeline(c.Context(), id)
	if err != nil {
		return handleWorkflowError(c, err)
	}

	return c.JSON(timeline)
}

// GetProductActions lists the actions the given role could attempt from the
// product's current stage.
func (h *APIHandlers) GetProductActions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Product ID is required")
	}

	role := models.Role(c.Query("role"))
	if !role.Valid() {
		return badRequest(c, "A valid role query parameter is required")
	}

	product, err := h.productService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsProductNotFound(err) {
			return notFound(c, "Product not found")
		}

		return internalError(c, err)
	}

	actions := workflow.ActionsFor(product.Stage, role)
	if actions == nil {
		actions = []models.Action{}
	}

	return c.JSON(fiber.Map{
		"product_id": product.ID,
		"stage":      product.Stage,
		"role":       role,
		"actions":    actions,
	})
}

func (h *APIHandlers) GetStageMetrics(c fiber.Ctx) error {
	counts, err := h.productService.StageCounts(c.Context())
	if err != nil {
		return handleWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{
		"stages": counts,
	})
}

func (h *APIHandlers) Classify(c fiber.Ctx) error {
	var req ClassifyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.classificationService.Classify(c.Context(), services.ClassifyRequest{
		Text:              req.Text,
		SuggestedCategory: req.SuggestedCategory.toModel(),
	})
	if err != nil {
		return handleWorkflowError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetTaxonomy(c fiber.Ctx) error {
	return c.JSON(h.classificationService.Taxonomy())
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.productService.HealthCheck(c.Context())

	taxonomyCheck := "Taxonomy table loaded"
	taxOk := true

	if info := h.classificationService.Taxonomy(); info.Entries == 0 {
		taxonomyCheck = "Taxonomy table is empty"
		taxOk = false
	}

	status := "unhealthy"
	message := "PISFlow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk && taxOk {
		status = "healthy"
		message = "PISFlow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
			"taxonomy":   taxonomyCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
