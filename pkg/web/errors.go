package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/pisflow/pisflow/pkg/generation"
	"github.com/pisflow/pisflow/pkg/persistence"
	"github.com/pisflow/pisflow/pkg/services"
	"github.com/pisflow/pisflow/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleWorkflowError maps engine and service errors onto problem responses.
// Stale versions and impossible transitions are both conflicts; a blocked
// classification gate is unprocessable rather than invalid, the request was
// well formed but the product cannot be categorized.
func handleWorkflowError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case workflow.IsNoteRequired(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("note_required").
			WithDetail("a non-empty note is required for this action")

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case workflow.IsForbidden(err):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("forbidden").
			WithDetail("actor role is not allowed to perform this action")

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case persistence.IsProductNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("product_not_found").
			WithDetail("product not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case workflow.IsStaleVersion(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("stale_version").
			WithDetail("product was modified concurrently, reload and retry")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case workflow.IsInvalidTransition(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("invalid_transition").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case workflow.IsUnclassifiedProduct(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("unclassified_product").
			WithDetail("no taxonomy category could be resolved for this product")

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case persistence.IsStorageUnavailable(err):
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("storage_unavailable").
			WithDetail("storage backend unavailable, retry later")

		return c.Status(fiber.StatusInternalServerError).JSON(problem)

	case errors.Is(err, workflow.ErrRevisionAssistUnavailable),
		generation.IsUnavailable(err):
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("generation_unavailable").
			WithDetail("generation backend is unavailable")

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	default:
		// Log unexpected errors but don't expose details
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
