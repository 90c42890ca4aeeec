package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
	"github.com/pisflow/pisflow/pkg/persistence/file"
	"github.com/pisflow/pisflow/pkg/services"
	"github.com/pisflow/pisflow/pkg/taxonomy"
	"github.com/pisflow/pisflow/pkg/web"
	"github.com/pisflow/pisflow/pkg/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence("file://" + t.TempDir())

	table, err := taxonomy.Load()
	require.NoError(t, err)

	logger := testLogger()
	matcher := taxonomy.NewMatcher(table, nil, logger)
	engine := workflow.NewEngine(store.ProductRepository(), matcher, nil, logger)

	handlers := web.NewAPIHandlers(
		services.NewProduct(store, nil, logger),
		services.NewHistory(store),
		services.NewClassification(matcher),
		engine,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()

	p := app.Group("/products")
	p.Get("/", handlers.GetProducts)
	p.Post("/", handlers.CreateProduct)
	p.Get("/:id", handlers.GetProduct)
	p.Post("/:id/transitions", handlers.TransitionProduct)
	p.Get("/:id/history", handlers.GetProductHistory)
	p.Get("/:id/actions", handlers.GetProductActions)

	app.Get("/metrics/stages", handlers.GetStageMetrics)
	app.Post("/classify", handlers.Classify)
	app.Get("/taxonomy", handlers.GetTaxonomy)
	app.Get("/health", handlers.HealthCheck)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func createProduct(t *testing.T, app *fiber.App, name string) models.Product {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/products/", web.CreateProductRequest{Name: name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return decodeBody[models.Product](t, resp)
}

func TestAPIHandlers_CreateProduct(t *testing.T) {
	app, _ := setupTestApp(t)

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateProductRequest{
				Name:   "Cordless Drill 18V",
				Fields: map[string]string{"description": "Compact 18V drill."},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "validation error - missing name",
			requestBody:    web.CreateProductRequest{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "validation error - name too short",
			requestBody:    web.CreateProductRequest{Name: "X"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - unknown field",
			requestBody: web.CreateProductRequest{
				Name:   "Valid Name",
				Fields: map[string]string{"bogus": "text"},
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodPost, "/products/", tc.requestBody)
			assert.Equal(t, tc.expectedStatus, resp.StatusCode)

			if tc.expectedStatus == http.StatusCreated {
				product := decodeBody[models.Product](t, resp)
				assert.NotEmpty(t, product.ID)
				assert.Equal(t, models.StageDraft, product.Stage)
				assert.Equal(t, int64(1), product.Version)
			}
		})
	}
}

func TestAPIHandlers_GetProduct(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createProduct(t, app, "Air Fryer XL")

	resp := doJSON(t, app, http.MethodGet, "/products/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fetched := decodeBody[models.Product](t, resp)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "Air Fryer XL", fetched.Name)

	resp = doJSON(t, app, http.MethodGet, "/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_GetProducts(t *testing.T) {
	app, _ := setupTestApp(t)

	createProduct(t, app, "Product A")
	createProduct(t, app, "Product B")

	resp := doJSON(t, app, http.MethodGet, "/products/?stage=draft&limit=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Len(t, body["products"], 2)
	assert.EqualValues(t, 2, body["total_count"])

	resp = doJSON(t, app, http.MethodGet, "/products/?stage=limbo", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_TransitionProduct(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createProduct(t, app, "Smart TV 55")
	path := "/products/" + created.ID + "/transitions"

	// Wrong role is forbidden.
	resp := doJSON(t, app, http.MethodPost, path, web.TransitionProductRequest{
		Action:          "submit",
		ActorID:         "user-2",
		ActorRole:       "director",
		ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Unknown action from this stage conflicts.
	resp = doJSON(t, app, http.MethodPost, path, web.TransitionProductRequest{
		Action:          "approve",
		ActorID:         "user-2",
		ActorRole:       "director",
		ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Successful submit.
	resp = doJSON(t, app, http.MethodPost, path, web.TransitionProductRequest{
		Action:          "submit",
		ActorID:         "user-1",
		ActorRole:       "marketing",
		ExpectedVersion: 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[web.TransitionResponse](t, resp)
	assert.Equal(t, models.StagePISReview, result.Product.Stage)
	assert.Equal(t, int64(2), result.Product.Version)
	require.NotNil(t, result.Entry)
	assert.Equal(t, models.StageDraft, result.Entry.FromStage)

	// Stale version conflicts.
	resp = doJSON(t, app, http.MethodPost, path, web.TransitionProductRequest{
		Action:          "approve",
		ActorID:         "user-2",
		ActorRole:       "director",
		ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Missing mandatory note.
	resp = doJSON(t, app, http.MethodPost, path, web.TransitionProductRequest{
		Action:          "request_changes",
		ActorID:         "user-2",
		ActorRole:       "director",
		ExpectedVersion: 2,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_TransitionProduct_ClassificationGate(t *testing.T) {
	app, store := setupTestApp(t)
	ctx := context.Background()

	// A product parked in web production whose text matches nothing in the
	// taxonomy cannot submit its specsheet.
	blocked := &models.Product{
		Name:   "Xyzzy Gadget",
		Stage:  models.StageWebProduction,
		Fields: models.NewContentFields(),
	}
	require.NoError(t, store.ProductRepository().Create(ctx, blocked))

	resp := doJSON(t, app, http.MethodPost, "/products/"+blocked.ID+"/transitions", web.TransitionProductRequest{
		Action:          "submit_specsheet",
		ActorID:         "user-3",
		ActorRole:       "web_production",
		ExpectedVersion: 1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// With a name the alias table resolves, the gate opens.
	matched := &models.Product{
		Name:   "Portable Air Conditioner 9000 BTU",
		Stage:  models.StageWebProduction,
		Fields: models.NewContentFields(),
	}
	require.NoError(t, store.ProductRepository().Create(ctx, matched))

	resp = doJSON(t, app, http.MethodPost, "/products/"+matched.ID+"/transitions", web.TransitionProductRequest{
		Action:          "submit_specsheet",
		ActorID:         "user-3",
		ActorRole:       "web_production",
		ExpectedVersion: 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[web.TransitionResponse](t, resp)
	assert.Equal(t, models.StageFinalReview, result.Product.Stage)
	require.NotNil(t, result.Classification)
	assert.Equal(t, "Air Conditioners", result.Classification.Category.SubSub)
}

func TestAPIHandlers_GetProductHistory(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createProduct(t, app, "Tracked Product")

	resp := doJSON(t, app, http.MethodPost, "/products/"+created.ID+"/transitions", web.TransitionProductRequest{
		Action:          "submit",
		ActorID:         "user-1",
		ActorRole:       "marketing",
		ExpectedVersion: 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/products/"+created.ID+"/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	timeline := decodeBody[services.TimelineResponse](t, resp)
	require.Len(t, timeline.Entries, 1)
	assert.True(t, timeline.Consistent)
	assert.Equal(t, models.StagePISReview, timeline.FoldedStage)
}

func TestAPIHandlers_GetProductActions(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createProduct(t, app, "Actionable Product")

	resp := doJSON(t, app, http.MethodGet, "/products/"+created.ID+"/actions?role=marketing", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Len(t, body["actions"], 2)

	resp = doJSON(t, app, http.MethodGet, "/products/"+created.ID+"/actions?role=ghost", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/products/missing/actions?role=marketing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_GetStageMetrics(t *testing.T) {
	app, _ := setupTestApp(t)

	createProduct(t, app, "Metric Product")

	resp := doJSON(t, app, http.MethodGet, "/metrics/stages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]map[models.Stage]int64](t, resp)
	assert.Equal(t, int64(1), body["stages"][models.StageDraft])
	assert.Equal(t, int64(0), body["stages"][models.StageFinalized])
}

func TestAPIHandlers_Classify(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/classify", web.ClassifyRequest{
		Text: "900W angle grinder with safety guard",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[services.ClassifyResponse](t, resp)
	assert.True(t, result.Matched)
	require.NotNil(t, result.Category)
	assert.Equal(t, "Grinders", result.Category.SubSub)

	resp = doJSON(t, app, http.MethodPost, "/classify", web.ClassifyRequest{
		Text: "nothing in the taxonomy matches this",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result = decodeBody[services.ClassifyResponse](t, resp)
	assert.False(t, result.Matched)

	resp = doJSON(t, app, http.MethodPost, "/classify", web.ClassifyRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_GetTaxonomy(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/taxonomy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	info := decodeBody[services.TaxonomyInfo](t, resp)
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, 134, info.Entries)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
