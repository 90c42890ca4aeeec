package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
	"github.com/pisflow/pisflow/pkg/persistence/file"
)

func setupPersistence(t *testing.T) (*file.Persistence, context.Context) {
	t.Helper()

	p := file.NewPersistence("file://" + t.TempDir())

	t.Cleanup(func() {
		err := p.Close(context.Background())
		require.NoError(t, err)
	})

	return p, context.Background()
}

func newTestProduct(name string) *models.Product {
	return &models.Product{
		Name:   name,
		Stage:  models.StageDraft,
		Fields: models.NewContentFields(),
	}
}

func TestProductRepository_CreateAndGet(t *testing.T) {
	p, ctx := setupPersistence(t)

	product := newTestProduct("Impact Wrench 450Nm")

	err := p.ProductRepository().Create(ctx, product)
	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)
	assert.EqualValues(t, 1, product.Version)
	assert.False(t, product.CreatedAt.IsZero())

	retrieved, err := p.ProductRepository().GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.Name, retrieved.Name)
	assert.Equal(t, models.StageDraft, retrieved.Stage)
	assert.Len(t, retrieved.Fields, len(models.Fields()))

	err = p.ProductRepository().Create(ctx, product)
	assert.ErrorIs(t, err, persistence.ErrProductAlreadyExists)

	_, err = p.ProductRepository().GetByID(ctx, "missing")
	assert.True(t, persistence.IsProductNotFound(err))
}

func TestProductRepository_List(t *testing.T) {
	p, ctx := setupPersistence(t)

	names := []string{"Product A", "Product B", "Product C"}
	for _, name := range names {
		err := p.ProductRepository().Create(ctx, newTestProduct(name))
		require.NoError(t, err)
	}

	all, err := p.ProductRepository().List(ctx, persistence.ListProductsOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	drafts, err := p.ProductRepository().List(ctx, persistence.ListProductsOptions{
		Stages: []models.Stage{models.StageDraft},
	})
	require.NoError(t, err)
	assert.Len(t, drafts, 3)

	none, err := p.ProductRepository().List(ctx, persistence.ListProductsOptions{
		Stages: []models.Stage{models.StageFinalized},
	})
	require.NoError(t, err)
	assert.Empty(t, none)

	paged, err := p.ProductRepository().List(ctx, persistence.ListProductsOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 1)

	counts, err := p.ProductRepository().CountByStage(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts[models.StageDraft])
}

func TestProductRepository_CommitTransition(t *testing.T) {
	p, ctx := setupPersistence(t)

	product := newTestProduct("Rotary Hammer SDS+")

	err := p.ProductRepository().Create(ctx, product)
	require.NoError(t, err)

	updated := product.Clone()
	updated.Stage = models.StagePISReview
	updated.Version = product.Version + 1

	entry := &models.HistoryEntry{
		ProductID:     product.ID,
		FromStage:     models.StageDraft,
		ToStage:       models.StagePISReview,
		Action:        models.ActionSubmit,
		ActorRole:     models.RoleMarketing,
		ActorID:       "user-1",
		PayloadDigest: updated.Fields.Digest(),
	}

	err = p.ProductRepository().CommitTransition(ctx, updated, product.Version, entry)
	require.NoError(t, err)

	retrieved, err := p.ProductRepository().GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StagePISReview, retrieved.Stage)
	assert.EqualValues(t, 2, retrieved.Version)

	entries, err := p.HistoryRepository().ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionSubmit, entries[0].Action)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestProductRepository_CommitTransition_VersionConflict(t *testing.T) {
	p, ctx := setupPersistence(t)

	product := newTestProduct("Jigsaw 650W")

	err := p.ProductRepository().Create(ctx, product)
	require.NoError(t, err)

	stale := product.Clone()
	stale.Stage = models.StagePISReview
	stale.Version = 2

	entry := &models.HistoryEntry{
		ProductID:     product.ID,
		FromStage:     models.StageDraft,
		ToStage:       models.StagePISReview,
		Action:        models.ActionSubmit,
		ActorRole:     models.RoleMarketing,
		ActorID:       "user-1",
		PayloadDigest: stale.Fields.Digest(),
	}

	err = p.ProductRepository().CommitTransition(ctx, stale, 7, entry)
	assert.True(t, persistence.IsVersionConflict(err))

	retrieved, err := p.ProductRepository().GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageDraft, retrieved.Stage)
	assert.EqualValues(t, 1, retrieved.Version)

	entries, err := p.HistoryRepository().ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProductRepository_CommitTransition_LedgerFailureLeavesProductUntouched(t *testing.T) {
	root := t.TempDir()
	p := file.NewPersistence("file://" + root)
	ctx := context.Background()

	product := newTestProduct("Circular Saw 1400W")

	err := p.ProductRepository().Create(ctx, product)
	require.NoError(t, err)

	// A regular file where the ledger directory belongs makes every history
	// access fail mid-commit.
	require.NoError(t, os.WriteFile(filepath.Join(root, "history"), []byte("in the way"), 0o600))

	updated := product.Clone()
	updated.Stage = models.StagePISReview
	updated.Version = product.Version + 1

	entry := &models.HistoryEntry{
		ProductID:     product.ID,
		FromStage:     models.StageDraft,
		ToStage:       models.StagePISReview,
		Action:        models.ActionSubmit,
		ActorRole:     models.RoleMarketing,
		ActorID:       "user-1",
		PayloadDigest: updated.Fields.Digest(),
	}

	err = p.ProductRepository().CommitTransition(ctx, updated, product.Version, entry)
	require.Error(t, err)
	assert.True(t, persistence.IsStorageUnavailable(err))

	// The product must not advance without its ledger entry.
	retrieved, err := p.ProductRepository().GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageDraft, retrieved.Stage)
	assert.EqualValues(t, 1, retrieved.Version)

	// With the blockage gone the ledger must be empty, not half-written.
	require.NoError(t, os.Remove(filepath.Join(root, "history")))

	entries, err := p.HistoryRepository().ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProductRepository_CommitTransition_NotFound(t *testing.T) {
	p, ctx := setupPersistence(t)

	ghost := newTestProduct("Ghost Product")
	ghost.ID = "never-created"
	ghost.Version = 2

	entry := &models.HistoryEntry{
		ProductID: ghost.ID,
		FromStage: models.StageDraft,
		ToStage:   models.StagePISReview,
		Action:    models.ActionSubmit,
		ActorRole: models.RoleMarketing,
		ActorID:   "user-1",
	}

	err := p.ProductRepository().CommitTransition(ctx, ghost, 1, entry)
	assert.True(t, persistence.IsProductNotFound(err))
}

func TestHistoryRepository_AppendAndList(t *testing.T) {
	p, ctx := setupPersistence(t)

	entries := []*models.HistoryEntry{
		{
			ProductID: "prod-1",
			FromStage: models.StageDraft,
			ToStage:   models.StagePISReview,
			Action:    models.ActionSubmit,
			ActorRole: models.RoleMarketing,
			ActorID:   "user-1",
		},
		{
			ProductID: "prod-1",
			FromStage: models.StagePISReview,
			ToStage:   models.StagePISRevision,
			Action:    models.ActionRequestChanges,
			ActorRole: models.RoleDirector,
			ActorID:   "user-2",
			Note:      "description is too thin",
		},
	}

	for _, entry := range entries {
		err := p.HistoryRepository().Append(ctx, entry)
		require.NoError(t, err)
	}

	listed, err := p.HistoryRepository().ListByProduct(ctx, "prod-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, models.ActionSubmit, listed[0].Action)
	assert.Equal(t, models.ActionRequestChanges, listed[1].Action)
	assert.Equal(t, "description is too thin", listed[1].Note)

	empty, err := p.HistoryRepository().ListByProduct(ctx, "prod-2")
	require.NoError(t, err)
	assert.Empty(t, empty)

	ids, err := p.HistoryRepository().ProductIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod-1"}, ids)
}

func TestPersistence_HealthCheck(t *testing.T) {
	p, ctx := setupPersistence(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}
