package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence"
	"github.com/pisflow/pisflow/pkg/persistence/file"
	"github.com/pisflow/pisflow/pkg/services"
)

func TestHistory_Timeline(t *testing.T) {
	store := file.NewPersistence("file://" + t.TempDir())
	ctx := context.Background()

	product := &models.Product{
		Name:   "Tracked Product",
		Stage:  models.StagePISReview,
		Fields: models.NewContentFields(),
	}
	require.NoError(t, store.ProductRepository().Create(ctx, product))

	entry := &models.HistoryEntry{
		ProductID: product.ID,
		FromStage: models.StageDraft,
		ToStage:   models.StagePISReview,
		Action:    models.ActionSubmit,
		ActorRole: models.RoleMarketing,
		ActorID:   "user-1",
	}
	require.NoError(t, store.HistoryRepository().Append(ctx, entry))

	service := services.NewHistory(store)

	timeline, err := service.Timeline(ctx, product.ID)
	require.NoError(t, err)

	assert.Equal(t, product.ID, timeline.ProductID)
	require.Len(t, timeline.Entries, 1)
	assert.Equal(t, models.ActionSubmit, timeline.Entries[0].Action)
	assert.Equal(t, models.StagePISReview, timeline.FoldedStage)
	assert.Equal(t, models.StagePISReview, timeline.StoredStage)
	assert.True(t, timeline.Consistent)
}

func TestHistory_Timeline_Divergence(t *testing.T) {
	store := file.NewPersistence("file://" + t.TempDir())
	ctx := context.Background()

	product := &models.Product{
		Name:   "Diverged Product",
		Stage:  models.StageFinalized,
		Fields: models.NewContentFields(),
	}
	require.NoError(t, store.ProductRepository().Create(ctx, product))

	entry := &models.HistoryEntry{
		ProductID: product.ID,
		FromStage: models.StageDraft,
		ToStage:   models.StagePISReview,
		Action:    models.ActionSubmit,
		ActorRole: models.RoleMarketing,
		ActorID:   "user-1",
	}
	require.NoError(t, store.HistoryRepository().Append(ctx, entry))

	service := services.NewHistory(store)

	timeline, err := service.Timeline(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, timeline.Consistent)
	assert.Equal(t, models.StagePISReview, timeline.FoldedStage)
	assert.Equal(t, models.StageFinalized, timeline.StoredStage)
}

func TestHistory_Timeline_ProductNotFound(t *testing.T) {
	store := file.NewPersistence("file://" + t.TempDir())
	service := services.NewHistory(store)

	_, err := service.Timeline(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsProductNotFound(err))
}
