package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/persistence/file"
	"github.com/pisflow/pisflow/pkg/workflow"
)

func entry(from, to models.Stage, action models.Action) *models.HistoryEntry {
	return &models.HistoryEntry{
		FromStage: from,
		ToStage:   to,
		Action:    action,
		ActorRole: models.RoleMarketing,
		ActorID:   "user-1",
	}
}

func TestFoldStage(t *testing.T) {
	testCases := []struct {
		name    string
		entries []*models.HistoryEntry
		want    models.Stage
		wantErr bool
	}{
		{
			name:    "no entries folds to draft",
			entries: nil,
			want:    models.StageDraft,
		},
		{
			name: "linear progression",
			entries: []*models.HistoryEntry{
				entry(models.StageDraft, models.StagePISReview, models.ActionSubmit),
				entry(models.StagePISReview, models.StageWebProduction, models.ActionApprove),
			},
			want: models.StageWebProduction,
		},
		{
			name: "revision loop",
			entries: []*models.HistoryEntry{
				entry(models.StageDraft, models.StagePISReview, models.ActionSubmit),
				entry(models.StagePISReview, models.StagePISRevision, models.ActionRequestChanges),
				entry(models.StagePISRevision, models.StagePISReview, models.ActionResubmit),
			},
			want: models.StagePISReview,
		},
		{
			name: "self loop",
			entries: []*models.HistoryEntry{
				entry(models.StageDraft, models.StageDraft, models.ActionSaveDraft),
			},
			want: models.StageDraft,
		},
		{
			name: "broken chain",
			entries: []*models.HistoryEntry{
				entry(models.StageDraft, models.StagePISReview, models.ActionSubmit),
				entry(models.StageWebProduction, models.StageFinalReview, models.ActionSubmitSpecsheet),
			},
			wantErr: true,
		},
		{
			name: "unknown target stage",
			entries: []*models.HistoryEntry{
				entry(models.StageDraft, "limbo", models.ActionSubmit),
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := workflow.FoldStage(tc.entries)

			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, workflow.IsHistoryDivergence(err))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAuditor_Run(t *testing.T) {
	store := file.NewPersistence("file://" + t.TempDir())
	ctx := context.Background()

	// Healthy product with a consistent ledger.
	healthy := &models.Product{
		Name:   "Healthy Product",
		Stage:  models.StagePISReview,
		Fields: models.NewContentFields(),
	}
	require.NoError(t, store.ProductRepository().Create(ctx, healthy))

	consistent := entry(models.StageDraft, models.StagePISReview, models.ActionSubmit)
	consistent.ProductID = healthy.ID
	require.NoError(t, store.HistoryRepository().Append(ctx, consistent))

	// Entry-less draft is fine.
	freshDraft := &models.Product{
		Name:   "Fresh Draft",
		Stage:  models.StageDraft,
		Fields: models.NewContentFields(),
	}
	require.NoError(t, store.ProductRepository().Create(ctx, freshDraft))

	// Stored stage contradicts the ledger.
	diverged := &models.Product{
		Name:   "Diverged Product",
		Stage:  models.StageFinalized,
		Fields: models.NewContentFields(),
	}
	require.NoError(t, store.ProductRepository().Create(ctx, diverged))

	divergedEntry := entry(models.StageDraft, models.StagePISReview, models.ActionSubmit)
	divergedEntry.ProductID = diverged.ID
	require.NoError(t, store.HistoryRepository().Append(ctx, divergedEntry))

	// Entry-less product parked outside draft.
	parked := &models.Product{
		Name:   "Parked Product",
		Stage:  models.StageWebProduction,
		Fields: models.NewContentFields(),
	}
	require.NoError(t, store.ProductRepository().Create(ctx, parked))

	auditor := workflow.NewAuditor(store.ProductRepository(), store.HistoryRepository(), testLogger())

	report, err := auditor.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Checked)
	assert.False(t, report.Clean())
	assert.ElementsMatch(t, []string{diverged.ID, parked.ID}, report.Divergent)
}

func TestAuditor_VerifyProduct(t *testing.T) {
	store := file.NewPersistence("file://" + t.TempDir())
	ctx := context.Background()

	product := &models.Product{
		Name:   "Verified Product",
		Stage:  models.StagePISReview,
		Fields: models.NewContentFields(),
	}
	require.NoError(t, store.ProductRepository().Create(ctx, product))

	e := entry(models.StageDraft, models.StagePISReview, models.ActionSubmit)
	e.ProductID = product.ID
	require.NoError(t, store.HistoryRepository().Append(ctx, e))

	auditor := workflow.NewAuditor(store.ProductRepository(), store.HistoryRepository(), testLogger())

	require.NoError(t, auditor.VerifyProduct(ctx, product.ID))

	// A second entry that does not continue the chain breaks verification.
	bad := entry(models.StageFinalReview, models.StageFinalized, models.ActionApprove)
	bad.ProductID = product.ID
	require.NoError(t, store.HistoryRepository().Append(ctx, bad))

	err := auditor.VerifyProduct(ctx, product.ID)
	require.Error(t, err)
	assert.True(t, workflow.IsHistoryDivergence(err))
}
