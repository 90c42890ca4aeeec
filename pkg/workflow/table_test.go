package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pisflow/pisflow/pkg/models"
	"github.com/pisflow/pisflow/pkg/workflow"
)

func TestRuleFor(t *testing.T) {
	rule, ok := workflow.RuleFor(models.StageDraft, models.ActionSubmit)
	require.True(t, ok)
	assert.Equal(t, models.StagePISReview, rule.To)
	assert.Equal(t, models.RoleMarketing, rule.Role)
	assert.False(t, rule.RequiresNote)
	assert.False(t, rule.SelfLoop())

	rule, ok = workflow.RuleFor(models.StagePISReview, models.ActionRequestChanges)
	require.True(t, ok)
	assert.True(t, rule.RequiresNote)

	rule, ok = workflow.RuleFor(models.StageWebProduction, models.ActionSubmitSpecsheet)
	require.True(t, ok)
	assert.True(t, rule.RequiresCategory)

	rule, ok = workflow.RuleFor(models.StageDraft, models.ActionSaveDraft)
	require.True(t, ok)
	assert.True(t, rule.SelfLoop())

	_, ok = workflow.RuleFor(models.StageFinalized, models.ActionApprove)
	assert.False(t, ok)

	_, ok = workflow.RuleFor(models.StageDraft, models.ActionApprove)
	assert.False(t, ok)
}

func TestRules_EveryRuleIsConsistent(t *testing.T) {
	rules := workflow.Rules()
	require.NotEmpty(t, rules)

	for _, rule := range rules {
		assert.True(t, rule.From.Valid(), "rule %v has invalid from stage", rule)
		assert.True(t, rule.To.Valid(), "rule %v has invalid to stage", rule)
		assert.True(t, rule.Role.Valid(), "rule %v has invalid role", rule)
		assert.False(t, rule.From.Terminal(), "no rule may leave the terminal stage")
	}
}

func TestActionsFor(t *testing.T) {
	actions := workflow.ActionsFor(models.StagePISReview, models.RoleDirector)
	assert.ElementsMatch(t, []models.Action{models.ActionApprove, models.ActionRequestChanges}, actions)

	actions = workflow.ActionsFor(models.StageDraft, models.RoleMarketing)
	assert.ElementsMatch(t, []models.Action{models.ActionSubmit, models.ActionSaveDraft}, actions)

	assert.Empty(t, workflow.ActionsFor(models.StageDraft, models.RoleDirector))
	assert.Empty(t, workflow.ActionsFor(models.StageFinalized, models.RoleDirector))
}
