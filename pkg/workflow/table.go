package workflow

import "github.com/pisflow/pisflow/pkg/models"

// Rule describes one legal transition: where it leads, who may perform it,
// and what it demands.
type Rule struct {
	From             models.Stage
	Action           models.Action
	To               models.Stage
	Role             models.Role
	RequiresNote     bool
	RequiresCategory bool
}

// SelfLoop reports whether the rule leaves the stage unchanged. Self-loops
// still commit a version bump and a ledger entry, so content edits stay
// auditable without advancing the pipeline.
func (r Rule) SelfLoop() bool {
	return r.From == r.To
}

type transitionKey struct {
	stage  models.Stage
	action models.Action
}

// transitionTable is the complete state machine. Any (stage, action) pair not
// present here is an invalid transition; a present pair attempted by the
// wrong role is forbidden.
var transitionTable = map[transitionKey]Rule{
	{models.StageDraft, models.ActionSubmit}: {
		From: models.StageDraft, Action: models.ActionSubmit,
		To: models.StagePISReview, Role: models.RoleMarketing,
	},
	{models.StagePISReview, models.ActionApprove}: {
		From: models.StagePISReview, Action: models.ActionApprove,
		To: models.StageWebProduction, Role: models.RoleDirector,
	},
	{models.StagePISReview, models.ActionRequestChanges}: {
		From: models.StagePISReview, Action: models.ActionRequestChanges,
		To: models.StagePISRevision, Role: models.RoleDirector,
		RequiresNote: true,
	},
	{models.StagePISRevision, models.ActionResubmit}: {
		From: models.StagePISRevision, Action: models.ActionResubmit,
		To: models.StagePISReview, Role: models.RoleMarketing,
	},
	{models.StageWebProduction, models.ActionSubmitSpecsheet}: {
		From: models.StageWebProduction, Action: models.ActionSubmitSpecsheet,
		To: models.StageFinalReview, Role: models.RoleWebProduction,
		RequiresCategory: true,
	},
	{models.StageFinalReview, models.ActionApprove}: {
		From: models.StageFinalReview, Action: models.ActionApprove,
		To: models.StageFinalized, Role: models.RoleDirector,
	},
	{models.StageFinalReview, models.ActionRequestChanges}: {
		From: models.StageFinalReview, Action: models.ActionRequestChanges,
		To: models.StageFinalRevision, Role: models.RoleDirector,
		RequiresNote: true,
	},
	{models.StageFinalRevision, models.ActionResubmit}: {
		From: models.StageFinalRevision, Action: models.ActionResubmit,
		To: models.StageWebProduction, Role: models.RoleWebProduction,
	},

	// Draft-save self-loops for the stages where content is editable.
	{models.StageDraft, models.ActionSaveDraft}: {
		From: models.StageDraft, Action: models.ActionSaveDraft,
		To: models.StageDraft, Role: models.RoleMarketing,
	},
	{models.StagePISRevision, models.ActionSaveDraft}: {
		From: models.StagePISRevision, Action: models.ActionSaveDraft,
		To: models.StagePISRevision, Role: models.RoleMarketing,
	},
	{models.StageWebProduction, models.ActionSaveDraft}: {
		From: models.StageWebProduction, Action: models.ActionSaveDraft,
		To: models.StageWebProduction, Role: models.RoleWebProduction,
	},
	{models.StageFinalRevision, models.ActionSaveDraft}: {
		From: models.StageFinalRevision, Action: models.ActionSaveDraft,
		To: models.StageFinalRevision, Role: models.RoleWebProduction,
	},
}

// RuleFor returns the rule for the given stage and action, if one exists.
func RuleFor(stage models.Stage, action models.Action) (Rule, bool) {
	rule, ok := transitionTable[transitionKey{stage: stage, action: action}]

	return rule, ok
}

// Rules returns every transition rule. The slice is a copy; callers may not
// alter the table.
func Rules() []Rule {
	rules := make([]Rule, 0, len(transitionTable))
	for _, rule := range transitionTable {
		rules = append(rules, rule)
	}

	return rules
}

// ActionsFor returns the actions legal from the given stage for the given
// role, for building dashboards.
func ActionsFor(stage models.Stage, role models.Role) []models.Action {
	actions := make([]models.Action, 0, 2)

	for key, rule := range transitionTable {
		if key.stage == stage && rule.Role == role {
			actions = append(actions, key.action)
		}
	}

	return actions
}
