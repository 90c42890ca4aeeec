package models

// Role is the authenticated role of an acting user, supplied by the access
// control layer and passed explicitly into every engine call.
type Role string

const (
	RoleMarketing     Role = "marketing"
	RoleDirector      Role = "director"
	RoleWebProduction Role = "web_production"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMarketing, RoleDirector, RoleWebProduction:
		return true
	default:
		return false
	}
}

// Action is a workflow operation requested by an actor.
type Action string

const (
	// ActionSubmit moves a draft to director PIS review.
	ActionSubmit Action = "submit"
	// ActionApprove advances a product out of a review stage.
	ActionApprove Action = "approve"
	// ActionRequestChanges sends a product back for revision; a note is mandatory.
	ActionRequestChanges Action = "request_changes"
	// ActionResubmit returns a revised product to the review it came from.
	ActionResubmit Action = "resubmit"
	// ActionSubmitSpecsheet sends the specsheet for final review. Requires a
	// resolved category.
	ActionSubmitSpecsheet Action = "submit_specsheet"
	// ActionSaveDraft records content-field edits without leaving the stage.
	ActionSaveDraft Action = "save_draft"
)

// Actor identifies who is performing a transition.
type Actor struct {
	ID   string `json:"id"   validate:"required"`
	Role Role   `json:"role" validate:"required"`
}
