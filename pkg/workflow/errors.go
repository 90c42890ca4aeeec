package workflow

import (
	"errors"
	"fmt"

	"github.com/pisflow/pisflow/pkg/models"
)

var (
	// ErrInvalidTransition indicates the requested action is not legal from
	// the product's current stage.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrProductFinalized indicates a mutation was attempted on a product
	// in the terminal stage. It matches ErrInvalidTransition in errors.Is
	// checks.
	ErrProductFinalized = fmt.Errorf("%w: product is finalized", ErrInvalidTransition)

	// ErrForbidden indicates the action exists for the current stage but
	// the actor's role is not authorized to perform it.
	ErrForbidden = errors.New("role not authorized for transition")

	// ErrStaleVersion indicates the caller's expected version no longer
	// matches the stored product. Nothing was written; the caller reloads
	// and retries.
	ErrStaleVersion = errors.New("stale product version")

	// ErrUnclassifiedProduct indicates the classification gate was not
	// satisfied: no confident category match exists for the product.
	ErrUnclassifiedProduct = errors.New("product could not be classified")

	// ErrNoteRequired indicates the transition demands a reviewer note and
	// none was supplied.
	ErrNoteRequired = errors.New("note is required for this transition")

	// ErrHistoryDivergence indicates the ledger, replayed in order, does
	// not reconstruct the product's stored stage. This is an integrity
	// violation requiring manual audit; it is never repaired silently.
	ErrHistoryDivergence = errors.New("history diverges from product stage")

	// ErrRevisionAssistUnavailable indicates AI revision assistance was
	// requested but the generation backend failed and the engine is
	// configured to block on that failure.
	ErrRevisionAssistUnavailable = errors.New("revision assistance unavailable")
)

// TransitionError wraps a transition failure with its context.
type TransitionError struct {
	ProductID string
	Stage     models.Stage
	Action    models.Action
	Err       error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s on product %s in stage %s: %v", e.Action, e.ProductID, e.Stage, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func newTransitionError(product *models.Product, action models.Action, err error) *TransitionError {
	return &TransitionError{
		ProductID: product.ID,
		Stage:     product.Stage,
		Action:    action,
		Err:       err,
	}
}

// IsInvalidTransition checks whether the error is an illegal stage/action pair.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsProductFinalized checks whether the error is a mutation of a finalized product.
func IsProductFinalized(err error) bool {
	return errors.Is(err, ErrProductFinalized)
}

// IsForbidden checks whether the error is a role authorization failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsStaleVersion checks whether the error is an optimistic concurrency conflict.
func IsStaleVersion(err error) bool {
	return errors.Is(err, ErrStaleVersion)
}

// IsUnclassifiedProduct checks whether the error is a classification gate failure.
func IsUnclassifiedProduct(err error) bool {
	return errors.Is(err, ErrUnclassifiedProduct)
}

// IsNoteRequired checks whether the error is a missing mandatory note.
func IsNoteRequired(err error) bool {
	return errors.Is(err, ErrNoteRequired)
}

// IsHistoryDivergence checks whether the error is a ledger integrity violation.
func IsHistoryDivergence(err error) bool {
	return errors.Is(err, ErrHistoryDivergence)
}
