package ledger

import "errors"

var (
	// ErrTaskNotFound indicates no row exists for the requested hash, or the
	// row has not yet reached the artifact stage.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAlreadyArchived indicates the task already completed its lifecycle;
	// confirming it again has no further effect.
	ErrAlreadyArchived = errors.New("artifact already archived")
)
