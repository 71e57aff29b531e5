package report

import "errors"

var (
	// ErrRunNotFound means the run does not exist (or is not visible to the
	// caller). Engine writes hitting this stop quietly: the run was deleted
	// while executing and its remaining output is dropped.
	ErrRunNotFound = errors.New("report run not found")

	// ErrRunTerminal means the run already reached completed, failed or
	// cancelled and can no longer be modified.
	ErrRunTerminal = errors.New("report run already finished")

	// ErrInsufficientCredits means the user has no quota left to start a run.
	ErrInsufficientCredits = errors.New("insufficient credits")
)
