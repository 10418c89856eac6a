package session

import "errors"

// Sentinel kinds for session commands. None of them mutate the session.
var (
	ErrStaleReference = errors.New("partner is no longer in the directory")
	ErrInvalidState   = errors.New("operation not allowed in the current phase")
	ErrNotEligible    = errors.New("partner trade is not required by the project")
)
