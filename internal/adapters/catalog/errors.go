package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrNotFound = errors.New("project not found")
	ErrInvalid  = errors.New("invalid project")
)
