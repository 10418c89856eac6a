package directory

import "errors"

// Sentinel kinds for partner directory errors. Directory.Snapshot recovers
// from both; only Source implementations return them.
var (
	ErrUnavailable = errors.New("partner sheet unavailable")
	ErrMalformed   = errors.New("partner sheet malformed")
)
