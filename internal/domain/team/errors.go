package team

import "errors"

// Sentinel kinds for team formation errors.
var (
	ErrNotBiddable = errors.New("team capacity does not cover the project budget")
)
