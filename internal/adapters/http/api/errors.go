package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/SBCM-Alliance/G-Cart/internal/adapters/catalog"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/repository"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/session"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/team"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNoForm     = errors.New("partner registration form not configured")
)

// Wrap prefixes err with the operation name.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// WrapKind tags err with a sentinel kind so errors.Is matches both.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return NewKind(op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// NewKind returns a bare sentinel kind for an operation.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// classify maps an error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "project_not_found"
	case errors.Is(err, ErrNoForm):
		return http.StatusNotFound, "not_configured"
	case errors.Is(err, session.ErrStaleReference):
		return http.StatusConflict, "offer_unavailable"
	case errors.Is(err, team.ErrNotBiddable):
		return http.StatusConflict, "not_biddable"
	case errors.Is(err, session.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, session.ErrNotEligible):
		return http.StatusUnprocessableEntity, "not_eligible"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
