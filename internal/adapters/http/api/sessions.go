package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/SBCM-Alliance/G-Cart/pkg/logger"
)

const maxBodyBytes = 64 << 10

// selectProjectRequest mirrors the OpenAPI schema for PUT /sessions/{id}/project.
type selectProjectRequest struct {
	ProjectID int `json:"project_id" validate:"required,gt=0"`
}

// offerRequest mirrors the OpenAPI schema for POST /sessions/{id}/offers.
type offerRequest struct {
	Partner string `json:"partner" validate:"required,max=200"`
}

// SessionsHandler handles the team building flow.
type SessionsHandler struct {
	svc      SessionService
	validate *validator.Validate
	log      logger.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(svc SessionService, validate *validator.Validate, log logger.Logger) *SessionsHandler {
	return &SessionsHandler{svc: svc, validate: validate, log: log}
}

// HandleCreate handles POST /sessions.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.CreateSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(s))
}

// HandleGet handles GET /sessions/{sessionID}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Session(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

// HandleEnd handles DELETE /sessions/{sessionID}.
func (h *SessionsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.EndSession(r.Context(), sessionID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSelectProject handles PUT /sessions/{sessionID}/project.
func (h *SessionsHandler) HandleSelectProject(w http.ResponseWriter, r *http.Request) {
	const op = "api.select_project"
	var req selectProjectRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	s, err := h.svc.SelectProject(r.Context(), sessionID(r), req.ProjectID)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

// HandleBack handles DELETE /sessions/{sessionID}/project.
func (h *SessionsHandler) HandleBack(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Back(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

// HandleRecommend handles GET /sessions/{sessionID}/recommendations.
func (h *SessionsHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Recommend(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, Wrap("api.recommend", err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleOffer handles POST /sessions/{sessionID}/offers.
func (h *SessionsHandler) HandleOffer(w http.ResponseWriter, r *http.Request) {
	const op = "api.offer"
	var req offerRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	s, added, err := h.svc.Offer(r.Context(), sessionID(r), strings.TrimSpace(req.Partner))
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, offerResponse{Added: added, Session: newSessionView(s)})
}

// HandleBid handles POST /sessions/{sessionID}/bid.
func (h *SessionsHandler) HandleBid(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.ConfirmBid(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, Wrap("api.bid", err))
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

func (h *SessionsHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func (h *SessionsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := classify(err); status == http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("session_id", sessionID(r)),
			logger.Error(err))
	}
	writeFailure(w, err)
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}
