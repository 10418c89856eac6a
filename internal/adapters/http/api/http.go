// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/SBCM-Alliance/G-Cart/internal/adapters/catalog"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/directory"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/ws"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/session"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/team"
	"github.com/SBCM-Alliance/G-Cart/pkg/logger"
)

// CatalogService exposes read-only marketplace data.
type CatalogService interface {
	Owner() model.Owner
	Projects(ctx context.Context, q catalog.Query) ([]model.Project, error)
	Project(ctx context.Context, id int) (model.Project, error)
	Directory(ctx context.Context) directory.Snapshot
	PartnerFormURL() string
}

// SessionService runs team building commands against stored sessions.
type SessionService interface {
	CreateSession(ctx context.Context) (*session.Session, error)
	Session(ctx context.Context, id string) (*session.Session, error)
	EndSession(ctx context.Context, id string) error
	SelectProject(ctx context.Context, id string, projectID int) (*session.Session, error)
	Back(ctx context.Context, id string) (*session.Session, error)
	Recommend(ctx context.Context, id string) (team.Recommendation, error)
	// Offer adds the named partner. added is false for duplicates.
	Offer(ctx context.Context, id, partner string) (s *session.Session, added bool, err error)
	ConfirmBid(ctx context.Context, id string) (*session.Session, error)
}

// StreamService attaches notification subscribers to sessions.
type StreamService interface {
	Subscribe(sessionID string, sub ws.Subscriber) error
	Unsubscribe(sessionID string, sub ws.Subscriber)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CatalogService
	SessionService
	StreamService
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	projectsHandler *ProjectsHandler
	partnersHandler *PartnersHandler
	sessionsHandler *SessionsHandler
	streamHandler   *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	validate := validator.New(validator.WithRequiredStructEnabled())
	log := logger.Get().Named("api")
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		projectsHandler: NewProjectsHandler(deps),
		partnersHandler: NewPartnersHandler(deps),
		sessionsHandler: NewSessionsHandler(deps, validate, log),
		streamHandler:   NewStreamHandler(deps, deps, log),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Get("/projects", MetricsMiddleware(s.projectsHandler.HandleList, "projects"))
	r.Get("/projects/{projectID}", MetricsMiddleware(s.projectsHandler.HandleGet, "project"))

	r.Get("/partners", MetricsMiddleware(s.partnersHandler.HandleList, "partners"))
	r.Get("/partners/register", MetricsMiddleware(s.partnersHandler.HandleRegister, "partners_register"))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions"))
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", MetricsMiddleware(s.sessionsHandler.HandleGet, "session"))
			r.Delete("/", MetricsMiddleware(s.sessionsHandler.HandleEnd, "session"))
			r.Put("/project", MetricsMiddleware(s.sessionsHandler.HandleSelectProject, "session_project"))
			r.Delete("/project", MetricsMiddleware(s.sessionsHandler.HandleBack, "session_project"))
			r.Get("/recommendations", MetricsMiddleware(s.sessionsHandler.HandleRecommend, "recommendations"))
			r.Post("/offers", MetricsMiddleware(s.sessionsHandler.HandleOffer, "offers"))
			r.Post("/bid", MetricsMiddleware(s.sessionsHandler.HandleBid, "bid"))
			r.Get("/events", s.streamHandler.HandleStream)
		})
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a service error onto the error body.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}
