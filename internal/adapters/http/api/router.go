package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig collects what NewRouter mounts besides the API routes.
type RouterConfig struct {
	Server    *Server
	Secure    func(http.Handler) http.Handler
	RateLimit func(http.Handler) http.Handler
	// Routes register extra route groups such as the docs and the UI.
	Routes []func(chi.Router)
}

// NewRouter builds the service's root handler.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(chimid.Recoverer)
	if cfg.Secure != nil {
		r.Use(cfg.Secure)
	}
	if cfg.RateLimit != nil {
		r.Use(cfg.RateLimit)
	}

	if cfg.Server != nil {
		cfg.Server.Register(r)
	}
	for _, register := range cfg.Routes {
		register(r)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	return r
}
