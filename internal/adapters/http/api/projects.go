package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/SBCM-Alliance/G-Cart/internal/adapters/catalog"
)

// ProjectsHandler serves the procurement catalog.
type ProjectsHandler struct {
	svc CatalogService
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(svc CatalogService) *ProjectsHandler {
	return &ProjectsHandler{svc: svc}
}

// HandleList handles GET /projects?area=&tag=.
func (h *ProjectsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := catalog.Query{Area: strings.TrimSpace(r.URL.Query().Get("area"))}
	for _, tag := range r.URL.Query()["tag"] {
		if tag = strings.TrimSpace(tag); tag != "" {
			q.Tags = append(q.Tags, tag)
		}
	}

	projects, err := h.svc.Projects(r.Context(), q)
	if err != nil {
		writeFailure(w, err)
		return
	}

	owner := h.svc.Owner()
	resp := projectsResponse{Owner: owner, Count: len(projects), Projects: make([]projectView, 0, len(projects))}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, newProjectView(p, owner))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /projects/{projectID}.
func (h *ProjectsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.project"
	id, err := strconv.Atoi(chi.URLParam(r, "projectID"))
	if err != nil || id <= 0 {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	p, err := h.svc.Project(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newProjectView(p, h.svc.Owner()))
}
