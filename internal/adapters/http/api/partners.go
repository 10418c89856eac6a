package api

import (
	"net/http"
)

// PartnersHandler serves the partner directory.
type PartnersHandler struct {
	svc CatalogService
}

// NewPartnersHandler creates a new partners handler.
func NewPartnersHandler(svc CatalogService) *PartnersHandler {
	return &PartnersHandler{svc: svc}
}

// HandleList handles GET /partners. The directory never fails; a broken
// sheet shows up as origin stale or fallback.
func (h *PartnersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.Directory(r.Context())
	writeJSON(w, http.StatusOK, partnersResponse{
		Origin:      snap.Origin,
		FetchedAt:   snap.FetchedAt,
		Count:       len(snap.Partners),
		Partners:    snap.Partners,
		Quarantined: snap.Quarantined,
	})
}

// HandleRegister handles GET /partners/register by redirecting to the
// external registration form.
func (h *PartnersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	url := h.svc.PartnerFormURL()
	if url == "" {
		writeFailure(w, NewKind("api.partners_register", ErrNoForm))
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
