// Package admin provides REST API endpoints for administrative operations.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/relayops/toolbridge/pkg/bridge"
)

const (
	pathParamID   = "id"
	pathParamSlug = "slug"
)

// Handler provides admin REST API endpoints.
type Handler struct {
	mux        *http.ServeMux
	bridge     *bridge.Bridge
	authMiddle func(http.Handler) http.Handler
}

// NewHandler creates a new admin API handler.
func NewHandler(b *bridge.Bridge, authMiddle func(http.Handler) http.Handler) *Handler {
	h := &Handler{
		mux:        http.NewServeMux(),
		bridge:     b,
		authMiddle: authMiddle,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.authMiddle != nil {
		h.authMiddle(h.mux).ServeHTTP(w, r)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all admin API routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /api/v1/toolkits", h.listToolkits)
	h.mux.HandleFunc("POST /api/v1/toolkits/{slug}/disconnect", h.disconnectToolkit)

	h.mux.HandleFunc("POST /api/v1/sessions", h.createSession)
	h.mux.HandleFunc("GET /api/v1/sessions/{id}", h.getSession)
	h.mux.HandleFunc("PUT /api/v1/sessions/{id}/toolkits/{slug}", h.enableToolkit)
	h.mux.HandleFunc("DELETE /api/v1/sessions/{id}/toolkits/{slug}", h.disableToolkit)

	h.mux.HandleFunc("POST /api/v1/connections", h.createConnection)
	h.mux.HandleFunc("GET /api/v1/connections/{id}", h.getConnection)
	h.mux.HandleFunc("DELETE /api/v1/connections/{id}", h.cancelConnection)

	h.mux.HandleFunc("POST /api/v1/activation/parse", h.parseActivation)

	h.mux.HandleFunc("GET /api/v1/audit", h.queryAudit)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
