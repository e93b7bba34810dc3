package admin

import (
	"errors"
	"net/http"

	"github.com/relayops/toolbridge/pkg/toolkit"
)

// toolkitListResponse wraps the registry listing.
type toolkitListResponse struct {
	Toolkits   []toolkit.Toolkit `json:"toolkits"`
	Count      int               `json:"count"`
	RetryAfter string            `json:"retry_after,omitempty"`
}

// listToolkits handles GET /api/v1/toolkits.
// Query params: user_id (required), refresh (optional, bypasses the cache).
func (h *Handler) listToolkits(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	var (
		toolkits []toolkit.Toolkit
		err      error
	)
	if r.URL.Query().Get("refresh") == "true" {
		toolkits, err = h.bridge.RefreshToolkits(r.Context(), userID)
	} else {
		toolkits, err = h.bridge.Toolkits(r.Context(), userID)
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, toolkitListResponse{
			Toolkits:   []toolkit.Toolkit{},
			RetryAfter: h.bridge.RetryDelay(),
		})
		return
	}

	writeJSON(w, http.StatusOK, toolkitListResponse{Toolkits: toolkits, Count: len(toolkits)})
}

// disconnectRequest is the body of POST /api/v1/toolkits/{slug}/disconnect.
type disconnectRequest struct {
	UserID string `json:"user_id"`
}

// disconnectToolkit handles POST /api/v1/toolkits/{slug}/disconnect.
func (h *Handler) disconnectToolkit(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue(pathParamSlug)

	var req disconnectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.bridge.Disconnect(r.Context(), req.UserID, slug); err != nil {
		if errors.Is(err, toolkit.ErrUnknownToolkit) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"toolkit":      toolkit.NormalizeSlug(slug),
		"disconnected": true,
	})
}
