package admin

import (
	"errors"
	"net/http"

	"github.com/relayops/toolbridge/pkg/session"
	"github.com/relayops/toolbridge/pkg/toolkit"
)

// sessionResponse is the JSON shape of a session.
type sessionResponse struct {
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Enabled   []string        `json:"enabled"`
	Connected map[string]bool `json:"connected"`
}

func toSessionResponse(s *session.Session) sessionResponse {
	enabled := s.EnabledSlugs()
	if enabled == nil {
		enabled = []string{}
	}
	return sessionResponse{
		SessionID: s.ID,
		UserID:    s.UserID,
		Enabled:   enabled,
		Connected: s.Connected,
	}
}

// createSessionRequest is the body of POST /api/v1/sessions.
type createSessionRequest struct {
	UserID string `json:"user_id"`
}

// createSession handles POST /api/v1/sessions.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	sess, err := h.bridge.StartSession(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// getSession handles GET /api/v1/sessions/{id}.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.bridge.Session(r.Context(), r.PathValue(pathParamID))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// enableToolkit handles PUT /api/v1/sessions/{id}/toolkits/{slug}.
func (h *Handler) enableToolkit(w http.ResponseWriter, r *http.Request) {
	sess, err := h.bridge.EnableToolkit(r.Context(), r.PathValue(pathParamID), r.PathValue(pathParamSlug))
	if err != nil {
		writeToggleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// disableToolkit handles DELETE /api/v1/sessions/{id}/toolkits/{slug}.
func (h *Handler) disableToolkit(w http.ResponseWriter, r *http.Request) {
	sess, err := h.bridge.DisableToolkit(r.Context(), r.PathValue(pathParamID), r.PathValue(pathParamSlug))
	if err != nil {
		writeToggleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func writeToggleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, toolkit.ErrUnknownToolkit):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
