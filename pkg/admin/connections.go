package admin

import (
	"net/http"

	"github.com/relayops/toolbridge/pkg/toolkit"
)

// createConnectionRequest is the body of POST /api/v1/connections.
type createConnectionRequest struct {
	UserID  string `json:"user_id"`
	Toolkit string `json:"toolkit"`
}

// connectionResponse is the JSON shape of a connection attempt.
type connectionResponse struct {
	ConnectionID string `json:"connection_id"`
	Toolkit      string `json:"toolkit,omitempty"`
	Status       string `json:"status"`
	RedirectURL  string `json:"redirect_url,omitempty"`
	Terminal     bool   `json:"terminal"`
}

func toConnectionResponse(att toolkit.ConnectionAttempt) connectionResponse {
	return connectionResponse{
		ConnectionID: att.ID,
		Toolkit:      att.ToolkitSlug,
		Status:       string(att.Status),
		RedirectURL:  att.RedirectURL,
		Terminal:     att.Status.IsTerminal(),
	}
}

// createConnection handles POST /api/v1/connections. It starts the OAuth
// flow and begins polling the attempt.
func (h *Handler) createConnection(w http.ResponseWriter, r *http.Request) {
	var req createConnectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.Toolkit == "" {
		writeError(w, http.StatusBadRequest, "user_id and toolkit are required")
		return
	}

	att, err := h.bridge.Connect(r.Context(), req.UserID, req.Toolkit)
	if err != nil {
		if toolkit.IsConfigurationMissing(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toConnectionResponse(*att))
}

// getConnection handles GET /api/v1/connections/{id}.
func (h *Handler) getConnection(w http.ResponseWriter, r *http.Request) {
	att, err := h.bridge.ConnectionStatus(r.Context(), r.PathValue(pathParamID))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toConnectionResponse(att))
}

// cancelConnection handles DELETE /api/v1/connections/{id}. It abandons
// polling without touching the provider connection.
func (h *Handler) cancelConnection(w http.ResponseWriter, r *http.Request) {
	h.bridge.CancelConnection(r.PathValue(pathParamID))
	w.WriteHeader(http.StatusNoContent)
}

// parseActivationRequest is the body of POST /api/v1/activation/parse.
type parseActivationRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// requiredToolResponse is one resolved toolkit from the activation marker.
type requiredToolResponse struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	IsConnected bool   `json:"is_connected"`
}

// parseActivationResponse is the response of POST /api/v1/activation/parse.
type parseActivationResponse struct {
	Required    []requiredToolResponse `json:"required_tools"`
	CleanedText string                 `json:"cleaned_text"`
	HasMarker   bool                   `json:"has_marker"`
}

// parseActivation handles POST /api/v1/activation/parse.
func (h *Handler) parseActivation(w http.ResponseWriter, r *http.Request) {
	var req parseActivationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.bridge.ParseActivation(r.Context(), req.UserID, req.Message)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := parseActivationResponse{
		Required:    []requiredToolResponse{},
		CleanedText: req.Message,
	}
	if result != nil {
		resp.HasMarker = true
		resp.CleanedText = result.CleanedText
		for _, rt := range result.RequiredTools {
			resp.Required = append(resp.Required, requiredToolResponse{
				Slug:        rt.Slug,
				Name:        rt.Toolkit.Name,
				IsConnected: rt.Toolkit.IsConnected,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
