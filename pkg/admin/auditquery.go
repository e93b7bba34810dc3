package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/relayops/toolbridge/pkg/audit"
)

// auditListResponse wraps a page of audit events.
type auditListResponse struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// queryAudit handles GET /api/v1/audit.
// Query params: type, user_id, session_id, toolkit, connection_id, success,
// since, until (RFC 3339), limit, offset.
func (h *Handler) queryAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.bridge.QueryAudit(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	writeJSON(w, http.StatusOK, auditListResponse{
		Events: events,
		Count:  len(events),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func parseAuditFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		Type:         audit.EventType(q.Get("type")),
		UserID:       q.Get("user_id"),
		SessionID:    q.Get("session_id"),
		ToolkitSlug:  q.Get("toolkit"),
		ConnectionID: q.Get("connection_id"),
		Limit:        100,
	}

	if v := q.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return filter, err
		}
		filter.Success = &success
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, err
		}
		filter.StartTime = &ts
	}
	if v := q.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, err
		}
		filter.EndTime = &ts
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.Offset = offset
	}

	return filter, nil
}
