package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

type AuditLister interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error)
}

type AuditHandler struct {
	Lister AuditLister
}

func NewAuditHandler(lister AuditLister) *AuditHandler {
	return &AuditHandler{Lister: lister}
}

// HandleGetTenantLogs handles GET /api/v1/tenants/{tenantID}/audit
// Query: action, resource_type, limit, offset.
func (h *AuditHandler) HandleGetTenantLogs(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	filter := domain.AuditFilter{
		TenantID:     tenantID,
		Action:       domain.AuditAction(q.Get("action")),
		ResourceType: q.Get("resource_type"),
		Limit:        limit,
		Offset:       max(offset, 0),
	}

	entries, err := h.Lister.List(r.Context(), filter)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   filter.NormalizedLimit(),
		"offset":  filter.Offset,
	})
}
