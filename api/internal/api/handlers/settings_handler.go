package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/api/middleware"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

// SettingsService is the subset of services.SettingsService the HTTP layer needs.
// Plaintext secrets never leave over HTTP, so GetDecrypted is not part of it.
type SettingsService interface {
	GetMasked(ctx context.Context, tenantID uuid.UUID) (domain.Record, error)
	Upsert(ctx context.Context, actorID, tenantID uuid.UUID, patch map[string]any, meta domain.RequestMeta) (domain.Record, error)
	Delete(ctx context.Context, actorID, tenantID uuid.UUID, meta domain.RequestMeta) error
}

type SettingsHandler struct {
	Service SettingsService
}

func NewSettingsHandler(service SettingsService) *SettingsHandler {
	return &SettingsHandler{Service: service}
}

// Get handles GET /api/v1/tenants/{tenantID}/notification-settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}

	settings, err := h.Service.GetMasked(r.Context(), tenantID)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Put handles PUT /api/v1/tenants/{tenantID}/notification-settings
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}
	actorID, ok := middleware.ActorID(r.Context())
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Missing actor")
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	settings, err := h.Service.Upsert(r.Context(), actorID, tenantID, patch, requestMeta(r))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Delete handles DELETE /api/v1/tenants/{tenantID}/notification-settings
func (h *SettingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantParam(w, r)
	if !ok {
		return
	}
	actorID, ok := middleware.ActorID(r.Context())
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Missing actor")
		return
	}

	if err := h.Service.Delete(r.Context(), actorID, tenantID, requestMeta(r)); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func tenantParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid tenant ID")
		return uuid.Nil, false
	}
	return tenantID, true
}

func requestMeta(r *http.Request) domain.RequestMeta {
	return domain.RequestMeta{
		OriginAddress: r.RemoteAddr,
		ClientAgent:   r.UserAgent(),
	}
}
