package handlers

import (
	"context"
	"net/http"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

type Verifier interface {
	Verify(ctx context.Context, entityType string) (*domain.VerifyReport, error)
}

// EncryptionHandler exposes the read-only coverage report. Migration and
// rotation stay CLI-only.
type EncryptionHandler struct {
	Verifier Verifier
	Registry *domain.SensitiveFieldRegistry
}

func NewEncryptionHandler(verifier Verifier, registry *domain.SensitiveFieldRegistry) *EncryptionHandler {
	return &EncryptionHandler{Verifier: verifier, Registry: registry}
}

type verifyResponse struct {
	FullyProtected bool                   `json:"fully_protected"`
	Reports        []*domain.VerifyReport `json:"reports"`
}

// Verify handles GET /api/v1/admin/encryption/verify[?entity_type=...]
func (h *EncryptionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	types := h.Registry.EntityTypes()
	if t := r.URL.Query().Get("entity_type"); t != "" {
		if !h.Registry.Protects(t) {
			writeJSONError(w, http.StatusBadRequest, "entity type has no protected fields")
			return
		}
		types = []string{t}
	}

	resp := verifyResponse{FullyProtected: true, Reports: make([]*domain.VerifyReport, 0, len(types))}
	for _, t := range types {
		report, err := h.Verifier.Verify(r.Context(), t)
		if err != nil {
			HandleError(w, r, err)
			return
		}
		resp.FullyProtected = resp.FullyProtected && report.FullyProtected
		resp.Reports = append(resp.Reports, report)
	}
	writeJSON(w, http.StatusOK, resp)
}
