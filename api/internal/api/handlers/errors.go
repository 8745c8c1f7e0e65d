package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

// HandleError maps domain errors to HTTP responses.
// 🛡️ Internal detail never reaches the client; it is logged with the request id.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownEntityType):
		writeJSONError(w, http.StatusBadRequest, "unknown entity type")
	case errors.Is(err, domain.ErrKeyUnavailable):
		slog.Error("Encryption key unavailable", slog.String("request_id", middleware.GetReqID(r.Context())))
		writeJSONError(w, http.StatusInternalServerError, "configuration error")
	default:
		slog.Error("Unhandled request error",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
