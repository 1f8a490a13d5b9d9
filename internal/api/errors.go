package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"crate/internal/logging"
	"crate/internal/services"
)

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	message := UserMessage(err.Error())
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(h.requestLogger(r), "request failed", "api_request_failed",
			logging.Error(err),
			logging.Int("status", status),
			logging.String("path", r.URL.Path),
		)
		message = http.StatusText(status)
	} else {
		h.requestLogger(r).Debug("request rejected",
			logging.Error(err),
			logging.Int("status", status),
			logging.String("path", r.URL.Path),
		)
	}
	h.writeError(w, r, status, message)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	requestID, _ := services.RequestIDFromContext(r.Context())
	h.writeJSON(w, r, status, ErrorResponse{Error: message, RequestID: requestID})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.requestLogger(r).Error("failed to encode response", logging.Error(err))
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return logging.WithContext(r.Context(), h.logger)
}
