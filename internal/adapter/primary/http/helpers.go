package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/domain"
)

// respondJSON writes a JSON response with the given status code and payload.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors are not recoverable at this point, so we ignore the return.
	_ = json.NewEncoder(w).Encode(data)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	respondJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error: "method not allowed",
		Code:  "METHOD_NOT_ALLOWED",
	})
}

func invalidBody(w http.ResponseWriter) {
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: "invalid request body",
		Code:  "INVALID_BODY",
	})
}

// respondError maps domain errors onto HTTP statuses.
func respondError(w http.ResponseWriter, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, domain.ErrScreenNotFound):
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, domain.ErrInvalidScreen),
		errors.Is(err, domain.ErrInvalidTopic),
		errors.Is(err, domain.ErrInvalidVisibility):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "VALIDATION_ERROR"})
	case errors.Is(err, domain.ErrScreenNotMounted):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "NOT_MOUNTED"})
	case errors.Is(err, domain.ErrFetchFailed):
		respondJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "UPSTREAM_ERROR"})
	default:
		logger.Error("request failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
