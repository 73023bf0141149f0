package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hkhalili/shopflow/internal/gateways"
	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/internal/repository"
	apperrors "github.com/hkhalili/shopflow/pkg/errors"
)

type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// healthCheckHandler handles the health check endpoint
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:    "ok",
		Version:   "0.1.0",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    health,
	})
}

// userID extracts the authenticated user from the request. Authn itself
// lives in the edge proxy; the API trusts the forwarded header.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// sessionID extracts the anonymous cart session from the request
func sessionID(r *http.Request) string {
	return r.Header.Get("X-Session-ID")
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := userID(r)

	if id == "" {
		s.respondWithError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return "", false
	}

	return id, true
}

// toAppError maps domain errors onto the structured error taxonomy so
// every handler reports failures the same way.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFoundError("resource not found")

	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrInvalidShippingMethod),
		errors.Is(err, models.ErrTrackingCodeRequired),
		errors.Is(err, models.ErrInvalidPromo),
		errors.Is(err, models.ErrMinimumPurchase),
		errors.Is(err, models.ErrUsageLimitExceeded),
		errors.Is(err, models.ErrProductUnavailable),
		errors.Is(err, gateways.ErrUnknownGateway):
		return apperrors.NewInvalidInputError(err.Error())

	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrInvalidOrderState),
		errors.Is(err, models.ErrAlreadyVerified):
		return apperrors.NewConflictError(err.Error())

	case errors.Is(err, gateways.ErrGatewayCommunication):
		return apperrors.NewTemporaryError("payment provider is unavailable, try again")

	default:
		return apperrors.NewInternalError("internal server error")
	}
}

// respondWithDomainError maps err and writes the JSON error response
func (s *Server) respondWithDomainError(w http.ResponseWriter, err error) {
	appErr := toAppError(err)

	if appErr.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}

	s.respondWithError(w, appErr.StatusCode, appErr.Message)
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
