package api

import (
	"net/http"
)

// getRateLimitsHandler returns the current rate limiter metrics for the
// payment routes
func (s *Server) getRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	metrics := s.paymentRateLimiter.GetMetrics()

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: metrics})
}
