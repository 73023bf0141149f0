package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/hkhalili/shopflow/internal/gateways"
	"github.com/hkhalili/shopflow/internal/models"
)

// maxReceiptSize bounds uploaded receipt images
const maxReceiptSize = 5 << 20

type requestPaymentRequest struct {
	OrderID string `json:"order_id"`
	Gateway string `json:"gateway"`
}

// requestPaymentHandler starts a payment attempt for an order
func (s *Server) requestPaymentHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	var req requestPaymentRequest

	if err := decodeJSON(r, &req); err != nil || req.OrderID == "" {
		s.respondWithError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	outcome, err := s.paymentService.RequestPayment(r.Context(), req.OrderID, req.Gateway)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusUnprocessableEntity
	}

	s.respondWithJSON(w, status, ApiResponse{Success: outcome.Success, Data: outcome})
}

// paymentCallbackHandler settles a payment from the provider redirect.
// Zarinpal sends Authority and Status as query parameters.
func (s *Server) paymentCallbackHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	gatewayName := vars["gateway"]
	paymentID := vars["paymentId"]

	data := gateways.CallbackData{
		Authority: r.URL.Query().Get("Authority"),
		Status:    r.URL.Query().Get("Status"),
	}

	outcome, err := s.paymentService.VerifyPayment(r.Context(), paymentID, data, gatewayName)

	if errors.Is(err, models.ErrAlreadyVerified) {
		// providers retry callbacks; a repeat on a settled payment is a
		// success, not a conflict
		outcome, err = s.paymentService.ReplaySettledPayment(r.Context(), paymentID)
	}

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: outcome.Success, Data: outcome})
}

// uploadReceiptHandler accepts a bank receipt image for a manual payment
func (s *Server) uploadReceiptHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	paymentID := mux.Vars(r)["paymentId"]

	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("receipt")

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "receipt file is required")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.config.Payments.ReceiptDir, 0o755); err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	ext := filepath.Ext(header.Filename)
	path := filepath.Join(s.config.Payments.ReceiptDir, fmt.Sprintf("%s%s", paymentID, ext))

	dst, err := os.Create(path)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, maxReceiptSize)); err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	payment, err := s.paymentService.AttachReceipt(r.Context(), paymentID, path)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: payment})
}

// approvePaymentHandler is the administrative approval of a manual payment
func (s *Server) approvePaymentHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	paymentID := mux.Vars(r)["paymentId"]

	outcome, err := s.paymentService.ApproveManualPayment(r.Context(), paymentID)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: outcome.Success, Data: outcome})
}

// listOrderPaymentsHandler returns every payment attempt for an order
func (s *Server) listOrderPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	orderID := mux.Vars(r)["orderId"]

	payments, err := s.paymentService.ListOrderPayments(r.Context(), orderID)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: payments})
}
