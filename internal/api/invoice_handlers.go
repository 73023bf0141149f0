package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hkhalili/shopflow/internal/models"
)

type invoiceResponse struct {
	Invoice *models.Invoice       `json:"invoice"`
	Items   []*models.InvoiceItem `json:"items"`
}

// getInvoiceHandler returns the invoice snapshot for an order
func (s *Server) getInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	invoice, items, err := s.invoiceService.GetInvoice(r.Context(), orderID)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    invoiceResponse{Invoice: invoice, Items: items},
	})
}

// getInvoicePDFHandler serves the rendered PDF artifact
func (s *Server) getInvoicePDFHandler(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	invoice, _, err := s.invoiceService.GetInvoice(r.Context(), orderID)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	if invoice.PDFPath == nil {
		s.respondWithError(w, http.StatusNotFound, "invoice PDF is not available")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+invoice.InvoiceNumber+".pdf")
	http.ServeFile(w, r, *invoice.PDFPath)
}
