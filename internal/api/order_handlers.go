package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/internal/service"
)

type createOrderRequest struct {
	CartID           string `json:"cart_id"`
	ShippingMethodID string `json:"shipping_method_id"`
	PhoneNumber      string `json:"phone_number"`
	Notes            string `json:"notes"`
	Currency         string `json:"currency"`
	Address          string `json:"address"`
	City             string `json:"city"`
	Province         string `json:"province"`
	PostalCode       string `json:"postal_code"`
	RecipientName    string `json:"recipient_name"`
}

type transitionRequest struct {
	Note         string `json:"note"`
	TrackingCode string `json:"tracking_code"`
}

// getShippingMethodsHandler lists delivery options for a location and total
func (s *Server) getShippingMethodsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	province := q.Get("province")
	city := q.Get("city")
	cartTotal, _ := strconv.ParseInt(q.Get("cart_total"), 10, 64)

	if province == "" {
		s.respondWithError(w, http.StatusBadRequest, "province is required")
		return
	}

	methods := s.shippingCalc.GetShippingMethods(province, city, cartTotal)

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: methods})
}

// createOrderHandler assembles a new order from the user's cart
func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)

	if !ok {
		return
	}

	var req createOrderRequest

	if err := decodeJSON(r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if req.CartID == "" || req.ShippingMethodID == "" || req.Address == "" || req.Province == "" {
		s.respondWithError(w, http.StatusBadRequest, "cart_id, shipping_method_id, address and province are required")
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "IRR"
	}

	detail, err := s.orderService.CreateFromCart(r.Context(), service.CreateOrderParams{
		UserID:           uid,
		CartID:           req.CartID,
		Currency:         currency,
		PhoneNumber:      req.PhoneNumber,
		Notes:            req.Notes,
		ShippingMethodID: req.ShippingMethodID,
		Shipping: &models.ShippingInfo{
			Address:       req.Address,
			City:          req.City,
			Province:      req.Province,
			PostalCode:    req.PostalCode,
			RecipientName: req.RecipientName,
			PhoneNumber:   req.PhoneNumber,
		},
	})

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: detail})
}

// listOrdersHandler lists the user's orders
func (s *Server) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)

	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	orders, err := s.orderService.ListUserOrders(r.Context(), uid, limit, offset)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: orders})
}

// getOrderHandler returns an order with items, shipping info and history
func (s *Server) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	detail, err := s.orderService.GetOrderDetail(r.Context(), orderID)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: detail})
}

// cancelOrderHandler cancels the order if its status allows it
func (s *Server) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	var req transitionRequest
	decodeJSON(r, &req)

	order, err := s.orderService.Cancel(r.Context(), orderID, req.Note)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

// shipOrderHandler moves a confirmed order to SHIPPED with a tracking code
func (s *Server) shipOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	var req transitionRequest
	decodeJSON(r, &req)

	order, err := s.orderService.ConfirmShipping(r.Context(), orderID, req.TrackingCode)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

// deliverOrderHandler marks a shipped order as delivered
func (s *Server) deliverOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	order, err := s.orderService.MarkDelivered(r.Context(), orderID)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

// returnOrderHandler processes a return of a delivered order
func (s *Server) returnOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	var req transitionRequest
	decodeJSON(r, &req)

	order, err := s.orderService.ProcessReturn(r.Context(), orderID, req.Note)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

// refundOrderHandler processes a refund
func (s *Server) refundOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	var req transitionRequest
	decodeJSON(r, &req)

	order, err := s.orderService.ProcessRefund(r.Context(), orderID, req.Note)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}
