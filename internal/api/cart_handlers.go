package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type applyPromoRequest struct {
	Code string `json:"code"`
}

// getCartHandler returns the priced cart for the user, or the anonymous
// session cart when only a session header is present.
func (s *Server) getCartHandler(w http.ResponseWriter, r *http.Request) {
	if uid := userID(r); uid != "" {
		view, err := s.cartService.GetUserCart(r.Context(), uid)

		if err != nil {
			s.respondWithDomainError(w, err)
			return
		}

		s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view})
		return
	}

	sid := sessionID(r)

	if sid == "" {
		s.respondWithError(w, http.StatusUnauthorized, "missing X-User-ID or X-Session-ID header")
		return
	}

	view, err := s.cartService.GetSessionCart(r.Context(), sid)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view})
}

// addCartItemHandler adds a product line to the cart
func (s *Server) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest

	if err := decodeJSON(r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if req.ProductID == "" || req.Quantity <= 0 {
		s.respondWithError(w, http.StatusBadRequest, "product_id and a positive quantity are required")
		return
	}

	if uid := userID(r); uid != "" {
		view, err := s.cartService.AddItem(r.Context(), uid, req.ProductID, req.Quantity)

		if err != nil {
			s.respondWithDomainError(w, err)
			return
		}

		s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view})
		return
	}

	sid := sessionID(r)

	if sid == "" {
		s.respondWithError(w, http.StatusUnauthorized, "missing X-User-ID or X-Session-ID header")
		return
	}

	if err := s.cartService.AddSessionItem(r.Context(), sid, req.ProductID, req.Quantity); err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	view, err := s.cartService.GetSessionCart(r.Context(), sid)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view})
}

// updateCartItemHandler sets the quantity of a cart line
func (s *Server) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)

	if !ok {
		return
	}

	var req updateCartItemRequest

	if err := decodeJSON(r, &req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	productID := mux.Vars(r)["productId"]

	view, err := s.cartService.UpdateQuantity(r.Context(), uid, productID, req.Quantity)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view})
}

// removeCartItemHandler deletes a cart line
func (s *Server) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	if uid := userID(r); uid != "" {
		view, err := s.cartService.RemoveItem(r.Context(), uid, productID)

		if err != nil {
			s.respondWithDomainError(w, err)
			return
		}

		s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view})
		return
	}

	sid := sessionID(r)

	if sid == "" {
		s.respondWithError(w, http.StatusUnauthorized, "missing X-User-ID or X-Session-ID header")
		return
	}

	if err := s.cartService.RemoveSessionItem(r.Context(), sid, productID); err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	view, err := s.cartService.GetSessionCart(r.Context(), sid)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view})
}

// clearCartHandler empties the user's cart
func (s *Server) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)

	if !ok {
		return
	}

	if err := s.cartService.ClearCart(r.Context(), uid); err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true})
}

// applyPromoHandler validates a promo code and records it on the cart
func (s *Server) applyPromoHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)

	if !ok {
		return
	}

	var req applyPromoRequest

	if err := decodeJSON(r, &req); err != nil || req.Code == "" {
		s.respondWithError(w, http.StatusBadRequest, "code is required")
		return
	}

	view, err := s.cartService.ApplyPromoCode(r.Context(), uid, req.Code)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view})
}

// mergeCartHandler folds the anonymous session cart into the user cart
// after login.
func (s *Server) mergeCartHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)

	if !ok {
		return
	}

	sid := sessionID(r)

	if sid == "" {
		s.respondWithError(w, http.StatusBadRequest, "missing X-Session-ID header")
		return
	}

	view, err := s.cartService.MergeSession(r.Context(), uid, sid)

	if err != nil {
		s.respondWithDomainError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view})
}
