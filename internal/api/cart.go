package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/akhil-km/storefront/internal/models"
	"github.com/akhil-km/storefront/internal/store"
)

type cartResponse struct {
	Cart       *models.Cart          `json:"cart"`
	Correction *store.CartCorrection `json:"correction,omitempty"`
}

// handleGetCart reconciles the cart against live stock before returning
// it, so the client always sees quantities it can actually check out.
func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	correction, err := store.ReconcileCart(r.Context(), s.db, userID)
	if err != nil {
		s.logger.Error("reconcile cart", slogErr(err))
		writeStoreError(w, err)
		return
	}

	cart, err := store.GetCart(r.Context(), s.db, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cartResponse{Cart: cart, Correction: correction})
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	var req struct {
		ProductID int64 `json:"product_id"`
		VariantID int64 `json:"variant_id"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	if err := store.AddToCart(r.Context(), s.db, userID, req.ProductID, req.VariantID, req.Quantity); err != nil {
		writeStoreError(w, err)
		return
	}

	cart, err := store.GetCart(r.Context(), s.db, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cartResponse{Cart: cart})
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	variantID, err := strconv.ParseInt(chi.URLParam(r, "variantID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid variant id")
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	if err := store.UpdateCartItemQuantity(r.Context(), s.db, userID, variantID, req.Quantity); err != nil {
		writeStoreError(w, err)
		return
	}

	cart, err := store.GetCart(r.Context(), s.db, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cartResponse{Cart: cart})
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	variantID, err := strconv.ParseInt(chi.URLParam(r, "variantID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid variant id")
		return
	}

	if err := store.RemoveFromCart(r.Context(), s.db, userID, variantID); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	applied, err := store.ApplyCouponToCart(r.Context(), s.db, userID, req.Code)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, applied)
}

func (s *Server) handleRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	if err := store.RemoveCouponFromCart(r.Context(), s.db, userID); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "coupon removed"})
}
