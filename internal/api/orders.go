package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/akhil-km/storefront/internal/models"
	"github.com/akhil-km/storefront/internal/store"
)

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	var req struct {
		PaymentMethod models.PaymentMethod `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := store.Checkout(r.Context(), s.db, s.cfg.Checkout, store.CheckoutRequest{
		UserID:        userID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		s.logger.Warn("checkout failed",
			slogErr(err),
			"user_id", userID,
		)
		writeStoreError(w, err)
		return
	}

	s.logger.Info("order placed",
		"order_number", order.OrderNumber,
		"user_id", userID,
		"total", order.Total.StringFixed(2),
	)
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderNumber   string `json:"order_number"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderNumber == "" || req.TransactionID == "" {
		writeError(w, http.StatusBadRequest, "order_number and transaction_id are required")
		return
	}

	if err := store.MarkOrderPaid(r.Context(), s.db, req.OrderNumber, req.TransactionID); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := store.ListOrdersCursor(r.Context(), s.db, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := store.GetOrder(r.Context(), s.db, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if order.UserID != userID {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCancelOrReturn(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		Items []store.CancelSelection `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := store.RequestCancelOrReturn(r.Context(), s.db, userID, orderID, req.Items)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
