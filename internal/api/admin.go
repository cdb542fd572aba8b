package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/models"
	"github.com/akhil-km/storefront/internal/store"
)

func (s *Server) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code            string          `json:"code"`
		DiscountType    string          `json:"discount_type"`
		DiscountValue   decimal.Decimal `json:"discount_value"`
		MinimumPurchase decimal.Decimal `json:"minimum_purchase"`
		MaximumDiscount decimal.Decimal `json:"maximum_discount"`
		ExpiryDate      time.Time       `json:"expiry_date"`
		UsageLimit      int             `json:"usage_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	coupon, err := store.CreateCoupon(r.Context(), s.db, store.CreateCouponRequest{
		Code:            req.Code,
		DiscountType:    models.DiscountType(req.DiscountType),
		DiscountValue:   req.DiscountValue,
		MinimumPurchase: req.MinimumPurchase,
		MaximumDiscount: req.MaximumDiscount,
		ExpiryDate:      req.ExpiryDate,
		UsageLimit:      req.UsageLimit,
	})
	if err != nil {
		s.logger.Error("create coupon", slogErr(err))
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, coupon)
}

func (s *Server) handleUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return
	}

	var req struct {
		Code            string          `json:"code"`
		DiscountType    string          `json:"discount_type"`
		DiscountValue   decimal.Decimal `json:"discount_value"`
		MinimumPurchase decimal.Decimal `json:"minimum_purchase"`
		MaximumDiscount decimal.Decimal `json:"maximum_discount"`
		ExpiryDate      time.Time       `json:"expiry_date"`
		UsageLimit      int             `json:"usage_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	coupon, err := store.UpdateCoupon(r.Context(), s.db, id, store.CreateCouponRequest{
		Code:            req.Code,
		DiscountType:    models.DiscountType(req.DiscountType),
		DiscountValue:   req.DiscountValue,
		MinimumPurchase: req.MinimumPurchase,
		MaximumDiscount: req.MaximumDiscount,
		ExpiryDate:      req.ExpiryDate,
		UsageLimit:      req.UsageLimit,
	})
	if err != nil {
		s.logger.Error("update coupon", slogErr(err))
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, coupon)
}

func (s *Server) handleListCoupons(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paginationParams(r)

	result, err := store.ListCoupons(r.Context(), s.db, page, pageSize)
	if err != nil {
		s.logger.Error("list coupons", slogErr(err))
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSetCouponActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.SetCouponActive(r.Context(), s.db, id, req.Active); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := store.UpdateOrderStatus(r.Context(), s.db, id, req.Status)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleApproveReturn(w http.ResponseWriter, r *http.Request) {
	orderID, variantID, ok := returnParams(w, r)
	if !ok {
		return
	}

	order, err := store.ApproveReturn(r.Context(), s.db, orderID, variantID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.logger.Info("return approved",
		"order_number", order.OrderNumber,
		"variant_id", variantID,
	)
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleRejectReturn(w http.ResponseWriter, r *http.Request) {
	orderID, variantID, ok := returnParams(w, r)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := store.RejectReturn(r.Context(), s.db, orderID, variantID, req.Message)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func returnParams(w http.ResponseWriter, r *http.Request) (orderID, variantID int64, ok bool) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, 0, false
	}
	variantID, err = strconv.ParseInt(chi.URLParam(r, "variantID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid variant id")
		return 0, 0, false
	}
	return orderID, variantID, true
}
