package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/store"
)

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU         string `json:"sku"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SKU == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "sku and name are required")
		return
	}

	product, err := store.CreateProduct(r.Context(), s.db, req.SKU, req.Name, req.Description)
	if err != nil {
		s.logger.Error("create product", slogErr(err))
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req struct {
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
		Stock int             `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || !req.Price.IsPositive() || req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "name, positive price and non-negative stock are required")
		return
	}

	variant, err := store.CreateVariant(r.Context(), s.db, productID, req.Name, req.Price, req.Stock)
	if err != nil {
		s.logger.Error("create variant", slogErr(err))
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, variant)
}

func (s *Server) handleRestock(w http.ResponseWriter, r *http.Request) {
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
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	if err := store.IncrementStock(r.Context(), s.db, variantID, req.Quantity); err != nil {
		s.logger.Error("restock variant", slogErr(err))
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "restocked"})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := store.GetProduct(r.Context(), s.db, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paginationParams(r)

	result, err := store.ListProducts(r.Context(), s.db, page, pageSize)
	if err != nil {
		s.logger.Error("list products", slogErr(err))
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
