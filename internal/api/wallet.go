package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/store"
)

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	wallet, err := store.GetWallet(r.Context(), s.db, userID)
	if err != nil {
		s.logger.Error("get wallet", slogErr(err))
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleTopUpWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return
	}

	var req struct {
		Amount        decimal.Decimal `json:"amount"`
		TransactionID string          `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Amount.IsPositive() || req.TransactionID == "" {
		writeError(w, http.StatusBadRequest, "positive amount and transaction_id are required")
		return
	}

	if err := store.TopUpWallet(r.Context(), s.db, userID, req.Amount, req.TransactionID); err != nil {
		writeStoreError(w, err)
		return
	}

	wallet, err := store.GetWallet(r.Context(), s.db, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wallet)
}
