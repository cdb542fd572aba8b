package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akhil-km/storefront/internal/database"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps the store's sentinel errors onto HTTP statuses.
// Anything unclassified is a 500 with a generic body, so internal
// details never leak to clients.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case isConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	case isRejected(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, database.ErrInvalidSelection),
		errors.Is(err, database.ErrInvalidPaymentMethod):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "resource busy, try again")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isNotFound(err error) bool {
	for _, target := range []error{
		database.ErrUserNotFound,
		database.ErrProductNotFound,
		database.ErrVariantNotFound,
		database.ErrOrderNotFound,
		database.ErrOrderItemNotFound,
		database.ErrCouponNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isConflict(err error) bool {
	for _, target := range []error{
		database.ErrInsufficientStock,
		database.ErrCouponAlreadyUsed,
		database.ErrCouponUsageLimit,
		database.ErrCouponCodeTaken,
		database.ErrOrderAlreadyPaid,
		database.ErrDuplicateWalletTxn,
		database.ErrOptimisticLockFailed,
		database.ErrOrderNumberExhausted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isRejected(err error) bool {
	for _, target := range []error{
		database.ErrCartEmpty,
		database.ErrCouponExpired,
		database.ErrCouponMinPurchase,
		database.ErrCouponInvalidDiscount,
		database.ErrCouponFloorViolated,
		database.ErrInsufficientBalance,
		database.ErrReturnNotPending,
		database.ErrInvalidStatusTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
