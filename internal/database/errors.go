package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (23505). Checkout uses this to detect order-number collisions.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrVariantNotFound      = errors.New("variant not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderItemNotFound    = errors.New("order item not found")
	ErrCartEmpty            = errors.New("cart is empty")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrOptimisticLockFailed = errors.New("optimistic lock failed")
	ErrLockTimeout          = errors.New("lock timeout")

	// Coupon evaluator rejections (no mutation on any of these).
	ErrCouponNotFound        = errors.New("coupon not found")
	ErrCouponAlreadyUsed     = errors.New("coupon already used by this user")
	ErrCouponExpired         = errors.New("coupon expired")
	ErrCouponUsageLimit      = errors.New("coupon usage limit reached")
	ErrCouponMinPurchase     = errors.New("order subtotal below coupon minimum purchase")
	ErrCouponInvalidDiscount = errors.New("coupon discount is not positive")
	ErrCouponCodeTaken       = errors.New("coupon code already exists")

	// Post-purchase rejections.
	ErrCouponFloorViolated     = errors.New("cancellation would break coupon minimum purchase")
	ErrInsufficientBalance     = errors.New("insufficient wallet balance")
	ErrOrderNumberExhausted    = errors.New("order number generation exhausted retries")
	ErrDuplicateWalletTxn      = errors.New("wallet transaction already recorded")
	ErrReturnNotPending        = errors.New("no pending return for this item")
	ErrOrderAlreadyPaid        = errors.New("order already paid")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrInvalidSelection        = errors.New("invalid item selection")
	ErrInvalidPaymentMethod    = errors.New("unsupported payment method")
)
