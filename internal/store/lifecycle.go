package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/database"
	"github.com/akhil-km/storefront/internal/models"
)

// CancelSelection names one order line and how many units of it the
// user wants to cancel or return.
type CancelSelection struct {
	VariantID int64  `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

// RequestCancelOrReturn handles the single customer-facing exit
// endpoint. The order's status picks the mode: delivered (or partially
// returned) orders get a return request that waits for admin approval,
// anything earlier is cancelled immediately with stock restored and
// money refunded.
func RequestCancelOrReturn(ctx context.Context, db *sql.DB, userID, orderID int64, selections []CancelSelection) (*models.Order, error) {
	if len(selections) == 0 {
		return nil, fmt.Errorf("%w: no items selected", database.ErrInvalidSelection)
	}
	for _, sel := range selections {
		if sel.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive for variant %d",
				database.ErrInvalidSelection, sel.VariantID)
		}
		if strings.TrimSpace(sel.Reason) == "" {
			return nil, fmt.Errorf("%w: a reason is required for variant %d",
				database.ErrInvalidSelection, sel.VariantID)
		}
	}

	var order *models.Order
	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var err error
		order, err = lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return database.ErrOrderNotFound
		}

		returning := order.Status == models.OrderDelivered ||
			order.Status == models.OrderPartiallyReturned

		cancelQty := make(map[int64]int, len(selections))
		targets := make([]*models.OrderItem, 0, len(selections))
		for _, sel := range selections {
			item := findOrderItem(order, sel.VariantID)
			if item == nil {
				return fmt.Errorf("%w: variant %d", database.ErrOrderItemNotFound, sel.VariantID)
			}
			if _, dup := cancelQty[sel.VariantID]; dup {
				return fmt.Errorf("%w: variant %d selected twice", database.ErrInvalidSelection, sel.VariantID)
			}

			if returning {
				if item.Status != models.ItemDelivered {
					return fmt.Errorf("%w: %s is not delivered", database.ErrInvalidStatusTransition, item.VariantName)
				}
				if item.ReturnStatus != models.ReturnNone {
					return fmt.Errorf("%w: %s", database.ErrReturnNotPending, item.VariantName)
				}
			} else {
				if !models.CanCancelFrom(item.Status) {
					return fmt.Errorf("%w: %s is %s", database.ErrInvalidStatusTransition, item.VariantName, item.Status)
				}
			}
			if sel.Quantity > item.Remaining() {
				return fmt.Errorf("%w: cannot remove %d of %s, only %d active",
					database.ErrInvalidSelection, sel.Quantity, item.VariantName, item.Remaining())
			}

			cancelQty[sel.VariantID] = sel.Quantity
			targets = append(targets, item)
		}

		if order.CouponID != nil {
			coupon, err := getCouponByID(ctx, tx, *order.CouponID)
			if err != nil {
				return err
			}
			if allowed, msg := checkCouponFloor(coupon, order.Items, cancelQty); !allowed {
				return fmt.Errorf("%w: %s", database.ErrCouponFloorViolated, msg)
			}
		}

		for i, sel := range selections {
			item := targets[i]
			if returning {
				err = requestReturn(ctx, tx, item, sel.Quantity, sel.Reason)
			} else {
				err = cancelItem(ctx, tx, order, item, sel.Quantity, sel.Reason)
			}
			if err != nil {
				return err
			}
		}

		order.Status = models.DeriveOrderStatus(order.Items)
		return persistOrderState(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func findOrderItem(order *models.Order, variantID int64) *models.OrderItem {
	for i := range order.Items {
		if order.Items[i].VariantID == variantID {
			return &order.Items[i]
		}
	}
	return nil
}

func cancelItem(ctx context.Context, tx *sql.Tx, order *models.Order, item *models.OrderItem, qty int, reason string) error {
	item.CancelledQty += qty
	if item.Remaining() == 0 {
		item.Status = models.ItemCancelled
	}

	if err := incrementStock(ctx, tx, item.VariantID, qty); err != nil {
		return err
	}
	if err := refundItem(ctx, tx, order, item, qty, reason); err != nil {
		return err
	}

	return persistItemState(ctx, tx, item)
}

func requestReturn(ctx context.Context, tx *sql.Tx, item *models.OrderItem, qty int, reason string) error {
	item.ReturnedQty += qty
	item.ReturnStatus = models.ReturnPending
	if reason != "" {
		item.Message = &reason
	}
	return persistItemState(ctx, tx, item)
}

func persistItemState(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE order_items
		SET status = $1, cancelled_qty = $2, returned_qty = $3, return_status = $4, message = $5
		WHERE id = $6`,
		item.Status, item.CancelledQty, item.ReturnedQty, item.ReturnStatus, item.Message, item.ID)
	if err != nil {
		return fmt.Errorf("persist item state: %w", err)
	}
	return nil
}

// checkCouponFloor decides whether removing cancelQty units (keyed by
// variant id) would drop the order's remaining merchandise value below
// the coupon's minimum purchase. Removing everything is always allowed,
// since the redemption stands and no discounted goods remain.
func checkCouponFloor(coupon *models.Coupon, items []models.OrderItem, cancelQty map[int64]int) (bool, string) {
	if coupon == nil || !coupon.Active || !coupon.MinimumPurchase.IsPositive() {
		return true, ""
	}

	remaining := decimal.Zero
	for i := range items {
		it := &items[i]
		left := it.Remaining() - cancelQty[it.VariantID]
		if left <= 0 {
			continue
		}
		remaining = remaining.Add(it.Price.Mul(decimal.NewFromInt(int64(left))))
	}

	if remaining.IsZero() {
		return true, ""
	}
	if remaining.LessThan(coupon.MinimumPurchase) {
		return false, fmt.Sprintf(
			"remaining order value %s falls below the %s minimum purchase of coupon %s; cancel the whole order instead",
			remaining.StringFixed(2), coupon.MinimumPurchase.StringFixed(2), coupon.Code)
	}

	return true, ""
}

func getCouponByID(ctx context.Context, q querier, id int64) (*models.Coupon, error) {
	coupon := &models.Coupon{}

	err := q.QueryRowContext(ctx, `
		SELECT id, code, discount_type, discount_value, minimum_purchase, maximum_discount,
		       expiry_date, usage_limit, used_count, active, created_at, updated_at
		FROM coupons
		WHERE id = $1`, id).Scan(
		&coupon.ID,
		&coupon.Code,
		&coupon.DiscountType,
		&coupon.DiscountValue,
		&coupon.MinimumPurchase,
		&coupon.MaximumDiscount,
		&coupon.ExpiryDate,
		&coupon.UsageLimit,
		&coupon.UsedCount,
		&coupon.Active,
		&coupon.CreatedAt,
		&coupon.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	return coupon, nil
}

// ApproveReturn completes a pending return: the units go back to stock
// and the refund is issued, then the order status is re-derived.
func ApproveReturn(ctx context.Context, db *sql.DB, orderID, variantID int64) (*models.Order, error) {
	var order *models.Order
	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var err error
		order, err = lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		item := findOrderItem(order, variantID)
		if item == nil {
			return database.ErrOrderItemNotFound
		}
		if item.ReturnStatus != models.ReturnPending {
			return database.ErrReturnNotPending
		}

		item.ReturnStatus = models.ReturnApproved
		item.Status = models.ItemReturned

		if err := incrementStock(ctx, tx, item.VariantID, item.ReturnedQty); err != nil {
			return err
		}
		if err := refundItem(ctx, tx, order, item, item.ReturnedQty, ""); err != nil {
			return err
		}
		if err := persistItemState(ctx, tx, item); err != nil {
			return err
		}

		order.Status = models.DeriveOrderStatus(order.Items)
		return persistOrderState(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// RejectReturn turns down a pending return. A non-empty message for the
// customer is required; the item stays delivered and keeps no pending
// state, so the order status reverts with it.
func RejectReturn(ctx context.Context, db *sql.DB, orderID, variantID int64, message string) (*models.Order, error) {
	if message == "" {
		return nil, fmt.Errorf("%w: rejection message is required", database.ErrInvalidSelection)
	}

	var order *models.Order
	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var err error
		order, err = lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		item := findOrderItem(order, variantID)
		if item == nil {
			return database.ErrOrderItemNotFound
		}
		if item.ReturnStatus != models.ReturnPending {
			return database.ErrReturnNotPending
		}

		item.ReturnStatus = models.ReturnRejected
		item.Status = models.ItemDelivered
		item.Message = &message

		if err := persistItemState(ctx, tx, item); err != nil {
			return err
		}

		order.Status = models.DeriveOrderStatus(order.Items)
		return persistOrderState(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}
