package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/models"
)

// RefundAmount computes the money returned for qty units of an item.
// The order-level discount is clawed back proportionally to the ordered
// quantity: each unit across the order carries discount/totalOrderedQty
// of it. The result is rounded to 2 decimal places and never negative.
func RefundAmount(discount decimal.Decimal, totalOrderedQty int, price decimal.Decimal, qty int) decimal.Decimal {
	base := price.Mul(decimal.NewFromInt(int64(qty)))

	if discount.IsPositive() && totalOrderedQty > 0 {
		perUnit := discount.Div(decimal.NewFromInt(int64(totalOrderedQty)))
		base = base.Sub(perUnit.Mul(decimal.NewFromInt(int64(qty))))
	}

	base = base.Round(2)
	if base.IsNegative() {
		return decimal.Zero
	}
	return base
}

// refundItem records the money consequence of removing qty units of an
// item from the order. For paid orders it credits the user's wallet and
// grows refund_amount; for unpaid orders only cancelled_amount grows.
// The reason travels with the item row via its message field; the
// caller persists the mutated order at the end of the transaction, so a
// failed wallet credit rolls the counters back too.
func refundItem(ctx context.Context, tx *sql.Tx, order *models.Order, item *models.OrderItem, qty int, reason string) error {
	if qty <= 0 {
		return nil
	}
	if reason != "" {
		item.Message = &reason
	}

	amount := RefundAmount(order.Discount, totalOrderedQty(order), item.Price, qty)
	if !amount.IsPositive() {
		return nil
	}
	order.Total = order.Total.Sub(amount)

	if order.PaymentStatus != models.PaymentPaid {
		order.CancelledAmount = order.CancelledAmount.Add(amount)
		return nil
	}

	order.RefundAmount = order.RefundAmount.Add(amount)

	txnID := fmt.Sprintf("%s-%d", order.OrderNumber, item.VariantID)
	if err := creditWallet(ctx, tx, order.UserID, amount, txnID, walletMethodRefund); err != nil {
		return fmt.Errorf("refund to wallet: %w", err)
	}

	return nil
}

// totalOrderedQty is the quantity the discount was spread over at
// checkout time, so prior cancellations do not change later refunds.
func totalOrderedQty(order *models.Order) int {
	total := 0
	for i := range order.Items {
		total += order.Items[i].Quantity
	}
	return total
}
