package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/config"
	"github.com/akhil-km/storefront/internal/database"
	"github.com/akhil-km/storefront/internal/models"
)

// orderNumberAttempts bounds regeneration when two checkouts race on the
// same generated identifier.
const orderNumberAttempts = 5

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%d-%04d", time.Now().UnixNano(), rand.Intn(10000))
}

type CheckoutRequest struct {
	UserID        int64
	PaymentMethod models.PaymentMethod
}

// Checkout converts the user's cart into an order inside one
// serializable transaction: variant rows are locked and decremented, the
// applied coupon is re-evaluated and redeemed, wallet payments are
// debited, and the cart is cleared. A crash can therefore never leave
// stock decremented without an order, or an order without its redemption
// recorded.
//
// On an order-number collision the whole transaction is retried with a
// fresh number, at most orderNumberAttempts times.
func Checkout(ctx context.Context, db *sql.DB, cfg config.CheckoutConfig, req CheckoutRequest) (*models.Order, error) {
	switch req.PaymentMethod {
	case models.PaymentCOD, models.PaymentWallet, models.PaymentCard:
	default:
		return nil, fmt.Errorf("%w: %q", database.ErrInvalidPaymentMethod, req.PaymentMethod)
	}

	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order, err := checkoutOnce(ctx, db, cfg, req, generateOrderNumber())
		if err == nil {
			return order, nil
		}
		if database.IsUniqueViolation(err) {
			lastErr = err
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: %v", database.ErrOrderNumberExhausted, lastErr)
}

func checkoutOnce(ctx context.Context, db *sql.DB, cfg config.CheckoutConfig, req CheckoutRequest, orderNumber string) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, req.UserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return database.ErrUserNotFound
		}

		var cartID int64
		var couponCode sql.NullString
		err = tx.QueryRowContext(ctx,
			`SELECT id, applied_coupon_code FROM carts WHERE user_id = $1 FOR UPDATE`,
			req.UserID).Scan(&cartID, &couponCode)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrCartEmpty
			}
			return fmt.Errorf("lock cart: %w", err)
		}

		type lockedLine struct {
			snap     *variantSnapshot
			quantity int
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT variant_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY variant_id`,
			cartID)
		if err != nil {
			return fmt.Errorf("load cart items: %w", err)
		}
		var pending []struct {
			variantID int64
			quantity  int
		}
		for rows.Next() {
			var p struct {
				variantID int64
				quantity  int
			}
			if err := rows.Scan(&p.variantID, &p.quantity); err != nil {
				rows.Close()
				return fmt.Errorf("scan cart item: %w", err)
			}
			pending = append(pending, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		if len(pending) == 0 {
			return database.ErrCartEmpty
		}

		subtotal := decimal.Zero
		lines := make([]lockedLine, 0, len(pending))
		for _, p := range pending {
			snap, err := lockVariant(ctx, tx, p.variantID)
			if err != nil {
				return err
			}
			if snap.Stock < p.quantity {
				return fmt.Errorf("%w: %s (%s) has %d left",
					database.ErrInsufficientStock, snap.ProductName, snap.VariantName, snap.Stock)
			}
			lines = append(lines, lockedLine{snap: snap, quantity: p.quantity})
			subtotal = subtotal.Add(snap.Price.Mul(decimal.NewFromInt(int64(p.quantity))))
		}

		discount := decimal.Zero
		var applied *models.AppliedCoupon
		if couponCode.Valid && couponCode.String != "" {
			coupon, err := getCouponByCode(ctx, tx, couponCode.String)
			if err != nil {
				return err
			}
			applied, err = evaluateCoupon(ctx, tx, coupon, req.UserID, subtotal)
			if err != nil {
				return err
			}
			discount = applied.Discount
		}

		shipping := cfg.ShippingFlatRate
		if subtotal.Sub(discount).GreaterThanOrEqual(cfg.FreeShippingThreshold) {
			shipping = decimal.Zero
		}
		total := subtotal.Sub(discount).Add(shipping)

		paymentStatus := models.PaymentPending

		order = &models.Order{}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO orders (order_number, user_id, payment_method, payment_status, status,
			                    subtotal, discount, shipping, total, coupon_id, coupon_code,
			                    created_at, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW(), 1)
			RETURNING id, order_number, user_id, payment_method, payment_status, status,
			          subtotal, discount, shipping, total, cancelled_amount, refund_amount,
			          created_at, updated_at, version`,
			orderNumber, req.UserID, req.PaymentMethod, paymentStatus, models.OrderPlaced,
			subtotal, discount, shipping, total,
			appliedCouponID(applied), appliedCouponCode(applied),
		).Scan(
			&order.ID,
			&order.OrderNumber,
			&order.UserID,
			&order.PaymentMethod,
			&order.PaymentStatus,
			&order.Status,
			&order.Subtotal,
			&order.Discount,
			&order.Shipping,
			&order.Total,
			&order.CancelledAmount,
			&order.RefundAmount,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if applied != nil {
			order.CouponID = &applied.CouponID
			order.CouponCode = &applied.Code
		}

		if applied != nil {
			if err := redeemCoupon(ctx, tx, applied.CouponID, req.UserID, order.ID); err != nil {
				return err
			}
		}

		for _, line := range lines {
			var item models.OrderItem
			err = tx.QueryRowContext(ctx, `
				INSERT INTO order_items (order_id, variant_id, product_name, variant_name,
				                         price, quantity, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
				RETURNING id, order_id, variant_id, product_name, variant_name, price,
				          quantity, status, cancelled_qty, returned_qty, return_status, created_at`,
				order.ID, line.snap.VariantID, line.snap.ProductName, line.snap.VariantName,
				line.snap.Price, line.quantity, models.ItemPlaced,
			).Scan(
				&item.ID,
				&item.OrderID,
				&item.VariantID,
				&item.ProductName,
				&item.VariantName,
				&item.Price,
				&item.Quantity,
				&item.Status,
				&item.CancelledQty,
				&item.ReturnedQty,
				&item.ReturnStatus,
				&item.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			order.Items = append(order.Items, item)

			if err := decrementStock(ctx, tx, line.snap.VariantID, line.quantity); err != nil {
				return err
			}
		}

		if req.PaymentMethod == models.PaymentWallet {
			if err := debitWallet(ctx, tx, req.UserID, total, order.OrderNumber, walletMethodOrder); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE orders SET payment_status = $1 WHERE id = $2`,
				models.PaymentPaid, order.ID); err != nil {
				return fmt.Errorf("mark wallet order paid: %w", err)
			}
			order.PaymentStatus = models.PaymentPaid
		}

		return clearCart(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func appliedCouponID(a *models.AppliedCoupon) any {
	if a == nil {
		return nil
	}
	return a.CouponID
}

func appliedCouponCode(a *models.AppliedCoupon) any {
	if a == nil {
		return nil
	}
	return a.Code
}

// MarkOrderPaid flips a pending order to paid after an external payment
// confirmation. It succeeds at most once per order.
func MarkOrderPaid(ctx context.Context, db *sql.DB, orderNumber, paymentTxnID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET payment_status = $1, payment_txn_id = $2, updated_at = NOW(), version = version + 1
		 WHERE order_number = $3 AND payment_status = $4`,
		models.PaymentPaid, paymentTxnID, orderNumber, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		if err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)`,
			orderNumber).Scan(&exists); err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return database.ErrOrderNotFound
		}
		return database.ErrOrderAlreadyPaid
	}

	return nil
}

var orderForwardRank = map[models.OrderStatus]int{
	models.OrderPlaced:    0,
	models.OrderConfirmed: 1,
	models.OrderShipped:   2,
	models.OrderDelivered: 3,
}

var itemStatusForOrder = map[models.OrderStatus]models.ItemStatus{
	models.OrderConfirmed: models.ItemConfirmed,
	models.OrderShipped:   models.ItemShipped,
	models.OrderDelivered: models.ItemDelivered,
}

// UpdateOrderStatus advances the admin-driven forward progression.
// Items that have not yet reached the target status (and are not
// cancelled or returned) move with the order; the order-level status is
// then re-derived from the items.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID int64, next models.OrderStatus) (*models.Order, error) {
	nextRank, ok := orderForwardRank[next]
	if !ok || next == models.OrderPlaced {
		return nil, fmt.Errorf("%w: cannot set status %q", database.ErrInvalidStatusTransition, next)
	}
	nextItemStatus := itemStatusForOrder[next]

	var order *models.Order
	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var err error
		order, err = lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		for i := range order.Items {
			it := &order.Items[i]
			if it.Status == models.ItemCancelled || it.Status == models.ItemReturned {
				continue
			}
			if forwardItemRank(it.Status) >= nextRank {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE order_items SET status = $1 WHERE id = $2`,
				nextItemStatus, it.ID); err != nil {
				return fmt.Errorf("advance item %d: %w", it.ID, err)
			}
			it.Status = nextItemStatus
		}

		order.Status = models.DeriveOrderStatus(order.Items)
		return persistOrderState(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func forwardItemRank(s models.ItemStatus) int {
	switch s {
	case models.ItemPlaced:
		return 0
	case models.ItemConfirmed:
		return 1
	case models.ItemShipped:
		return 2
	default:
		return 3
	}
}

// lockOrder loads the order and its items with the order row locked.
func lockOrder(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error) {
	order := &models.Order{}

	err := tx.QueryRowContext(ctx, `
		SELECT id, order_number, user_id, payment_method, payment_status, status,
		       subtotal, discount, shipping, total, coupon_id, coupon_code,
		       cancelled_amount, refund_amount, created_at, updated_at, version
		FROM orders
		WHERE id = $1
		FOR UPDATE`, orderID).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.Status,
		&order.Subtotal,
		&order.Discount,
		&order.Shipping,
		&order.Total,
		&order.CouponID,
		&order.CouponCode,
		&order.CancelledAmount,
		&order.RefundAmount,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	items, err := loadOrderItems(ctx, tx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return order, nil
}

// persistOrderState writes back the mutable order fields after a
// lifecycle mutation.
func persistOrderState(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, total = $2, cancelled_amount = $3, refund_amount = $4,
		    updated_at = NOW(), version = version + 1
		WHERE id = $5`,
		order.Status, order.Total, order.CancelledAmount, order.RefundAmount, order.ID)
	if err != nil {
		return fmt.Errorf("persist order state: %w", err)
	}
	return nil
}

type itemQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadOrderItems(ctx context.Context, q itemQuerier, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, variant_id, product_name, variant_name, price, quantity,
		       status, cancelled_qty, returned_qty, return_status, message, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]models.OrderItem)
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.VariantID,
			&item.ProductName,
			&item.VariantName,
			&item.Price,
			&item.Quantity,
			&item.Status,
			&item.CancelledQty,
			&item.ReturnedQty,
			&item.ReturnStatus,
			&item.Message,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	return getOrderWhere(ctx, db, `id = $1`, id)
}

func GetOrderByNumber(ctx context.Context, db *sql.DB, orderNumber string) (*models.Order, error) {
	return getOrderWhere(ctx, db, `order_number = $1`, orderNumber)
}

func getOrderWhere(ctx context.Context, db *sql.DB, where string, arg any) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, order_number, user_id, payment_method, payment_status, status,
		       subtotal, discount, shipping, total, coupon_id, coupon_code,
		       cancelled_amount, refund_amount, created_at, updated_at, version
		FROM orders
		WHERE ` + where

	err := db.QueryRowContext(ctx, query, arg).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.Status,
		&order.Subtotal,
		&order.Discount,
		&order.Shipping,
		&order.Total,
		&order.CouponID,
		&order.CouponCode,
		&order.CancelledAmount,
		&order.RefundAmount,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := loadOrderItems(ctx, db, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return order, nil
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, order_number, user_id, payment_method, payment_status, status,
		       subtotal, discount, shipping, total, cancelled_amount, refund_amount,
		       created_at, updated_at, version
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.OrderNumber,
			&order.UserID,
			&order.PaymentMethod,
			&order.PaymentStatus,
			&order.Status,
			&order.Subtotal,
			&order.Discount,
			&order.Shipping,
			&order.Total,
			&order.CancelledAmount,
			&order.RefundAmount,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if len(orders) > 0 {
		orderIDs := make([]int64, len(orders))
		for i := range orders {
			orderIDs[i] = orders[i].ID
		}
		items, err := loadOrderItems(ctx, db, orderIDs)
		if err != nil {
			return nil, err
		}
		for i := range orders {
			orders[i].Items = items[orders[i].ID]
		}
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
