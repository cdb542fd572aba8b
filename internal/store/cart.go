package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/database"
	"github.com/akhil-km/storefront/internal/models"
)

func getOrCreateCart(ctx context.Context, db *sql.DB, userID int64) (int64, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("ensure cart: %w", err)
	}

	var cartID int64
	err = db.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if err != nil {
		return 0, fmt.Errorf("get cart: %w", err)
	}

	return cartID, nil
}

func AddToCart(ctx context.Context, db *sql.DB, userID, productID, variantID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	variant, err := FindVariant(ctx, db, variantID)
	if err != nil {
		return err
	}
	if variant.ProductID != productID {
		return fmt.Errorf("variant %d does not belong to product %d", variantID, productID)
	}
	if variant.StockQuantity < quantity {
		return database.ErrInsufficientStock
	}

	cartID, err := getOrCreateCart(ctx, db, userID)
	if err != nil {
		return err
	}

	// add-time price snapshot; merged quantities keep the first snapshot
	_, err = db.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, product_id, variant_id, quantity, price_snapshot)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (cart_id, variant_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		cartID, productID, variantID, quantity, variant.Price)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}

	return nil
}

func UpdateCartItemQuantity(ctx context.Context, db *sql.DB, userID, variantID int64, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative")
	}

	cartID, err := getOrCreateCart(ctx, db, userID)
	if err != nil {
		return err
	}

	if quantity == 0 {
		return RemoveFromCart(ctx, db, userID, variantID)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE cart_id = $2 AND variant_id = $3`,
		quantity, cartID, variantID)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrVariantNotFound
	}

	return nil
}

func RemoveFromCart(ctx context.Context, db *sql.DB, userID, variantID int64) error {
	cartID, err := getOrCreateCart(ctx, db, userID)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND variant_id = $2`,
		cartID, variantID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	return nil
}

func GetCart(ctx context.Context, db *sql.DB, userID int64) (*models.Cart, error) {
	cartID, err := getOrCreateCart(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	cart := &models.Cart{ID: cartID, UserID: userID, Subtotal: decimal.Zero}

	var couponID sql.NullInt64
	var couponCode sql.NullString
	var discount decimal.NullDecimal
	err = db.QueryRowContext(ctx,
		`SELECT applied_coupon_id, applied_coupon_code, applied_discount FROM carts WHERE id = $1`,
		cartID).Scan(&couponID, &couponCode, &discount)
	if err != nil {
		return nil, fmt.Errorf("get cart coupon: %w", err)
	}
	if couponID.Valid {
		cart.AppliedCoupon = &models.AppliedCoupon{
			CouponID: couponID.Int64,
			Code:     couponCode.String,
			Discount: discount.Decimal,
		}
	}

	rows, err := db.QueryContext(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.variant_id, ci.quantity,
		       ci.price_snapshot, p.name, v.name
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN variants v ON v.id = ci.variant_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.CartItem
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.VariantID,
			&item.Quantity,
			&item.PriceSnapshot,
			&item.ProductName,
			&item.VariantName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
		cart.Subtotal = cart.Subtotal.Add(item.PriceSnapshot.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cart, nil
}

// CartCorrection describes a cart line clamped to available stock.
type CartCorrection struct {
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
	NewQuantity int    `json:"new_quantity"`
	Message     string `json:"message"`
}

// ReconcileCart clamps the first over-stocked cart line to the live
// variant stock and persists the cart. Returns nil when every line is
// within stock. Callers retry checkout after surfacing the correction;
// repeated invocations walk any remaining over-stocked lines one at a
// time.
func ReconcileCart(ctx context.Context, db *sql.DB, userID int64) (*CartCorrection, error) {
	cartID, err := getOrCreateCart(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	var correction *CartCorrection
	err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT ci.id, ci.quantity, v.stock_quantity, p.name, v.name
			FROM cart_items ci
			JOIN variants v ON v.id = ci.variant_id
			JOIN products p ON p.id = ci.product_id
			WHERE ci.cart_id = $1
			ORDER BY ci.id`, cartID)
		if err != nil {
			return fmt.Errorf("load cart lines: %w", err)
		}

		type line struct {
			itemID      int64
			quantity    int
			stock       int
			productName string
			variantName string
		}
		// The rows must be drained and closed before any further
		// statement runs on this transaction's connection.
		var over *line
		for rows.Next() {
			var l line
			if err := rows.Scan(&l.itemID, &l.quantity, &l.stock, &l.productName, &l.variantName); err != nil {
				rows.Close()
				return fmt.Errorf("scan cart line: %w", err)
			}
			if over == nil && l.quantity > l.stock {
				over = &l
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("rows error: %w", err)
		}
		rows.Close()
		if over == nil {
			return nil
		}

		if over.stock <= 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM cart_items WHERE id = $1`, over.itemID); err != nil {
				return fmt.Errorf("drop cart line: %w", err)
			}
		} else {
			if _, err := tx.ExecContext(ctx,
				`UPDATE cart_items SET quantity = $1 WHERE id = $2`,
				over.stock, over.itemID); err != nil {
				return fmt.Errorf("clamp cart line: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
			return fmt.Errorf("touch cart: %w", err)
		}

		correction = &CartCorrection{
			ProductName: over.productName,
			VariantName: over.variantName,
			NewQuantity: over.stock,
		}
		if over.stock <= 0 {
			correction.NewQuantity = 0
			correction.Message = fmt.Sprintf("%s (%s) is out of stock and was removed from your cart",
				over.productName, over.variantName)
		} else {
			correction.Message = fmt.Sprintf("only %d of %s (%s) left in stock; quantity updated to %d",
				over.stock, over.productName, over.variantName, over.stock)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return correction, nil
}

// ApplyCouponToCart evaluates the code against the cart subtotal and, on
// success, snapshots the applied coupon on the cart. The redemption
// itself is committed at checkout.
func ApplyCouponToCart(ctx context.Context, db *sql.DB, userID int64, code string) (*models.AppliedCoupon, error) {
	cart, err := GetCart(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, database.ErrCartEmpty
	}

	applied, err := EvaluateCoupon(ctx, db, code, userID, cart.Subtotal)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx,
		`UPDATE carts
		 SET applied_coupon_id = $1, applied_coupon_code = $2, applied_discount = $3,
		     updated_at = NOW()
		 WHERE id = $4`,
		applied.CouponID, applied.Code, applied.Discount, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("apply coupon to cart: %w", err)
	}

	return applied, nil
}

func RemoveCouponFromCart(ctx context.Context, db *sql.DB, userID int64) error {
	cartID, err := getOrCreateCart(ctx, db, userID)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`UPDATE carts
		 SET applied_coupon_id = NULL, applied_coupon_code = NULL, applied_discount = NULL,
		     updated_at = NOW()
		 WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("remove coupon from cart: %w", err)
	}

	return nil
}

func clearCart(ctx context.Context, tx *sql.Tx, cartID int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE carts
		 SET applied_coupon_id = NULL, applied_coupon_code = NULL, applied_discount = NULL,
		     updated_at = NOW()
		 WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("reset cart coupon: %w", err)
	}
	return nil
}
