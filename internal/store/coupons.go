package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/database"
	"github.com/akhil-km/storefront/internal/models"
)

var hundred = decimal.NewFromInt(100)

// couponDiscount computes the discount a coupon yields on a subtotal.
// Percentage discounts are floored and capped by maximum_discount when
// that cap is set; flat discounts ignore the subtotal entirely.
func couponDiscount(c *models.Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var discount decimal.Decimal

	switch c.DiscountType {
	case models.DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(hundred).Floor()
		if c.MaximumDiscount.IsPositive() && discount.GreaterThan(c.MaximumDiscount) {
			discount = c.MaximumDiscount
		}
	case models.DiscountFlat:
		discount = c.DiscountValue
	default:
		return decimal.Zero, fmt.Errorf("unknown discount type %q", c.DiscountType)
	}

	if !discount.IsPositive() {
		return decimal.Zero, database.ErrCouponInvalidDiscount
	}

	// The discount can never exceed the goods it applies to; a flat
	// coupon larger than the subtotal makes the order free, not negative.
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	return discount, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getCouponByCode(ctx context.Context, q querier, code string) (*models.Coupon, error) {
	c := &models.Coupon{}

	query := `
		SELECT id, code, discount_type, discount_value, minimum_purchase,
		       maximum_discount, expiry_date, usage_limit, used_count, active,
		       created_at, updated_at
		FROM coupons
		WHERE code = $1`

	err := q.QueryRowContext(ctx, query, normalizeCouponCode(code)).Scan(
		&c.ID,
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinimumPurchase,
		&c.MaximumDiscount,
		&c.ExpiryDate,
		&c.UsageLimit,
		&c.UsedCount,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	return c, nil
}

func normalizeCouponCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// EvaluateCoupon validates a coupon code for a user against a cart
// subtotal and computes the discount. Evaluation never mutates anything:
// it is safe to call repeatedly, and the redemption is committed only
// inside the checkout transaction.
func EvaluateCoupon(ctx context.Context, db *sql.DB, code string, userID int64, subtotal decimal.Decimal) (*models.AppliedCoupon, error) {
	coupon, err := getCouponByCode(ctx, db, code)
	if err != nil {
		return nil, err
	}
	return evaluateCoupon(ctx, db, coupon, userID, subtotal)
}

func evaluateCoupon(ctx context.Context, q querier, coupon *models.Coupon, userID int64, subtotal decimal.Decimal) (*models.AppliedCoupon, error) {
	if !coupon.Active {
		return nil, database.ErrCouponNotFound
	}

	var redeemed bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2)`,
		coupon.ID, userID).Scan(&redeemed)
	if err != nil {
		return nil, fmt.Errorf("check redemption: %w", err)
	}
	if redeemed {
		return nil, database.ErrCouponAlreadyUsed
	}

	if coupon.ExpiryDate.Before(time.Now()) {
		return nil, database.ErrCouponExpired
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return nil, database.ErrCouponUsageLimit
	}
	if coupon.MinimumPurchase.IsPositive() && subtotal.LessThan(coupon.MinimumPurchase) {
		return nil, fmt.Errorf("%w: minimum purchase is %s", database.ErrCouponMinPurchase, coupon.MinimumPurchase)
	}

	discount, err := couponDiscount(coupon, subtotal)
	if err != nil {
		return nil, err
	}

	return &models.AppliedCoupon{
		CouponID: coupon.ID,
		Code:     coupon.Code,
		Discount: discount,
	}, nil
}

// redeemCoupon records a (coupon, user) redemption and bumps the usage
// counter. Called exactly once per order, inside the checkout
// transaction. Redemption is never reversed, even when the order is
// later cancelled.
func redeemCoupon(ctx context.Context, tx *sql.Tx, couponID, userID, orderID int64) error {
	var usageLimit, usedCount int
	err := tx.QueryRowContext(ctx,
		`SELECT usage_limit, used_count FROM coupons WHERE id = $1 FOR UPDATE`,
		couponID).Scan(&usageLimit, &usedCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return database.ErrCouponNotFound
		}
		return fmt.Errorf("lock coupon: %w", err)
	}

	if usageLimit > 0 && usedCount >= usageLimit {
		return database.ErrCouponUsageLimit
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO coupon_redemptions (coupon_id, user_id, order_id, redeemed_at)
		 VALUES ($1, $2, $3, NOW())`,
		couponID, userID, orderID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return database.ErrCouponAlreadyUsed
		}
		return fmt.Errorf("record redemption: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE coupons SET used_count = used_count + 1, updated_at = NOW() WHERE id = $1`,
		couponID)
	if err != nil {
		return fmt.Errorf("increment used_count: %w", err)
	}

	return nil
}

type CreateCouponRequest struct {
	Code            string
	DiscountType    models.DiscountType
	DiscountValue   decimal.Decimal
	MinimumPurchase decimal.Decimal
	MaximumDiscount decimal.Decimal
	ExpiryDate      time.Time
	UsageLimit      int
}

func CreateCoupon(ctx context.Context, db *sql.DB, req CreateCouponRequest) (*models.Coupon, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("coupon code is required")
	}
	if req.DiscountType != models.DiscountFlat && req.DiscountType != models.DiscountPercentage {
		return nil, fmt.Errorf("discount type must be flat or percentage")
	}
	if !req.DiscountValue.IsPositive() {
		return nil, fmt.Errorf("discount value must be positive")
	}

	c := &models.Coupon{}
	query := `
		INSERT INTO coupons (code, discount_type, discount_value, minimum_purchase,
		                     maximum_discount, expiry_date, usage_limit, used_count,
		                     active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, TRUE, NOW(), NOW())
		RETURNING id, code, discount_type, discount_value, minimum_purchase,
		          maximum_discount, expiry_date, usage_limit, used_count, active,
		          created_at, updated_at`

	err := db.QueryRowContext(ctx, query,
		normalizeCouponCode(req.Code),
		req.DiscountType,
		req.DiscountValue,
		req.MinimumPurchase,
		req.MaximumDiscount,
		req.ExpiryDate,
		req.UsageLimit,
	).Scan(
		&c.ID,
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinimumPurchase,
		&c.MaximumDiscount,
		&c.ExpiryDate,
		&c.UsageLimit,
		&c.UsedCount,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrCouponCodeTaken
		}
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	return c, nil
}

// UpdateCoupon rewrites an existing coupon's terms. Usage state
// (used_count, redemptions) and the active flag are untouched; orders
// already placed keep their discount snapshot.
func UpdateCoupon(ctx context.Context, db *sql.DB, couponID int64, req CreateCouponRequest) (*models.Coupon, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("coupon code is required")
	}
	if req.DiscountType != models.DiscountFlat && req.DiscountType != models.DiscountPercentage {
		return nil, fmt.Errorf("discount type must be flat or percentage")
	}
	if !req.DiscountValue.IsPositive() {
		return nil, fmt.Errorf("discount value must be positive")
	}

	c := &models.Coupon{}
	query := `
		UPDATE coupons
		SET code = $1, discount_type = $2, discount_value = $3, minimum_purchase = $4,
		    maximum_discount = $5, expiry_date = $6, usage_limit = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING id, code, discount_type, discount_value, minimum_purchase,
		          maximum_discount, expiry_date, usage_limit, used_count, active,
		          created_at, updated_at`

	err := db.QueryRowContext(ctx, query,
		normalizeCouponCode(req.Code),
		req.DiscountType,
		req.DiscountValue,
		req.MinimumPurchase,
		req.MaximumDiscount,
		req.ExpiryDate,
		req.UsageLimit,
		couponID,
	).Scan(
		&c.ID,
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinimumPurchase,
		&c.MaximumDiscount,
		&c.ExpiryDate,
		&c.UsageLimit,
		&c.UsedCount,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCouponNotFound
		}
		if database.IsUniqueViolation(err) {
			return nil, database.ErrCouponCodeTaken
		}
		return nil, fmt.Errorf("update coupon: %w", err)
	}

	return c, nil
}

func SetCouponActive(ctx context.Context, db *sql.DB, couponID int64, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE coupons SET active = $1, updated_at = NOW() WHERE id = $2`,
		active, couponID)
	if err != nil {
		return fmt.Errorf("set coupon active: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCouponNotFound
	}

	return nil
}

func ListCoupons(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coupons`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count coupons: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, code, discount_type, discount_value, minimum_purchase,
		       maximum_discount, expiry_date, usage_limit, used_count, active,
		       created_at, updated_at
		FROM coupons
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []models.Coupon
	for rows.Next() {
		var c models.Coupon
		err := rows.Scan(
			&c.ID,
			&c.Code,
			&c.DiscountType,
			&c.DiscountValue,
			&c.MinimumPurchase,
			&c.MaximumDiscount,
			&c.ExpiryDate,
			&c.UsageLimit,
			&c.UsedCount,
			&c.Active,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(coupons, total, page, pageSize), nil
}
