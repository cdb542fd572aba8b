package integration

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/database"
	"github.com/akhil-km/storefront/internal/models"
	"github.com/akhil-km/storefront/internal/store"
)

func seedCoupon(t *testing.T, db *sql.DB, code string, req store.CreateCouponRequest) *models.Coupon {
	t.Helper()

	req.Code = code
	if req.ExpiryDate.IsZero() {
		req.ExpiryDate = time.Now().Add(24 * time.Hour)
	}
	coupon, err := store.CreateCoupon(context.Background(), db, req)
	if err != nil {
		t.Fatalf("Create coupon %s: %v", code, err)
	}
	return coupon
}

func TestEvaluateCouponIsIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := seedUser(t, db, "eval@example.com")
	seedCoupon(t, db, "FLAT50", store.CreateCouponRequest{
		DiscountType:    models.DiscountFlat,
		DiscountValue:   decimal.NewFromInt(50),
		MinimumPurchase: decimal.NewFromInt(100),
		UsageLimit:      10,
	})

	// Evaluation alone must not consume the coupon.
	for i := 0; i < 3; i++ {
		applied, err := store.EvaluateCoupon(ctx, db, "flat50", user.ID, decimal.NewFromInt(200))
		if err != nil {
			t.Fatalf("Evaluate attempt %d: %v", i, err)
		}
		if !applied.Discount.Equal(decimal.NewFromInt(50)) {
			t.Errorf("Expected discount 50, got %s", applied.Discount)
		}
	}
}

func TestEvaluateCouponMinPurchase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedUser(t, db, "min@example.com")
	seedCoupon(t, db, "MIN500", store.CreateCouponRequest{
		DiscountType:    models.DiscountFlat,
		DiscountValue:   decimal.NewFromInt(50),
		MinimumPurchase: decimal.NewFromInt(500),
		UsageLimit:      10,
	})

	_, err := store.EvaluateCoupon(context.Background(), db, "MIN500", user.ID, decimal.NewFromInt(300))
	if !errors.Is(err, database.ErrCouponMinPurchase) {
		t.Errorf("Expected ErrCouponMinPurchase, got %v", err)
	}
}

func TestCheckoutRedeemsCoupon(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := seedUser(t, db, "redeem@example.com")
	product, variant := seedVariant(t, db, "CPN-001", 200, 10)
	coupon := seedCoupon(t, db, "TAKE20", store.CreateCouponRequest{
		DiscountType:    models.DiscountPercentage,
		DiscountValue:   decimal.NewFromInt(20),
		MinimumPurchase: decimal.NewFromInt(100),
		MaximumDiscount: decimal.NewFromInt(60),
		UsageLimit:      10,
	})

	if err := store.AddToCart(ctx, db, user.ID, product.ID, variant.ID, 2); err != nil {
		t.Fatalf("Add to cart: %v", err)
	}
	if _, err := store.ApplyCouponToCart(ctx, db, user.ID, "take20"); err != nil {
		t.Fatalf("Apply coupon: %v", err)
	}

	order, err := store.Checkout(ctx, db, testCheckoutConfig(), store.CheckoutRequest{
		UserID:        user.ID,
		PaymentMethod: models.PaymentCOD,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	// 20% of 400 is 80, capped at 60.
	if !order.Discount.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected discount 60, got %s", order.Discount)
	}
	if order.CouponCode == nil || *order.CouponCode != coupon.Code {
		t.Errorf("Expected coupon code %s on order, got %v", coupon.Code, order.CouponCode)
	}

	// The same user cannot use the coupon again.
	_, err = store.EvaluateCoupon(ctx, db, "TAKE20", user.ID, decimal.NewFromInt(400))
	if !errors.Is(err, database.ErrCouponAlreadyUsed) {
		t.Errorf("Expected ErrCouponAlreadyUsed, got %v", err)
	}
}

func TestCouponRedemptionSurvivesCancellation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := seedUser(t, db, "survive@example.com")
	product, variant := seedVariant(t, db, "CPN-002", 200, 10)
	seedCoupon(t, db, "ONESHOT", store.CreateCouponRequest{
		DiscountType:    models.DiscountFlat,
		DiscountValue:   decimal.NewFromInt(50),
		MinimumPurchase: decimal.NewFromInt(100),
		UsageLimit:      10,
	})

	if err := store.AddToCart(ctx, db, user.ID, product.ID, variant.ID, 2); err != nil {
		t.Fatalf("Add to cart: %v", err)
	}
	if _, err := store.ApplyCouponToCart(ctx, db, user.ID, "ONESHOT"); err != nil {
		t.Fatalf("Apply coupon: %v", err)
	}
	order, err := store.Checkout(ctx, db, testCheckoutConfig(), store.CheckoutRequest{
		UserID:        user.ID,
		PaymentMethod: models.PaymentCOD,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	_, err = store.RequestCancelOrReturn(ctx, db, user.ID, order.ID, []store.CancelSelection{
		{VariantID: variant.ID, Quantity: 2, Reason: "changed my mind"},
	})
	if err != nil {
		t.Fatalf("Cancel order: %v", err)
	}

	// Cancelling the order does not give the coupon back.
	_, err = store.EvaluateCoupon(ctx, db, "ONESHOT", user.ID, decimal.NewFromInt(400))
	if !errors.Is(err, database.ErrCouponAlreadyUsed) {
		t.Errorf("Expected ErrCouponAlreadyUsed after cancellation, got %v", err)
	}
}

func TestCouponUsageLimitExhausted(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product, variant := seedVariant(t, db, "CPN-003", 200, 10)
	seedCoupon(t, db, "LIMIT1", store.CreateCouponRequest{
		DiscountType:    models.DiscountFlat,
		DiscountValue:   decimal.NewFromInt(50),
		MinimumPurchase: decimal.NewFromInt(100),
		UsageLimit:      1,
	})

	first := seedUser(t, db, "limit-a@example.com")
	if err := store.AddToCart(ctx, db, first.ID, product.ID, variant.ID, 1); err != nil {
		t.Fatalf("Add to cart: %v", err)
	}
	if _, err := store.ApplyCouponToCart(ctx, db, first.ID, "LIMIT1"); err != nil {
		t.Fatalf("Apply coupon: %v", err)
	}
	if _, err := store.Checkout(ctx, db, testCheckoutConfig(), store.CheckoutRequest{
		UserID:        first.ID,
		PaymentMethod: models.PaymentCOD,
	}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	second := seedUser(t, db, "limit-b@example.com")
	_, err := store.EvaluateCoupon(ctx, db, "LIMIT1", second.ID, decimal.NewFromInt(400))
	if !errors.Is(err, database.ErrCouponUsageLimit) {
		t.Errorf("Expected ErrCouponUsageLimit, got %v", err)
	}
}

func TestUpdateCoupon(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := seedUser(t, db, "edit@example.com")
	coupon := seedCoupon(t, db, "EDITME", store.CreateCouponRequest{
		DiscountType:    models.DiscountFlat,
		DiscountValue:   decimal.NewFromInt(50),
		MinimumPurchase: decimal.NewFromInt(100),
		UsageLimit:      10,
	})

	updated, err := store.UpdateCoupon(ctx, db, coupon.ID, store.CreateCouponRequest{
		Code:            "EDITME",
		DiscountType:    models.DiscountFlat,
		DiscountValue:   decimal.NewFromInt(75),
		MinimumPurchase: decimal.NewFromInt(300),
		ExpiryDate:      time.Now().Add(24 * time.Hour),
		UsageLimit:      10,
	})
	if err != nil {
		t.Fatalf("Update coupon: %v", err)
	}
	if !updated.DiscountValue.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected discount value 75, got %s", updated.DiscountValue)
	}

	// Evaluation reflects the new terms.
	_, err = store.EvaluateCoupon(ctx, db, "EDITME", user.ID, decimal.NewFromInt(200))
	if !errors.Is(err, database.ErrCouponMinPurchase) {
		t.Errorf("Expected ErrCouponMinPurchase under new minimum, got %v", err)
	}
	applied, err := store.EvaluateCoupon(ctx, db, "EDITME", user.ID, decimal.NewFromInt(400))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !applied.Discount.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected discount 75, got %s", applied.Discount)
	}

	_, err = store.UpdateCoupon(ctx, db, coupon.ID+1000, store.CreateCouponRequest{
		Code:          "NOSUCH",
		DiscountType:  models.DiscountFlat,
		DiscountValue: decimal.NewFromInt(10),
		ExpiryDate:    time.Now().Add(24 * time.Hour),
	})
	if !errors.Is(err, database.ErrCouponNotFound) {
		t.Errorf("Expected ErrCouponNotFound, got %v", err)
	}

	// Renaming onto an existing code is a conflict.
	seedCoupon(t, db, "TAKEN", store.CreateCouponRequest{
		DiscountType:  models.DiscountFlat,
		DiscountValue: decimal.NewFromInt(10),
		UsageLimit:    10,
	})
	_, err = store.UpdateCoupon(ctx, db, coupon.ID, store.CreateCouponRequest{
		Code:          "TAKEN",
		DiscountType:  models.DiscountFlat,
		DiscountValue: decimal.NewFromInt(75),
		ExpiryDate:    time.Now().Add(24 * time.Hour),
	})
	if !errors.Is(err, database.ErrCouponCodeTaken) {
		t.Errorf("Expected ErrCouponCodeTaken, got %v", err)
	}
}

func TestInactiveCouponNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := seedUser(t, db, "inactive@example.com")
	coupon := seedCoupon(t, db, "DISABLED", store.CreateCouponRequest{
		DiscountType:  models.DiscountFlat,
		DiscountValue: decimal.NewFromInt(50),
		UsageLimit:    10,
	})

	if err := store.SetCouponActive(ctx, db, coupon.ID, false); err != nil {
		t.Fatalf("Deactivate coupon: %v", err)
	}

	_, err := store.EvaluateCoupon(ctx, db, "DISABLED", user.ID, decimal.NewFromInt(400))
	if !errors.Is(err, database.ErrCouponNotFound) {
		t.Errorf("Expected ErrCouponNotFound for inactive coupon, got %v", err)
	}
}
