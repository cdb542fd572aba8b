package store

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/models"
)

func floorCoupon(minPurchase string, active bool) *models.Coupon {
	return &models.Coupon{
		ID:              1,
		Code:            "SAVE50",
		DiscountType:    models.DiscountFlat,
		DiscountValue:   decimal.RequireFromString("50"),
		MinimumPurchase: decimal.RequireFromString(minPurchase),
		Active:          active,
	}
}

func TestCheckCouponFloor(t *testing.T) {
	items := []models.OrderItem{
		{VariantID: 1, Price: decimal.RequireFromString("100"), Quantity: 2},
		{VariantID: 2, Price: decimal.RequireFromString("200"), Quantity: 2},
	}

	t.Run("partial removal below minimum is blocked", func(t *testing.T) {
		// 600 worth of goods, dropping one 200 unit leaves 400 < 500.
		allowed, msg := checkCouponFloor(floorCoupon("500", true), items, map[int64]int{2: 1})
		if allowed {
			t.Fatal("expected removal to be blocked")
		}
		if !strings.Contains(msg, "500.00") {
			t.Errorf("message %q does not name the minimum purchase", msg)
		}
		if !strings.Contains(msg, "400.00") {
			t.Errorf("message %q does not name the remaining value", msg)
		}
	})

	t.Run("removal keeping order above minimum is allowed", func(t *testing.T) {
		allowed, _ := checkCouponFloor(floorCoupon("500", true), items, map[int64]int{1: 1})
		if !allowed {
			t.Fatal("expected removal to be allowed, 500 remains")
		}
	})

	t.Run("removing the whole order is always allowed", func(t *testing.T) {
		allowed, _ := checkCouponFloor(floorCoupon("500", true), items, map[int64]int{1: 2, 2: 2})
		if !allowed {
			t.Fatal("full exit must not be blocked by the coupon floor")
		}
	})

	t.Run("no coupon means no floor", func(t *testing.T) {
		allowed, _ := checkCouponFloor(nil, items, map[int64]int{2: 2})
		if !allowed {
			t.Fatal("expected removal without coupon to be allowed")
		}
	})

	t.Run("inactive coupon does not enforce its floor", func(t *testing.T) {
		allowed, _ := checkCouponFloor(floorCoupon("500", false), items, map[int64]int{2: 2})
		if !allowed {
			t.Fatal("expected inactive coupon to be ignored")
		}
	})

	t.Run("already removed units do not count as remaining", func(t *testing.T) {
		partial := []models.OrderItem{
			{VariantID: 1, Price: decimal.RequireFromString("100"), Quantity: 3, CancelledQty: 1},
			{VariantID: 2, Price: decimal.RequireFromString("200"), Quantity: 2, ReturnedQty: 1},
		}
		// Active value is 2*100 + 1*200 = 400; dropping a 100 unit
		// leaves 300 < 350.
		allowed, _ := checkCouponFloor(floorCoupon("350", true), partial, map[int64]int{1: 1})
		if allowed {
			t.Fatal("expected removal to be blocked at 300 remaining")
		}
	})
}
