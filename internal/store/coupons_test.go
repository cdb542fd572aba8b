package store

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/database"
	"github.com/akhil-km/storefront/internal/models"
)

func TestCouponDiscount(t *testing.T) {
	t.Run("percentage capped by maximum discount", func(t *testing.T) {
		c := &models.Coupon{
			DiscountType:    models.DiscountPercentage,
			DiscountValue:   decimal.NewFromInt(20),
			MaximumDiscount: decimal.NewFromInt(150),
		}

		got, err := couponDiscount(c, decimal.NewFromInt(1000))
		if err != nil {
			t.Fatalf("couponDiscount: %v", err)
		}
		if !got.Equal(decimal.NewFromInt(150)) {
			t.Errorf("expected discount 150, got %s", got)
		}
	})

	t.Run("percentage uncapped", func(t *testing.T) {
		c := &models.Coupon{
			DiscountType:  models.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(20),
		}

		got, err := couponDiscount(c, decimal.NewFromInt(1000))
		if err != nil {
			t.Fatalf("couponDiscount: %v", err)
		}
		if !got.Equal(decimal.NewFromInt(200)) {
			t.Errorf("expected discount 200, got %s", got)
		}
	})

	t.Run("percentage is floored", func(t *testing.T) {
		c := &models.Coupon{
			DiscountType:  models.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(15),
		}

		// 15% of 333 = 49.95, floored to 49
		got, err := couponDiscount(c, decimal.NewFromInt(333))
		if err != nil {
			t.Fatalf("couponDiscount: %v", err)
		}
		if !got.Equal(decimal.NewFromInt(49)) {
			t.Errorf("expected discount 49, got %s", got)
		}
	})

	t.Run("flat ignores subtotal", func(t *testing.T) {
		c := &models.Coupon{
			DiscountType:  models.DiscountFlat,
			DiscountValue: decimal.NewFromInt(100),
		}

		got, err := couponDiscount(c, decimal.NewFromInt(500))
		if err != nil {
			t.Fatalf("couponDiscount: %v", err)
		}
		if !got.Equal(decimal.NewFromInt(100)) {
			t.Errorf("expected discount 100, got %s", got)
		}
	})

	t.Run("flat larger than subtotal is capped at subtotal", func(t *testing.T) {
		c := &models.Coupon{
			DiscountType:  models.DiscountFlat,
			DiscountValue: decimal.NewFromInt(500),
		}

		got, err := couponDiscount(c, decimal.NewFromInt(300))
		if err != nil {
			t.Fatalf("couponDiscount: %v", err)
		}
		if !got.Equal(decimal.NewFromInt(300)) {
			t.Errorf("expected discount capped at 300, got %s", got)
		}
	})

	t.Run("percentage above 100 is capped at subtotal", func(t *testing.T) {
		c := &models.Coupon{
			DiscountType:  models.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(150),
		}

		got, err := couponDiscount(c, decimal.NewFromInt(200))
		if err != nil {
			t.Fatalf("couponDiscount: %v", err)
		}
		if !got.Equal(decimal.NewFromInt(200)) {
			t.Errorf("expected discount capped at 200, got %s", got)
		}
	})

	t.Run("zero percentage rejected", func(t *testing.T) {
		c := &models.Coupon{
			DiscountType:  models.DiscountPercentage,
			DiscountValue: decimal.Zero,
		}

		_, err := couponDiscount(c, decimal.NewFromInt(1000))
		if !errors.Is(err, database.ErrCouponInvalidDiscount) {
			t.Errorf("expected ErrCouponInvalidDiscount, got %v", err)
		}
	})

	t.Run("tiny percentage of small subtotal floors to zero", func(t *testing.T) {
		c := &models.Coupon{
			DiscountType:  models.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(1),
		}

		_, err := couponDiscount(c, decimal.NewFromInt(50))
		if !errors.Is(err, database.ErrCouponInvalidDiscount) {
			t.Errorf("expected ErrCouponInvalidDiscount, got %v", err)
		}
	})
}

func TestNormalizeCouponCode(t *testing.T) {
	if got := normalizeCouponCode("  SAVE20 "); got != "save20" {
		t.Errorf("normalizeCouponCode = %q, want %q", got, "save20")
	}
}
