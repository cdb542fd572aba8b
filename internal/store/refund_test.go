package store

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRefundAmount(t *testing.T) {
	tests := []struct {
		name     string
		discount string
		totalQty int
		price    string
		qty      int
		want     string
	}{
		{
			name:     "proportional clawback across four units",
			discount: "40",
			totalQty: 4,
			price:    "100",
			qty:      1,
			want:     "90",
		},
		{
			name:     "no discount refunds full line value",
			discount: "0",
			totalQty: 4,
			price:    "100",
			qty:      2,
			want:     "200",
		},
		{
			name:     "multiple units carry multiple shares",
			discount: "40",
			totalQty: 4,
			price:    "100",
			qty:      2,
			want:     "180",
		},
		{
			name:     "uneven split rounds to two places",
			discount: "10",
			totalQty: 3,
			price:    "50",
			qty:      1,
			want:     "46.67",
		},
		{
			name:     "clawback larger than line floors at zero",
			discount: "500",
			totalQty: 2,
			price:    "100",
			qty:      1,
			want:     "0",
		},
		{
			name:     "zero total quantity skips clawback",
			discount: "40",
			totalQty: 0,
			price:    "100",
			qty:      1,
			want:     "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RefundAmount(
				decimal.RequireFromString(tt.discount),
				tt.totalQty,
				decimal.RequireFromString(tt.price),
				tt.qty,
			)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("RefundAmount() = %s, want %s", got, want)
			}
		})
	}
}
