package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

type Product struct {
	ID          int64     `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

type Variant struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

type Cart struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Items         []CartItem      `json:"items"`
	AppliedCoupon *AppliedCoupon  `json:"applied_coupon,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

type CartItem struct {
	ID            int64           `json:"id"`
	CartID        int64           `json:"cart_id"`
	ProductID     int64           `json:"product_id"`
	VariantID     int64           `json:"variant_id"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"price_snapshot"`
	ProductName   string          `json:"product_name,omitempty"`
	VariantName   string          `json:"variant_name,omitempty"`
}

type DiscountType string

const (
	DiscountFlat       DiscountType = "flat"
	DiscountPercentage DiscountType = "percentage"
)

type Coupon struct {
	ID              int64           `json:"id"`
	Code            string          `json:"code"`
	DiscountType    DiscountType    `json:"discount_type"`
	DiscountValue   decimal.Decimal `json:"discount_value"`
	MinimumPurchase decimal.Decimal `json:"minimum_purchase"`
	MaximumDiscount decimal.Decimal `json:"maximum_discount"`
	ExpiryDate      time.Time       `json:"expiry_date"`
	UsageLimit      int             `json:"usage_limit"`
	UsedCount       int             `json:"used_count"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AppliedCoupon is the snapshot carried by carts and orders after a
// successful evaluation. Evaluation has no side effects; redemption is
// committed separately at order placement.
type AppliedCoupon struct {
	CouponID int64           `json:"coupon_id"`
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentWallet PaymentMethod = "wallet"
	PaymentCard   PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type OrderStatus string

const (
	OrderPlaced             OrderStatus = "placed"
	OrderConfirmed          OrderStatus = "confirmed"
	OrderShipped            OrderStatus = "shipped"
	OrderDelivered          OrderStatus = "delivered"
	OrderPartiallyCancelled OrderStatus = "partially_cancelled"
	OrderPartiallyReturned  OrderStatus = "partially_returned"
	OrderCancelled          OrderStatus = "cancelled"
	OrderReturned           OrderStatus = "returned"
)

type ItemStatus string

const (
	ItemPlaced    ItemStatus = "placed"
	ItemConfirmed ItemStatus = "confirmed"
	ItemShipped   ItemStatus = "shipped"
	ItemDelivered ItemStatus = "delivered"
	ItemCancelled ItemStatus = "cancelled"
	ItemReturned  ItemStatus = "returned"
)

type ReturnStatus string

const (
	ReturnNone     ReturnStatus = "none"
	ReturnPending  ReturnStatus = "pending"
	ReturnApproved ReturnStatus = "approved"
	ReturnRejected ReturnStatus = "rejected"
)

type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          int64           `json:"user_id"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Status          OrderStatus     `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	CouponID        *int64          `json:"coupon_id,omitempty"`
	CouponCode      *string         `json:"coupon_code,omitempty"`
	CancelledAmount decimal.Decimal `json:"cancelled_amount"`
	RefundAmount    decimal.Decimal `json:"refund_amount"`
	Items           []OrderItem     `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	VariantID    int64           `json:"variant_id"`
	ProductName  string          `json:"product_name"`
	VariantName  string          `json:"variant_name"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Status       ItemStatus      `json:"status"`
	CancelledQty int             `json:"cancelled_qty"`
	ReturnedQty  int             `json:"returned_qty"`
	ReturnStatus ReturnStatus    `json:"return_status"`
	Message      *string         `json:"message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Remaining reports the quantity still active on the item. The invariant
// cancelled_qty + returned_qty <= quantity keeps this non-negative.
func (i OrderItem) Remaining() int {
	return i.Quantity - i.CancelledQty - i.ReturnedQty
}

type TxnType string

const (
	TxnCredit TxnType = "credit"
	TxnDebit  TxnType = "debit"
)

type Wallet struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	History   []WalletTxn     `json:"transaction_history,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type WalletTxn struct {
	ID            string          `json:"id"`
	WalletID      int64           `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	Method        string          `json:"method"`
	Type          TxnType         `json:"type"`
	CreatedAt     time.Time       `json:"created_at"`
}
