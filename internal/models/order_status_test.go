package models

import "testing"

func item(status ItemStatus, qty, cancelled, returned int) OrderItem {
	return OrderItem{
		Quantity:     qty,
		Status:       status,
		CancelledQty: cancelled,
		ReturnedQty:  returned,
	}
}

func TestDeriveOrderStatus(t *testing.T) {
	tests := []struct {
		name  string
		items []OrderItem
		want  OrderStatus
	}{
		{
			name:  "all placed",
			items: []OrderItem{item(ItemPlaced, 2, 0, 0), item(ItemPlaced, 1, 0, 0)},
			want:  OrderPlaced,
		},
		{
			name:  "all delivered",
			items: []OrderItem{item(ItemDelivered, 2, 0, 0), item(ItemDelivered, 1, 0, 0)},
			want:  OrderDelivered,
		},
		{
			name:  "least advanced wins",
			items: []OrderItem{item(ItemShipped, 2, 0, 0), item(ItemConfirmed, 1, 0, 0)},
			want:  OrderConfirmed,
		},
		{
			name:  "all cancelled",
			items: []OrderItem{item(ItemCancelled, 2, 2, 0), item(ItemCancelled, 1, 1, 0)},
			want:  OrderCancelled,
		},
		{
			name:  "all returned",
			items: []OrderItem{item(ItemReturned, 2, 0, 2), item(ItemReturned, 1, 0, 1)},
			want:  OrderReturned,
		},
		{
			name:  "one item fully cancelled",
			items: []OrderItem{item(ItemCancelled, 2, 2, 0), item(ItemPlaced, 1, 0, 0)},
			want:  OrderPartiallyCancelled,
		},
		{
			name:  "partial quantity cancelled on a live item",
			items: []OrderItem{item(ItemPlaced, 3, 1, 0), item(ItemPlaced, 1, 0, 0)},
			want:  OrderPartiallyCancelled,
		},
		{
			name:  "one item returned after approval",
			items: []OrderItem{item(ItemReturned, 2, 0, 2), item(ItemDelivered, 1, 0, 0)},
			want:  OrderPartiallyReturned,
		},
		{
			name: "pending return does not change status",
			items: []OrderItem{
				{Quantity: 2, Status: ItemDelivered, ReturnedQty: 1, ReturnStatus: ReturnPending},
				item(ItemDelivered, 1, 0, 0),
			},
			want: OrderDelivered,
		},
		{
			name:  "mixed cancelled and returned",
			items: []OrderItem{item(ItemCancelled, 2, 2, 0), item(ItemReturned, 1, 0, 1)},
			want:  OrderPartiallyCancelled,
		},
		{
			name:  "no items",
			items: nil,
			want:  OrderPlaced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveOrderStatus(tt.items); got != tt.want {
				t.Errorf("DeriveOrderStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	it := item(ItemPlaced, 5, 2, 1)
	if got := it.Remaining(); got != 2 {
		t.Errorf("Remaining() = %d, want 2", got)
	}
}

func TestCanCancelFrom(t *testing.T) {
	allowed := []ItemStatus{ItemPlaced, ItemConfirmed, ItemShipped}
	for _, s := range allowed {
		if !CanCancelFrom(s) {
			t.Errorf("CanCancelFrom(%s) = false, want true", s)
		}
	}
	blocked := []ItemStatus{ItemDelivered, ItemCancelled, ItemReturned}
	for _, s := range blocked {
		if CanCancelFrom(s) {
			t.Errorf("CanCancelFrom(%s) = true, want false", s)
		}
	}
}
