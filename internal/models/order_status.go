package models

// forwardRank orders the admin-driven item progression. Terminal statuses
// are handled before ranking and never reach it.
var forwardRank = map[ItemStatus]int{
	ItemPlaced:    0,
	ItemConfirmed: 1,
	ItemShipped:   2,
	ItemDelivered: 3,
}

var rankOrderStatus = [...]OrderStatus{
	OrderPlaced,
	OrderConfirmed,
	OrderShipped,
	OrderDelivered,
}

// DeriveOrderStatus recomputes the order-level status from its items.
// The order status is never stored independently of this reduction:
//
//   - all items cancelled  -> cancelled
//   - all items returned   -> returned
//   - any cancellation (full item or partial quantity) -> partially_cancelled
//   - any returned item    -> partially_returned
//   - otherwise the least-advanced forward status among active items.
//
// Pending return requests do not move the order status; only an approved
// return flips an item to returned.
func DeriveOrderStatus(items []OrderItem) OrderStatus {
	if len(items) == 0 {
		return OrderPlaced
	}

	allCancelled := true
	allReturned := true
	anyCancelled := false
	anyReturned := false
	minRank := forwardRank[ItemDelivered]
	hasActive := false

	for _, it := range items {
		switch it.Status {
		case ItemCancelled:
			allReturned = false
			anyCancelled = true
		case ItemReturned:
			allCancelled = false
			anyReturned = true
		default:
			allCancelled = false
			allReturned = false
			hasActive = true
			if r := forwardRank[it.Status]; r < minRank {
				minRank = r
			}
		}
		if it.CancelledQty > 0 {
			anyCancelled = true
		}
	}

	switch {
	case allCancelled:
		return OrderCancelled
	case allReturned:
		return OrderReturned
	case anyCancelled:
		return OrderPartiallyCancelled
	case anyReturned:
		return OrderPartiallyReturned
	case hasActive:
		return rankOrderStatus[minRank]
	default:
		// mixed terminal set with no partial flags; cancelled wins
		return OrderPartiallyCancelled
	}
}

// CanCancelFrom reports whether an item in the given status may still be
// cancelled. Cancellation is reachable from any pre-delivery state.
func CanCancelFrom(s ItemStatus) bool {
	switch s {
	case ItemPlaced, ItemConfirmed, ItemShipped:
		return true
	}
	return false
}
