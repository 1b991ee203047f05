package orders

import (
	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
)

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPlaced:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:   {enums.OrderStatusDelivered, enums.OrderStatusCancelled, enums.OrderStatusDisputed},
	enums.OrderStatusDelivered: {enums.OrderStatusCompleted, enums.OrderStatusDisputed},
}

// CanTransition reports whether the order state machine has an edge from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the targets reachable from the given status.
func NextStatuses(from enums.OrderStatus) []enums.OrderStatus {
	next := allowedTransitions[from]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

// PartyOf returns which side of the order the user is on.
func PartyOf(order *models.Order, userID uuid.UUID) (enums.OrderParty, bool) {
	switch {
	case order == nil || userID == uuid.Nil:
		return "", false
	case order.SellerID == userID:
		return enums.OrderPartySeller, true
	case order.BuyerID == userID:
		return enums.OrderPartyBuyer, true
	}
	return "", false
}

// CanPerform is the capability check for a transition that already passed
// CanTransition. The seller drives fulfilment and the buyer acknowledges it.
// Either side may cancel an order nobody has confirmed yet; afterwards only
// the seller can back out.
func CanPerform(party enums.OrderParty, from, to enums.OrderStatus) bool {
	switch to {
	case enums.OrderStatusConfirmed, enums.OrderStatusShipped:
		return party == enums.OrderPartySeller
	case enums.OrderStatusDelivered, enums.OrderStatusCompleted, enums.OrderStatusDisputed:
		return party == enums.OrderPartyBuyer
	case enums.OrderStatusCancelled:
		if from == enums.OrderStatusPlaced {
			return party == enums.OrderPartyBuyer || party == enums.OrderPartySeller
		}
		return party == enums.OrderPartySeller
	}
	return false
}
