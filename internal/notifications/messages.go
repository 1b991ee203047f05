package notifications

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/money"
	"github.com/campuscart/marketplace-backend/pkg/outbox/payloads"
)

// notificationsFor maps a decoded event to the notifications its recipients
// should see. Unknown payloads produce none.
func notificationsFor(eventType enums.OutboxEventType, eventID uuid.UUID, payload interface{}) []models.Notification {
	switch p := payload.(type) {
	case *payloads.OrderEvent:
		return orderNotifications(eventType, eventID, p)
	case *payloads.ProductStatusChangedEvent:
		return productNotifications(eventID, p)
	default:
		return nil
	}
}

func orderNotifications(eventType enums.OutboxEventType, eventID uuid.UUID, e *payloads.OrderEvent) []models.Notification {
	amount := money.New(e.AmountCents, e.Currency).Display()
	link := orderLink(e.OrderID)
	build := func(userID uuid.UUID, kind enums.NotificationType, title, message string) models.Notification {
		return models.Notification{
			UserID:  userID,
			EventID: eventID,
			Type:    kind,
			Title:   title,
			Message: message,
			Link:    stringPtr(link),
		}
	}

	switch eventType {
	case enums.EventOrderConfirmed:
		return []models.Notification{
			build(e.SellerID, enums.NotificationTypeOrderAlert, "New order",
				fmt.Sprintf("Your listing was purchased for %s. Payment is held until the buyer completes the order.", amount)),
			build(e.BuyerID, enums.NotificationTypePaymentAlert, "Payment received",
				fmt.Sprintf("Your payment of %s is held in escrow.", amount)),
		}
	case enums.EventOrderCompleted:
		return []models.Notification{
			build(e.SellerID, enums.NotificationTypePaymentAlert, "Payment released",
				fmt.Sprintf("%s has been released to you.", amount)),
			build(e.BuyerID, enums.NotificationTypeOrderAlert, "Order completed",
				"Thanks for confirming receipt."),
		}
	case enums.EventOrderCancelled:
		buyerMsg := "Your order was cancelled."
		if e.PaymentStatus == enums.PaymentStatusRefunded {
			buyerMsg = fmt.Sprintf("Your order was cancelled and %s was refunded.", amount)
		}
		return []models.Notification{
			build(e.BuyerID, enums.NotificationTypeOrderAlert, "Order cancelled", buyerMsg),
			build(e.SellerID, enums.NotificationTypeOrderAlert, "Order cancelled", "An order for your listing was cancelled."),
		}
	case enums.EventOrderStatusChanged:
		message := fmt.Sprintf("Order status changed from %s to %s.", e.PreviousStatus, e.OrderStatus)
		recipient := e.BuyerID
		switch e.OrderStatus {
		case enums.OrderStatusDelivered, enums.OrderStatusDisputed:
			recipient = e.SellerID
		}
		return []models.Notification{build(recipient, enums.NotificationTypeOrderAlert, "Order updated", message)}
	case enums.EventOrderExpired:
		return []models.Notification{
			build(e.BuyerID, enums.NotificationTypeOrderAlert, "Order expired", "Payment was not received in time, so the order was cancelled."),
		}
	default:
		return nil
	}
}

func productNotifications(eventID uuid.UUID, e *payloads.ProductStatusChangedEvent) []models.Notification {
	if e.SellerID == uuid.Nil || e.To == enums.ProductStatusRemoved {
		return nil
	}
	var message string
	switch e.To {
	case enums.ProductStatusPending:
		message = "Your listing is reserved by a buyer."
	case enums.ProductStatusSold:
		message = "Your listing has been sold."
	case enums.ProductStatusActive:
		message = "Your listing is available again."
	default:
		return nil
	}
	return []models.Notification{{
		UserID:  e.SellerID,
		EventID: eventID,
		Type:    enums.NotificationTypeListingUpdate,
		Title:   "Listing updated",
		Message: message,
		Link:    stringPtr(fmt.Sprintf("/products/%s", e.ProductID)),
	}}
}

func orderLink(orderID uuid.UUID) string {
	return fmt.Sprintf("/orders/%s", orderID)
}

func stringPtr(value string) *string {
	return &value
}
