package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderAlert         NotificationType = "order_alert"
	NotificationTypePaymentAlert       NotificationType = "payment_alert"
	NotificationTypeListingUpdate      NotificationType = "listing_update"
	NotificationTypeSystemAnnouncement NotificationType = "system_announcement"
)

var notificationTypes = newSet("notification type",
	NotificationTypeOrderAlert,
	NotificationTypePaymentAlert,
	NotificationTypeListingUpdate,
	NotificationTypeSystemAnnouncement,
)

func (n NotificationType) String() string { return string(n) }

func (n NotificationType) IsValid() bool { return notificationTypes.contains(n) }

func ParseNotificationType(value string) (NotificationType, error) {
	return notificationTypes.parse(value)
}
