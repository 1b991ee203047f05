package enums

// PaymentStatus tracks the escrow state of an order payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusHeld     PaymentStatus = "held"
	PaymentStatusReleased PaymentStatus = "released"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

var paymentStatuses = newSet("payment status",
	PaymentStatusPending,
	PaymentStatusHeld,
	PaymentStatusReleased,
	PaymentStatusRefunded,
	PaymentStatusFailed,
)

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return paymentStatuses.contains(p) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse(value)
}
