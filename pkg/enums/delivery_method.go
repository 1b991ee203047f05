package enums

// DeliveryMethod selects how the item reaches the buyer.
type DeliveryMethod string

const (
	DeliveryMethodPickup   DeliveryMethod = "pickup"
	DeliveryMethodStandard DeliveryMethod = "standard"
	DeliveryMethodExpress  DeliveryMethod = "express"
)

var deliveryMethods = newSet("delivery method", DeliveryMethodPickup, DeliveryMethodStandard, DeliveryMethodExpress)

func (d DeliveryMethod) String() string { return string(d) }

func (d DeliveryMethod) IsValid() bool { return deliveryMethods.contains(d) }

// Ships reports whether the method needs a shipping address.
func (d DeliveryMethod) Ships() bool {
	return d == DeliveryMethodStandard || d == DeliveryMethodExpress
}

func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	return deliveryMethods.parse(value)
}
