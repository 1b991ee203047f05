package enums

// OrderParty is the relation of an actor to an order.
type OrderParty string

const (
	OrderPartyBuyer  OrderParty = "buyer"
	OrderPartySeller OrderParty = "seller"
)

var orderParties = newSet("order party", OrderPartyBuyer, OrderPartySeller)

func (o OrderParty) String() string { return string(o) }

func (o OrderParty) IsValid() bool { return orderParties.contains(o) }

func ParseOrderParty(value string) (OrderParty, error) {
	return orderParties.parse(value)
}
