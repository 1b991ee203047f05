package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("shipped")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != OrderStatusShipped {
		t.Fatalf("expected shipped, got %s", got)
	}
	if _, err := ParseOrderStatus("lost"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusPlaced:    false,
		OrderStatusConfirmed: false,
		OrderStatusShipped:   false,
		OrderStatusDelivered: false,
		OrderStatusCompleted: true,
		OrderStatusDisputed:  true,
		OrderStatusCancelled: true,
	}
	for status, want := range terminal {
		if status.IsTerminal() != want {
			t.Fatalf("status %s terminal=%v, want %v", status, status.IsTerminal(), want)
		}
	}
}

func TestEventTypesUseDottedNames(t *testing.T) {
	if _, err := ParseOutboxEventType("product.statusChanged"); err != nil {
		t.Fatalf("expected product.statusChanged to parse: %v", err)
	}
	if OutboxEventType("order_confirmed").IsValid() {
		t.Fatal("expected snake case name to be rejected")
	}
}

func TestDeliveryMethodValidity(t *testing.T) {
	for _, m := range []string{"pickup", "standard", "express"} {
		if !DeliveryMethod(m).IsValid() {
			t.Fatalf("expected %s to be valid", m)
		}
	}
	if DeliveryMethod("drone").IsValid() {
		t.Fatal("expected drone to be invalid")
	}
}

func TestParseOutboxDLQErrorReason(t *testing.T) {
	got, err := ParseOutboxDLQErrorReason("unroutable")
	if err != nil || got != OutboxDLQReasonUnroutable {
		t.Fatalf("expected unroutable, got %q (%v)", got, err)
	}
	if _, err := ParseOutboxDLQErrorReason("timeout"); err == nil {
		t.Fatalf("expected unknown reason to fail")
	}
}

func TestSetValuesIsACopy(t *testing.T) {
	values := OutboxEventTypes()
	values[0] = "mutated"
	if OutboxEventTypes()[0] == "mutated" {
		t.Fatal("Values must not expose the backing slice")
	}
}

func TestDomainPredicates(t *testing.T) {
	if DeliveryMethodPickup.Ships() || !DeliveryMethodExpress.Ships() {
		t.Fatal("only shipped delivery methods need an address")
	}
	if !ProductStatusActive.Purchasable() || ProductStatusPending.Purchasable() {
		t.Fatal("only active listings are purchasable")
	}
}
