package orders

import (
	"fmt"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/enums"
)

// DeliveryFees are flat surcharges in minor units added to the product price.
type DeliveryFees struct {
	Pickup   int64
	Standard int64
	Express  int64
}

func DefaultDeliveryFees() DeliveryFees {
	return DeliveryFees{Pickup: 0, Standard: 50, Express: 100}
}

func DeliveryFeesFromConfig(cfg config.PaymentsConfig) DeliveryFees {
	return DeliveryFees{Pickup: cfg.PickupFee, Standard: cfg.StandardFee, Express: cfg.ExpressFee}
}

func (f DeliveryFees) Fee(method enums.DeliveryMethod) (int64, error) {
	switch method {
	case enums.DeliveryMethodPickup:
		return f.Pickup, nil
	case enums.DeliveryMethodStandard:
		return f.Standard, nil
	case enums.DeliveryMethodExpress:
		return f.Express, nil
	}
	return 0, fmt.Errorf("unknown delivery method %q", method)
}
