package enums

// ProductStatus tracks listing availability.
type ProductStatus string

const (
	ProductStatusActive  ProductStatus = "active"
	ProductStatusPending ProductStatus = "pending"
	ProductStatusSold    ProductStatus = "sold"
	ProductStatusRemoved ProductStatus = "removed"
)

var productStatuses = newSet("product status", ProductStatusActive, ProductStatusPending, ProductStatusSold, ProductStatusRemoved)

func (p ProductStatus) String() string { return string(p) }

func (p ProductStatus) IsValid() bool { return productStatuses.contains(p) }

// Purchasable reports whether a new order may reserve the listing.
func (p ProductStatus) Purchasable() bool { return p == ProductStatusActive }

func ParseProductStatus(value string) (ProductStatus, error) {
	return productStatuses.parse(value)
}
