package types

// ProductVariant is a purchasable option on a product, such as a bag size or
// grind. A nil PriceCents means the variant sells at the product base price.
type ProductVariant struct {
	Name       string `json:"name"`
	PriceCents *int64 `json:"price_cents,omitempty"`
}

// ProductVariants is stored as a JSON column on products.
type ProductVariants []ProductVariant

// Find returns the variant with the given name, or nil when absent.
func (v ProductVariants) Find(name string) *ProductVariant {
	for i := range v {
		if v[i].Name == name {
			return &v[i]
		}
	}
	return nil
}

// PriceCentsFor resolves the unit price for a variant, falling back to the
// product base price when the variant carries no override.
func (v ProductVariants) PriceCentsFor(name string, basePriceCents int64) int64 {
	if variant := v.Find(name); variant != nil && variant.PriceCents != nil {
		return *variant.PriceCents
	}
	return basePriceCents
}
