package types

import "github.com/google/uuid"

// OrderItem is the immutable line-item snapshot captured when an order is
// created. Product name and unit price are copied so later catalog edits do
// not rewrite history.
type OrderItem struct {
	ProductID      uuid.UUID  `json:"product_id"`
	ProductName    string     `json:"product_name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Variant        *string    `json:"variant,omitempty"`
	DropItemID     *uuid.UUID `json:"drop_item_id,omitempty"`
}

// OrderItems is stored as a JSON column.
type OrderItems []OrderItem

// TotalCents sums quantity times unit price across all lines.
func (items OrderItems) TotalCents() int64 {
	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * item.UnitPriceCents
	}
	return total
}

// TotalQuantity sums line quantities, used for shipment weight estimates.
func (items OrderItems) TotalQuantity() int {
	var total int
	for _, item := range items {
		total += item.Quantity
	}
	return total
}
