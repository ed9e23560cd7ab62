package enums

import "fmt"

// OrderStage tracks the physical-fulfillment axis of an order, independent of
// payment status.
type OrderStage string

const (
	OrderStageOrdered  OrderStage = "ordered"
	OrderStageBaking   OrderStage = "baking"
	OrderStageReady    OrderStage = "ready"
	OrderStagePickedUp OrderStage = "picked_up"
	OrderStageShipped  OrderStage = "shipped"
	OrderStageDelivered OrderStage = "delivered"
)

var validOrderStages = []OrderStage{
	OrderStageOrdered,
	OrderStageBaking,
	OrderStageReady,
	OrderStagePickedUp,
	OrderStageShipped,
	OrderStageDelivered,
}

// String implements fmt.Stringer.
func (s OrderStage) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStage.
func (s OrderStage) IsValid() bool {
	for _, candidate := range validOrderStages {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStage converts raw input into an OrderStage.
func ParseOrderStage(value string) (OrderStage, error) {
	for _, candidate := range validOrderStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order stage %q", value)
}
