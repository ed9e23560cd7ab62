package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

// DefaultMaxPerLine caps how many units of one product a single cart line
// may carry. Bulk orders go through the owner directly.
const DefaultMaxPerLine = 20

// LineQuantity describes the data required to verify one cart line.
type LineQuantity struct {
	ProductID uuid.UUID
	Quantity  int
}

// QuantityViolationDetail exposes the data returned to callers when a validation fails.
type QuantityViolationDetail struct {
	ProductID    uuid.UUID `json:"product_id"`
	MaxQty       int       `json:"max_qty"`
	RequestedQty int       `json:"requested_qty"`
}

// ValidateLineQuantities ensures every cart line carries a positive quantity
// within the per-line cap. A cap of zero or less falls back to the default.
func ValidateLineQuantities(items []LineQuantity, maxPerLine int) error {
	if maxPerLine <= 0 {
		maxPerLine = DefaultMaxPerLine
	}
	var violations []QuantityViolationDetail
	for _, item := range items {
		if item.Quantity >= 1 && item.Quantity <= maxPerLine {
			continue
		}
		violations = append(violations, QuantityViolationDetail{
			ProductID:    item.ProductID,
			MaxQty:       maxPerLine,
			RequestedQty: item.Quantity,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity on %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
