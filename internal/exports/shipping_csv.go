package exports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/oddfellowcoffee/storefront-backend/internal/orders"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

// ouncesPerItem is the flat packed-weight estimate used for label pricing.
const ouncesPerItem = 8

var shippingColumns = []string{
	"Order ID",
	"Recipient Name",
	"Address Line 1",
	"Address Line 2",
	"City",
	"State",
	"Zip",
	"Country",
	"Email",
	"Phone",
	"Weight (oz)",
	"Items",
	"Order Total",
}

type orderLister interface {
	List(ctx context.Context, filter orders.ListFilter) ([]models.Order, error)
}

// ShippingCSV flattens confirmed, addressed orders into the 13-column
// layout the label service imports.
type ShippingCSV struct {
	orders orderLister
}

func NewShippingCSV(ordersSvc orderLister) (*ShippingCSV, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	return &ShippingCSV{orders: ordersSvc}, nil
}

// Write streams the export. Only confirmed orders with a shipping address
// are rows; pickup orders have no address and are skipped.
func (e *ShippingCSV) Write(ctx context.Context, w io.Writer, filter orders.ListFilter) error {
	confirmed := enums.OrderStatusConfirmed
	filter.Status = &confirmed

	rows, err := e.orders.List(ctx, filter)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(shippingColumns); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv header")
	}
	for _, order := range rows {
		if order.ShippingAddr == nil || order.ShippingAddr.IsZero() {
			continue
		}
		if err := writer.Write(shippingRow(&order)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush csv")
	}
	return nil
}

func shippingRow(order *models.Order) []string {
	addr := order.ShippingAddr
	line2 := ""
	if addr.Line2 != nil {
		line2 = *addr.Line2
	}
	name := order.CustomerName
	if order.ShippingName != nil && *order.ShippingName != "" {
		name = *order.ShippingName
	}

	total := decimal.NewFromInt(order.TotalCents).Div(decimal.NewFromInt(100))

	return []string{
		order.ID.String(),
		name,
		addr.Line1,
		line2,
		addr.City,
		addr.State,
		addr.PostalCode,
		"US",
		order.CustomerEmail,
		"",
		fmt.Sprintf("%d", order.Items.TotalQuantity()*ouncesPerItem),
		itemSummary(order),
		total.StringFixed(2),
	}
}

func itemSummary(order *models.Order) string {
	parts := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		name := item.ProductName
		if item.Variant != nil && *item.Variant != "" {
			name = name + " (" + *item.Variant + ")"
		}
		parts = append(parts, fmt.Sprintf("%dx %s", item.Quantity, name))
	}
	return strings.Join(parts, "; ")
}
