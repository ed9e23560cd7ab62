package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddfellowcoffee/storefront-backend/internal/orders"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
)

type stubOrderLister struct {
	orders     []models.Order
	lastFilter orders.ListFilter
}

func (s *stubOrderLister) List(ctx context.Context, filter orders.ListFilter) ([]models.Order, error) {
	s.lastFilter = filter
	return s.orders, nil
}

func shippedOrder() models.Order {
	name := "Kim Doe"
	return models.Order{
		ID:            uuid.New(),
		CustomerEmail: "kim@example.com",
		CustomerName:  "Kim",
		ShippingName:  &name,
		ShippingAddr: &types.Address{
			Line1:      "12 Main St",
			City:       "Tonkawa",
			State:      "OK",
			PostalCode: "74653",
			Country:    "US",
		},
		Items: types.OrderItems{
			{ProductID: uuid.New(), ProductName: "House Blend", Quantity: 2, UnitPriceCents: 1650},
			{ProductID: uuid.New(), ProductName: "Sourdough", Quantity: 1, UnitPriceCents: 900},
		},
		TotalCents: 4200,
		Status:     enums.OrderStatusConfirmed,
	}
}

func TestWriteShippingCSV(t *testing.T) {
	lister := &stubOrderLister{orders: []models.Order{shippedOrder()}}
	export, err := NewShippingCSV(lister)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, export.Write(context.Background(), &buf, orders.ListFilter{}))

	require.NotNil(t, lister.lastFilter.Status)
	assert.Equal(t, enums.OrderStatusConfirmed, *lister.lastFilter.Status)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, records[0], 13)

	row := records[1]
	assert.Equal(t, "Kim Doe", row[1])
	assert.Equal(t, "US", row[7])
	assert.Equal(t, "", row[9], "phone column stays blank")
	assert.Equal(t, "24", row[10], "three items at 8oz each")
	assert.Equal(t, "2x House Blend; 1x Sourdough", row[11])
	assert.Equal(t, "42.00", row[12])
}

func TestWriteSkipsOrdersWithoutAddress(t *testing.T) {
	pickup := shippedOrder()
	pickup.ShippingAddr = nil

	lister := &stubOrderLister{orders: []models.Order{pickup}}
	export, err := NewShippingCSV(lister)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, export.Write(context.Background(), &buf, orders.ListFilter{}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1, "header only")
}
