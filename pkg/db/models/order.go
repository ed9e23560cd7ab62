package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
)

// Order is a customer purchase. Status tracks the payment lifecycle
// (pending, confirmed, expired) while Stage tracks physical fulfillment and
// only exists once payment has confirmed. Orders are never deleted.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	DropID        *uuid.UUID        `gorm:"column:drop_id;type:uuid;index"`
	CustomerEmail string            `gorm:"column:customer_email;not null;index"`
	CustomerName  string            `gorm:"column:customer_name;not null"`
	Items         types.OrderItems  `gorm:"column:items;type:text;serializer:json;not null"`
	TotalCents    int64             `gorm:"column:total_cents;not null"`
	Status        enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Stage         *enums.OrderStage `gorm:"column:stage;type:text"`

	ShippingName   *string        `gorm:"column:shipping_name"`
	ShippingAddr   *types.Address `gorm:"column:shipping_address;type:text;serializer:json"`
	ShippingMethod *string        `gorm:"column:shipping_method"`
	ShippingCents  int64          `gorm:"column:shipping_cents;not null;default:0"`
	TrackingNumber *string        `gorm:"column:tracking_number"`

	StripeSessionID string `gorm:"column:stripe_session_id;not null;uniqueIndex"`

	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
