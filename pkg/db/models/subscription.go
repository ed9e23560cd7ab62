package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
)

// Subscription is a recurring coffee delivery backed by a Stripe
// subscription. Billing state mirrors the processor; delivery scheduling
// (next_delivery_date, last_fulfilled_at) is owned locally.
type Subscription struct {
	ID                   uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	StripeSubscriptionID string                      `gorm:"column:stripe_subscription_id;not null;uniqueIndex"`
	CustomerEmail        string                      `gorm:"column:customer_email;not null;index"`
	ProductID            uuid.UUID                   `gorm:"column:product_id;type:uuid;not null"`
	Variant              *string                     `gorm:"column:variant"`
	Frequency            enums.SubscriptionFrequency `gorm:"column:frequency;type:text;not null"`
	Status               enums.SubscriptionStatus    `gorm:"column:status;type:text;not null;default:'active'"`
	PriceCents           int64                       `gorm:"column:price_cents;not null"`

	ShippingName *string        `gorm:"column:shipping_name"`
	ShippingAddr *types.Address `gorm:"column:shipping_address;type:text;serializer:json"`

	NextDeliveryDate  time.Time  `gorm:"column:next_delivery_date;not null"`
	LastFulfilledAt   *time.Time `gorm:"column:last_fulfilled_at"`
	CurrentPeriodEnd  *time.Time `gorm:"column:current_period_end"`
	CancelAtPeriodEnd bool       `gorm:"column:cancel_at_period_end;not null;default:false"`
	CancelReason      *string    `gorm:"column:cancel_reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
