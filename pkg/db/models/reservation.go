package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
)

// Reservation books a pickup or delivery window, optionally tied to an order.
type Reservation struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	ReservationDate time.Time               `gorm:"column:reservation_date;not null;index"`
	TimeSlot        string                  `gorm:"column:time_slot;not null"`
	Items           types.ReservationItems  `gorm:"column:items;type:text;serializer:json"`
	CustomerName    string                  `gorm:"column:customer_name;not null"`
	CustomerEmail   string                  `gorm:"column:customer_email;not null"`
	Status          enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'confirmed'"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
