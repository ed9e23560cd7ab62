package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
)

// Drop is a timed sales event with its own capacity-limited items.
type Drop struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Title       string           `gorm:"column:title;not null"`
	DropDate    time.Time        `gorm:"column:drop_date;not null"`
	OpensAt     time.Time        `gorm:"column:opens_at;not null"`
	ClosesAt    *time.Time       `gorm:"column:closes_at"`
	PickupStart *time.Time       `gorm:"column:pickup_start"`
	PickupEnd   *time.Time       `gorm:"column:pickup_end"`
	Status      enums.DropStatus `gorm:"column:status;type:text;not null;default:'scheduled'"`
	Items       []DropItem       `gorm:"foreignKey:DropID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Drop) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DropItem allocates a capacity of one product to a drop. quantity_sold only
// moves through the reservation engine's conditional updates.
type DropItem struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DropID             uuid.UUID `gorm:"column:drop_id;type:uuid;not null;index"`
	ProductID          uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	QuantityAvailable  int       `gorm:"column:quantity_available;not null"`
	QuantitySold       int       `gorm:"column:quantity_sold;not null;default:0"`
	PriceCentsOverride *int64    `gorm:"column:price_cents_override"`
	Product            *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DropItem) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Remaining reports the unsold capacity on the item.
func (d DropItem) Remaining() int {
	remaining := d.QuantityAvailable - d.QuantitySold
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UnitPriceCents resolves the sale price, preferring the per-drop override.
func (d DropItem) UnitPriceCents(basePriceCents int64) int64 {
	if d.PriceCentsOverride != nil {
		return *d.PriceCentsOverride
	}
	return basePriceCents
}
