package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
)

// Product is a catalog entry. Deactivation is a soft delete; historical
// orders keep their own item snapshots.
type Product struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Name         string                 `gorm:"column:name;not null"`
	Category     enums.ProductCategory  `gorm:"column:category;type:text;not null"`
	Description  *string                `gorm:"column:description"`
	PriceCents   int64                  `gorm:"column:price_cents;not null"`
	Variants     *types.ProductVariants `gorm:"column:variants;type:text;serializer:json"`
	Subscribable bool                   `gorm:"column:subscribable;not null;default:false"`
	Active       bool                   `gorm:"column:active;not null;default:true"`
	// StockQuantity is nil for untracked products; zero means sold out.
	StockQuantity *int       `gorm:"column:stock_quantity"`
	ImageURL      *string    `gorm:"column:image_url"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
