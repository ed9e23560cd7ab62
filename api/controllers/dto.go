package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/oddfellowcoffee/storefront-backend/internal/drops"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
)

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID            uuid.UUID              `json:"id"`
	Name          string                 `json:"name"`
	Category      string                 `json:"category"`
	Description   *string                `json:"description,omitempty"`
	PriceCents    int64                  `json:"price_cents"`
	Variants      *types.ProductVariants `json:"variants,omitempty"`
	Subscribable  bool                   `json:"subscribable"`
	Active        bool                   `json:"active"`
	StockQuantity *int                   `json:"stock_quantity,omitempty"`
	ImageURL      *string                `json:"image_url,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func toProductDTO(p *models.Product) ProductDTO {
	return ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Category:      string(p.Category),
		Description:   p.Description,
		PriceCents:    p.PriceCents,
		Variants:      p.Variants,
		Subscribable:  p.Subscribable,
		Active:        p.Active,
		StockQuantity: p.StockQuantity,
		ImageURL:      p.ImageURL,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toProductDTOs(products []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(products))
	for i := range products {
		out = append(out, toProductDTO(&products[i]))
	}
	return out
}

// DropItemDTO is a drop line with its storefront price and remaining stock.
type DropItemDTO struct {
	ID             uuid.UUID   `json:"id"`
	ProductID      uuid.UUID   `json:"product_id"`
	Product        *ProductDTO `json:"product,omitempty"`
	UnitPriceCents int64       `json:"unit_price_cents"`
	Remaining      int         `json:"remaining"`
}

// DropDTO is a drop with resolved item pricing.
type DropDTO struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	DropDate    time.Time     `json:"drop_date"`
	OpensAt     time.Time     `json:"opens_at"`
	ClosesAt    *time.Time    `json:"closes_at,omitempty"`
	PickupStart *time.Time    `json:"pickup_start,omitempty"`
	PickupEnd   *time.Time    `json:"pickup_end,omitempty"`
	Status      string        `json:"status"`
	Items       []DropItemDTO `json:"items"`
}

func toDropDTO(view drops.View) DropDTO {
	items := make([]DropItemDTO, 0, len(view.Items))
	for _, item := range view.Items {
		dto := DropItemDTO{
			ID:             item.Item.ID,
			ProductID:      item.Item.ProductID,
			UnitPriceCents: item.UnitPriceCents,
			Remaining:      item.Remaining,
		}
		if item.Item.Product != nil {
			p := toProductDTO(item.Item.Product)
			dto.Product = &p
		}
		items = append(items, dto)
	}
	return DropDTO{
		ID:          view.Drop.ID,
		Title:       view.Drop.Title,
		DropDate:    view.Drop.DropDate,
		OpensAt:     view.Drop.OpensAt,
		ClosesAt:    view.Drop.ClosesAt,
		PickupStart: view.Drop.PickupStart,
		PickupEnd:   view.Drop.PickupEnd,
		Status:      string(view.Drop.Status),
		Items:       items,
	}
}

func toAdminDropDTO(drop *models.Drop) DropDTO {
	items := make([]DropItemDTO, 0, len(drop.Items))
	for i := range drop.Items {
		item := drop.Items[i]
		items = append(items, DropItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Remaining: item.QuantityAvailable - item.QuantitySold,
		})
	}
	return DropDTO{
		ID:          drop.ID,
		Title:       drop.Title,
		DropDate:    drop.DropDate,
		OpensAt:     drop.OpensAt,
		ClosesAt:    drop.ClosesAt,
		PickupStart: drop.PickupStart,
		PickupEnd:   drop.PickupEnd,
		Status:      string(drop.Status),
		Items:       items,
	}
}

// OrderDTO is the admin order payload.
type OrderDTO struct {
	ID             uuid.UUID        `json:"id"`
	DropID         *uuid.UUID       `json:"drop_id,omitempty"`
	CustomerEmail  string           `json:"customer_email"`
	CustomerName   string           `json:"customer_name"`
	Items          types.OrderItems `json:"items"`
	TotalCents     int64            `json:"total_cents"`
	Status         string           `json:"status"`
	Stage          *string          `json:"stage,omitempty"`
	ShippingName   *string          `json:"shipping_name,omitempty"`
	ShippingAddr   *types.Address   `json:"shipping_address,omitempty"`
	ShippingMethod *string          `json:"shipping_method,omitempty"`
	ShippingCents  int64            `json:"shipping_cents"`
	TrackingNumber *string          `json:"tracking_number,omitempty"`
	ConfirmedAt    *time.Time       `json:"confirmed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func toOrderDTO(o *models.Order) OrderDTO {
	var stage *string
	if o.Stage != nil {
		s := string(*o.Stage)
		stage = &s
	}
	return OrderDTO{
		ID:             o.ID,
		DropID:         o.DropID,
		CustomerEmail:  o.CustomerEmail,
		CustomerName:   o.CustomerName,
		Items:          o.Items,
		TotalCents:     o.TotalCents,
		Status:         string(o.Status),
		Stage:          stage,
		ShippingName:   o.ShippingName,
		ShippingAddr:   o.ShippingAddr,
		ShippingMethod: o.ShippingMethod,
		ShippingCents:  o.ShippingCents,
		TrackingNumber: o.TrackingNumber,
		ConfirmedAt:    o.ConfirmedAt,
		CreatedAt:      o.CreatedAt,
	}
}

func toOrderDTOs(orders []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderDTO(&orders[i]))
	}
	return out
}

// SubscriptionDTO is the subscription payload for admin and self-service.
type SubscriptionDTO struct {
	ID                uuid.UUID  `json:"id"`
	CustomerEmail     string     `json:"customer_email"`
	ProductID         uuid.UUID  `json:"product_id"`
	Variant           *string    `json:"variant,omitempty"`
	Frequency         string     `json:"frequency"`
	Status            string     `json:"status"`
	PriceCents        int64      `json:"price_cents"`
	NextDeliveryDate  time.Time  `json:"next_delivery_date"`
	LastFulfilledAt   *time.Time `json:"last_fulfilled_at,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toSubscriptionDTO(s *models.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:                s.ID,
		CustomerEmail:     s.CustomerEmail,
		ProductID:         s.ProductID,
		Variant:           s.Variant,
		Frequency:         string(s.Frequency),
		Status:            string(s.Status),
		PriceCents:        s.PriceCents,
		NextDeliveryDate:  s.NextDeliveryDate,
		LastFulfilledAt:   s.LastFulfilledAt,
		CurrentPeriodEnd:  s.CurrentPeriodEnd,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CreatedAt:         s.CreatedAt,
	}
}

func toSubscriptionDTOs(subs []models.Subscription) []SubscriptionDTO {
	out := make([]SubscriptionDTO, 0, len(subs))
	for i := range subs {
		out = append(out, toSubscriptionDTO(&subs[i]))
	}
	return out
}

// ReservationDTO is a pickup/delivery booking.
type ReservationDTO struct {
	ID              uuid.UUID  `json:"id"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	ReservationDate time.Time  `json:"reservation_date"`
	TimeSlot        string     `json:"time_slot"`
	CustomerName    string     `json:"customer_name"`
	CustomerEmail   string     `json:"customer_email"`
	Status          string     `json:"status"`
}

func toReservationDTO(r *models.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:              r.ID,
		OrderID:         r.OrderID,
		ReservationDate: r.ReservationDate,
		TimeSlot:        r.TimeSlot,
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		Status:          string(r.Status),
	}
}

// TimeSlotDTO is an available pickup window.
type TimeSlotDTO struct {
	ID        uuid.UUID `json:"id"`
	DayOfWeek int       `json:"day_of_week"`
	Label     string    `json:"label"`
	Capacity  int       `json:"capacity"`
}

func toTimeSlotDTOs(slots []models.TimeSlot) []TimeSlotDTO {
	out := make([]TimeSlotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, TimeSlotDTO{
			ID:        slot.ID,
			DayOfWeek: slot.DayOfWeek,
			Label:     slot.Label(),
			Capacity:  slot.Capacity,
		})
	}
	return out
}
