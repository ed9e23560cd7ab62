package drops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

// ItemInput allocates product capacity to a new drop.
type ItemInput struct {
	ProductID          uuid.UUID
	QuantityAvailable  int
	PriceCentsOverride *int64
}

// CreateInput holds the validated payload to create a drop.
type CreateInput struct {
	Title       string
	DropDate    time.Time
	OpensAt     time.Time
	ClosesAt    *time.Time
	PickupStart *time.Time
	PickupEnd   *time.Time
	Items       []ItemInput
}

// ItemView is a drop item with its storefront price resolved.
type ItemView struct {
	Item           models.DropItem
	UnitPriceCents int64
	Remaining      int
}

// View is a drop with resolved item pricing for the storefront listing.
type View struct {
	Drop  models.Drop
	Items []ItemView
}

// Service manages timed drops. quantity_sold is never written here; only
// the reservation engine moves it.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Drop, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DropStatus) (*models.Drop, error)
	Close(ctx context.Context, id uuid.UUID) (*models.Drop, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Drop, error)
	List(ctx context.Context) ([]models.Drop, error)
	ListOpen(ctx context.Context, now time.Time) ([]View, error)
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{db: db}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Drop, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "drop title is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "drop needs at least one item")
	}
	if input.ClosesAt != nil && !input.ClosesAt.After(input.OpensAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "drop must close after it opens")
	}

	drop := &models.Drop{
		Title:       title,
		DropDate:    input.DropDate,
		OpensAt:     input.OpensAt,
		ClosesAt:    input.ClosesAt,
		PickupStart: input.PickupStart,
		PickupEnd:   input.PickupEnd,
		Status:      enums.DropStatusScheduled,
	}
	for _, item := range input.Items {
		if item.QuantityAvailable <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.PriceCentsOverride != nil && *item.PriceCentsOverride < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price override must not be negative")
		}
		drop.Items = append(drop.Items, models.DropItem{
			ProductID:          item.ProductID,
			QuantityAvailable:  item.QuantityAvailable,
			PriceCentsOverride: item.PriceCentsOverride,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range input.Items {
			var count int64
			if err := tx.Model(&models.Product{}).
				Where("id = ? AND active = ?", item.ProductID, true).
				Count(&count).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product")
			}
			if count == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "drop item references an unavailable product")
			}
		}
		if err := tx.Create(drop).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create drop")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drop, nil
}

// UpdateStatus applies a manual transition. closed is terminal; sold_out is
// owned by the reservation engine and cannot be set by hand.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DropStatus) (*models.Drop, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid drop status")
	}
	if status == enums.DropStatusSoldOut {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sold_out is set automatically")
	}

	drop, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if drop.Status == status {
		return drop, nil
	}
	if drop.Status == enums.DropStatusClosed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "drop is closed")
	}

	result := s.db.WithContext(ctx).Model(&models.Drop{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update drop status")
	}
	drop.Status = status
	return drop, nil
}

func (s *service) Close(ctx context.Context, id uuid.UUID) (*models.Drop, error) {
	drop, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if drop.Status == enums.DropStatusClosed {
		return drop, nil
	}
	return s.UpdateStatus(ctx, id, enums.DropStatusClosed)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Drop, error) {
	var drop models.Drop
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		First(&drop, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "drop not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load drop")
	}
	return &drop, nil
}

func (s *service) List(ctx context.Context) ([]models.Drop, error) {
	var drops []models.Drop
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Order("drop_date DESC").
		Find(&drops).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list drops")
	}
	return drops, nil
}

// ListOpen returns drops inside their sales window with per-item resolved
// prices for the storefront. Scheduled drops count once opens_at passes;
// nothing else flips them to live, so the window alone decides visibility.
func (s *service) ListOpen(ctx context.Context, now time.Time) ([]View, error) {
	var drops []models.Drop
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("status IN ?", []enums.DropStatus{enums.DropStatusScheduled, enums.DropStatusLive}).
		Where("opens_at <= ?", now).
		Where("closes_at IS NULL OR closes_at > ?", now).
		Order("drop_date ASC").
		Find(&drops).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open drops")
	}

	views := make([]View, 0, len(drops))
	for _, drop := range drops {
		view := View{Drop: drop, Items: make([]ItemView, 0, len(drop.Items))}
		for _, item := range drop.Items {
			base := int64(0)
			if item.Product != nil {
				base = item.Product.PriceCents
			}
			view.Items = append(view.Items, ItemView{
				Item:           item,
				UnitPriceCents: item.UnitPriceCents(base),
				Remaining:      item.Remaining(),
			})
		}
		views = append(views, view)
	}
	return views, nil
}
