package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

// DropReservationRequest asks for quantity against one drop item.
type DropReservationRequest struct {
	DropItemID uuid.UUID
	Quantity   int
}

// ReservedLine reports a successful reservation with the server-resolved
// price and product name for the order snapshot.
type ReservedLine struct {
	DropItemID     uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	Quantity       int
	UnitPriceCents int64
}

// ReleaseItem gives back previously reserved quantity on one drop item.
type ReleaseItem struct {
	DropItemID uuid.UUID
	Quantity   int
}

// Reserve claims quantity on each requested drop item inside the caller's
// transaction. The drop must be orderable: not closed or sold out, and
// inside its opens_at/closes_at window. Each claim is a single conditional
// update so concurrent checkouts cannot oversell. The request set is
// all-or-nothing: the first failure returns an error and the caller is
// expected to roll back.
func Reserve(ctx context.Context, tx *gorm.DB, dropID uuid.UUID, requests []DropReservationRequest) ([]ReservedLine, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for drop reservation")
	}
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one reservation line is required")
	}

	var drop models.Drop
	if err := tx.WithContext(ctx).First(&drop, "id = ?", dropID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "drop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load drop")
	}

	now := time.Now().UTC()
	switch {
	case drop.Status == enums.DropStatusClosed:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "drop is closed")
	case drop.Status == enums.DropStatusSoldOut:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "drop is sold out")
	case now.Before(drop.OpensAt):
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "drop has not opened yet").
			WithDetails(map[string]any{"opens_at": drop.OpensAt})
	case drop.ClosesAt != nil && !now.Before(*drop.ClosesAt):
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "drop ordering window has closed")
	}

	lines := make([]ReservedLine, 0, len(requests))
	for _, req := range requests {
		if req.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}

		res := tx.WithContext(ctx).Exec(`
			UPDATE drop_items
			SET quantity_sold = quantity_sold + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND drop_id = ? AND quantity_available - quantity_sold >= ?
		`, req.Quantity, req.DropItemID, dropID, req.Quantity)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve drop item")
		}
		if res.RowsAffected == 0 {
			var item models.DropItem
			err := tx.WithContext(ctx).First(&item, "id = ? AND drop_id = ?", req.DropItemID, dropID).Error
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "drop item not found")
			}
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load drop item")
			}
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("not enough quantity for drop item %s", req.DropItemID)).
				WithDetails(map[string]any{"drop_item_id": req.DropItemID, "remaining": item.Remaining()})
		}

		var item models.DropItem
		if err := tx.WithContext(ctx).Preload("Product").First(&item, "id = ?", req.DropItemID).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reserved drop item")
		}

		var basePrice int64
		var productName string
		if item.Product != nil {
			basePrice = item.Product.PriceCents
			productName = item.Product.Name
		}

		lines = append(lines, ReservedLine{
			DropItemID:     item.ID,
			ProductID:      item.ProductID,
			ProductName:    productName,
			Quantity:       req.Quantity,
			UnitPriceCents: item.UnitPriceCents(basePrice),
		})
	}

	if err := RefreshDropStatus(ctx, tx, dropID); err != nil {
		return nil, err
	}

	return lines, nil
}

// Release gives back reserved quantity, clamped at zero so replayed webhook
// deliveries cannot drive quantity_sold negative.
func Release(ctx context.Context, tx *gorm.DB, dropID uuid.UUID, items []ReleaseItem) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for drop release")
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		res := tx.WithContext(ctx).Exec(`
			UPDATE drop_items
			SET quantity_sold = CASE WHEN quantity_sold >= ? THEN quantity_sold - ? ELSE 0 END,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND drop_id = ?
		`, item.Quantity, item.Quantity, item.DropItemID, dropID)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release drop item")
		}
	}

	return RefreshDropStatus(ctx, tx, dropID)
}

// DecrementStock reduces standing product stock at payment confirmation.
// Untracked products (NULL stock) are left alone, and a confirmed payment is
// never failed for stock, so the decrement clamps at zero.
func DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_quantity = CASE WHEN stock_quantity >= ? THEN stock_quantity - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock_quantity IS NOT NULL
	`, qty, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement product stock")
	}
	return nil
}

// RefreshDropStatus flips a drop to sold_out once the remaining capacity
// across its items hits zero, and back to live when a release restores
// capacity. Closed is terminal and is never touched; a scheduled drop with
// capacity left stays scheduled.
func RefreshDropStatus(ctx context.Context, tx *gorm.DB, dropID uuid.UUID) error {
	var drop models.Drop
	if err := tx.WithContext(ctx).First(&drop, "id = ?", dropID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "drop not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load drop")
	}

	if drop.Status == enums.DropStatusClosed {
		return nil
	}

	var remaining int64
	err := tx.WithContext(ctx).
		Model(&models.DropItem{}).
		Where("drop_id = ?", dropID).
		Select("COALESCE(SUM(quantity_available - quantity_sold), 0)").
		Scan(&remaining).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum drop capacity")
	}

	next := drop.Status
	if remaining <= 0 {
		next = enums.DropStatusSoldOut
	} else if drop.Status == enums.DropStatusSoldOut {
		next = enums.DropStatusLive
	}
	if next == drop.Status {
		return nil
	}

	if err := tx.WithContext(ctx).
		Model(&models.Drop{}).
		Where("id = ?", dropID).
		Update("status", next).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update drop status")
	}
	return nil
}
