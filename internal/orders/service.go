package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/internal/inventory"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DropInventory reserves and releases drop capacity inside a transaction.
type DropInventory interface {
	Reserve(ctx context.Context, tx *gorm.DB, dropID uuid.UUID, requests []inventory.DropReservationRequest) ([]inventory.ReservedLine, error)
	Release(ctx context.Context, tx *gorm.DB, dropID uuid.UUID, items []inventory.ReleaseItem) error
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// ProductLoader resolves catalog products for validation and pricing.
type ProductLoader interface {
	FindActive(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error)
}

// StageNotifier sends customer-facing fulfillment updates. Implementations
// are best-effort; failures must not affect the order transition.
type StageNotifier interface {
	OrderReady(ctx context.Context, order *models.Order)
	OrderShipped(ctx context.Context, order *models.Order)
}

// LineInput is one requested line on a new order. DropItemID is set for
// drop purchases; catalog purchases price from the product row.
type LineInput struct {
	ProductID  uuid.UUID
	DropItemID *uuid.UUID
	Quantity   int
	Variant    *string
}

// CreatePendingInput captures a checkout in progress. Prices are always
// re-derived server-side from the catalog and the drop reservation engine.
type CreatePendingInput struct {
	CustomerEmail  string
	CustomerName   string
	DropID         *uuid.UUID
	Items          []LineInput
	ShippingMethod *string
	ShippingCents  int64
}

// ConfirmDetails is the shipping snapshot captured from the payment session.
type ConfirmDetails struct {
	ShippingName    *string
	ShippingAddress *types.Address
	ShippingMethod  *string
	ShippingCents   *int64
}

// ShippingInput updates the shipping snapshot from the admin.
type ShippingInput struct {
	Name    *string
	Address *types.Address
	Method  *string
	Cents   *int64
}

// BulkUpdateResult reports per-id outcomes of a bulk status update.
type BulkUpdateResult struct {
	UpdatedIDs []uuid.UUID
	MissingIDs []uuid.UUID
}

// Service defines order lifecycle operations.
type Service interface {
	CreatePending(ctx context.Context, input CreatePendingInput) (*models.Order, error)
	AttachSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	Confirm(ctx context.Context, sessionID string, details ConfirmDetails) (*models.Order, error)
	MarkExpired(ctx context.Context, sessionID string) (*models.Order, error)
	ExpireByID(ctx context.Context, orderID uuid.UUID) error
	AdvanceStage(ctx context.Context, orderID uuid.UUID, stage enums.OrderStage) (*models.Order, error)
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.OrderStatus) (BulkUpdateResult, error)
	SetShipping(ctx context.Context, orderID uuid.UUID, input ShippingInput) error
	SetTracking(ctx context.Context, orderID uuid.UUID, trackingNumber string) error
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory DropInventory
	products  ProductLoader
	notifier  StageNotifier
}

// NewService builds an order service with the required dependencies. The
// notifier may be nil when stage notifications are not wanted.
func NewService(repo Repository, tx txRunner, inv DropInventory, products ProductLoader, notifier StageNotifier) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inv == nil {
		return nil, fmt.Errorf("drop inventory required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		inventory: inv,
		products:  products,
		notifier:  notifier,
	}, nil
}

func (s *service) CreatePending(ctx context.Context, input CreatePendingInput) (*models.Order, error) {
	if input.CustomerEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}

	var dropRequests []inventory.DropReservationRequest
	for _, line := range input.Items {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if line.DropItemID != nil {
			if input.DropID == nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "drop items require a drop id")
			}
			dropRequests = append(dropRequests, inventory.DropReservationRequest{
				DropItemID: *line.DropItemID,
				Quantity:   line.Quantity,
			})
		}
	}

	order := &models.Order{
		DropID:         input.DropID,
		CustomerEmail:  input.CustomerEmail,
		CustomerName:   input.CustomerName,
		Status:         enums.OrderStatusPending,
		ShippingMethod: input.ShippingMethod,
		ShippingCents:  input.ShippingCents,
		// Placeholder until the payment session is opened; unique per order.
		StripeSessionID: "pending_" + uuid.NewString(),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var reserved map[uuid.UUID]inventory.ReservedLine
		if len(dropRequests) > 0 {
			lines, err := s.inventory.Reserve(ctx, tx, *input.DropID, dropRequests)
			if err != nil {
				return err
			}
			reserved = make(map[uuid.UUID]inventory.ReservedLine, len(lines))
			for _, line := range lines {
				reserved[line.DropItemID] = line
			}
		}

		items := make(types.OrderItems, 0, len(input.Items))
		for _, line := range input.Items {
			if line.DropItemID != nil {
				res, ok := reserved[*line.DropItemID]
				if !ok {
					return pkgerrors.New(pkgerrors.CodeInternal, "reservation result missing for drop item")
				}
				items = append(items, types.OrderItem{
					ProductID:      res.ProductID,
					ProductName:    res.ProductName,
					Quantity:       line.Quantity,
					UnitPriceCents: res.UnitPriceCents,
					Variant:        line.Variant,
					DropItemID:     line.DropItemID,
				})
				continue
			}

			product, err := s.products.FindActive(ctx, tx, line.ProductID)
			if err != nil {
				return err
			}
			price := product.PriceCents
			if line.Variant != nil {
				if product.Variants == nil || product.Variants.Find(*line.Variant) == nil {
					return pkgerrors.New(pkgerrors.CodeValidation,
						fmt.Sprintf("unknown variant %q for product %s", *line.Variant, product.Name))
				}
				price = product.Variants.PriceCentsFor(*line.Variant, product.PriceCents)
			}
			items = append(items, types.OrderItem{
				ProductID:      product.ID,
				ProductName:    product.Name,
				Quantity:       line.Quantity,
				UnitPriceCents: price,
				Variant:        line.Variant,
			})
		}

		order.Items = items
		order.TotalCents = items.TotalCents() + input.ShippingCents

		return s.repo.WithTx(tx).Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) AttachSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if err := s.repo.Update(ctx, orderID, map[string]any{"stripe_session_id": sessionID}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach payment session")
	}
	return nil
}

func (s *service) Confirm(ctx context.Context, sessionID string, details ConfirmDetails) (*models.Order, error) {
	var confirmed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByStripeSession(ctx, sessionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				// Orphan session: the processor knows about a session we
				// never recorded. Acknowledge and move on.
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by session")
		}

		if order.Status == enums.OrderStatusConfirmed {
			confirmed = order
			return nil
		}
		if order.Status == enums.OrderStatusExpired {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already expired")
		}

		now := time.Now().UTC()
		stage := enums.OrderStageOrdered
		updates := map[string]any{
			"status":       enums.OrderStatusConfirmed,
			"stage":        stage,
			"confirmed_at": now,
		}
		if details.ShippingName != nil {
			updates["shipping_name"] = *details.ShippingName
		}
		if details.ShippingAddress != nil {
			addr := *details.ShippingAddress
			addr.Normalize()
			order.ShippingAddr = &addr
			updates["shipping_address"] = order.ShippingAddr
		}
		if details.ShippingMethod != nil {
			updates["shipping_method"] = *details.ShippingMethod
		}
		if details.ShippingCents != nil {
			updates["shipping_cents"] = *details.ShippingCents
			// total_cents is always items plus shipping; the pending order
			// was created before a shipping method was chosen.
			updates["total_cents"] = order.Items.TotalCents() + *details.ShippingCents
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}

		// Standing stock moves at confirmation, not reservation. Drop lines
		// already consumed drop capacity at checkout.
		for _, item := range order.Items {
			if item.DropItemID != nil {
				continue
			}
			if err := s.inventory.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		order.Status = enums.OrderStatusConfirmed
		order.Stage = &stage
		order.ConfirmedAt = &now
		if details.ShippingName != nil {
			order.ShippingName = details.ShippingName
		}
		if details.ShippingMethod != nil {
			order.ShippingMethod = details.ShippingMethod
		}
		if details.ShippingCents != nil {
			order.ShippingCents = *details.ShippingCents
			order.TotalCents = order.Items.TotalCents() + *details.ShippingCents
		}
		confirmed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *service) MarkExpired(ctx context.Context, sessionID string) (*models.Order, error) {
	var expired *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByStripeSession(ctx, sessionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by session")
		}
		if order.Status != enums.OrderStatusPending {
			// Confirmed orders are never reverted by a late expiry event.
			return nil
		}
		if err := s.expireLocked(ctx, tx, repo, order); err != nil {
			return err
		}
		expired = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *service) ExpireByID(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be expired")
		}
		return s.expireLocked(ctx, tx, repo, order)
	})
}

// expireLocked releases drop reservations and flips the order to expired
// inside the caller's transaction.
func (s *service) expireLocked(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	if order.DropID != nil {
		var releases []inventory.ReleaseItem
		for _, item := range order.Items {
			if item.DropItemID != nil {
				releases = append(releases, inventory.ReleaseItem{
					DropItemID: *item.DropItemID,
					Quantity:   item.Quantity,
				})
			}
		}
		if len(releases) > 0 {
			if err := s.inventory.Release(ctx, tx, *order.DropID, releases); err != nil {
				return err
			}
		}
	}

	if err := repo.Update(ctx, order.ID, map[string]any{"status": enums.OrderStatusExpired}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire order")
	}
	order.Status = enums.OrderStatusExpired
	return nil
}

func (s *service) AdvanceStage(ctx context.Context, orderID uuid.UUID, stage enums.OrderStage) (*models.Order, error) {
	if !stage.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order stage")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "stage updates require a confirmed order")
		}

		if err := repo.Update(ctx, order.ID, map[string]any{"stage": stage}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order stage")
		}
		order.Stage = &stage
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		switch stage {
		case enums.OrderStageReady:
			s.notifier.OrderReady(ctx, updated)
		case enums.OrderStageShipped:
			s.notifier.OrderShipped(ctx, updated)
		}
	}
	return updated, nil
}

func (s *service) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.OrderStatus) (BulkUpdateResult, error) {
	var result BulkUpdateResult
	if !status.IsValid() {
		return result, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	// Each id succeeds or fails on its own; one missing order never aborts
	// the rest of the batch.
	for _, id := range ids {
		_, err := s.repo.FindByID(ctx, id)
		if err == gorm.ErrRecordNotFound {
			result.MissingIDs = append(result.MissingIDs, id)
			continue
		}
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := s.repo.Update(ctx, id, map[string]any{"status": status}); err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		result.UpdatedIDs = append(result.UpdatedIDs, id)
	}
	return result, nil
}

func (s *service) SetShipping(ctx context.Context, orderID uuid.UUID, input ShippingInput) error {
	updates := map[string]any{}
	if input.Name != nil {
		updates["shipping_name"] = *input.Name
	}
	if input.Address != nil {
		addr := *input.Address
		addr.Normalize()
		updates["shipping_address"] = &addr
	}
	if input.Method != nil {
		updates["shipping_method"] = *input.Method
	}
	if len(updates) == 0 && input.Cents == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "no shipping fields provided")
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if input.Cents != nil {
		updates["shipping_cents"] = *input.Cents
		updates["total_cents"] = order.Items.TotalCents() + *input.Cents
	}
	if err := s.repo.Update(ctx, orderID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipping")
	}
	return nil
}

func (s *service) SetTracking(ctx context.Context, orderID uuid.UUID, trackingNumber string) error {
	if trackingNumber == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}
	if _, err := s.Get(ctx, orderID); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, orderID, map[string]any{"tracking_number": trackingNumber}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tracking number")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

type dropInventoryImpl struct{}

// NewDropInventory exposes the default reservation engine implementation.
func NewDropInventory() DropInventory {
	return dropInventoryImpl{}
}

func (dropInventoryImpl) Reserve(ctx context.Context, tx *gorm.DB, dropID uuid.UUID, requests []inventory.DropReservationRequest) ([]inventory.ReservedLine, error) {
	return inventory.Reserve(ctx, tx, dropID, requests)
}

func (dropInventoryImpl) Release(ctx context.Context, tx *gorm.DB, dropID uuid.UUID, items []inventory.ReleaseItem) error {
	return inventory.Release(ctx, tx, dropID, items)
}

func (dropInventoryImpl) DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return inventory.DecrementStock(ctx, tx, productID, qty)
}

type productLoaderImpl struct{}

// NewProductLoader exposes the default catalog lookup implementation.
func NewProductLoader() ProductLoader {
	return productLoaderImpl{}
}

func (productLoaderImpl) FindActive(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := tx.WithContext(ctx).First(&product, "id = ? AND active = ?", id, true).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product not available")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}
