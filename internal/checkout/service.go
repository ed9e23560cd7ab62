package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/internal/orders"
	pkgcheckout "github.com/oddfellowcoffee/storefront-backend/pkg/checkout"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

// Shipping methods accepted at checkout.
const (
	MethodPickup   = "pickup"
	MethodDelivery = "delivery"
	MethodShipping = "shipping"
)

type orderCreator interface {
	CreatePending(ctx context.Context, input orders.CreatePendingInput) (*models.Order, error)
	AttachSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	ExpireByID(ctx context.Context, orderID uuid.UUID) error
}

// ProductCatalog resolves products for subscription checkout validation.
type ProductCatalog interface {
	FindSubscribable(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// ReservationStore persists the optional pickup/delivery booking attached
// to an order checkout.
type ReservationStore interface {
	Create(ctx context.Context, reservation *models.Reservation) error
}

// Options carries the storefront checkout settings.
type Options struct {
	SiteURL           string
	LocalZip          string
	FlatShippingCents int64
	SessionTTL        time.Duration
}

// ReservationInput books a pickup or delivery window alongside the order.
type ReservationInput struct {
	Date     time.Time
	TimeSlot string
}

// OrderSessionInput is a storefront cart submission. Prices are never taken
// from the client; the order service re-derives them.
type OrderSessionInput struct {
	CustomerEmail  string
	CustomerName   string
	DropID         *uuid.UUID
	Items          []orders.LineInput
	ShippingMethod string
	PostalCode     string
	Reservation    *ReservationInput
}

// SubscriptionSessionInput starts a recurring coffee checkout.
type SubscriptionSessionInput struct {
	CustomerEmail string
	ProductID     uuid.UUID
	Variant       *string
	Frequency     enums.SubscriptionFrequency
	PostalCode    string
}

// SessionResult points the storefront at the hosted payment page.
type SessionResult struct {
	SessionID string
	URL       string
	OrderID   *uuid.UUID
}

// Service composes carts into hosted checkout sessions. It owns no payment
// state; the webhook processor drives everything after redirect.
type Service struct {
	orders       orderCreator
	stripe       StripeCheckoutClient
	catalog      ProductCatalog
	reservations ReservationStore
	log          *logger.Logger
	opts         Options
}

// NewService builds a checkout service. Reservations may be nil when slot
// booking is disabled.
func NewService(ordersSvc orderCreator, stripeClient StripeCheckoutClient, catalog ProductCatalog, reservations ReservationStore, log *logger.Logger, opts Options) (*Service, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	return &Service{
		orders:       ordersSvc,
		stripe:       stripeClient,
		catalog:      catalog,
		reservations: reservations,
		log:          log,
		opts:         opts,
	}, nil
}

// CreateOrderSession reserves drop stock, creates the pending order, and
// opens a one-time hosted session. A session failure rolls the pending
// order back so the reservation is released immediately instead of waiting
// for expiry.
func (s *Service) CreateOrderSession(ctx context.Context, input OrderSessionInput) (*SessionResult, error) {
	method := strings.TrimSpace(input.ShippingMethod)
	if method == "" {
		method = MethodPickup
	}
	if method != MethodPickup && method != MethodDelivery && method != MethodShipping {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping method")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	lines := make([]pkgcheckout.LineQuantity, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, pkgcheckout.LineQuantity{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if err := pkgcheckout.ValidateLineQuantities(lines, pkgcheckout.DefaultMaxPerLine); err != nil {
		return nil, err
	}

	shippingCents := s.shippingCents(method, input.PostalCode)
	order, err := s.orders.CreatePending(ctx, orders.CreatePendingInput{
		CustomerEmail:  input.CustomerEmail,
		CustomerName:   input.CustomerName,
		DropID:         input.DropID,
		Items:          input.Items,
		ShippingMethod: &method,
		ShippingCents:  shippingCents,
	})
	if err != nil {
		return nil, err
	}
	ctx = s.log.WithOrderID(ctx, order.ID.String())

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(s.opts.SiteURL + "/thanks?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(s.opts.SiteURL + "/cart"),
		CustomerEmail: stripe.String(order.CustomerEmail),
		ExpiresAt:     stripe.Int64(time.Now().Add(s.opts.SessionTTL).Unix()),
		LineItems:     orderLineItems(order.Items),
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("shipping_method", method)
	if method == MethodShipping {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"US"}),
		}
	}
	if shippingCents > 0 || method == MethodShipping {
		params.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{{
			ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
				DisplayName: stripe.String(shippingLabel(method)),
				Type:        stripe.String("fixed_amount"),
				FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
					Amount:   stripe.Int64(shippingCents),
					Currency: stripe.String(string(stripe.CurrencyUSD)),
				},
			},
		}}
	}

	sess, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		if expireErr := s.orders.ExpireByID(ctx, order.ID); expireErr != nil {
			s.log.Error(ctx, "rollback pending order after session failure", expireErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	if err := s.orders.AttachSession(ctx, order.ID, sess.ID); err != nil {
		return nil, err
	}

	if input.Reservation != nil && method != MethodShipping {
		s.createReservation(ctx, order, input.Reservation)
	}

	orderID := order.ID
	return &SessionResult{SessionID: sess.ID, URL: sess.URL, OrderID: &orderID}, nil
}

// CreateSubscriptionSession opens a recurring hosted session. The product
// must still be active and subscribable; the resolved price and terms ride
// along as metadata for the webhook to activate from.
func (s *Service) CreateSubscriptionSession(ctx context.Context, input SubscriptionSessionInput) (*SessionResult, error) {
	if strings.TrimSpace(input.CustomerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if !input.Frequency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery frequency")
	}

	product, err := s.catalog.FindSubscribable(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	priceCents := product.PriceCents
	name := product.Name
	if input.Variant != nil {
		if product.Variants == nil || product.Variants.Find(*input.Variant) == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product variant")
		}
		priceCents = product.Variants.PriceCentsFor(*input.Variant, product.PriceCents)
		name = name + " (" + *input.Variant + ")"
	}

	shippingCents := s.shippingCents(MethodShipping, input.PostalCode)
	interval, intervalCount := recurringInterval(input.Frequency)

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:    stripe.String(s.opts.SiteURL + "/thanks?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(s.opts.SiteURL + "/subscribe"),
		CustomerEmail: stripe.String(strings.TrimSpace(input.CustomerEmail)),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"US"}),
		},
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(priceCents + shippingCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval:      stripe.String(interval),
					IntervalCount: stripe.Int64(intervalCount),
				},
			},
		}},
	}
	params.AddMetadata("product_id", product.ID.String())
	params.AddMetadata("frequency", input.Frequency.String())
	params.AddMetadata("price_cents", fmt.Sprintf("%d", priceCents))
	if input.Variant != nil {
		params.AddMetadata("variant", *input.Variant)
	}

	sess, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription session")
	}
	return &SessionResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// shippingCents applies the single-shop rule: pickup and local delivery are
// free, shipped orders pay the flat rate unless the address is in the home
// zip.
func (s *Service) shippingCents(method, postalCode string) int64 {
	if method != MethodShipping {
		return 0
	}
	zip := strings.TrimSpace(postalCode)
	if s.opts.LocalZip != "" && strings.HasPrefix(zip, s.opts.LocalZip) {
		return 0
	}
	return s.opts.FlatShippingCents
}

// createReservation books the chosen slot best-effort. Checkout has already
// succeeded at this point; a booking failure is logged for the owner to
// reconcile, never surfaced to the shopper.
func (s *Service) createReservation(ctx context.Context, order *models.Order, input *ReservationInput) {
	if s.reservations == nil {
		return
	}
	items := make(types.ReservationItems, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, types.ReservationItem{Name: item.ProductName, Quantity: item.Quantity})
	}
	orderID := order.ID
	reservation := &models.Reservation{
		OrderID:         &orderID,
		ReservationDate: input.Date,
		TimeSlot:        input.TimeSlot,
		Items:           items,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		Status:          enums.ReservationStatusConfirmed,
	}
	if err := s.reservations.Create(ctx, reservation); err != nil {
		s.log.Error(ctx, "create checkout reservation", err)
	}
}

func orderLineItems(items types.OrderItems) []*stripe.CheckoutSessionLineItemParams {
	out := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		name := item.ProductName
		if item.Variant != nil && *item.Variant != "" {
			name = name + " (" + *item.Variant + ")"
		}
		out = append(out, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(item.UnitPriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		})
	}
	return out
}

func shippingLabel(method string) string {
	if method == MethodDelivery {
		return "Local delivery"
	}
	return "Shipping"
}

func recurringInterval(frequency enums.SubscriptionFrequency) (string, int64) {
	switch frequency {
	case enums.FrequencyWeekly:
		return "week", 1
	case enums.FrequencyBiweekly:
		return "week", 2
	default:
		return "month", 1
	}
}

// NewProductCatalog exposes the default gorm-backed catalog lookup.
func NewProductCatalog(db *gorm.DB) ProductCatalog {
	return &productCatalog{db: db}
}

type productCatalog struct {
	db *gorm.DB
}

func (c *productCatalog) FindSubscribable(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := c.db.WithContext(ctx).First(&product, "id = ? AND active = ? AND subscribable = ?", id, true, true).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product not available for subscription")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}
