package subscriptions

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProductChecker validates that the subscribed product still exists.
type ProductChecker interface {
	FindSubscribable(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error)
}

// Notifier sends customer-facing subscription emails. Implementations are
// best-effort; failures must not affect the state transition.
type Notifier interface {
	SubscriptionFulfilled(ctx context.Context, sub *models.Subscription)
}

// ActivateInput captures a verified recurring-checkout completion.
type ActivateInput struct {
	StripeSubscriptionID string
	CustomerEmail        string
	ProductID            uuid.UUID
	Variant              *string
	Frequency            enums.SubscriptionFrequency
	PriceCents           int64
	ShippingName         *string
	ShippingAddr         *types.Address
}

// Service defines subscription lifecycle operations. Billing state follows
// Stripe; delivery scheduling is owned locally.
type Service interface {
	Activate(ctx context.Context, input ActivateInput) (*models.Subscription, error)
	Pause(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	Resume(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	Fulfill(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	ChangeVariant(ctx context.Context, id uuid.UUID, variant *string, priceCents int64) (*models.Subscription, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Subscription, error)
	SyncFromProcessor(ctx context.Context, stripeSub *stripe.Subscription) (*models.Subscription, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error)
	List(ctx context.Context, filter ListFilter) ([]models.Subscription, error)
	ListByEmail(ctx context.Context, email string) ([]models.Subscription, error)
	ListDueOn(ctx context.Context, day string) ([]models.Subscription, error)
}

type service struct {
	repo         Repository
	tx           txRunner
	stripe       StripeSubscriptionClient
	products     ProductChecker
	notifier     Notifier
	leadDays     int
	timeProvider func() time.Time
}

// NewService builds a subscription service with the required dependencies.
// The notifier may be nil when fulfillment emails are not wanted.
func NewService(repo Repository, tx txRunner, stripeClient StripeSubscriptionClient, products ProductChecker, notifier Notifier, firstDeliveryLeadDays int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if products == nil {
		return nil, fmt.Errorf("product checker required")
	}
	if firstDeliveryLeadDays <= 0 {
		firstDeliveryLeadDays = 5
	}
	return &service{
		repo:         repo,
		tx:           tx,
		stripe:       stripeClient,
		products:     products,
		notifier:     notifier,
		leadDays:     firstDeliveryLeadDays,
		timeProvider: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Activate records a subscription after the recurring checkout session
// completed. Idempotent on the Stripe subscription id. The product lookup
// defends against stale metadata referencing a removed product.
func (s *service) Activate(ctx context.Context, input ActivateInput) (*models.Subscription, error) {
	if strings.TrimSpace(input.StripeSubscriptionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe subscription id is required")
	}
	if strings.TrimSpace(input.CustomerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if !input.Frequency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery frequency")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	var sub *models.Subscription
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByStripeID(ctx, input.StripeSubscriptionID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		if existing != nil {
			sub = existing
			return nil
		}

		product, err := s.products.FindSubscribable(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}

		now := s.timeProvider()
		sub = &models.Subscription{
			StripeSubscriptionID: input.StripeSubscriptionID,
			CustomerEmail:        strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
			ProductID:            product.ID,
			Variant:              input.Variant,
			Frequency:            input.Frequency,
			Status:               enums.SubscriptionStatusActive,
			PriceCents:           input.PriceCents,
			ShippingName:         input.ShippingName,
			ShippingAddr:         input.ShippingAddr,
			NextDeliveryDate:     now.AddDate(0, 0, s.leadDays),
		}
		if err := repo.Create(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Pause voids collection at Stripe and then flips the local status. The
// local row is untouched when the remote call fails.
func (s *service) Pause(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == enums.SubscriptionStatusPaused {
		return sub, nil
	}
	if sub.Status != enums.SubscriptionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only active subscriptions can be paused")
	}

	params := &stripe.SubscriptionParams{
		PauseCollection: &stripe.SubscriptionPauseCollectionParams{
			Behavior: stripe.String(string(stripe.SubscriptionPauseCollectionBehaviorVoid)),
		},
	}
	if _, err := s.stripe.Update(ctx, sub.StripeSubscriptionID, params); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pause stripe subscription")
	}

	return s.applyUpdates(ctx, sub.ID, map[string]any{"status": enums.SubscriptionStatusPaused})
}

// Resume clears the Stripe pause and then flips the local status back.
func (s *service) Resume(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == enums.SubscriptionStatusActive {
		return sub, nil
	}
	if sub.Status != enums.SubscriptionStatusPaused {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paused subscriptions can be resumed")
	}

	params := &stripe.SubscriptionParams{}
	params.AddExtra("pause_collection", "")
	if _, err := s.stripe.Update(ctx, sub.StripeSubscriptionID, params); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resume stripe subscription")
	}

	return s.applyUpdates(ctx, sub.ID, map[string]any{"status": enums.SubscriptionStatusActive})
}

// Fulfill records a completed delivery and schedules the next one from now,
// not from the previous date, so a late shipment does not compress the next
// interval. A fulfillment before the scheduled date is rejected to keep a
// double submit from advancing the schedule twice.
func (s *service) Fulfill(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub *models.Subscription
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stored, err := repo.FindByID(ctx, id)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		if stored.Status != enums.SubscriptionStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not active")
		}

		now := s.timeProvider()
		if stored.NextDeliveryDate.After(now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "next delivery is not due yet")
		}

		next := stored.Frequency.NextDelivery(now)
		updates := map[string]any{
			"next_delivery_date": next,
			"last_fulfilled_at":  now,
		}
		if err := repo.Update(ctx, stored.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
		}
		stored.NextDeliveryDate = next
		stored.LastFulfilledAt = &now
		sub = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.SubscriptionFulfilled(ctx, sub)
	}
	return sub, nil
}

// ChangeVariant swaps the subscribed variant and repoints the Stripe item
// at a new inline price before persisting locally.
func (s *service) ChangeVariant(ctx context.Context, id uuid.UUID, variant *string, priceCents int64) (*models.Subscription, error) {
	if priceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == enums.SubscriptionStatusCanceled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is canceled")
	}

	remote, err := s.stripe.Get(ctx, sub.StripeSubscriptionID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stripe subscription")
	}
	itemID, stripeProductID := subscriptionItem(remote)
	if itemID == "" || stripeProductID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription has no priced item")
	}

	interval, intervalCount := recurringInterval(sub.Frequency)
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{{
			ID: stripe.String(itemID),
			PriceData: &stripe.SubscriptionItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				Product:    stripe.String(stripeProductID),
				UnitAmount: stripe.Int64(priceCents),
				Recurring: &stripe.SubscriptionItemPriceDataRecurringParams{
					Interval:      stripe.String(interval),
					IntervalCount: stripe.Int64(intervalCount),
				},
			},
		}},
		ProrationBehavior: stripe.String("none"),
	}
	if _, err := s.stripe.Update(ctx, sub.StripeSubscriptionID, params); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stripe subscription price")
	}

	return s.applyUpdates(ctx, sub.ID, map[string]any{
		"variant":     variant,
		"price_cents": priceCents,
	})
}

// Cancel schedules cancellation at period end. The status stays as-is until
// the processor's subscription-deleted event flips it to canceled.
func (s *service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == enums.SubscriptionStatusCanceled {
		return sub, nil
	}
	if sub.CancelAtPeriodEnd {
		return sub, nil
	}

	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	if _, err := s.stripe.Update(ctx, sub.StripeSubscriptionID, params); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel stripe subscription")
	}

	updates := map[string]any{"cancel_at_period_end": true}
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		updates["cancel_reason"] = trimmed
	}
	return s.applyUpdates(ctx, sub.ID, updates)
}

// SyncFromProcessor mirrors the processor's billing state onto the local
// row. Webhook-driven; this is the only path that clears past_due back to
// active. Unknown subscriptions are ignored so replayed events for deleted
// rows stay harmless.
func (s *service) SyncFromProcessor(ctx context.Context, stripeSub *stripe.Subscription) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}

	var sub *models.Subscription
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stored, err := repo.FindByStripeID(ctx, stripeSub.ID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}

		updates := map[string]any{
			"status":               StatusFromProcessor(stripeSub, stored.Status),
			"cancel_at_period_end": stripeSub.CancelAtPeriodEnd,
		}
		if end := periodEnd(stripeSub); end != nil {
			updates["current_period_end"] = *end
		}
		if err := repo.Update(ctx, stored.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
		}

		stored.Status = updates["status"].(enums.SubscriptionStatus)
		stored.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
		if end := periodEnd(stripeSub); end != nil {
			stored.CurrentPeriodEnd = end
		}
		sub = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return sub, nil
}

func (s *service) GetByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	sub, err := s.repo.FindByStripeID(ctx, stripeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return sub, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Subscription, error) {
	subs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	return subs, nil
}

func (s *service) ListByEmail(ctx context.Context, email string) ([]models.Subscription, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	return s.List(ctx, ListFilter{CustomerEmail: trimmed})
}

// ListDueOn surfaces active subscriptions with a delivery scheduled on or
// before the given day, for the digest and the admin calendar.
func (s *service) ListDueOn(ctx context.Context, day string) ([]models.Subscription, error) {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "day must be formatted YYYY-MM-DD")
	}
	return s.repo.ListDueOn(ctx, day)
}

func (s *service) applyUpdates(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Subscription, error) {
	if err := s.repo.Update(ctx, id, updates); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return s.Get(ctx, id)
}

// StatusFromProcessor maps Stripe's subscription status onto the local
// enum. Unrecognized statuses keep the stored value.
func StatusFromProcessor(stripeSub *stripe.Subscription, fallback enums.SubscriptionStatus) enums.SubscriptionStatus {
	if stripeSub == nil {
		return fallback
	}
	if stripeSub.PauseCollection != nil && stripeSub.PauseCollection.Behavior != "" {
		return enums.SubscriptionStatusPaused
	}
	switch stripeSub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusPaused:
		return enums.SubscriptionStatusPaused
	default:
		return fallback
	}
}

// ActivationMetadata is the checkout-session metadata a recurring session
// carries so the webhook can activate the subscription.
type ActivationMetadata struct {
	ProductID  uuid.UUID
	Frequency  enums.SubscriptionFrequency
	Variant    *string
	PriceCents int64
}

// ActivationMetadataFrom parses the metadata attached at session creation.
func ActivationMetadataFrom(meta map[string]string) (ActivationMetadata, error) {
	var parsed ActivationMetadata
	if meta == nil {
		return parsed, pkgerrors.New(pkgerrors.CodeValidation, "session metadata is required")
	}

	productID, err := uuid.Parse(strings.TrimSpace(meta["product_id"]))
	if err != nil {
		return parsed, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id metadata")
	}
	frequency, err := enums.ParseSubscriptionFrequency(strings.TrimSpace(meta["frequency"]))
	if err != nil {
		return parsed, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid frequency metadata")
	}
	priceCents, err := strconv.ParseInt(strings.TrimSpace(meta["price_cents"]), 10, 64)
	if err != nil || priceCents <= 0 {
		return parsed, pkgerrors.New(pkgerrors.CodeValidation, "invalid price_cents metadata")
	}

	parsed.ProductID = productID
	parsed.Frequency = frequency
	parsed.PriceCents = priceCents
	if variant := strings.TrimSpace(meta["variant"]); variant != "" {
		parsed.Variant = &variant
	}
	return parsed, nil
}

func subscriptionItem(sub *stripe.Subscription) (itemID, productID string) {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return "", ""
	}
	item := sub.Items.Data[0]
	if item == nil {
		return "", ""
	}
	itemID = item.ID
	if item.Price != nil && item.Price.Product != nil {
		productID = item.Price.Product.ID
	}
	return itemID, productID
}

func periodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	item := sub.Items.Data[0]
	if item == nil || item.CurrentPeriodEnd == 0 {
		return nil
	}
	end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
	return &end
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
