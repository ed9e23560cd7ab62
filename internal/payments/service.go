package payments

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/oddfellowcoffee/storefront-backend/internal/orders"
	"github.com/oddfellowcoffee/storefront-backend/internal/subscriptions"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

type orderService interface {
	Confirm(ctx context.Context, sessionID string, details orders.ConfirmDetails) (*models.Order, error)
	MarkExpired(ctx context.Context, sessionID string) (*models.Order, error)
}

type subscriptionService interface {
	Activate(ctx context.Context, input subscriptions.ActivateInput) (*models.Subscription, error)
	SyncFromProcessor(ctx context.Context, stripeSub *stripe.Subscription) (*models.Subscription, error)
}

// Notifier sends the post-payment emails. All calls are fire-and-forget;
// a duplicate webhook delivery may repeat a notification, state never.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order *models.Order)
	OwnerNewOrder(ctx context.Context, order *models.Order)
	SubscriptionConfirmed(ctx context.Context, sub *models.Subscription)
	OwnerNewSubscription(ctx context.Context, sub *models.Subscription)
	SubscriptionCanceled(ctx context.Context, sub *models.Subscription)
	PaymentFailed(ctx context.Context, sub *models.Subscription, payURL string)
}

type ServiceParams struct {
	Orders        orderService
	Subscriptions subscriptionService
	StripeClient  subscriptions.StripeSubscriptionClient
	Notifier      Notifier
}

// Service drives order and subscription transitions from verified Stripe
// events. It is the only writer of payment-driven state changes.
type Service struct {
	orders        orderService
	subscriptions subscriptionService
	stripe        subscriptions.StripeSubscriptionClient
	notifier      Notifier
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription service required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		orders:        params.Orders,
		subscriptions: params.Subscriptions,
		stripe:        params.StripeClient,
		notifier:      params.Notifier,
	}, nil
}

// HandleEvent dispatches a signature-verified event. Every handler is safe
// to run more than once for the same logical event; unknown event types are
// acknowledged without action.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		if session.Mode == stripe.CheckoutSessionModeSubscription {
			return s.handleSubscriptionCompleted(ctx, &session)
		}
		return s.handleOrderCompleted(ctx, &session)
	case stripe.EventTypeCheckoutSessionExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		_, err := s.orders.MarkExpired(ctx, session.ID)
		return err
	case stripe.EventTypeCustomerSubscriptionUpdated:
		stripeSub, err := decodeSubscription(event)
		if err != nil {
			return err
		}
		_, err = s.subscriptions.SyncFromProcessor(ctx, stripeSub)
		return err
	case stripe.EventTypeCustomerSubscriptionDeleted:
		stripeSub, err := decodeSubscription(event)
		if err != nil {
			return err
		}
		sub, err := s.subscriptions.SyncFromProcessor(ctx, stripeSub)
		if err != nil {
			return err
		}
		if sub != nil && s.notifier != nil {
			s.notifier.SubscriptionCanceled(ctx, sub)
		}
		return nil
	case stripe.EventTypeInvoicePaymentFailed:
		return s.handleInvoiceFailed(ctx, event)
	default:
		return nil
	}
}

// handleOrderCompleted confirms a pending one-time order. Orphan sessions
// are ignored; a duplicate delivery finds the order already confirmed and
// changes nothing.
func (s *Service) handleOrderCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	details := orders.ConfirmDetails{
		ShippingAddress: shippingAddress(session),
	}
	if name := shippingName(session); name != "" {
		details.ShippingName = &name
	}
	if session.Metadata != nil {
		if method := strings.TrimSpace(session.Metadata["shipping_method"]); method != "" {
			details.ShippingMethod = &method
		}
	}
	if session.ShippingCost != nil {
		cents := session.ShippingCost.AmountTotal
		details.ShippingCents = &cents
	}

	order, err := s.orders.Confirm(ctx, session.ID, details)
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}
	if s.notifier != nil {
		s.notifier.OrderConfirmed(ctx, order)
		s.notifier.OwnerNewOrder(ctx, order)
	}
	return nil
}

// handleSubscriptionCompleted activates a subscription from a completed
// recurring session. Activation is idempotent on the Stripe subscription id.
func (s *Service) handleSubscriptionCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.Subscription == nil || session.Subscription.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recurring session has no subscription")
	}
	if session.CustomerDetails == nil || session.CustomerDetails.Email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recurring session has no customer email")
	}
	meta, err := subscriptions.ActivationMetadataFrom(session.Metadata)
	if err != nil {
		return err
	}

	input := subscriptions.ActivateInput{
		StripeSubscriptionID: session.Subscription.ID,
		CustomerEmail:        session.CustomerDetails.Email,
		ProductID:            meta.ProductID,
		Variant:              meta.Variant,
		Frequency:            meta.Frequency,
		PriceCents:           meta.PriceCents,
		ShippingAddr:         shippingAddress(session),
	}
	if name := shippingName(session); name != "" {
		input.ShippingName = &name
	}

	sub, err := s.subscriptions.Activate(ctx, input)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.SubscriptionConfirmed(ctx, sub)
		s.notifier.OwnerNewSubscription(ctx, sub)
	}
	return nil
}

// handleInvoiceFailed mirrors the failed subscription's processor state,
// which lands it in past_due, and asks the customer to retry payment.
// One-time invoices carry no subscription id and are ignored.
func (s *Service) handleInvoiceFailed(ctx context.Context, event *stripe.Event) error {
	subscriptionID := event.GetObjectValue("subscription")
	if subscriptionID == "" {
		return nil
	}
	stripeSub, err := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}
	sub, err := s.subscriptions.SyncFromProcessor(ctx, stripeSub)
	if err != nil {
		return err
	}
	if sub != nil && s.notifier != nil {
		// Stripe hosts a pay page per invoice; customers have no account
		// here, so that page is the only place they can retry the charge.
		s.notifier.PaymentFailed(ctx, sub, event.GetObjectValue("hosted_invoice_url"))
	}
	return nil
}

func decodeSubscription(event *stripe.Event) (*stripe.Subscription, error) {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
	}
	return &stripeSub, nil
}

func shippingName(session *stripe.CheckoutSession) string {
	if session.CollectedInformation != nil && session.CollectedInformation.ShippingDetails != nil {
		if name := strings.TrimSpace(session.CollectedInformation.ShippingDetails.Name); name != "" {
			return name
		}
	}
	if session.CustomerDetails != nil {
		return strings.TrimSpace(session.CustomerDetails.Name)
	}
	return ""
}

func shippingAddress(session *stripe.CheckoutSession) *types.Address {
	if session.CollectedInformation == nil || session.CollectedInformation.ShippingDetails == nil {
		return nil
	}
	raw := session.CollectedInformation.ShippingDetails.Address
	if raw == nil {
		return nil
	}
	addr := &types.Address{
		Line1:      raw.Line1,
		City:       raw.City,
		State:      raw.State,
		PostalCode: raw.PostalCode,
		Country:    raw.Country,
	}
	if raw.Line2 != "" {
		line2 := raw.Line2
		addr.Line2 = &line2
	}
	addr.Normalize()
	if addr.IsZero() {
		return nil
	}
	return addr
}
