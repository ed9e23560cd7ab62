package payments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/oddfellowcoffee/storefront-backend/internal/orders"
	"github.com/oddfellowcoffee/storefront-backend/internal/subscriptions"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

type stubOrderService struct {
	confirmed      []string
	confirmDetails orders.ConfirmDetails
	confirmResult  *models.Order
	confirmErr     error
	expired        []string
	expireResult   *models.Order
}

func (s *stubOrderService) Confirm(ctx context.Context, sessionID string, details orders.ConfirmDetails) (*models.Order, error) {
	s.confirmed = append(s.confirmed, sessionID)
	s.confirmDetails = details
	return s.confirmResult, s.confirmErr
}

func (s *stubOrderService) MarkExpired(ctx context.Context, sessionID string) (*models.Order, error) {
	s.expired = append(s.expired, sessionID)
	return s.expireResult, nil
}

type stubSubscriptionService struct {
	activated    []subscriptions.ActivateInput
	activateRes  *models.Subscription
	activateErr  error
	synced       []*stripe.Subscription
	syncResult   *models.Subscription
	syncErr      error
}

func (s *stubSubscriptionService) Activate(ctx context.Context, input subscriptions.ActivateInput) (*models.Subscription, error) {
	s.activated = append(s.activated, input)
	if s.activateErr != nil {
		return nil, s.activateErr
	}
	if s.activateRes != nil {
		return s.activateRes, nil
	}
	return &models.Subscription{ID: uuid.New(), StripeSubscriptionID: input.StripeSubscriptionID}, nil
}

func (s *stubSubscriptionService) SyncFromProcessor(ctx context.Context, stripeSub *stripe.Subscription) (*models.Subscription, error) {
	s.synced = append(s.synced, stripeSub)
	return s.syncResult, s.syncErr
}

type stubStripeGetter struct {
	result *stripe.Subscription
	err    error
	gets   []string
}

func (s *stubStripeGetter) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.gets = append(s.gets, id)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &stripe.Subscription{ID: id}, nil
}

func (s *stubStripeGetter) Update(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return &stripe.Subscription{ID: id}, nil
}

type recordingNotifier struct {
	orderConfirmed       int
	ownerNewOrder        int
	subscriptionOK       int
	ownerNewSubscription int
	subscriptionGone     int
	paymentFailed        int
	paymentFailedURL     string
}

func (n *recordingNotifier) OrderConfirmed(ctx context.Context, order *models.Order)          { n.orderConfirmed++ }
func (n *recordingNotifier) OwnerNewOrder(ctx context.Context, order *models.Order)           { n.ownerNewOrder++ }
func (n *recordingNotifier) SubscriptionConfirmed(ctx context.Context, sub *models.Subscription) {
	n.subscriptionOK++
}
func (n *recordingNotifier) OwnerNewSubscription(ctx context.Context, sub *models.Subscription) {
	n.ownerNewSubscription++
}
func (n *recordingNotifier) SubscriptionCanceled(ctx context.Context, sub *models.Subscription) {
	n.subscriptionGone++
}
func (n *recordingNotifier) PaymentFailed(ctx context.Context, sub *models.Subscription, payURL string) {
	n.paymentFailed++
	n.paymentFailedURL = payURL
}

func newTestService(t *testing.T, ordersSvc *stubOrderService, subsSvc *stubSubscriptionService, stripeClient *stubStripeGetter, notifier Notifier) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Orders:        ordersSvc,
		Subscriptions: subsSvc,
		StripeClient:  stripeClient,
		Notifier:      notifier,
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func sessionEvent(t *testing.T, eventType stripe.EventType, session map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestHandleEvent_CompletedPaymentConfirmsAndNotifies(t *testing.T) {
	ordersSvc := &stubOrderService{confirmResult: &models.Order{ID: uuid.New(), Status: enums.OrderStatusConfirmed}}
	notifier := &recordingNotifier{}
	svc := newTestService(t, ordersSvc, &stubSubscriptionService{}, &stubStripeGetter{}, notifier)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":   "cs_1",
		"mode": "payment",
		"customer_details": map[string]any{
			"email": "kim@example.com",
			"name":  "Kim",
		},
		"collected_information": map[string]any{
			"shipping_details": map[string]any{
				"name": "Kim Doe",
				"address": map[string]any{
					"line1":       "12 Main St",
					"city":        "Tonkawa",
					"state":       "OK",
					"postal_code": "74653",
				},
			},
		},
		"shipping_cost": map[string]any{"amount_total": 599},
		"metadata":      map[string]any{"shipping_method": "flat"},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if len(ordersSvc.confirmed) != 1 || ordersSvc.confirmed[0] != "cs_1" {
		t.Fatalf("expected confirm for cs_1, got %v", ordersSvc.confirmed)
	}
	details := ordersSvc.confirmDetails
	if details.ShippingName == nil || *details.ShippingName != "Kim Doe" {
		t.Fatalf("expected shipping name captured")
	}
	if details.ShippingAddress == nil || details.ShippingAddress.PostalCode != "74653" {
		t.Fatalf("expected shipping address captured")
	}
	if details.ShippingAddress.Country != "US" {
		t.Fatalf("expected country defaulted to US, got %q", details.ShippingAddress.Country)
	}
	if details.ShippingCents == nil || *details.ShippingCents != 599 {
		t.Fatalf("expected shipping cost 599")
	}
	if notifier.orderConfirmed != 1 || notifier.ownerNewOrder != 1 {
		t.Fatalf("expected customer and owner emails, got %+v", notifier)
	}
}

func TestHandleEvent_OrphanSessionIgnored(t *testing.T) {
	ordersSvc := &stubOrderService{confirmResult: nil}
	notifier := &recordingNotifier{}
	svc := newTestService(t, ordersSvc, &stubSubscriptionService{}, &stubStripeGetter{}, notifier)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":   "cs_unknown",
		"mode": "payment",
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected orphan to be ignored, got %v", err)
	}
	if notifier.orderConfirmed != 0 {
		t.Fatalf("expected no emails for orphan session")
	}
}

func TestHandleEvent_CompletedRecurringActivates(t *testing.T) {
	subsSvc := &stubSubscriptionService{}
	notifier := &recordingNotifier{}
	svc := newTestService(t, &stubOrderService{}, subsSvc, &stubStripeGetter{}, notifier)

	productID := uuid.New()
	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":           "cs_sub",
		"mode":         "subscription",
		"subscription": map[string]any{"id": "sub_9"},
		"customer_details": map[string]any{
			"email": "kim@example.com",
			"name":  "Kim",
		},
		"metadata": map[string]any{
			"product_id":  productID.String(),
			"frequency":   "weekly",
			"price_cents": "1800",
		},
	})

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if len(subsSvc.activated) != 1 {
		t.Fatalf("expected one activation, got %d", len(subsSvc.activated))
	}
	input := subsSvc.activated[0]
	if input.StripeSubscriptionID != "sub_9" || input.ProductID != productID {
		t.Fatalf("unexpected activation input: %+v", input)
	}
	if input.Frequency != enums.FrequencyWeekly || input.PriceCents != 1800 {
		t.Fatalf("unexpected activation terms: %+v", input)
	}
	if notifier.subscriptionOK != 1 || notifier.ownerNewSubscription != 1 {
		t.Fatalf("expected confirmation emails, got %+v", notifier)
	}
}

func TestHandleEvent_RecurringBadMetadataRejected(t *testing.T) {
	subsSvc := &stubSubscriptionService{}
	svc := newTestService(t, &stubOrderService{}, subsSvc, &stubStripeGetter{}, nil)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":               "cs_sub",
		"mode":             "subscription",
		"subscription":     map[string]any{"id": "sub_9"},
		"customer_details": map[string]any{"email": "kim@example.com"},
		"metadata":         map[string]any{"product_id": "not-a-uuid"},
	})

	err := svc.HandleEvent(context.Background(), event)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(subsSvc.activated) != 0 {
		t.Fatalf("expected no activation")
	}
}

func TestHandleEvent_SessionExpired(t *testing.T) {
	ordersSvc := &stubOrderService{}
	svc := newTestService(t, ordersSvc, &stubSubscriptionService{}, &stubStripeGetter{}, nil)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, map[string]any{"id": "cs_gone"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if len(ordersSvc.expired) != 1 || ordersSvc.expired[0] != "cs_gone" {
		t.Fatalf("expected expire for cs_gone, got %v", ordersSvc.expired)
	}
}

func TestHandleEvent_SubscriptionUpdatedSyncs(t *testing.T) {
	subsSvc := &stubSubscriptionService{syncResult: &models.Subscription{ID: uuid.New()}}
	svc := newTestService(t, &stubOrderService{}, subsSvc, &stubStripeGetter{}, nil)

	event := sessionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, map[string]any{
		"id":     "sub_9",
		"status": "past_due",
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if len(subsSvc.synced) != 1 || subsSvc.synced[0].ID != "sub_9" {
		t.Fatalf("expected sync for sub_9")
	}
}

func TestHandleEvent_SubscriptionDeletedNotifies(t *testing.T) {
	subsSvc := &stubSubscriptionService{syncResult: &models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusCanceled}}
	notifier := &recordingNotifier{}
	svc := newTestService(t, &stubOrderService{}, subsSvc, &stubStripeGetter{}, notifier)

	event := sessionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, map[string]any{
		"id":     "sub_9",
		"status": "canceled",
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if notifier.subscriptionGone != 1 {
		t.Fatalf("expected cancellation email")
	}
}

func TestHandleEvent_SubscriptionDeletedOrphanSilent(t *testing.T) {
	subsSvc := &stubSubscriptionService{syncResult: nil}
	notifier := &recordingNotifier{}
	svc := newTestService(t, &stubOrderService{}, subsSvc, &stubStripeGetter{}, notifier)

	event := sessionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, map[string]any{"id": "sub_unknown"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if notifier.subscriptionGone != 0 {
		t.Fatalf("expected no email for unknown subscription")
	}
}

func TestHandleEvent_InvoiceFailedFetchesAndNotifies(t *testing.T) {
	subsSvc := &stubSubscriptionService{syncResult: &models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusPastDue}}
	stripeClient := &stubStripeGetter{result: &stripe.Subscription{ID: "sub_9", Status: stripe.SubscriptionStatusPastDue}}
	notifier := &recordingNotifier{}
	svc := newTestService(t, &stubOrderService{}, subsSvc, stripeClient, notifier)

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentFailed,
		Data: &stripe.EventData{
			Raw: json.RawMessage(`{"id":"in_1","subscription":"sub_9","hosted_invoice_url":"https://invoice.stripe.com/i/in_1"}`),
			Object: map[string]any{
				"subscription":       "sub_9",
				"hosted_invoice_url": "https://invoice.stripe.com/i/in_1",
			},
		},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if len(stripeClient.gets) != 1 || stripeClient.gets[0] != "sub_9" {
		t.Fatalf("expected stripe fetch for sub_9")
	}
	if len(subsSvc.synced) != 1 {
		t.Fatalf("expected one sync")
	}
	if notifier.paymentFailed != 1 {
		t.Fatalf("expected payment-retry email")
	}
	if notifier.paymentFailedURL != "https://invoice.stripe.com/i/in_1" {
		t.Fatalf("expected hosted invoice url, got %q", notifier.paymentFailedURL)
	}
}

func TestHandleEvent_InvoiceFailedOneTimeIgnored(t *testing.T) {
	stripeClient := &stubStripeGetter{}
	svc := newTestService(t, &stubOrderService{}, &stubSubscriptionService{}, stripeClient, nil)

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentFailed,
		Data: &stripe.EventData{
			Raw:    json.RawMessage(`{"id":"in_2"}`),
			Object: map[string]any{},
		},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if len(stripeClient.gets) != 0 {
		t.Fatalf("expected no stripe fetch")
	}
}

func TestHandleEvent_UnknownTypeIgnored(t *testing.T) {
	svc := newTestService(t, &stubOrderService{}, &stubSubscriptionService{}, &stubStripeGetter{}, nil)

	event := &stripe.Event{Type: "charge.refunded", Data: &stripe.EventData{Raw: json.RawMessage(`{}`)}}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected unknown event to be acknowledged, got %v", err)
	}
}
