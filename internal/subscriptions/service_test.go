package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
)

type stubSubsRepo struct {
	subs map[uuid.UUID]*models.Subscription
}

func newStubSubsRepo(subs ...*models.Subscription) *stubSubsRepo {
	repo := &stubSubsRepo{subs: make(map[uuid.UUID]*models.Subscription)}
	for _, sub := range subs {
		if sub.ID == uuid.Nil {
			sub.ID = uuid.New()
		}
		repo.subs[sub.ID] = sub
	}
	return repo
}

func (s *stubSubsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubSubsRepo) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	s.subs[sub.ID] = sub
	return nil
}

func (s *stubSubsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, ok := s.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return sub, nil
}

func (s *stubSubsRepo) FindByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	for _, sub := range s.subs {
		if sub.StripeSubscriptionID == stripeID {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSubsRepo) List(ctx context.Context, filter ListFilter) ([]models.Subscription, error) {
	out := make([]models.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if filter.CustomerEmail != "" && sub.CustomerEmail != filter.CustomerEmail {
			continue
		}
		if filter.Status != nil && sub.Status != *filter.Status {
			continue
		}
		out = append(out, *sub)
	}
	return out, nil
}

func (s *stubSubsRepo) ListDueOn(ctx context.Context, day string) ([]models.Subscription, error) {
	return nil, nil
}

func (s *stubSubsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	sub, ok := s.subs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["status"]; ok {
		sub.Status = v.(enums.SubscriptionStatus)
	}
	if v, ok := updates["next_delivery_date"]; ok {
		sub.NextDeliveryDate = v.(time.Time)
	}
	if v, ok := updates["last_fulfilled_at"]; ok {
		ts := v.(time.Time)
		sub.LastFulfilledAt = &ts
	}
	if v, ok := updates["current_period_end"]; ok {
		ts := v.(time.Time)
		sub.CurrentPeriodEnd = &ts
	}
	if v, ok := updates["cancel_at_period_end"]; ok {
		sub.CancelAtPeriodEnd = v.(bool)
	}
	if v, ok := updates["cancel_reason"]; ok {
		reason := v.(string)
		sub.CancelReason = &reason
	}
	if v, ok := updates["variant"]; ok {
		if variant, isPtr := v.(*string); isPtr {
			sub.Variant = variant
		}
	}
	if v, ok := updates["price_cents"]; ok {
		sub.PriceCents = v.(int64)
	}
	return nil
}

type stubStripeClient struct {
	getResult  *stripe.Subscription
	getErr     error
	updateErr  error
	lastUpdate *stripe.SubscriptionParams
	updates    int
}

func (s *stubStripeClient) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.getResult != nil {
		return s.getResult, nil
	}
	return &stripe.Subscription{ID: id}, nil
}

func (s *stubStripeClient) Update(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.updates++
	s.lastUpdate = params
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &stripe.Subscription{ID: id}, nil
}

type stubProductChecker struct {
	product *models.Product
	err     error
}

func (s *stubProductChecker) FindSubscribable(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

type stubSubNotifier struct {
	fulfilled []uuid.UUID
}

func (s *stubSubNotifier) SubscriptionFulfilled(ctx context.Context, sub *models.Subscription) {
	s.fulfilled = append(s.fulfilled, sub.ID)
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository, client StripeSubscriptionClient, products ProductChecker, notifier Notifier) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, client, products, notifier, 5)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func activeSubscription() *models.Subscription {
	return &models.Subscription{
		ID:                   uuid.New(),
		StripeSubscriptionID: "sub_123",
		CustomerEmail:        "kate@example.com",
		ProductID:            uuid.New(),
		Frequency:            enums.FrequencyBiweekly,
		Status:               enums.SubscriptionStatusActive,
		PriceCents:           1800,
		NextDeliveryDate:     time.Now().UTC().Add(-24 * time.Hour),
	}
}

func TestActivate_CreatesWithLeadDays(t *testing.T) {
	repo := newStubSubsRepo()
	productID := uuid.New()
	products := &stubProductChecker{product: &models.Product{ID: productID, Subscribable: true, Active: true}}
	svc := newTestService(t, repo, &stubStripeClient{}, products, nil)

	before := time.Now().UTC()
	sub, err := svc.Activate(context.Background(), ActivateInput{
		StripeSubscriptionID: "sub_new",
		CustomerEmail:        "Kate@Example.com",
		ProductID:            productID,
		Frequency:            enums.FrequencyWeekly,
		PriceCents:           1800,
	})
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if sub.CustomerEmail != "kate@example.com" {
		t.Fatalf("expected lowercased email, got %q", sub.CustomerEmail)
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", sub.Status)
	}
	earliest := before.AddDate(0, 0, 5).Add(-time.Minute)
	if sub.NextDeliveryDate.Before(earliest) {
		t.Fatalf("expected first delivery about five days out, got %s", sub.NextDeliveryDate)
	}
}

func TestActivate_IdempotentOnStripeID(t *testing.T) {
	existing := activeSubscription()
	repo := newStubSubsRepo(existing)
	products := &stubProductChecker{product: &models.Product{ID: existing.ProductID}}
	svc := newTestService(t, repo, &stubStripeClient{}, products, nil)

	sub, err := svc.Activate(context.Background(), ActivateInput{
		StripeSubscriptionID: existing.StripeSubscriptionID,
		CustomerEmail:        existing.CustomerEmail,
		ProductID:            existing.ProductID,
		Frequency:            existing.Frequency,
		PriceCents:           existing.PriceCents,
	})
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if sub.ID != existing.ID {
		t.Fatalf("expected the stored subscription back, got %s", sub.ID)
	}
	if len(repo.subs) != 1 {
		t.Fatalf("expected no duplicate row, got %d", len(repo.subs))
	}
}

func TestActivate_StaleProductMetadataRejected(t *testing.T) {
	repo := newStubSubsRepo()
	products := &stubProductChecker{err: pkgerrors.New(pkgerrors.CodeValidation, "product not available for subscription")}
	svc := newTestService(t, repo, &stubStripeClient{}, products, nil)

	_, err := svc.Activate(context.Background(), ActivateInput{
		StripeSubscriptionID: "sub_stale",
		CustomerEmail:        "kate@example.com",
		ProductID:            uuid.New(),
		Frequency:            enums.FrequencyMonthly,
		PriceCents:           1800,
	})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.subs) != 0 {
		t.Fatalf("expected no subscription created")
	}
}

func TestPause_RemoteFirstThenLocal(t *testing.T) {
	sub := activeSubscription()
	repo := newStubSubsRepo(sub)
	client := &stubStripeClient{}
	svc := newTestService(t, repo, client, &stubProductChecker{}, nil)

	updated, err := svc.Pause(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	if client.updates != 1 {
		t.Fatalf("expected one stripe update, got %d", client.updates)
	}
	if client.lastUpdate == nil || client.lastUpdate.PauseCollection == nil {
		t.Fatalf("expected pause_collection params")
	}
	if updated.Status != enums.SubscriptionStatusPaused {
		t.Fatalf("expected paused, got %s", updated.Status)
	}
}

func TestPause_RemoteFailureLeavesLocalUntouched(t *testing.T) {
	sub := activeSubscription()
	repo := newStubSubsRepo(sub)
	client := &stubStripeClient{updateErr: errors.New("stripe unavailable")}
	svc := newTestService(t, repo, client, &stubProductChecker{}, nil)

	_, err := svc.Pause(context.Background(), sub.ID)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if repo.subs[sub.ID].Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected status unchanged, got %s", repo.subs[sub.ID].Status)
	}
}

func TestResume_OnlyFromPaused(t *testing.T) {
	sub := activeSubscription()
	sub.Status = enums.SubscriptionStatusPastDue
	repo := newStubSubsRepo(sub)
	svc := newTestService(t, repo, &stubStripeClient{}, &stubProductChecker{}, nil)

	_, err := svc.Resume(context.Background(), sub.ID)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestResume_ClearsPauseAndFlipsActive(t *testing.T) {
	sub := activeSubscription()
	sub.Status = enums.SubscriptionStatusPaused
	repo := newStubSubsRepo(sub)
	client := &stubStripeClient{}
	svc := newTestService(t, repo, client, &stubProductChecker{}, nil)

	updated, err := svc.Resume(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	if client.updates != 1 {
		t.Fatalf("expected one stripe update, got %d", client.updates)
	}
	if updated.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", updated.Status)
	}
}

func TestFulfill_AdvancesFromNowAndNotifies(t *testing.T) {
	sub := activeSubscription()
	repo := newStubSubsRepo(sub)
	notifier := &stubSubNotifier{}
	svc := newTestService(t, repo, &stubStripeClient{}, &stubProductChecker{}, notifier)

	before := time.Now().UTC()
	updated, err := svc.Fulfill(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Fulfill returned error: %v", err)
	}
	earliest := before.AddDate(0, 0, 14).Add(-time.Minute)
	if updated.NextDeliveryDate.Before(earliest) {
		t.Fatalf("expected next delivery two weeks from now, got %s", updated.NextDeliveryDate)
	}
	if updated.LastFulfilledAt == nil {
		t.Fatalf("expected last_fulfilled_at stamped")
	}
	if len(notifier.fulfilled) != 1 || notifier.fulfilled[0] != sub.ID {
		t.Fatalf("expected fulfillment notification for %s", sub.ID)
	}
}

func TestFulfill_NotDueYetRejected(t *testing.T) {
	sub := activeSubscription()
	sub.NextDeliveryDate = time.Now().UTC().Add(72 * time.Hour)
	repo := newStubSubsRepo(sub)
	notifier := &stubSubNotifier{}
	svc := newTestService(t, repo, &stubStripeClient{}, &stubProductChecker{}, notifier)

	_, err := svc.Fulfill(context.Background(), sub.ID)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if repo.subs[sub.ID].LastFulfilledAt != nil {
		t.Fatalf("expected no fulfillment recorded")
	}
	if len(notifier.fulfilled) != 0 {
		t.Fatalf("expected no notification")
	}
}

func TestFulfill_PausedRejected(t *testing.T) {
	sub := activeSubscription()
	sub.Status = enums.SubscriptionStatusPaused
	repo := newStubSubsRepo(sub)
	svc := newTestService(t, repo, &stubStripeClient{}, &stubProductChecker{}, nil)

	_, err := svc.Fulfill(context.Background(), sub.ID)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestChangeVariant_UpdatesRemotePriceThenLocal(t *testing.T) {
	sub := activeSubscription()
	repo := newStubSubsRepo(sub)
	client := &stubStripeClient{
		getResult: &stripe.Subscription{
			ID: sub.StripeSubscriptionID,
			Items: &stripe.SubscriptionItemList{
				Data: []*stripe.SubscriptionItem{{
					ID:    "si_1",
					Price: &stripe.Price{ID: "price_1", Product: &stripe.Product{ID: "prod_1"}},
				}},
			},
		},
	}
	svc := newTestService(t, repo, client, &stubProductChecker{}, nil)

	variant := "whole-bean"
	updated, err := svc.ChangeVariant(context.Background(), sub.ID, &variant, 2200)
	if err != nil {
		t.Fatalf("ChangeVariant returned error: %v", err)
	}
	if client.updates != 1 {
		t.Fatalf("expected one stripe update, got %d", client.updates)
	}
	if len(client.lastUpdate.Items) != 1 || client.lastUpdate.Items[0].PriceData == nil {
		t.Fatalf("expected price data on the item update")
	}
	if got := *client.lastUpdate.Items[0].PriceData.UnitAmount; got != 2200 {
		t.Fatalf("expected unit amount 2200, got %d", got)
	}
	if updated.Variant == nil || *updated.Variant != variant {
		t.Fatalf("expected variant persisted")
	}
	if updated.PriceCents != 2200 {
		t.Fatalf("expected price 2200, got %d", updated.PriceCents)
	}
}

func TestChangeVariant_RemoteFailureLeavesLocalUntouched(t *testing.T) {
	sub := activeSubscription()
	repo := newStubSubsRepo(sub)
	client := &stubStripeClient{
		getResult: &stripe.Subscription{
			ID: sub.StripeSubscriptionID,
			Items: &stripe.SubscriptionItemList{
				Data: []*stripe.SubscriptionItem{{
					ID:    "si_1",
					Price: &stripe.Price{ID: "price_1", Product: &stripe.Product{ID: "prod_1"}},
				}},
			},
		},
		updateErr: errors.New("stripe unavailable"),
	}
	svc := newTestService(t, repo, client, &stubProductChecker{}, nil)

	variant := "ground"
	_, err := svc.ChangeVariant(context.Background(), sub.ID, &variant, 2400)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if repo.subs[sub.ID].PriceCents != 1800 {
		t.Fatalf("expected price unchanged, got %d", repo.subs[sub.ID].PriceCents)
	}
}

func TestCancel_SchedulesAtPeriodEnd(t *testing.T) {
	sub := activeSubscription()
	repo := newStubSubsRepo(sub)
	client := &stubStripeClient{}
	svc := newTestService(t, repo, client, &stubProductChecker{}, nil)

	updated, err := svc.Cancel(context.Background(), sub.ID, "moving away")
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if client.lastUpdate == nil || client.lastUpdate.CancelAtPeriodEnd == nil || !*client.lastUpdate.CancelAtPeriodEnd {
		t.Fatalf("expected cancel_at_period_end params")
	}
	if !updated.CancelAtPeriodEnd {
		t.Fatalf("expected cancel_at_period_end persisted")
	}
	if updated.CancelReason == nil || *updated.CancelReason != "moving away" {
		t.Fatalf("expected cancel reason persisted")
	}
	if updated.Status != enums.SubscriptionStatusActive {
		t.Fatalf("status should stay until the deleted event, got %s", updated.Status)
	}
}

func TestCancel_AlreadyScheduledIsNoop(t *testing.T) {
	sub := activeSubscription()
	sub.CancelAtPeriodEnd = true
	repo := newStubSubsRepo(sub)
	client := &stubStripeClient{}
	svc := newTestService(t, repo, client, &stubProductChecker{}, nil)

	if _, err := svc.Cancel(context.Background(), sub.ID, "again"); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if client.updates != 0 {
		t.Fatalf("expected no stripe call, got %d", client.updates)
	}
}

func TestSyncFromProcessor_MirrorsStatusAndPeriodEnd(t *testing.T) {
	sub := activeSubscription()
	sub.Status = enums.SubscriptionStatusPastDue
	repo := newStubSubsRepo(sub)
	svc := newTestService(t, repo, &stubStripeClient{}, &stubProductChecker{}, nil)

	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Unix()
	updated, err := svc.SyncFromProcessor(context.Background(), &stripe.Subscription{
		ID:     sub.StripeSubscriptionID,
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{CurrentPeriodEnd: periodEnd}},
		},
	})
	if err != nil {
		t.Fatalf("SyncFromProcessor returned error: %v", err)
	}
	if updated.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected past_due cleared to active, got %s", updated.Status)
	}
	if updated.CurrentPeriodEnd == nil || updated.CurrentPeriodEnd.Unix() != periodEnd {
		t.Fatalf("expected period end mirrored")
	}
}

func TestSyncFromProcessor_OrphanIgnored(t *testing.T) {
	repo := newStubSubsRepo()
	svc := newTestService(t, repo, &stubStripeClient{}, &stubProductChecker{}, nil)

	sub, err := svc.SyncFromProcessor(context.Background(), &stripe.Subscription{ID: "sub_unknown"})
	if err != nil {
		t.Fatalf("expected orphan event to be ignored, got %v", err)
	}
	if sub != nil {
		t.Fatalf("expected nil subscription for orphan event")
	}
}

func TestStatusFromProcessor_PauseCollectionWins(t *testing.T) {
	status := StatusFromProcessor(&stripe.Subscription{
		Status:          stripe.SubscriptionStatusActive,
		PauseCollection: &stripe.SubscriptionPauseCollection{Behavior: stripe.SubscriptionPauseCollectionBehaviorVoid},
	}, enums.SubscriptionStatusActive)
	if status != enums.SubscriptionStatusPaused {
		t.Fatalf("expected paused, got %s", status)
	}
}

func TestActivationMetadataFrom(t *testing.T) {
	productID := uuid.New()
	meta := map[string]string{
		"product_id":  productID.String(),
		"frequency":   "biweekly",
		"variant":     "whole-bean",
		"price_cents": "1800",
	}
	parsed, err := ActivationMetadataFrom(meta)
	if err != nil {
		t.Fatalf("ActivationMetadataFrom returned error: %v", err)
	}
	if parsed.ProductID != productID {
		t.Fatalf("expected product id parsed")
	}
	if parsed.Frequency != enums.FrequencyBiweekly {
		t.Fatalf("expected biweekly, got %s", parsed.Frequency)
	}
	if parsed.Variant == nil || *parsed.Variant != "whole-bean" {
		t.Fatalf("expected variant parsed")
	}
	if parsed.PriceCents != 1800 {
		t.Fatalf("expected price 1800, got %d", parsed.PriceCents)
	}

	if _, err := ActivationMetadataFrom(map[string]string{"product_id": "nope"}); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad metadata, got %v", err)
	}
}
