package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/oddfellowcoffee/storefront-backend/internal/orders"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
)

type dueSubscriptionLister interface {
	ListDueOn(ctx context.Context, day string) ([]models.Subscription, error)
}

type reservationLister interface {
	ListByDate(ctx context.Context, day time.Time) ([]models.Reservation, error)
}

type pendingOrderLister interface {
	List(ctx context.Context, filter orders.ListFilter) ([]models.Order, error)
}

type digestNotifier interface {
	DeliveryReminder(ctx context.Context, sub *models.Subscription)
	OwnerDailyDigest(ctx context.Context, summary string)
}

// DailyDigestJob sends the owner a morning summary of the day's
// subscription deliveries and pickup reservations, plus per-customer
// delivery reminders. It runs once per calendar day at the configured
// hour even though the worker ticks far more often.
type DailyDigestJob struct {
	subscriptions dueSubscriptionLister
	reservations  reservationLister
	orders        pendingOrderLister
	notifier      digestNotifier

	digestHour      int
	pendingMaxAge   time.Duration
	timeProvider    func() time.Time
	lastDigestedDay string
}

// NewDailyDigestJob builds the digest job.
func NewDailyDigestJob(
	subscriptions dueSubscriptionLister,
	reservations reservationLister,
	orderLister pendingOrderLister,
	notifier digestNotifier,
	digestHour int,
	pendingMaxAge time.Duration,
) (*DailyDigestJob, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription lister is required")
	}
	if reservations == nil {
		return nil, fmt.Errorf("reservation lister is required")
	}
	if orderLister == nil {
		return nil, fmt.Errorf("order lister is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if digestHour < 0 || digestHour > 23 {
		digestHour = 6
	}
	if pendingMaxAge <= 0 {
		pendingMaxAge = time.Hour
	}
	return &DailyDigestJob{
		subscriptions: subscriptions,
		reservations:  reservations,
		orders:        orderLister,
		notifier:      notifier,
		digestHour:    digestHour,
		pendingMaxAge: pendingMaxAge,
		timeProvider:  time.Now,
	}, nil
}

func (j *DailyDigestJob) Name() string {
	return "daily_digest"
}

// Run is a no-op outside the digest hour and after the digest has
// already gone out for the current day.
func (j *DailyDigestJob) Run(ctx context.Context) error {
	now := j.timeProvider()
	day := now.Format("2006-01-02")
	if now.Hour() != j.digestHour || j.lastDigestedDay == day {
		return nil
	}

	var errs error

	due, err := j.subscriptions.ListDueOn(ctx, day)
	if err != nil {
		return fmt.Errorf("list due subscriptions: %w", err)
	}
	for i := range due {
		j.notifier.DeliveryReminder(ctx, &due[i])
	}

	pickups, err := j.reservations.ListByDate(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list reservations: %w", err))
	}

	stale, err := j.stalePendingOrders(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	j.notifier.OwnerDailyDigest(ctx, j.summarize(day, due, pickups, stale))
	j.lastDigestedDay = day
	return errs
}

func (j *DailyDigestJob) stalePendingOrders(ctx context.Context, now time.Time) ([]models.Order, error) {
	pending := enums.OrderStatusPending
	all, err := j.orders.List(ctx, orders.ListFilter{Status: &pending})
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	cutoff := now.Add(-j.pendingMaxAge)
	var stale []models.Order
	for _, order := range all {
		if order.CreatedAt.Before(cutoff) {
			stale = append(stale, order)
		}
	}
	return stale, nil
}

func (j *DailyDigestJob) summarize(day string, due []models.Subscription, pickups []models.Reservation, stale []models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily digest for %s\n\n", day)

	fmt.Fprintf(&b, "Subscription deliveries due: %d\n", len(due))
	for _, sub := range due {
		variant := ""
		if sub.Variant != nil {
			variant = fmt.Sprintf(" (%s)", *sub.Variant)
		}
		fmt.Fprintf(&b, "  - %s%s for %s, %s\n", sub.ProductID, variant, sub.CustomerEmail, sub.Frequency)
	}

	fmt.Fprintf(&b, "\nPickup reservations: %d\n", len(pickups))
	for _, res := range pickups {
		fmt.Fprintf(&b, "  - %s at %s (%s)\n", res.CustomerName, res.TimeSlot, res.CustomerEmail)
	}

	if len(stale) > 0 {
		fmt.Fprintf(&b, "\nWarning: %d pending orders older than %s are awaiting payment confirmation.\n", len(stale), j.pendingMaxAge)
		for _, order := range stale {
			fmt.Fprintf(&b, "  - order %s from %s, created %s\n", order.ID, order.CustomerEmail, order.CreatedAt.Format(time.RFC3339))
		}
	}

	return b.String()
}
