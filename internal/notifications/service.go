package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

// OwnerEmailSource resolves the shop owner's notification address at send
// time so admin edits take effect without a restart.
type OwnerEmailSource interface {
	OwnerEmail(ctx context.Context) string
}

// Service sends the storefront's transactional emails. Every method is
// fire-and-forget: failures are logged and never propagated, so a mail
// outage cannot fail or roll back a state transition.
type Service struct {
	mailer  Mailer
	owner   OwnerEmailSource
	log     *logger.Logger
	siteURL string
	enabled bool
}

// NewService builds the notification service. When enabled is false every
// send is skipped with a warning, which keeps local development quiet.
func NewService(mailer Mailer, owner OwnerEmailSource, log *logger.Logger, siteURL string, enabled bool) *Service {
	return &Service{
		mailer:  mailer,
		owner:   owner,
		log:     log,
		siteURL: strings.TrimRight(siteURL, "/"),
		enabled: enabled,
	}
}

func (s *Service) OrderConfirmed(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	subject := "Order confirmed"
	plain := fmt.Sprintf("Thanks %s! Your order is confirmed.\n\n%s\nTotal: %s\n",
		order.CustomerName, itemSummary(order), dollars(order.TotalCents))
	html := fmt.Sprintf(`<html><body>
		<h2>Thanks %s!</h2>
		<p>Your order is confirmed.</p>
		<p>%s</p>
		<p>Total: <strong>%s</strong></p>
	</body></html>`, order.CustomerName, itemSummary(order), dollars(order.TotalCents))
	s.send(ctx, order.CustomerEmail, subject, html, plain)
}

func (s *Service) OrderReady(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	subject := "Your order is ready for pickup"
	plain := fmt.Sprintf("Hi %s, your order is ready for pickup.\n\n%s\n", order.CustomerName, itemSummary(order))
	html := fmt.Sprintf(`<html><body>
		<h2>Ready for pickup</h2>
		<p>Hi %s, your order is ready.</p>
		<p>%s</p>
	</body></html>`, order.CustomerName, itemSummary(order))
	s.send(ctx, order.CustomerEmail, subject, html, plain)
}

func (s *Service) OrderShipped(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	tracking := ""
	if order.TrackingNumber != nil && *order.TrackingNumber != "" {
		tracking = fmt.Sprintf("Tracking number: %s\n", *order.TrackingNumber)
	}
	subject := "Your order has shipped"
	plain := fmt.Sprintf("Hi %s, your order is on its way.\n\n%s\n%s", order.CustomerName, itemSummary(order), tracking)
	html := fmt.Sprintf(`<html><body>
		<h2>On its way</h2>
		<p>Hi %s, your order has shipped.</p>
		<p>%s</p>
		<p>%s</p>
	</body></html>`, order.CustomerName, itemSummary(order), tracking)
	s.send(ctx, order.CustomerEmail, subject, html, plain)
}

func (s *Service) OwnerNewOrder(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	to := s.ownerAddress(ctx)
	if to == "" {
		return
	}
	subject := fmt.Sprintf("New order from %s (%s)", order.CustomerName, dollars(order.TotalCents))
	plain := fmt.Sprintf("New confirmed order.\n\nCustomer: %s <%s>\n%s\nTotal: %s\n",
		order.CustomerName, order.CustomerEmail, itemSummary(order), dollars(order.TotalCents))
	html := fmt.Sprintf(`<html><body>
		<h2>New order</h2>
		<p>Customer: %s &lt;%s&gt;</p>
		<p>%s</p>
		<p>Total: <strong>%s</strong></p>
	</body></html>`, order.CustomerName, order.CustomerEmail, itemSummary(order), dollars(order.TotalCents))
	s.send(ctx, to, subject, html, plain)
}

func (s *Service) SubscriptionConfirmed(ctx context.Context, sub *models.Subscription) {
	if sub == nil {
		return
	}
	subject := "Subscription confirmed"
	plain := fmt.Sprintf("Your %s coffee subscription is active. First delivery around %s.\n",
		sub.Frequency, sub.NextDeliveryDate.Format("January 2"))
	html := fmt.Sprintf(`<html><body>
		<h2>Subscription confirmed</h2>
		<p>Your %s subscription is active.</p>
		<p>First delivery around <strong>%s</strong>.</p>
	</body></html>`, sub.Frequency, sub.NextDeliveryDate.Format("January 2"))
	s.send(ctx, sub.CustomerEmail, subject, html, plain)
}

func (s *Service) OwnerNewSubscription(ctx context.Context, sub *models.Subscription) {
	if sub == nil {
		return
	}
	to := s.ownerAddress(ctx)
	if to == "" {
		return
	}
	subject := fmt.Sprintf("New %s subscription (%s)", sub.Frequency, dollars(sub.PriceCents))
	plain := fmt.Sprintf("New subscriber: %s\nFrequency: %s\nPrice: %s\n", sub.CustomerEmail, sub.Frequency, dollars(sub.PriceCents))
	html := fmt.Sprintf(`<html><body>
		<h2>New subscription</h2>
		<p>Subscriber: %s</p>
		<p>Frequency: %s, price %s</p>
	</body></html>`, sub.CustomerEmail, sub.Frequency, dollars(sub.PriceCents))
	s.send(ctx, to, subject, html, plain)
}

func (s *Service) SubscriptionFulfilled(ctx context.Context, sub *models.Subscription) {
	if sub == nil {
		return
	}
	subject := "Your coffee is on the way"
	plain := fmt.Sprintf("This cycle's delivery has shipped. Next delivery around %s.\n",
		sub.NextDeliveryDate.Format("January 2"))
	html := fmt.Sprintf(`<html><body>
		<h2>Coffee is on the way</h2>
		<p>Next delivery around <strong>%s</strong>.</p>
	</body></html>`, sub.NextDeliveryDate.Format("January 2"))
	s.send(ctx, sub.CustomerEmail, subject, html, plain)
}

func (s *Service) SubscriptionCanceled(ctx context.Context, sub *models.Subscription) {
	if sub == nil {
		return
	}
	subject := "Subscription canceled"
	plain := "Your subscription has been canceled. We'd love to have you back anytime.\n"
	html := `<html><body>
		<h2>Subscription canceled</h2>
		<p>Your subscription has been canceled. We'd love to have you back anytime.</p>
	</body></html>`
	s.send(ctx, sub.CustomerEmail, subject, html, plain)
}

// PaymentFailed points the customer at Stripe's hosted pay page for the
// failed invoice. There is no customer account on our side, so without that
// URL the best we can do is the storefront itself.
func (s *Service) PaymentFailed(ctx context.Context, sub *models.Subscription, payURL string) {
	if sub == nil {
		return
	}
	if payURL == "" {
		payURL = s.siteURL
	}
	subject := "Payment failed for your subscription"
	plain := fmt.Sprintf("We couldn't charge your card for this cycle. Retry the payment here: %s\n", payURL)
	html := fmt.Sprintf(`<html><body>
		<h2>Payment failed</h2>
		<p>We couldn't charge your card for this cycle.</p>
		<p><a href="%s">Retry the payment</a></p>
	</body></html>`, payURL)
	s.send(ctx, sub.CustomerEmail, subject, html, plain)
}

// SubscriptionManageLink emails the signed self-service link. The token in
// the URL is the customer's only credential, so this is the sole way in.
func (s *Service) SubscriptionManageLink(ctx context.Context, email, token string) {
	if email == "" || token == "" {
		return
	}
	manageURL := s.siteURL + "/subscriptions/manage?token=" + token
	subject := "Manage your subscription"
	plain := fmt.Sprintf("Use this link to pause, resume, or cancel your subscription: %s\nThe link expires; request a fresh one anytime.\n", manageURL)
	html := fmt.Sprintf(`<html><body>
		<h2>Manage your subscription</h2>
		<p><a href="%s">Pause, resume, or cancel</a></p>
		<p>The link expires; request a fresh one anytime.</p>
	</body></html>`, manageURL)
	s.send(ctx, email, subject, html, plain)
}

// DeliveryReminder tells a subscriber a delivery lands today.
func (s *Service) DeliveryReminder(ctx context.Context, sub *models.Subscription) {
	if sub == nil {
		return
	}
	subject := "Coffee delivery today"
	plain := "Heads up: your subscription delivery is scheduled for today.\n"
	html := `<html><body>
		<h2>Delivery today</h2>
		<p>Your subscription delivery is scheduled for today.</p>
	</body></html>`
	s.send(ctx, sub.CustomerEmail, subject, html, plain)
}

// OwnerDailyDigest sends the owner a morning summary of the day's work.
func (s *Service) OwnerDailyDigest(ctx context.Context, summary string) {
	to := s.ownerAddress(ctx)
	if to == "" || strings.TrimSpace(summary) == "" {
		return
	}
	subject := "Today at the shop"
	html := fmt.Sprintf(`<html><body><pre>%s</pre></body></html>`, summary)
	s.send(ctx, to, subject, html, summary)
}

func (s *Service) ownerAddress(ctx context.Context) string {
	if s.owner == nil {
		return ""
	}
	return s.owner.OwnerEmail(ctx)
}

func (s *Service) send(ctx context.Context, to, subject, htmlBody, plainBody string) {
	if to == "" {
		return
	}
	if !s.enabled || s.mailer == nil {
		s.log.Warn(ctx, fmt.Sprintf("email disabled, skipping %q to %s", subject, to))
		return
	}
	if err := s.mailer.Send(to, subject, htmlBody, plainBody); err != nil {
		s.log.Error(ctx, fmt.Sprintf("send email %q", subject), err)
	}
}

func itemSummary(order *models.Order) string {
	parts := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		name := item.ProductName
		if item.Variant != nil && *item.Variant != "" {
			name = name + " (" + *item.Variant + ")"
		}
		parts = append(parts, fmt.Sprintf("%dx %s", item.Quantity, name))
	}
	return strings.Join(parts, ", ")
}

func dollars(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
