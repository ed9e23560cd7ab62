package notifications

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

type recordedMail struct {
	to      string
	subject string
	plain   string
}

type stubMailer struct {
	sent []recordedMail
	err  error
}

func (s *stubMailer) Send(to, subject, htmlBody, plainBody string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, recordedMail{to: to, subject: subject, plain: plainBody})
	return nil
}

type stubOwnerSource struct {
	email string
}

func (s *stubOwnerSource) OwnerEmail(ctx context.Context) string { return s.email }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func sampleOrder() *models.Order {
	variant := "sliced"
	return &models.Order{
		ID:            uuid.New(),
		CustomerEmail: "kim@example.com",
		CustomerName:  "Kim",
		Items: types.OrderItems{
			{ProductID: uuid.New(), ProductName: "Sourdough", Quantity: 2, UnitPriceCents: 900, Variant: &variant},
			{ProductID: uuid.New(), ProductName: "House Blend", Quantity: 1, UnitPriceCents: 1650},
		},
		TotalCents: 3450,
	}
}

func TestOrderConfirmedEmail(t *testing.T) {
	mailer := &stubMailer{}
	svc := NewService(mailer, &stubOwnerSource{}, testLogger(), "https://shop.example.com", true)

	svc.OrderConfirmed(context.Background(), sampleOrder())

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.sent))
	}
	mail := mailer.sent[0]
	if mail.to != "kim@example.com" {
		t.Fatalf("unexpected recipient %q", mail.to)
	}
	if !strings.Contains(mail.plain, "2x Sourdough (sliced)") {
		t.Fatalf("expected item summary, got %q", mail.plain)
	}
	if !strings.Contains(mail.plain, "$34.50") {
		t.Fatalf("expected dollar total, got %q", mail.plain)
	}
}

func TestOwnerNewOrderSkippedWithoutAddress(t *testing.T) {
	mailer := &stubMailer{}
	svc := NewService(mailer, &stubOwnerSource{email: ""}, testLogger(), "", true)

	svc.OwnerNewOrder(context.Background(), sampleOrder())

	if len(mailer.sent) != 0 {
		t.Fatalf("expected no email without an owner address")
	}
}

func TestDisabledServiceSkipsSend(t *testing.T) {
	mailer := &stubMailer{}
	svc := NewService(mailer, &stubOwnerSource{email: "owner@example.com"}, testLogger(), "", false)

	svc.OrderConfirmed(context.Background(), sampleOrder())
	svc.OwnerNewOrder(context.Background(), sampleOrder())

	if len(mailer.sent) != 0 {
		t.Fatalf("expected sends skipped while disabled")
	}
}

func TestMailerFailureIsSwallowed(t *testing.T) {
	mailer := &stubMailer{err: errors.New("smtp down")}
	svc := NewService(mailer, &stubOwnerSource{}, testLogger(), "", true)

	// Must not panic or propagate.
	svc.OrderShipped(context.Background(), sampleOrder())
}

func TestPaymentFailedLinksHostedInvoice(t *testing.T) {
	mailer := &stubMailer{}
	svc := NewService(mailer, &stubOwnerSource{}, testLogger(), "https://shop.example.com", true)

	svc.PaymentFailed(context.Background(), &models.Subscription{
		CustomerEmail:    "kim@example.com",
		NextDeliveryDate: time.Now(),
	}, "https://invoice.stripe.com/i/in_42")

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one email")
	}
	if !strings.Contains(mailer.sent[0].plain, "https://invoice.stripe.com/i/in_42") {
		t.Fatalf("expected hosted invoice link, got %q", mailer.sent[0].plain)
	}
	if strings.Contains(mailer.sent[0].plain, "/account/") {
		t.Fatalf("email must not link an account page, got %q", mailer.sent[0].plain)
	}
}

func TestPaymentFailedWithoutInvoiceURLFallsBackToSite(t *testing.T) {
	mailer := &stubMailer{}
	svc := NewService(mailer, &stubOwnerSource{}, testLogger(), "https://shop.example.com", true)

	svc.PaymentFailed(context.Background(), &models.Subscription{
		CustomerEmail:    "kim@example.com",
		NextDeliveryDate: time.Now(),
	}, "")

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one email")
	}
	if !strings.Contains(mailer.sent[0].plain, "https://shop.example.com") {
		t.Fatalf("expected storefront fallback link, got %q", mailer.sent[0].plain)
	}
}
