package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oddfellowcoffee/storefront-backend/api/responses"
	"github.com/oddfellowcoffee/storefront-backend/api/validators"
	subscriptionsvc "github.com/oddfellowcoffee/storefront-backend/internal/subscriptions"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
	"github.com/oddfellowcoffee/storefront-backend/pkg/security"
)

// ManageLinkSender emails the signed self-service link.
type ManageLinkSender interface {
	SubscriptionManageLink(ctx context.Context, email, token string)
}

// ManageTokenVerifier validates self-service tokens back to an email.
type ManageTokenVerifier interface {
	Verify(token string) (string, error)
}

type manageLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestManageLink mints a manage token and emails it. The response is
// identical whether or not the email has subscriptions, so the endpoint
// cannot be used to probe the subscriber list.
func RequestManageLink(svc subscriptionsvc.Service, signer *security.TokenSigner, sender ManageLinkSender, ttl time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload manageLinkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(payload.Email))
		subs, err := svc.ListByEmail(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(subs) > 0 && sender != nil {
			sender.SubscriptionManageLink(r.Context(), email, signer.Sign(email, ttl))
		}

		responses.WriteSuccess(w, map[string]string{"status": "sent"})
	}
}

// ListMySubscriptions returns the token holder's subscriptions.
func ListMySubscriptions(svc subscriptionsvc.Service, verifier ManageTokenVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := verifyManageToken(w, r, verifier, logg)
		if !ok {
			return
		}

		subs, err := svc.ListByEmail(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTOs(subs))
	}
}

// PauseMySubscription pauses billing and deliveries for the token holder.
func PauseMySubscription(svc subscriptionsvc.Service, verifier ManageTokenVerifier, logg *logger.Logger) http.HandlerFunc {
	return selfServiceTransition(svc, verifier, logg, func(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
		return svc.Pause(ctx, id)
	})
}

// ResumeMySubscription resumes a paused subscription.
func ResumeMySubscription(svc subscriptionsvc.Service, verifier ManageTokenVerifier, logg *logger.Logger) http.HandlerFunc {
	return selfServiceTransition(svc, verifier, logg, func(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
		return svc.Resume(ctx, id)
	})
}

// CancelMySubscription schedules cancellation at the period end.
func CancelMySubscription(svc subscriptionsvc.Service, verifier ManageTokenVerifier, logg *logger.Logger) http.HandlerFunc {
	return selfServiceTransition(svc, verifier, logg, func(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
		return svc.Cancel(ctx, id, "customer request")
	})
}

func selfServiceTransition(
	svc subscriptionsvc.Service,
	verifier ManageTokenVerifier,
	logg *logger.Logger,
	transition func(ctx context.Context, id uuid.UUID) (*models.Subscription, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := verifyManageToken(w, r, verifier, logg)
		if !ok {
			return
		}

		id, err := validators.PathUUID(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !strings.EqualFold(sub.CustomerEmail, email) {
			// A valid token for somebody else's subscription gets the
			// same answer as a nonexistent one.
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found"))
			return
		}

		updated, err := transition(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTO(updated))
	}
}

func verifyManageToken(w http.ResponseWriter, r *http.Request, verifier ManageTokenVerifier, logg *logger.Logger) (string, bool) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "manage token required"))
		return "", false
	}

	email, err := verifier.Verify(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "manage token expired"))
			return "", false
		}
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid manage token"))
		return "", false
	}
	return email, true
}
