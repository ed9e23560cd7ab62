package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oddfellowcoffee/storefront-backend/api/responses"
	"github.com/oddfellowcoffee/storefront-backend/api/validators"
	subscriptionsvc "github.com/oddfellowcoffee/storefront-backend/internal/subscriptions"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

// AdminListSubscriptions filters by status or customer email.
func AdminListSubscriptions(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := subscriptionsvc.ListFilter{
			CustomerEmail: strings.TrimSpace(r.URL.Query().Get("email")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseSubscriptionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription status"))
				return
			}
			filter.Status = &status
		}
		page, err := validators.ParseQueryPage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page = page.Normalize()
		filter.Limit = page.Limit
		filter.Offset = page.Offset

		subs, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTOs(subs))
	}
}

// AdminPauseSubscription pauses billing and deliveries.
func AdminPauseSubscription(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Pause(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTO(sub))
	}
}

// AdminResumeSubscription resumes a paused subscription.
func AdminResumeSubscription(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Resume(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTO(sub))
	}
}

type changeVariantRequest struct {
	Variant    *string `json:"variant,omitempty"`
	PriceCents int64   `json:"price_cents" validate:"required,gt=0"`
}

// AdminChangeVariant swaps the subscribed variant and repriced amount.
func AdminChangeVariant(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload changeVariantRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.ChangeVariant(r.Context(), id, payload.Variant, payload.PriceCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTO(sub))
	}
}

// AdminFulfillSubscription marks this cycle delivered and advances the
// next delivery date.
func AdminFulfillSubscription(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Fulfill(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTO(sub))
	}
}

type cancelSubscriptionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// AdminCancelSubscription schedules cancellation at the period end.
func AdminCancelSubscription(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reason := payload.Reason
		if strings.TrimSpace(reason) == "" {
			reason = "owner request"
		}

		sub, err := svc.Cancel(r.Context(), id, reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionDTO(sub))
	}
}
