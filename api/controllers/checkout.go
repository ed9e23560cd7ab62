package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oddfellowcoffee/storefront-backend/api/responses"
	"github.com/oddfellowcoffee/storefront-backend/api/validators"
	checkoutsvc "github.com/oddfellowcoffee/storefront-backend/internal/checkout"
	"github.com/oddfellowcoffee/storefront-backend/internal/orders"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

type checkoutLineRequest struct {
	ProductID  uuid.UUID  `json:"product_id" validate:"required"`
	DropItemID *uuid.UUID `json:"drop_item_id,omitempty"`
	Quantity   int        `json:"quantity" validate:"required,gt=0"`
	Variant    *string    `json:"variant,omitempty"`
}

type checkoutReservationRequest struct {
	Date     time.Time `json:"date" validate:"required"`
	TimeSlot string    `json:"time_slot" validate:"required"`
}

type createCheckoutRequest struct {
	CustomerEmail  string                      `json:"customer_email" validate:"required,email"`
	CustomerName   string                      `json:"customer_name" validate:"required"`
	DropID         *uuid.UUID                  `json:"drop_id,omitempty"`
	Items          []checkoutLineRequest       `json:"items" validate:"required,min=1,dive"`
	ShippingMethod string                      `json:"shipping_method,omitempty" validate:"omitempty,oneof=pickup delivery shipping"`
	PostalCode     string                      `json:"postal_code,omitempty"`
	Reservation    *checkoutReservationRequest `json:"reservation,omitempty"`
}

type sessionResponse struct {
	SessionID string     `json:"session_id"`
	URL       string     `json:"url"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
}

// CreateCheckout opens a hosted one-time payment session for the cart.
func CreateCheckout(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orders.LineInput, 0, len(payload.Items))
		for _, line := range payload.Items {
			items = append(items, orders.LineInput{
				ProductID:  line.ProductID,
				DropItemID: line.DropItemID,
				Quantity:   line.Quantity,
				Variant:    line.Variant,
			})
		}

		input := checkoutsvc.OrderSessionInput{
			CustomerEmail:  payload.CustomerEmail,
			CustomerName:   payload.CustomerName,
			DropID:         payload.DropID,
			Items:          items,
			ShippingMethod: payload.ShippingMethod,
			PostalCode:     payload.PostalCode,
		}
		if payload.Reservation != nil {
			input.Reservation = &checkoutsvc.ReservationInput{
				Date:     payload.Reservation.Date,
				TimeSlot: payload.Reservation.TimeSlot,
			}
		}

		result, err := svc.CreateOrderSession(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{
			SessionID: result.SessionID,
			URL:       result.URL,
			OrderID:   result.OrderID,
		})
	}
}

type subscribeRequest struct {
	CustomerEmail string    `json:"customer_email" validate:"required,email"`
	ProductID     uuid.UUID `json:"product_id" validate:"required"`
	Variant       *string   `json:"variant,omitempty"`
	Frequency     string    `json:"frequency" validate:"required"`
	PostalCode    string    `json:"postal_code,omitempty"`
}

// CreateSubscribeSession opens a hosted recurring payment session.
func CreateSubscribeSession(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload subscribeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		frequency, err := enums.ParseSubscriptionFrequency(strings.TrimSpace(payload.Frequency))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery frequency"))
			return
		}

		result, err := svc.CreateSubscriptionSession(r.Context(), checkoutsvc.SubscriptionSessionInput{
			CustomerEmail: payload.CustomerEmail,
			ProductID:     payload.ProductID,
			Variant:       payload.Variant,
			Frequency:     frequency,
			PostalCode:    payload.PostalCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{
			SessionID: result.SessionID,
			URL:       result.URL,
		})
	}
}
