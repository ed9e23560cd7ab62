package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oddfellowcoffee/storefront-backend/api/responses"
	"github.com/oddfellowcoffee/storefront-backend/api/validators"
	reservationsvc "github.com/oddfellowcoffee/storefront-backend/internal/reservations"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

// ListSlots returns the active pickup windows.
func ListSlots(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ActiveSlots(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toTimeSlotDTOs(slots))
	}
}

type createReservationRequest struct {
	ReservationDate time.Time `json:"reservation_date" validate:"required"`
	TimeSlot        string    `json:"time_slot" validate:"required"`
	CustomerName    string    `json:"customer_name" validate:"required"`
	CustomerEmail   string    `json:"customer_email" validate:"required,email"`
}

// CreateReservation books a standalone pickup window. Checkout books its
// own reservation internally; this endpoint serves walk-in style bookings.
func CreateReservation(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createReservationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation := &models.Reservation{
			ReservationDate: payload.ReservationDate,
			TimeSlot:        payload.TimeSlot,
			CustomerName:    payload.CustomerName,
			CustomerEmail:   payload.CustomerEmail,
		}
		if err := svc.Create(r.Context(), reservation); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toReservationDTO(reservation))
	}
}

// AdminListReservations returns confirmed bookings for a given day.
func AdminListReservations(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := validators.ParseQueryDate(r, "date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservations, err := svc.ListByDate(r.Context(), day)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]ReservationDTO, 0, len(reservations))
		for i := range reservations {
			out = append(out, toReservationDTO(&reservations[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminCancelReservation frees the seat for its slot.
func AdminCancelReservation(svc *reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "reservationId"), "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "canceled"})
	}
}
