package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/oddfellowcoffee/storefront-backend/api/responses"
	"github.com/oddfellowcoffee/storefront-backend/api/validators"
	ordersvc "github.com/oddfellowcoffee/storefront-backend/internal/orders"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/models"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

type dueSubscriptionLister interface {
	ListDueOn(ctx context.Context, day string) ([]models.Subscription, error)
}

type reservationDayLister interface {
	ListByDate(ctx context.Context, day time.Time) ([]models.Reservation, error)
}

// CalendarDay aggregates everything happening on one date: orders that
// confirmed that day, pickup reservations, and subscription deliveries due.
type CalendarDay struct {
	Date          string            `json:"date"`
	Orders        []OrderDTO        `json:"orders"`
	Reservations  []ReservationDTO  `json:"reservations"`
	Subscriptions []SubscriptionDTO `json:"subscriptions"`
}

// AdminCalendar returns the day view the owner plans bake schedules from.
func AdminCalendar(ordersSvc ordersvc.Service, reservations reservationDayLister, subscriptions dueSubscriptionLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := validators.ParseQueryDate(r, "date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderList, err := ordersSvc.List(r.Context(), ordersvc.ListFilter{ConfirmedOn: &day})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservationList, err := reservations.ListByDate(r.Context(), day)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		due, err := subscriptions.ListDueOn(r.Context(), day.Format("2006-01-02"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservationDTOs := make([]ReservationDTO, 0, len(reservationList))
		for i := range reservationList {
			reservationDTOs = append(reservationDTOs, toReservationDTO(&reservationList[i]))
		}

		responses.WriteSuccess(w, CalendarDay{
			Date:          day.Format("2006-01-02"),
			Orders:        toOrderDTOs(orderList),
			Reservations:  reservationDTOs,
			Subscriptions: toSubscriptionDTOs(due),
		})
	}
}
