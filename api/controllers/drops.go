package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oddfellowcoffee/storefront-backend/api/responses"
	"github.com/oddfellowcoffee/storefront-backend/api/validators"
	dropsvc "github.com/oddfellowcoffee/storefront-backend/internal/drops"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

// ListOpenDrops returns drops that are inside their ordering
// window, with per-item prices resolved.
func ListOpenDrops(svc dropsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := svc.ListOpen(r.Context(), time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]DropDTO, 0, len(views))
		for _, view := range views {
			out = append(out, toDropDTO(view))
		}
		responses.WriteSuccess(w, out)
	}
}

type createDropItemRequest struct {
	ProductID          uuid.UUID `json:"product_id" validate:"required"`
	QuantityAvailable  int       `json:"quantity_available" validate:"required,gt=0"`
	PriceCentsOverride *int64    `json:"price_cents_override,omitempty" validate:"omitempty,gte=0"`
}

type createDropRequest struct {
	Title       string                  `json:"title" validate:"required"`
	DropDate    time.Time               `json:"drop_date" validate:"required"`
	OpensAt     time.Time               `json:"opens_at" validate:"required"`
	ClosesAt    *time.Time              `json:"closes_at,omitempty"`
	PickupStart *time.Time              `json:"pickup_start,omitempty"`
	PickupEnd   *time.Time              `json:"pickup_end,omitempty"`
	Items       []createDropItemRequest `json:"items" validate:"required,min=1,dive"`
}

// AdminCreateDrop schedules a drop with its limited-quantity items.
func AdminCreateDrop(svc dropsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createDropRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]dropsvc.ItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, dropsvc.ItemInput{
				ProductID:          item.ProductID,
				QuantityAvailable:  item.QuantityAvailable,
				PriceCentsOverride: item.PriceCentsOverride,
			})
		}

		drop, err := svc.Create(r.Context(), dropsvc.CreateInput{
			Title:       payload.Title,
			DropDate:    payload.DropDate,
			OpensAt:     payload.OpensAt,
			ClosesAt:    payload.ClosesAt,
			PickupStart: payload.PickupStart,
			PickupEnd:   payload.PickupEnd,
			Items:       items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toAdminDropDTO(drop))
	}
}

// AdminListDrops returns all drops regardless of status.
func AdminListDrops(svc dropsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]DropDTO, 0, len(all))
		for i := range all {
			out = append(out, toAdminDropDTO(&all[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type updateDropStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminUpdateDropStatus moves a drop between scheduled and live. Closing
// goes through the dedicated close endpoint; sold_out is automatic.
func AdminUpdateDropStatus(svc dropsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "dropId"), "dropId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateDropStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseDropStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid drop status"))
			return
		}

		drop, err := svc.UpdateStatus(r.Context(), id, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAdminDropDTO(drop))
	}
}

// AdminCloseDrop closes a drop permanently.
func AdminCloseDrop(svc dropsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "dropId"), "dropId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		drop, err := svc.Close(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAdminDropDTO(drop))
	}
}
