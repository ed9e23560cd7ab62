package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oddfellowcoffee/storefront-backend/api/responses"
	"github.com/oddfellowcoffee/storefront-backend/api/validators"
	"github.com/oddfellowcoffee/storefront-backend/internal/exports"
	ordersvc "github.com/oddfellowcoffee/storefront-backend/internal/orders"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

// AdminListOrders filters by status, stage, drop, or customer email.
func AdminListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := orderListFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderDTOs(list))
	}
}

func AdminGetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderDTO(order))
	}
}

type updateStageRequest struct {
	Stage string `json:"stage" validate:"required"`
}

// AdminAdvanceStage moves a confirmed order through fulfillment.
func AdminAdvanceStage(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stage, err := enums.ParseOrderStage(strings.TrimSpace(payload.Stage))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order stage"))
			return
		}

		order, err := svc.AdvanceStage(r.Context(), id, stage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderDTO(order))
	}
}

type bulkStatusRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1"`
	Status   string      `json:"status" validate:"required"`
}

type bulkStatusResponse struct {
	UpdatedIDs []uuid.UUID `json:"updated_ids"`
	MissingIDs []uuid.UUID `json:"missing_ids"`
}

// AdminBulkUpdateStatus applies a status to many orders, reporting which
// ids were missing rather than failing the batch.
func AdminBulkUpdateStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload bulkStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		result, err := svc.BulkUpdateStatus(r.Context(), payload.OrderIDs, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bulkStatusResponse{
			UpdatedIDs: result.UpdatedIDs,
			MissingIDs: result.MissingIDs,
		})
	}
}

type shippingRequest struct {
	Name    *string        `json:"name,omitempty"`
	Address *types.Address `json:"address,omitempty"`
	Method  *string        `json:"method,omitempty" validate:"omitempty,oneof=pickup delivery shipping"`
	Cents   *int64         `json:"cents,omitempty" validate:"omitempty,gte=0"`
}

// AdminSetShipping edits the shipping snapshot on an order.
func AdminSetShipping(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shippingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetShipping(r.Context(), id, ordersvc.ShippingInput{
			Name:    payload.Name,
			Address: payload.Address,
			Method:  payload.Method,
			Cents:   payload.Cents,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

type trackingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required"`
}

// AdminSetTracking records the carrier tracking number.
func AdminSetTracking(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload trackingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetTracking(r.Context(), id, payload.TrackingNumber); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// AdminExportShippingCSV streams the shipping-label CSV for confirmed
// orders. Filters mirror the list endpoint.
func AdminExportShippingCSV(export *exports.ShippingCSV, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := orderListFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=shipping-%s.csv", time.Now().UTC().Format("2006-01-02")))
		if err := export.Write(r.Context(), w, filter); err != nil {
			if logg != nil {
				logg.Error(r.Context(), "shipping csv export failed", err)
			}
		}
	}
}

func orderListFilter(r *http.Request) (ordersvc.ListFilter, error) {
	filter := ordersvc.ListFilter{}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("stage")); raw != "" {
		stage, err := enums.ParseOrderStage(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order stage")
		}
		filter.Stage = &stage
	}
	dropID, err := validators.ParseQueryUUID(r, "drop_id")
	if err != nil {
		return filter, err
	}
	if dropID != uuid.Nil {
		filter.DropID = &dropID
	}
	filter.CustomerEmail = strings.TrimSpace(r.URL.Query().Get("email"))

	page, err := validators.ParseQueryPage(r)
	if err != nil {
		return filter, err
	}
	page = page.Normalize()
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	return filter, nil
}
