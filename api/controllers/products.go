package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oddfellowcoffee/storefront-backend/api/responses"
	"github.com/oddfellowcoffee/storefront-backend/api/validators"
	productsvc "github.com/oddfellowcoffee/storefront-backend/internal/products"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db/types"
	"github.com/oddfellowcoffee/storefront-backend/pkg/enums"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

// ListProducts returns the active catalog for the storefront. Category is
// an optional filter.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := productsvc.ListFilter{ActiveOnly: true}
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			category, err := enums.ParseProductCategory(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			filter.Category = &category
		}

		products, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProductDTOs(products))
	}
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProductDTO(product))
	}
}

type productVariantRequest struct {
	Name       string `json:"name" validate:"required"`
	PriceCents *int64 `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
}

type createProductRequest struct {
	Name          string                  `json:"name" validate:"required"`
	Category      string                  `json:"category" validate:"required"`
	Description   *string                 `json:"description,omitempty"`
	PriceCents    int64                   `json:"price_cents" validate:"gte=0"`
	Variants      []productVariantRequest `json:"variants,omitempty"`
	Subscribable  bool                    `json:"subscribable"`
	StockQuantity *int                    `json:"stock_quantity,omitempty" validate:"omitempty,gte=0"`
	ImageURL      *string                 `json:"image_url,omitempty"`
}

func (req createProductRequest) toInput() (productsvc.CreateInput, error) {
	category, err := enums.ParseProductCategory(strings.TrimSpace(req.Category))
	if err != nil {
		return productsvc.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}
	return productsvc.CreateInput{
		Name:          req.Name,
		Category:      category,
		Description:   req.Description,
		PriceCents:    req.PriceCents,
		Variants:      toVariants(req.Variants),
		Subscribable:  req.Subscribable,
		StockQuantity: req.StockQuantity,
		ImageURL:      req.ImageURL,
	}, nil
}

// AdminCreateProduct adds a catalog product.
func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toProductDTO(product))
	}
}

type updateProductRequest struct {
	Name          *string                 `json:"name,omitempty"`
	Category      *string                 `json:"category,omitempty"`
	Description   *string                 `json:"description,omitempty"`
	PriceCents    *int64                  `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	Variants      []productVariantRequest `json:"variants,omitempty"`
	Subscribable  *bool                   `json:"subscribable,omitempty"`
	Active        *bool                   `json:"active,omitempty"`
	StockQuantity *int                    `json:"stock_quantity,omitempty" validate:"omitempty,gte=0"`
	ImageURL      *string                 `json:"image_url,omitempty"`
}

// AdminUpdateProduct patches a product; absent fields are left alone.
func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := productsvc.UpdateInput{
			Name:          payload.Name,
			Description:   payload.Description,
			PriceCents:    payload.PriceCents,
			Variants:      toVariants(payload.Variants),
			Subscribable:  payload.Subscribable,
			Active:        payload.Active,
			StockQuantity: payload.StockQuantity,
			ImageURL:      payload.ImageURL,
		}
		if payload.Category != nil {
			category, err := enums.ParseProductCategory(strings.TrimSpace(*payload.Category))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			input.Category = &category
		}

		product, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProductDTO(product))
	}
}

// AdminDeleteProduct soft-deletes: the product disappears from the
// storefront but stays attached to its order history.
func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// AdminListProducts returns the full catalog including inactive products.
func AdminListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := svc.List(r.Context(), productsvc.ListFilter{})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProductDTOs(products))
	}
}

func toVariants(reqs []productVariantRequest) *types.ProductVariants {
	if len(reqs) == 0 {
		return nil
	}
	variants := make(types.ProductVariants, 0, len(reqs))
	for _, v := range reqs {
		variants = append(variants, types.ProductVariant{Name: v.Name, PriceCents: v.PriceCents})
	}
	return &variants
}
