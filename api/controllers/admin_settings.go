package controllers

import (
	"net/http"
	"strings"

	"github.com/oddfellowcoffee/storefront-backend/api/responses"
	"github.com/oddfellowcoffee/storefront-backend/api/validators"
	settingsvc "github.com/oddfellowcoffee/storefront-backend/internal/settings"
	pkgerrors "github.com/oddfellowcoffee/storefront-backend/pkg/errors"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
)

// AdminGetSettings returns every key/value pair.
func AdminGetSettings(svc *settingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := svc.All(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, all)
	}
}

type putSettingsRequest struct {
	Settings map[string]string `json:"settings" validate:"required,min=1"`
}

// AdminPutSettings upserts the provided keys. Keys not present are left
// untouched.
func AdminPutSettings(svc *settingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload putSettingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		for key, value := range payload.Settings {
			if strings.TrimSpace(key) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "setting keys must not be blank"))
				return
			}
			if err := svc.Set(r.Context(), key, value); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		all, err := svc.All(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, all)
	}
}
