package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storeconsole/api/middleware"
	"github.com/angelmondragon/storeconsole/api/responses"
	"github.com/angelmondragon/storeconsole/internal/stores"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
	"github.com/angelmondragon/storeconsole/pkg/logger"
)

// StoreProfile returns the active store named by the access token.
func StoreProfile(svc stores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		storeID := middleware.StoreIDFromContext(r.Context())
		if storeID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing"))
			return
		}

		id, err := uuid.Parse(storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id"))
			return
		}

		profile, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}
