package analytics

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storeconsole/api/middleware"
	"github.com/angelmondragon/storeconsole/api/responses"
	"github.com/angelmondragon/storeconsole/api/validators"
	analyticsvc "github.com/angelmondragon/storeconsole/internal/analytics"
	"github.com/angelmondragon/storeconsole/internal/analytics/types"
	"github.com/angelmondragon/storeconsole/pkg/enums"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
	"github.com/angelmondragon/storeconsole/pkg/logger"
)

// Snapshot serves GET /api/v1/analytics/{domain} for the store in the request context.
func Snapshot(service analyticsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		storeID := middleware.StoreIDFromContext(ctx)
		if storeID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "store context required"))
			return
		}

		rawDomain := validators.SanitizeString(chi.URLParam(r, "domain"), 32)
		domain, err := enums.ParseMetricsDomain(rawDomain)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid metrics domain").
				WithDetails(map[string]any{"domain": rawDomain}))
			return
		}

		window, err := resolveWindow(r, timeNowUTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		opts := types.SnapshotOptions{Window: window}
		if opts.TopN, err = validators.ParseQueryInt(r, "top", 0, 1, 50); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if opts.Lookback, err = validators.ParseQueryInt(r, "lookback", 0, 1, 5000); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		highDiscount, err := validators.ParseQueryInt(r, "high_discount", 0, 1, 100)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		opts.HighDiscountPercent = float64(highDiscount)

		snapshot, err := service.Snapshot(ctx, storeID, domain, opts)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, snapshot)
	}
}
