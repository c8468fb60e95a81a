package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storeconsole/api/middleware"
	"github.com/angelmondragon/storeconsole/internal/analytics/types"
	"github.com/angelmondragon/storeconsole/pkg/enums"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
	"github.com/angelmondragon/storeconsole/pkg/logger"
)

type stubSnapshotService struct {
	calls  int
	owner  string
	domain enums.MetricsDomain
	opts   types.SnapshotOptions
	result *types.Snapshot
	err    error
}

func (s *stubSnapshotService) Snapshot(ctx context.Context, owner string, domain enums.MetricsDomain, opts types.SnapshotOptions) (*types.Snapshot, error) {
	s.calls++
	s.owner = owner
	s.domain = domain
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &types.Snapshot{Owner: owner, Domain: domain, Window: opts.Window, Degraded: []string{}}, nil
}

func freezeNow(t *testing.T, now time.Time) {
	t.Helper()
	timeNowUTC = func() time.Time { return now }
	t.Cleanup(func() { timeNowUTC = func() time.Time { return time.Now().UTC() } })
}

func serve(t *testing.T, service *stubSnapshotService, target, storeID string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.Get("/api/v1/analytics/{domain}", Snapshot(service, logger.New(logger.Options{ServiceName: "test"})))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if storeID != "" {
		req = req.WithContext(middleware.WithStoreID(req.Context(), storeID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSnapshotUsesPreset(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	freezeNow(t, now)
	stub := &stubSnapshotService{}

	rec := serve(t, stub, "/api/v1/analytics/orders?preset=7d&top=3", "store-1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "store-1", stub.owner)
	assert.Equal(t, enums.DomainOrders, stub.domain)
	require.NotNil(t, stub.opts.Window)
	assert.Equal(t, now.Add(-7*24*time.Hour), stub.opts.Window.From)
	assert.Equal(t, now, stub.opts.Window.To)
	assert.Equal(t, 3, stub.opts.TopN)

	var body struct {
		Data types.Snapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "store-1", body.Data.Owner)
	assert.Equal(t, enums.DomainOrders, body.Data.Domain)
}

func TestSnapshotDefaultsToThirtyDays(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	freezeNow(t, now)
	stub := &stubSnapshotService{}

	rec := serve(t, stub, "/api/v1/analytics/Reviews", "store-1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.DomainReviews, stub.domain)
	require.NotNil(t, stub.opts.Window)
	assert.Equal(t, 30*24*time.Hour, stub.opts.Window.To.Sub(stub.opts.Window.From))
	assert.Zero(t, stub.opts.TopN)
	assert.Zero(t, stub.opts.Lookback)
}

func TestSnapshotTodayAndAllPresets(t *testing.T) {
	now := time.Date(2025, 3, 1, 15, 30, 0, 0, time.UTC)
	freezeNow(t, now)

	stub := &stubSnapshotService{}
	rec := serve(t, stub, "/api/v1/analytics/communications?preset=today&lookback=100", "store-1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.opts.Window)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), stub.opts.Window.From)
	assert.True(t, stub.opts.Window.To.IsZero())
	assert.Equal(t, 100, stub.opts.Lookback)

	stub = &stubSnapshotService{}
	rec = serve(t, stub, "/api/v1/analytics/coupons?preset=all", "store-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, stub.opts.Window)
}

func TestSnapshotExplicitRange(t *testing.T) {
	stub := &stubSnapshotService{}
	rec := serve(t, stub, "/api/v1/analytics/promotions?from=2025-01-01T00:00:00Z&to=2025-02-01T00:00:00-05:00&high_discount=35", "store-1")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.opts.Window)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), stub.opts.Window.From)
	assert.Equal(t, time.Date(2025, 2, 1, 5, 0, 0, 0, time.UTC), stub.opts.Window.To)
	assert.Equal(t, 35.0, stub.opts.HighDiscountPercent)
}

func TestSnapshotRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		target string
		status int
	}{
		{"unknown domain", "/api/v1/analytics/inventory", http.StatusBadRequest},
		{"bad preset", "/api/v1/analytics/orders?preset=1y", http.StatusBadRequest},
		{"lonely from", "/api/v1/analytics/orders?from=2025-01-01T00:00:00Z", http.StatusBadRequest},
		{"bad timestamp", "/api/v1/analytics/orders?from=yesterday&to=2025-01-01T00:00:00Z", http.StatusBadRequest},
		{"empty range", "/api/v1/analytics/orders?from=2025-01-01T00:00:00Z&to=2025-01-01T00:00:00Z", http.StatusBadRequest},
		{"top too large", "/api/v1/analytics/orders?top=51", http.StatusBadRequest},
		{"lookback not numeric", "/api/v1/analytics/communications?lookback=lots", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubSnapshotService{}
			rec := serve(t, stub, tc.target, "store-1")
			assert.Equal(t, tc.status, rec.Code)
			assert.Zero(t, stub.calls, "service must not be called")
		})
	}
}

func TestSnapshotUnknownDomainIsValidationError(t *testing.T) {
	stub := &stubSnapshotService{}
	rec := serve(t, stub, "/api/v1/analytics/inventory", "store-1")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(pkgerrors.CodeValidation), body.Error.Code)
	assert.Zero(t, stub.calls)
}

func TestSnapshotRequiresStore(t *testing.T) {
	stub := &stubSnapshotService{}
	rec := serve(t, stub, "/api/v1/analytics/orders", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, stub.calls)
}

func TestSnapshotMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{pkgerrors.New(pkgerrors.CodeNotFound, "store not found"), http.StatusNotFound},
		{pkgerrors.Unavailable(errors.New("timeout"), "query events"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		stub := &stubSnapshotService{err: tc.err}
		rec := serve(t, stub, "/api/v1/analytics/orders", "store-1")
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}
