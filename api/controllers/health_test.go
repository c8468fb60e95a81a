package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storeconsole/pkg/config"
)

type stubPinger struct {
	err   error
	calls int
}

func (s *stubPinger) Ping(context.Context) error {
	s.calls++
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthLive(testConfig())(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get(envHeader))
}

func TestHealthReadyAllUp(t *testing.T) {
	db := &stubPinger{}
	cache := &stubPinger{}
	rec := httptest.NewRecorder()
	HealthReady(testConfig(), nil,
		Dependency{Name: "db", Pinger: db},
		Dependency{Name: "redis", Pinger: cache},
		Dependency{Name: "bigquery"},
	)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ready", body.Data.Status)
	assert.Equal(t, map[string]string{"db": "ok", "redis": "ok"}, body.Data.Checks)
}

func TestHealthReadyDependencyDown(t *testing.T) {
	db := &stubPinger{err: errors.New("connection refused")}
	cache := &stubPinger{}
	rec := httptest.NewRecorder()
	HealthReady(testConfig(), nil,
		Dependency{Name: "db", Pinger: db},
		Dependency{Name: "redis", Pinger: cache},
	)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, cache.calls, "checks stop at the first failure")
}
