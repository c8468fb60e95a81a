package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/storeconsole/api/responses"
	"github.com/angelmondragon/storeconsole/pkg/config"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
	"github.com/angelmondragon/storeconsole/pkg/logger"
)

const readinessTimeout = 2 * time.Second

const envHeader = "X-StoreConsole-Env"

// Pinger is satisfied by every backing client the readiness probe checks.
type Pinger interface {
	Ping(context.Context) error
}

// Dependency names a client checked by the readiness probe. A nil Pinger is skipped.
type Dependency struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each dependency and reports 503 if any of them fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps ...Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		for _, dep := range deps {
			if dep.Pinger == nil {
				continue
			}
			if err := dep.Pinger.Ping(ctx); err != nil {
				checks[dep.Name] = "down"
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, dep.Name+" unavailable").
					WithDetails(map[string]any{"dependency": dep.Name}))
				return
			}
			checks[dep.Name] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
