package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/campuscart/marketplace-backend/api/responses"
	"github.com/campuscart/marketplace-backend/pkg/config"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by the database and Redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CampusCart-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every dependency answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CampusCart-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		var failed *pkgerrors.Error
		for _, name := range names {
			dep := deps[name]
			if dep == nil {
				checks[name] = "missing"
				failed = pkgerrors.New(pkgerrors.CodeDependency, name+" unavailable")
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" ping failed")
				continue
			}
			checks[name] = "ok"
		}
		if failed != nil {
			responses.WriteError(r.Context(), logg, w, failed.WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
