package controllers

import (
	"net/http"

	"github.com/dfrestrepo/mercaflow-backend/api/responses"
	"github.com/dfrestrepo/mercaflow-backend/pkg/config"
	dbpkg "github.com/dfrestrepo/mercaflow-backend/pkg/db"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	pkgredis "github.com/dfrestrepo/mercaflow-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "live", "env": cfg.App.Env})
	}
}

// HealthReady reports readiness only when both backing stores answer a ping.
func HealthReady(cfg *config.Config, db dbpkg.Pinger, cache pkgredis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready", "env": cfg.App.Env})
	}
}
