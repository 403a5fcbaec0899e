package controllers

import (
	"net/http"

	"github.com/sugarcraft/academy-backend/api/responses"
	"github.com/sugarcraft/academy-backend/pkg/config"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
	"github.com/sugarcraft/academy-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Sugarcraft-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, pinger redis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Sugarcraft-Env", cfg.App.Env)
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
