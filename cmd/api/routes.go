package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"authguard/internal/apierr"
	"authguard/internal/httpapi"
	"authguard/pkg/logger"
	"authguard/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func newRouter(log *slog.Logger, h *httpapi.Handlers, reg *prometheus.Registry, db *sql.DB) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	r.GET("/healthz", func(c *gin.Context) {
		if db != nil {
			if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
				log.Error("health check failed", "err", err)
				apierr.Abort(c, apierr.New(http.StatusServiceUnavailable, apierr.CodeInternal, "database unavailable"))
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	h.Routes(r)
	return r
}
