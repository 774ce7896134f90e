// Package api exposes a read-only HTTP surface over the bar store and the
// pipeline's bookkeeping.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/barpipe/internal/scheduler"
	"github.com/navid-fn/barpipe/internal/storage"
)

// Handler serves the status endpoints.
type Handler struct {
	store storage.BarStore
	sched *scheduler.Scheduler
}

func NewHandler(store storage.BarStore, sched *scheduler.Scheduler) *Handler {
	return &Handler{store: store, sched: sched}
}

// NewRouter wires the status endpoints onto a gin engine.
func NewRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/overview", h.GetOverview)
		api.GET("/status", h.GetStatus)
		api.GET("/updates", h.GetUpdates)
	}
	return router
}

// GetOverview returns every (symbol, exchange, interval) summary row.
func (h *Handler) GetOverview(c *gin.Context) {
	rows, err := h.store.ListOverviews(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"overviews": rows})
}

// GetStatus returns the persisted pipeline state document.
func (h *Handler) GetStatus(c *gin.Context) {
	st, err := h.sched.Status()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

// GetUpdates reports pending raw files and stale contracts. The source
// directory may be overridden with the source_dir query parameter.
func (h *Handler) GetUpdates(c *gin.Context) {
	check, err := h.sched.CheckForUpdates(c.Request.Context(), c.Query("source_dir"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, check)
}
