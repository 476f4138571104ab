package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/schedule"
	"github.com/sparvidata/automation-core/internal/transport/http/middleware"
)

// ScheduleHandler exposes a connection's automation schedule: the three
// automation types' recurrence, and the next time each will run.
type ScheduleHandler struct {
	mgr    *schedule.Manager
	logger *slog.Logger
}

func NewScheduleHandler(mgr *schedule.Manager, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{mgr: mgr, logger: logger.With("component", "schedule_handler")}
}

func (h *ScheduleHandler) Get(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}

	sched, err := h.mgr.GetConnectionSchedule(c.Request.Context(), connectionID)
	if err != nil {
		h.logger.Error("get connection schedule", "connection_id", connectionID, "organization_id", principal.OrganizationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connectionId": sched.ConnectionID,
		"config":       sched.Config,
		"nextRuns":     sched.NextRuns,
	})
}

func (h *ScheduleHandler) Update(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}

	var cfg domain.ScheduleConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.mgr.UpdateConnectionSchedule(c.Request.Context(), connectionID, principal.OrganizationID, cfg)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrInvalidSchedule):
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidSchedule})
		default:
			h.logger.Error("update connection schedule", "connection_id", connectionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	c.JSON(http.StatusOK, stored)
}
