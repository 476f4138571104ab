package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/orchestrator"
	"github.com/sparvidata/automation-core/internal/statustracker"
	"github.com/sparvidata/automation-core/internal/transport/http/middleware"
)

// JobHandler exposes AutomationJob lifecycle operations: triggering a
// run outside its normal cadence, cancelling one in flight, and reading
// back its per-connection summary.
type JobHandler struct {
	orch    *orchestrator.Orchestrator
	tracker *statustracker.Tracker
	logger  *slog.Logger
}

func NewJobHandler(orch *orchestrator.Orchestrator, tracker *statustracker.Tracker, logger *slog.Logger) *JobHandler {
	return &JobHandler{orch: orch, tracker: tracker, logger: logger.With("component", "job_handler")}
}

type triggerJobRequest struct {
	AutomationType domain.AutomationType `json:"automationType" binding:"required"`
}

func (h *JobHandler) Trigger(c *gin.Context) {
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

	var req triggerJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.AutomationType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}

	result, err := h.orch.ScheduleImmediateRun(c.Request.Context(), connectionID, principal.OrganizationID, req.AutomationType)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": errJobAlreadyRunning})
			return
		}
		h.logger.Error("trigger immediate run", "connection_id", connectionID, "automation_type", req.AutomationType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusAccepted, result)
}

func (h *JobHandler) Cancel(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errJobNotFound})
		return
	}

	if err := h.orch.CancelJob(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
			return
		}
		h.logger.Error("cancel job", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *JobHandler) Summary(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}

	windowHours, _ := strconv.Atoi(c.Query("windowHours"))
	if windowHours <= 0 {
		windowHours = 24
	}

	summary, err := h.tracker.GetConnectionJobSummary(c.Request.Context(), connectionID, windowHours)
	if err != nil {
		h.logger.Error("get connection job summary", "connection_id", connectionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, summary)
}
