package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/history"
)

// HistoryHandler exposes the History & Change-Analytics read-model as a
// freshness lookup and a refresh-interval suggestion — never a write path.
type HistoryHandler struct {
	svc    *history.Service
	logger *slog.Logger
}

func NewHistoryHandler(svc *history.Service, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{svc: svc, logger: logger.With("component", "history_handler")}
}

func (h *HistoryHandler) Freshness(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}
	tableName := c.Query("tableName")
	if tableName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tableName is required"})
		return
	}

	freshness, err := h.svc.Freshness(c.Request.Context(), connectionID, tableName)
	if err != nil {
		h.logger.Error("get freshness", "connection_id", connectionID, "table", tableName, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{"freshness": freshness})
}

func (h *HistoryHandler) RefreshSuggestion(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}
	tableName := c.Query("tableName")
	if tableName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tableName is required"})
		return
	}
	currentHours, _ := strconv.Atoi(c.Query("currentIntervalHours"))
	if currentHours <= 0 {
		currentHours = 24
	}

	suggestion, err := h.svc.SuggestRefreshInterval(c.Request.Context(), connectionID, tableName, currentHours)
	if err != nil {
		h.logger.Error("suggest refresh interval", "connection_id", connectionID, "table", tableName, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, suggestion)
}
