package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/repository"
	"github.com/sparvidata/automation-core/internal/transport/http/middleware"
)

// NotificationHandler exposes the per-organization NotificationSettings
// the Notification Dispatcher gates delivery on.
type NotificationHandler struct {
	settings repository.NotificationSettingsRepository
	logger   *slog.Logger
}

func NewNotificationHandler(settings repository.NotificationSettingsRepository, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{settings: settings, logger: logger.With("component", "notification_handler")}
}

func (h *NotificationHandler) Get(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	settings, err := h.settings.Get(c.Request.Context(), principal.OrganizationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationSettingsNotFound) {
			c.JSON(http.StatusOK, domain.DefaultNotificationSettings(principal.OrganizationID))
			return
		}
		h.logger.Error("get notification settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, settings)
}

type updateNotificationSettingsRequest struct {
	NotifyJobFailed          bool     `json:"notifyJobFailed"`
	NotifySchemaChanges      bool     `json:"notifySchemaChanges"`
	NotifyValidationFailures bool     `json:"notifyValidationFailures"`
	EmailEnabled             bool     `json:"emailEnabled"`
	ToEmails                 []string `json:"toEmails"`
}

func (h *NotificationHandler) Update(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	var req updateNotificationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.settings.Upsert(c.Request.Context(), &domain.NotificationSettings{
		OrganizationID:           principal.OrganizationID,
		NotifyJobFailed:          req.NotifyJobFailed,
		NotifySchemaChanges:      req.NotifySchemaChanges,
		NotifyValidationFailures: req.NotifyValidationFailures,
		EmailEnabled:             req.EmailEnabled,
		ToEmails:                 req.ToEmails,
	})
	if err != nil {
		h.logger.Error("update notification settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, stored)
}
