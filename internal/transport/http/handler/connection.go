package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/connector"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/repository"
	"github.com/sparvidata/automation-core/internal/transport/http/middleware"
)

type ConnectionHandler struct {
	connections repository.ConnectionRepository
	logger      *slog.Logger
}

func NewConnectionHandler(connections repository.ConnectionRepository, logger *slog.Logger) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, logger: logger.With("component", "connection_handler")}
}

type createConnectionRequest struct {
	Name        string                 `json:"name"        binding:"required,max=256"`
	Type        domain.ConnectionType  `json:"type"        binding:"required"`
	Credentials connector.Credentials  `json:"credentials" binding:"required"`
	IsDefault   bool                   `json:"isDefault"`
}

func (h *ConnectionHandler) Create(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	var req createConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}

	credsRaw, err := json.Marshal(req.Credentials)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}

	conn, err := h.connections.Create(c.Request.Context(), &domain.Connection{
		OrganizationID: principal.OrganizationID,
		Name:           req.Name,
		Type:           req.Type,
		Credentials:    credsRaw,
		IsDefault:      req.IsDefault,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateDefault):
			c.JSON(http.StatusConflict, gin.H{"error": errDuplicateDefault})
		case errors.Is(err, domain.ErrInvalidConnection):
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		default:
			h.logger.Error("create connection", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	c.JSON(http.StatusCreated, conn)
}

func (h *ConnectionHandler) List(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	conns, err := h.connections.List(c.Request.Context(), principal.OrganizationID)
	if err != nil {
		h.logger.Error("list connections", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns})
}

func (h *ConnectionHandler) GetByID(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}

	conn, err := h.connections.GetByID(c.Request.Context(), id, principal.OrganizationID)
	if err != nil {
		if errors.Is(err, domain.ErrConnectionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errConnectionNotFound})
			return
		}
		h.logger.Error("get connection", "connection_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, conn)
}

func (h *ConnectionHandler) SetDefault(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}

	if err := h.connections.SetDefault(c.Request.Context(), id, principal.OrganizationID); err != nil {
		if errors.Is(err, domain.ErrConnectionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errConnectionNotFound})
			return
		}
		h.logger.Error("set default connection", "connection_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ConnectionHandler) Delete(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}

	if err := h.connections.Delete(c.Request.Context(), id, principal.OrganizationID); err != nil {
		if errors.Is(err, domain.ErrConnectionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errConnectionNotFound})
			return
		}
		h.logger.Error("delete connection", "connection_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.Status(http.StatusNoContent)
}
