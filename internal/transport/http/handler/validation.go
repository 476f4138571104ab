package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/repository"
	"github.com/sparvidata/automation-core/internal/transport/http/middleware"
)

type ValidationHandler struct {
	rules  repository.ValidationRuleRepository
	logger *slog.Logger
}

func NewValidationHandler(rules repository.ValidationRuleRepository, logger *slog.Logger) *ValidationHandler {
	return &ValidationHandler{rules: rules, logger: logger.With("component", "validation_handler")}
}

type createValidationRuleRequest struct {
	ConnectionID  uuid.UUID       `json:"connectionId"  binding:"required"`
	TableName     string          `json:"tableName"     binding:"required"`
	Name          string          `json:"name"           binding:"required,max=256"`
	Query         string          `json:"query"          binding:"required"`
	Operator      domain.Operator `json:"operator"       binding:"required"`
	ExpectedValue json.RawMessage `json:"expectedValue"  binding:"required"`
}

func (h *ValidationHandler) Create(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	var req createValidationRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Operator.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidOperator.Error()})
		return
	}

	rule, err := h.rules.Create(c.Request.Context(), &domain.ValidationRule{
		OrganizationID: principal.OrganizationID,
		ConnectionID:   req.ConnectionID,
		TableName:      req.TableName,
		Name:           req.Name,
		Query:          req.Query,
		Operator:       req.Operator,
		ExpectedValue:  req.ExpectedValue,
		IsActive:       true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateRule) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("create validation rule", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (h *ValidationHandler) ListForConnection(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidConnection})
		return
	}

	rules, err := h.rules.ListActiveByConnection(c.Request.Context(), connectionID)
	if err != nil {
		h.logger.Error("list validation rules", "connection_id", connectionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *ValidationHandler) Delete(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInternalServer})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errRuleNotFound})
		return
	}

	if err := h.rules.Delete(c.Request.Context(), id, principal.OrganizationID); err != nil {
		h.logger.Error("delete validation rule", "rule_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.Status(http.StatusNoContent)
}
