package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
)

// ValidationRuleRepository manages the per-table rules the validation
// executor runs. Unique on (OrganizationID, ConnectionID, TableName, Name).
type ValidationRuleRepository interface {
	Create(ctx context.Context, rule *domain.ValidationRule) (*domain.ValidationRule, error)
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (*domain.ValidationRule, error)
	// ListActiveByConnection returns every is_active rule for a connection,
	// grouped implicitly by TableName via the caller.
	ListActiveByConnection(ctx context.Context, connectionID uuid.UUID) ([]*domain.ValidationRule, error)
	Update(ctx context.Context, rule *domain.ValidationRule) (*domain.ValidationRule, error)
	Delete(ctx context.Context, id, organizationID uuid.UUID) error
}

// ValidationResultRepository stores the outcome of each rule execution.
type ValidationResultRepository interface {
	Create(ctx context.Context, result *domain.ValidationResult) (*domain.ValidationResult, error)
	ListByRule(ctx context.Context, ruleID uuid.UUID, limit int) ([]*domain.ValidationResult, error)
}
