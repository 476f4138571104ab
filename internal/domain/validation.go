package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRuleNotFound     = errors.New("validation rule not found")
	ErrDuplicateRule    = errors.New("a rule with this name already exists for this table")
	ErrInvalidOperator  = errors.New("invalid validation operator")
)

// Operator is the closed comparison set a ValidationRule may use to judge
// its query's scalar result against ExpectedValue.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorBetween     Operator = "between"
)

func (o Operator) Valid() bool {
	switch o {
	case OperatorEquals, OperatorGreaterThan, OperatorLessThan, OperatorBetween:
		return true
	default:
		return false
	}
}

// ValidationRule is a single opaque SQL scalar query plus the comparison
// used to judge it. Unique on (OrganizationID, ConnectionID, TableName, Name).
type ValidationRule struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organizationId"`
	ConnectionID   uuid.UUID       `json:"connectionId"`
	TableName      string          `json:"tableName"`
	Name           string          `json:"name"`
	Query          string          `json:"query"`
	Operator       Operator        `json:"operator"`
	ExpectedValue  json.RawMessage `json:"expectedValue"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ValidationResult is the outcome of running one rule once.
type ValidationResult struct {
	ID               uuid.UUID       `json:"id"`
	RuleID           uuid.UUID       `json:"ruleId"`
	RunAt            time.Time       `json:"runAt"`
	IsValid          bool            `json:"isValid"`
	ActualValue      json.RawMessage `json:"actualValue"`
	ProfileHistoryID *uuid.UUID      `json:"profileHistoryId,omitempty"`
	Error            *string         `json:"error,omitempty"`
}
