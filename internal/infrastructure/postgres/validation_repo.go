package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sparvidata/automation-core/internal/domain"
)

type ValidationRuleRepository struct {
	pool *pgxpool.Pool
}

func NewValidationRuleRepository(pool *pgxpool.Pool) *ValidationRuleRepository {
	return &ValidationRuleRepository{pool: pool}
}

func (r *ValidationRuleRepository) Create(ctx context.Context, rule *domain.ValidationRule) (*domain.ValidationRule, error) {
	query := `
		INSERT INTO validation_rules (
			organization_id, connection_id, table_name, name, query, operator,
			expected_value, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, organization_id, connection_id, table_name, name, query, operator,
		          expected_value, is_active, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		rule.OrganizationID, rule.ConnectionID, rule.TableName, rule.Name, rule.Query,
		rule.Operator, rule.ExpectedValue, rule.IsActive,
	)

	created, err := scanRule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateRule
		}
		return nil, err
	}
	return created, nil
}

func (r *ValidationRuleRepository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (*domain.ValidationRule, error) {
	query := `
		SELECT id, organization_id, connection_id, table_name, name, query, operator,
		       expected_value, is_active, created_at, updated_at
		FROM validation_rules
		WHERE id = $1 AND organization_id = $2`

	row := r.pool.QueryRow(ctx, query, id, organizationID)
	return scanRule(row)
}

func (r *ValidationRuleRepository) ListActiveByConnection(ctx context.Context, connectionID uuid.UUID) ([]*domain.ValidationRule, error) {
	query := `
		SELECT id, organization_id, connection_id, table_name, name, query, operator,
		       expected_value, is_active, created_at, updated_at
		FROM validation_rules
		WHERE connection_id = $1 AND is_active
		ORDER BY table_name, name`

	rows, err := r.pool.Query(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.ValidationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *ValidationRuleRepository) Update(ctx context.Context, rule *domain.ValidationRule) (*domain.ValidationRule, error) {
	query := `
		UPDATE validation_rules
		SET table_name = $3, name = $4, query = $5, operator = $6,
		    expected_value = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
		RETURNING id, organization_id, connection_id, table_name, name, query, operator,
		          expected_value, is_active, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		rule.ID, rule.OrganizationID, rule.TableName, rule.Name, rule.Query,
		rule.Operator, rule.ExpectedValue, rule.IsActive,
	)

	updated, err := scanRule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateRule
		}
		return nil, err
	}
	return updated, nil
}

func (r *ValidationRuleRepository) Delete(ctx context.Context, id, organizationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM validation_rules WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

func scanRule(row rowScanner) (*domain.ValidationRule, error) {
	var rule domain.ValidationRule
	err := row.Scan(
		&rule.ID, &rule.OrganizationID, &rule.ConnectionID, &rule.TableName, &rule.Name,
		&rule.Query, &rule.Operator, &rule.ExpectedValue, &rule.IsActive,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, fmt.Errorf("scan validation rule: %w", err)
	}
	return &rule, nil
}

type ValidationResultRepository struct {
	pool *pgxpool.Pool
}

func NewValidationResultRepository(pool *pgxpool.Pool) *ValidationResultRepository {
	return &ValidationResultRepository{pool: pool}
}

func (r *ValidationResultRepository) Create(ctx context.Context, result *domain.ValidationResult) (*domain.ValidationResult, error) {
	query := `
		INSERT INTO validation_results (rule_id, run_at, is_valid, actual_value, profile_history_id, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, rule_id, run_at, is_valid, actual_value, profile_history_id, error`

	row := r.pool.QueryRow(ctx, query,
		result.RuleID, result.RunAt, result.IsValid, result.ActualValue,
		result.ProfileHistoryID, result.Error,
	)
	return scanResult(row)
}

func (r *ValidationResultRepository) ListByRule(ctx context.Context, ruleID uuid.UUID, limit int) ([]*domain.ValidationResult, error) {
	query := `
		SELECT id, rule_id, run_at, is_valid, actual_value, profile_history_id, error
		FROM validation_results
		WHERE rule_id = $1
		ORDER BY run_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list validation results: %w", err)
	}
	defer rows.Close()

	var out []*domain.ValidationResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func scanResult(row rowScanner) (*domain.ValidationResult, error) {
	var res domain.ValidationResult
	err := row.Scan(
		&res.ID, &res.RuleID, &res.RunAt, &res.IsValid, &res.ActualValue,
		&res.ProfileHistoryID, &res.Error,
	)
	if err != nil {
		return nil, fmt.Errorf("scan validation result: %w", err)
	}
	return &res, nil
}
