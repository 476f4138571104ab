package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sparvidata/automation-core/internal/connector"
	"github.com/sparvidata/automation-core/internal/connector/dial"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/metadatamgr"
	"github.com/sparvidata/automation-core/internal/repository"
)

const (
	validationRuleTimeout     = 60 * time.Second
	validationConcurrencyCap  = 10
)

var schemaDriftHints = []string{"column not found", "table not found", "does not exist"}

// ValidationExecutor runs every active rule for a connection's tables
// concurrently, bounded to 10 in flight, and records one ValidationResult
// per rule regardless of whether the query succeeded.
type ValidationExecutor struct {
	connections repository.ConnectionRepository
	rules       repository.ValidationRuleRepository
	results     repository.ValidationResultRepository
	metadataMgr *metadatamgr.Client
	scheduler   SchedulerContext
	now         func() time.Time
}

func NewValidationExecutor(
	connections repository.ConnectionRepository,
	rules repository.ValidationRuleRepository,
	results repository.ValidationResultRepository,
	metadataMgr *metadatamgr.Client,
	scheduler SchedulerContext,
) *ValidationExecutor {
	return &ValidationExecutor{
		connections: connections,
		rules:       rules,
		results:     results,
		metadataMgr: metadataMgr,
		scheduler:   scheduler,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type validationRunResult struct {
	RulesRun    int `json:"rulesRun"`
	InvalidCount int `json:"invalidCount"`
}

func (e *ValidationExecutor) Execute(ctx context.Context, job *domain.AutomationJob) (any, error) {
	conn, err := e.connections.GetByID(ctx, job.ConnectionID, job.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load connection: %w", err)
	}

	rules, err := e.rules.ListActiveByConnection(ctx, conn.ID)
	if err != nil {
		return nil, fmt.Errorf("list active validation rules: %w", err)
	}
	if len(rules) == 0 {
		return validationRunResult{}, nil
	}

	db, err := dial.Open(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("connect to target: %w", err)
	}
	defer db.Close()

	var (
		mu              sync.Mutex
		invalidCount    int
		driftTables     = make(map[string]struct{})
	)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(validationConcurrencyCap)

	for _, rule := range rules {
		rule := rule
		group.Go(func() error {
			result, driftHinted := e.runRule(gctx, db, rule, e.now())

			if _, err := e.results.Create(ctx, result); err != nil {
				return fmt.Errorf("record validation result for rule %s: %w", rule.Name, err)
			}

			mu.Lock()
			if !result.IsValid {
				invalidCount++
			}
			if driftHinted {
				driftTables[rule.TableName] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	for table := range driftTables {
		if err := e.metadataMgr.NotifySchemaMismatch(ctx, metadatamgr.SchemaMismatchNotice{
			ConnectionID: conn.ID,
			TableName:    table,
			Reason:       "schema_mismatch",
		}); err != nil {
			return nil, fmt.Errorf("notify schema mismatch for table %s: %w", table, err)
		}
		if _, err := e.scheduler.PublishEvent(ctx, domain.EventValidationFailure, &conn.ID, &conn.OrganizationID, map[string]any{
			"table":  table,
			"reason": "schema_mismatch",
		}); err != nil {
			return nil, fmt.Errorf("publish validation failure event: %w", err)
		}
	}

	if invalidCount > 0 {
		if _, err := e.scheduler.PublishEvent(ctx, domain.EventValidationFailuresDetected, &conn.ID, &conn.OrganizationID, map[string]any{
			"invalidCount": invalidCount,
			"rulesRun":     len(rules),
		}); err != nil {
			return nil, fmt.Errorf("publish validation failures detected event: %w", err)
		}
	}

	return validationRunResult{RulesRun: len(rules), InvalidCount: invalidCount}, nil
}

// runRule executes one rule's query and evaluates it, never returning a Go
// error itself — a query failure or evaluation failure is recorded as an
// invalid result with Error set, per spec: a ValidationResult is written
// for every rule regardless of outcome.
func (e *ValidationExecutor) runRule(ctx context.Context, db connector.DB, rule *domain.ValidationRule, runAt time.Time) (*domain.ValidationResult, bool) {
	result := &domain.ValidationResult{RuleID: rule.ID, RunAt: runAt}

	actual, err := db.QueryScalar(ctx, rule.Query, validationRuleTimeout)
	if err != nil {
		errMsg := err.Error()
		result.IsValid = false
		result.Error = &errMsg
		return result, hintsSchemaDrift(err)
	}

	if actual != nil {
		if raw, mErr := json.Marshal(actual); mErr == nil {
			result.ActualValue = raw
		}
	}

	valid, evalErr := evaluateRule(rule.Operator, actual, rule.ExpectedValue)
	if evalErr != nil {
		errMsg := evalErr.Error()
		result.Error = &errMsg
	}
	result.IsValid = valid
	return result, false
}

func hintsSchemaDrift(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, hint := range schemaDriftHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// evaluateRule judges actual (the scalar query result) against rule's
// operator and expected value. A nil actual is always invalid.
func evaluateRule(op domain.Operator, actual any, expectedRaw json.RawMessage) (bool, error) {
	if actual == nil {
		return false, nil
	}
	if !op.Valid() {
		return false, domain.ErrInvalidOperator
	}

	var expected any
	if err := json.Unmarshal(expectedRaw, &expected); err != nil {
		return false, fmt.Errorf("decode expected value: %w", err)
	}

	switch op {
	case domain.OperatorEquals:
		if af, aok := toFloat64(actual); aok {
			if ef, eok := toFloat64(expected); eok {
				return af == ef, nil
			}
		}
		return fmt.Sprint(actual) == fmt.Sprint(expected), nil

	case domain.OperatorGreaterThan:
		af, aok := toFloat64(actual)
		ef, eok := toFloat64(expected)
		if !aok || !eok {
			return false, fmt.Errorf("greater_than requires numeric actual and expected values")
		}
		return af > ef, nil

	case domain.OperatorLessThan:
		af, aok := toFloat64(actual)
		ef, eok := toFloat64(expected)
		if !aok || !eok {
			return false, fmt.Errorf("less_than requires numeric actual and expected values")
		}
		return af < ef, nil

	case domain.OperatorBetween:
		bounds, ok := expected.([]any)
		if !ok || len(bounds) != 2 {
			return false, fmt.Errorf("between requires a [min, max] expected value")
		}
		minVal, minOK := toFloat64(bounds[0])
		maxVal, maxOK := toFloat64(bounds[1])
		af, aok := toFloat64(actual)
		if !minOK || !maxOK || !aok {
			return false, fmt.Errorf("between requires numeric bounds and a numeric actual value")
		}
		return af >= minVal && af <= maxVal, nil

	default:
		return false, domain.ErrInvalidOperator
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
