package executor

import (
	"encoding/json"
	"testing"

	"github.com/sparvidata/automation-core/internal/domain"
)

// Scenario 6: a between rule judges a scalar query result against
// [min, max], inclusive. A missing actual is covered by
// TestEvaluateRule_NilActualIsAlwaysInvalid.
func TestEvaluateRule_Between(t *testing.T) {
	expected, _ := json.Marshal([]float64{10, 20})

	cases := []struct {
		name   string
		actual any
		want   bool
	}{
		{"within bounds", int64(15), true},
		{"above upper bound", int64(21), false},
		{"at lower bound", int64(10), true},
		{"at upper bound", int64(20), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			valid, err := evaluateRule(domain.OperatorBetween, tc.actual, expected)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if valid != tc.want {
				t.Errorf("got %v, want %v", valid, tc.want)
			}
		})
	}
}

func TestEvaluateRule_NilActualIsAlwaysInvalid(t *testing.T) {
	expected, _ := json.Marshal([]float64{10, 20})
	valid, err := evaluateRule(domain.OperatorBetween, nil, expected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if valid {
		t.Error("expected nil actual to be invalid")
	}
}

func TestEvaluateRule_Equals_NumericAndString(t *testing.T) {
	numExpected, _ := json.Marshal(42)
	if valid, err := evaluateRule(domain.OperatorEquals, int64(42), numExpected); err != nil || !valid {
		t.Errorf("numeric equals: valid=%v err=%v", valid, err)
	}

	strExpected, _ := json.Marshal("active")
	if valid, err := evaluateRule(domain.OperatorEquals, "active", strExpected); err != nil || !valid {
		t.Errorf("string equals: valid=%v err=%v", valid, err)
	}
	if valid, err := evaluateRule(domain.OperatorEquals, "inactive", strExpected); err != nil || valid {
		t.Errorf("string equals mismatch: valid=%v err=%v", valid, err)
	}
}

func TestEvaluateRule_GreaterThan(t *testing.T) {
	expected, _ := json.Marshal(100)
	if valid, _ := evaluateRule(domain.OperatorGreaterThan, int64(150), expected); !valid {
		t.Error("expected 150 > 100 to be valid")
	}
	if valid, _ := evaluateRule(domain.OperatorGreaterThan, int64(50), expected); valid {
		t.Error("expected 50 > 100 to be invalid")
	}
}

func TestEvaluateRule_InvalidOperator(t *testing.T) {
	expected, _ := json.Marshal(1)
	if _, err := evaluateRule(domain.Operator("unknown"), int64(1), expected); err == nil {
		t.Error("expected an error for an unrecognized operator")
	}
}
