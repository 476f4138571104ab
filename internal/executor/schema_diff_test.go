package executor

import (
	"testing"
	"time"

	"github.com/sparvidata/automation-core/internal/connector"
	"github.com/sparvidata/automation-core/internal/domain"
)

func changeTypes(changes []domain.SchemaChange) map[domain.SchemaChangeType]int {
	out := make(map[domain.SchemaChangeType]int)
	for _, c := range changes {
		out[c.ChangeType]++
	}
	return out
}

// Scenario 5: diffing two snapshots produces exactly the change set implied
// by what moved between them — an added table, a removed column, a
// widened column type, and a new index — nothing more.
func TestDiffTables_ProducesExactChangeSet(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	previous := []connector.Table{
		{
			Name: "orders",
			Columns: []connector.Column{
				{Name: "id", Type: "integer", Nullable: false},
				{Name: "amount", Type: "integer", Nullable: true},
				{Name: "legacy_note", Type: "text", Nullable: true},
			},
			Indexes: []connector.Index{
				{Name: "orders_id_idx", Columns: []string{"id"}, Unique: true},
			},
		},
	}

	current := []connector.Table{
		{
			Name: "orders",
			Columns: []connector.Column{
				{Name: "id", Type: "integer", Nullable: false},
				{Name: "amount", Type: "numeric", Nullable: true}, // type widened
			},
			Indexes: []connector.Index{
				{Name: "orders_id_idx", Columns: []string{"id"}, Unique: true},
				{Name: "orders_amount_idx", Columns: []string{"amount"}, Unique: false}, // new
			},
		},
		{
			Name: "customers", // new table
			Columns: []connector.Column{
				{Name: "id", Type: "integer", Nullable: false},
			},
		},
	}

	changes := diffTables(current, previous, now)
	counts := changeTypes(changes)

	if counts[domain.ChangeTableAdded] != 1 {
		t.Errorf("table_added count = %d, want 1", counts[domain.ChangeTableAdded])
	}
	if counts[domain.ChangeColumnRemoved] != 1 {
		t.Errorf("column_removed count = %d, want 1", counts[domain.ChangeColumnRemoved])
	}
	if counts[domain.ChangeColumnTypeChanged] != 1 {
		t.Errorf("column_type_changed count = %d, want 1", counts[domain.ChangeColumnTypeChanged])
	}
	if counts[domain.ChangeIndexAdded] != 1 {
		t.Errorf("index_added count = %d, want 1", counts[domain.ChangeIndexAdded])
	}
	if counts[domain.ChangeTableRemoved] != 0 {
		t.Errorf("table_removed count = %d, want 0", counts[domain.ChangeTableRemoved])
	}
	if counts[domain.ChangeColumnAdded] != 0 {
		t.Errorf("column_added count = %d, want 0", counts[domain.ChangeColumnAdded])
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total != 4 {
		t.Errorf("total changes = %d, want 4 (got %v)", total, counts)
	}
}

func TestDiffTables_ColumnTypeComparisonIsCaseInsensitive(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	previous := []connector.Table{{Name: "t", Columns: []connector.Column{{Name: "c", Type: "VARCHAR"}}}}
	current := []connector.Table{{Name: "t", Columns: []connector.Column{{Name: "c", Type: "varchar"}}}}

	changes := diffTables(current, previous, now)
	if len(changes) != 0 {
		t.Errorf("expected no changes for case-only type difference, got %v", changes)
	}
}

func TestDiffTables_PrimaryKeyChanged(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	previous := []connector.Table{{Name: "t", PrimaryKey: &connector.PrimaryKey{Columns: []string{"id"}}}}
	current := []connector.Table{{Name: "t", PrimaryKey: &connector.PrimaryKey{Columns: []string{"id", "tenant_id"}}}}

	changes := diffTables(current, previous, now)
	counts := changeTypes(changes)
	if counts[domain.ChangePrimaryKeyChanged] != 1 {
		t.Errorf("primary_key_changed count = %d, want 1 (got %v)", counts[domain.ChangePrimaryKeyChanged], counts)
	}
}

func TestDiffTables_ForeignKeyFingerprintIgnoresOrder(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	previous := []connector.Table{{Name: "t", ForeignKeys: []connector.ForeignKey{
		{ConstrainedCols: []string{"b", "a"}, ReferredTable: "parent", ReferredCols: []string{"y", "x"}},
	}}}
	current := []connector.Table{{Name: "t", ForeignKeys: []connector.ForeignKey{
		{ConstrainedCols: []string{"a", "b"}, ReferredTable: "parent", ReferredCols: []string{"x", "y"}},
	}}}

	changes := diffTables(current, previous, now)
	if len(changes) != 0 {
		t.Errorf("expected reordered FK columns to fingerprint identically, got %v", changes)
	}
}
