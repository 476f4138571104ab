package executor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sparvidata/automation-core/internal/connector"
	"github.com/sparvidata/automation-core/internal/domain"
)

// diffTables compares two structural snapshots and returns every detected
// change, grounded on the fingerprinting rules the original schema change
// detector uses: column names compared case-insensitively, foreign keys
// and indexes identified by a sorted, delimited fingerprint rather than by
// position. Returned changes have no ID and share detectedAt.
func diffTables(current, previous []connector.Table, detectedAt time.Time) []domain.SchemaChange {
	currentByName := tablesByName(current)
	previousByName := tablesByName(previous)

	var changes []domain.SchemaChange

	for name := range currentByName {
		if _, ok := previousByName[name]; !ok {
			changes = append(changes, newChange(name, nil, domain.ChangeTableAdded, nil, detectedAt))
		}
	}
	for name := range previousByName {
		if _, ok := currentByName[name]; !ok {
			changes = append(changes, newChange(name, nil, domain.ChangeTableRemoved, nil, detectedAt))
		}
	}

	for name, currentTable := range currentByName {
		previousTable, ok := previousByName[name]
		if !ok {
			continue
		}
		changes = append(changes, diffColumns(name, currentTable.Columns, previousTable.Columns, detectedAt)...)
		changes = append(changes, diffPrimaryKey(name, currentTable.PrimaryKey, previousTable.PrimaryKey, detectedAt)...)
		changes = append(changes, diffForeignKeys(name, currentTable.ForeignKeys, previousTable.ForeignKeys, detectedAt)...)
		changes = append(changes, diffIndexes(name, currentTable.Indexes, previousTable.Indexes, detectedAt)...)
	}

	return changes
}

func tablesByName(tables []connector.Table) map[string]connector.Table {
	out := make(map[string]connector.Table, len(tables))
	for _, t := range tables {
		out[t.Name] = t
	}
	return out
}

func newChange(table string, column *string, changeType domain.SchemaChangeType, details any, detectedAt time.Time) domain.SchemaChange {
	raw, _ := json.Marshal(details)
	return domain.SchemaChange{
		TableName:  table,
		ColumnName: column,
		ChangeType: changeType,
		Details:    raw,
		DetectedAt: detectedAt,
	}
}

func diffColumns(table string, current, previous []connector.Column, detectedAt time.Time) []domain.SchemaChange {
	currentByName := columnsByLowerName(current)
	previousByName := columnsByLowerName(previous)

	var changes []domain.SchemaChange

	for lower, col := range currentByName {
		if _, ok := previousByName[lower]; !ok {
			name := col.Name
			changes = append(changes, newChange(table, &name, domain.ChangeColumnAdded, map[string]any{
				"type": col.Type, "nullable": col.Nullable,
			}, detectedAt))
		}
	}
	for lower, col := range previousByName {
		if _, ok := currentByName[lower]; !ok {
			name := col.Name
			changes = append(changes, newChange(table, &name, domain.ChangeColumnRemoved, map[string]any{
				"type": col.Type,
			}, detectedAt))
		}
	}

	for lower, currentCol := range currentByName {
		previousCol, ok := previousByName[lower]
		if !ok {
			continue
		}
		name := currentCol.Name
		if !strings.EqualFold(currentCol.Type, previousCol.Type) {
			changes = append(changes, newChange(table, &name, domain.ChangeColumnTypeChanged, map[string]any{
				"previous_type": previousCol.Type, "new_type": currentCol.Type,
			}, detectedAt))
		}
		if currentCol.Nullable != previousCol.Nullable {
			changes = append(changes, newChange(table, &name, domain.ChangeColumnNullabilityChanged, map[string]any{
				"previous_nullable": previousCol.Nullable, "new_nullable": currentCol.Nullable,
			}, detectedAt))
		}
	}

	return changes
}

func columnsByLowerName(cols []connector.Column) map[string]connector.Column {
	out := make(map[string]connector.Column, len(cols))
	for _, c := range cols {
		out[strings.ToLower(c.Name)] = c
	}
	return out
}

func diffPrimaryKey(table string, current, previous *connector.PrimaryKey, detectedAt time.Time) []domain.SchemaChange {
	currentCols := sortedCols(current)
	previousCols := sortedCols(previous)

	switch {
	case len(previousCols) == 0 && len(currentCols) > 0:
		return []domain.SchemaChange{newChange(table, nil, domain.ChangePrimaryKeyAdded, map[string]any{"columns": currentCols}, detectedAt)}
	case len(previousCols) > 0 && len(currentCols) == 0:
		return []domain.SchemaChange{newChange(table, nil, domain.ChangePrimaryKeyRemoved, map[string]any{"columns": previousCols}, detectedAt)}
	case !equalStrings(currentCols, previousCols):
		return []domain.SchemaChange{newChange(table, nil, domain.ChangePrimaryKeyChanged, map[string]any{
			"previous_columns": previousCols, "new_columns": currentCols,
		}, detectedAt)}
	default:
		return nil
	}
}

func sortedCols(pk *connector.PrimaryKey) []string {
	if pk == nil {
		return nil
	}
	cols := append([]string(nil), pk.Columns...)
	sort.Strings(cols)
	return cols
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fkFingerprint(fk connector.ForeignKey) string {
	constrained := append([]string(nil), fk.ConstrainedCols...)
	sort.Strings(constrained)
	referred := append([]string(nil), fk.ReferredCols...)
	sort.Strings(referred)
	return fmt.Sprintf("%s|%s|%s", strings.Join(constrained, ","), fk.ReferredTable, strings.Join(referred, ","))
}

func diffForeignKeys(table string, current, previous []connector.ForeignKey, detectedAt time.Time) []domain.SchemaChange {
	currentByFP := make(map[string]connector.ForeignKey, len(current))
	for _, fk := range current {
		currentByFP[fkFingerprint(fk)] = fk
	}
	previousByFP := make(map[string]connector.ForeignKey, len(previous))
	for _, fk := range previous {
		previousByFP[fkFingerprint(fk)] = fk
	}

	var changes []domain.SchemaChange
	for fp, fk := range currentByFP {
		if _, ok := previousByFP[fp]; !ok {
			changes = append(changes, newChange(table, nil, domain.ChangeForeignKeyAdded, map[string]any{
				"constrained_columns": fk.ConstrainedCols, "referred_table": fk.ReferredTable, "referred_columns": fk.ReferredCols,
			}, detectedAt))
		}
	}
	for fp, fk := range previousByFP {
		if _, ok := currentByFP[fp]; !ok {
			changes = append(changes, newChange(table, nil, domain.ChangeForeignKeyRemoved, map[string]any{
				"constrained_columns": fk.ConstrainedCols, "referred_table": fk.ReferredTable, "referred_columns": fk.ReferredCols,
			}, detectedAt))
		}
	}
	// Matching fingerprints mean identical keys by this definition — no
	// finer-grained attribute comparison beyond columns and target table.
	return changes
}

func indexFingerprint(idx connector.Index) string {
	cols := append([]string(nil), idx.Columns...)
	sort.Strings(cols)
	return fmt.Sprintf("%s|%s|%t", idx.Name, strings.Join(cols, ","), idx.Unique)
}

func diffIndexes(table string, current, previous []connector.Index, detectedAt time.Time) []domain.SchemaChange {
	currentByFP := make(map[string]connector.Index, len(current))
	currentByName := make(map[string]connector.Index, len(current))
	for _, idx := range current {
		currentByFP[indexFingerprint(idx)] = idx
		currentByName[idx.Name] = idx
	}
	previousByFP := make(map[string]connector.Index, len(previous))
	previousByName := make(map[string]connector.Index, len(previous))
	for _, idx := range previous {
		previousByFP[indexFingerprint(idx)] = idx
		previousByName[idx.Name] = idx
	}

	var changes []domain.SchemaChange
	for fp, idx := range currentByFP {
		if _, ok := previousByFP[fp]; !ok {
			changes = append(changes, newChange(table, nil, domain.ChangeIndexAdded, map[string]any{
				"name": idx.Name, "columns": idx.Columns, "unique": idx.Unique,
			}, detectedAt))
		}
	}
	for fp, idx := range previousByFP {
		if _, ok := currentByFP[fp]; !ok {
			changes = append(changes, newChange(table, nil, domain.ChangeIndexRemoved, map[string]any{
				"name": idx.Name, "columns": idx.Columns, "unique": idx.Unique,
			}, detectedAt))
		}
	}

	for name, currentIdx := range currentByName {
		previousIdx, ok := previousByName[name]
		if !ok {
			continue
		}
		currentCols := append([]string(nil), currentIdx.Columns...)
		sort.Strings(currentCols)
		previousCols := append([]string(nil), previousIdx.Columns...)
		sort.Strings(previousCols)
		if !equalStrings(currentCols, previousCols) || currentIdx.Unique != previousIdx.Unique {
			changes = append(changes, newChange(table, nil, domain.ChangeIndexChanged, map[string]any{
				"name": name, "previous_columns": previousCols, "new_columns": currentCols,
				"previous_unique": previousIdx.Unique, "new_unique": currentIdx.Unique,
			}, detectedAt))
		}
	}

	return changes
}
