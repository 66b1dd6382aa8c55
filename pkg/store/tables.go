package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

// The generic row store backs fetch_data, save_data and data_analysis
// steps. Logical tables are namespaced rows in one physical table; each row
// is a JSON document keyed by its "id" field when present. Filters are
// applied in Go against the decoded documents so operators behave uniformly
// regardless of the stored value types.

// QueryRows loads the rows of a logical table that match every filter.
func (s *Store) QueryRows(ctx context.Context, table string, filters []domain.Filter) ([]map[string]any, error) {
	dbRows, err := s.db.QueryContext(ctx,
		`SELECT data FROM records WHERE table_name = ? ORDER BY id`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table, err)
	}
	defer dbRows.Close()

	var rows []map[string]any
	for dbRows.Next() {
		var data string
		if err := dbRows.Scan(&data); err != nil {
			return nil, err
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("failed to decode row in table %s: %w", table, err)
		}
		if matchesFilters(row, filters) {
			rows = append(rows, row)
		}
	}
	return rows, dbRows.Err()
}

// InsertRows appends rows to a logical table.
func (s *Store) InsertRows(ctx context.Context, table string, rows []map[string]any) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal row: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO records (table_name, row_key, data) VALUES (?, ?, ?)`,
			table, rowKey(row), string(data))
		if err != nil {
			return 0, fmt.Errorf("failed to insert row: %w", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// UpdateRows rewrites rows matched by their "id" field.
func (s *Store) UpdateRows(ctx context.Context, table string, rows []map[string]any) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	updated := 0
	for _, row := range rows {
		key := rowKey(row)
		if key == nil {
			return 0, fmt.Errorf("update requires an id field on every row")
		}
		data, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal row: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE records SET data = ?, updated_at = CURRENT_TIMESTAMP
			WHERE table_name = ? AND row_key = ?
		`, string(data), table, key)
		if err != nil {
			return 0, fmt.Errorf("failed to update row: %w", err)
		}
		affected, _ := res.RowsAffected()
		updated += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

// UpsertRows inserts rows, replacing any existing row with the same id.
func (s *Store) UpsertRows(ctx context.Context, table string, rows []map[string]any) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal row: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (table_name, row_key, data) VALUES (?, ?, ?)
			ON CONFLICT(table_name, row_key) DO UPDATE SET
				data = excluded.data,
				updated_at = CURRENT_TIMESTAMP
		`, table, rowKey(row), string(data))
		if err != nil {
			return 0, fmt.Errorf("failed to upsert row: %w", err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// DeleteRows removes rows matched by their "id" field.
func (s *Store) DeleteRows(ctx context.Context, table string, rows []map[string]any) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleted := 0
	for _, row := range rows {
		key := rowKey(row)
		if key == nil {
			return 0, fmt.Errorf("delete requires an id field on every row")
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM records WHERE table_name = ? AND row_key = ?`, table, key)
		if err != nil {
			return 0, fmt.Errorf("failed to delete row: %w", err)
		}
		affected, _ := res.RowsAffected()
		deleted += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

// rowKey extracts the identity of a row, or nil for keyless rows.
func rowKey(row map[string]any) any {
	id, ok := row["id"]
	if !ok || id == nil {
		return nil
	}
	return fmt.Sprintf("%v", id)
}

func matchesFilters(row map[string]any, filters []domain.Filter) bool {
	for _, f := range filters {
		if !matchesFilter(row[f.Field], f) {
			return false
		}
	}
	return true
}

func matchesFilter(value any, f domain.Filter) bool {
	switch f.Op {
	case domain.OpEq:
		return compareEqual(value, f.Value)
	case domain.OpNeq:
		return !compareEqual(value, f.Value)
	case domain.OpGt, domain.OpLt, domain.OpGte, domain.OpLte:
		a, aok := asNumber(value)
		b, bok := asNumber(f.Value)
		if !aok || !bok {
			return false
		}
		switch f.Op {
		case domain.OpGt:
			return a > b
		case domain.OpLt:
			return a < b
		case domain.OpGte:
			return a >= b
		default:
			return a <= b
		}
	case domain.OpLike:
		return matchLike(value, f.Value, false)
	case domain.OpILike:
		return matchLike(value, f.Value, true)
	case domain.OpIn:
		options, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, opt := range options {
			if compareEqual(value, opt) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func compareEqual(a, b any) bool {
	if af, aok := asNumber(a); aok {
		if bf, bok := asNumber(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// matchLike implements SQL LIKE semantics: % matches any run of characters
// and _ matches exactly one.
func matchLike(value, pattern any, caseInsensitive bool) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	p, ok := pattern.(string)
	if !ok {
		return false
	}
	if caseInsensitive {
		s = strings.ToLower(s)
		p = strings.ToLower(p)
	}

	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range p {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")

	matched, err := regexp.MatchString(sb.String(), s)
	return err == nil && matched
}
