package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

// applyTransformations runs an ordered pipeline of filter, map, sort and
// group operations over a row set. Each stage consumes the previous stage's
// output, so a group after a filter only sees the surviving rows.
func applyTransformations(data any, transformations []any) (any, error) {
	rows, err := dataRows(data)
	if err != nil {
		return nil, err
	}

	for i, raw := range transformations {
		spec, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: transformation %d is not an object", domain.ErrInvalidConfig, i)
		}
		kind, _ := spec["type"].(string)
		switch kind {
		case "filter":
			rows, err = filterRows(rows, spec)
		case "map":
			rows, err = mapRows(rows, spec)
		case "sort":
			rows, err = sortRows(rows, spec)
		case "group":
			rows, err = groupRows(rows, spec)
		default:
			err = fmt.Errorf("%w: unknown transformation type %q", domain.ErrInvalidConfig, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("transformation %d (%s): %w", i, kind, err)
		}
	}

	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out, nil
}

func dataRows(data any) ([]map[string]any, error) {
	switch d := data.(type) {
	case nil:
		return nil, nil
	case []any:
		rows := make([]map[string]any, 0, len(d))
		for i, item := range d {
			row, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("row %d is not an object", i)
			}
			rows = append(rows, row)
		}
		return rows, nil
	case []map[string]any:
		return d, nil
	case map[string]any:
		return []map[string]any{d}, nil
	default:
		return nil, fmt.Errorf("transform data must be an object or array of objects")
	}
}

func filterRows(rows []map[string]any, spec map[string]any) ([]map[string]any, error) {
	field, _ := spec["field"].(string)
	operator, _ := spec["operator"].(string)
	if field == "" || operator == "" {
		return nil, fmt.Errorf("%w: filter requires field and operator", domain.ErrInvalidConfig)
	}
	want := spec["value"]

	var kept []map[string]any
	for _, row := range rows {
		match, err := matchValue(row[field], operator, want)
		if err != nil {
			return nil, err
		}
		if match {
			kept = append(kept, row)
		}
	}
	return kept, nil
}

func matchValue(got any, operator string, want any) (bool, error) {
	switch operator {
	case "==", "eq":
		return looseEqual(got, want), nil
	case "!=", "neq":
		return !looseEqual(got, want), nil
	case ">", "gt", "<", "lt", ">=", "gte", "<=", "lte":
		a, aok := toNumber(got)
		b, bok := toNumber(want)
		if !aok || !bok {
			return false, nil
		}
		switch operator {
		case ">", "gt":
			return a > b, nil
		case "<", "lt":
			return a < b, nil
		case ">=", "gte":
			return a >= b, nil
		default:
			return a <= b, nil
		}
	case "contains":
		return contains(got, want), nil
	default:
		return false, fmt.Errorf("%w: unknown filter operator %q", domain.ErrInvalidConfig, operator)
	}
}

// mapRows projects each row through a field mapping. The mapping keys name
// the output fields and the values name the source fields; absent sources
// yield nil so downstream stages see a stable shape.
func mapRows(rows []map[string]any, spec map[string]any) ([]map[string]any, error) {
	mapping, _ := spec["fields"].(map[string]any)
	if len(mapping) == 0 {
		return nil, fmt.Errorf("%w: map requires a fields mapping", domain.ErrInvalidConfig)
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		projected := make(map[string]any, len(mapping))
		for target, src := range mapping {
			srcField, _ := src.(string)
			projected[target] = row[srcField]
		}
		out[i] = projected
	}
	return out, nil
}

func sortRows(rows []map[string]any, spec map[string]any) ([]map[string]any, error) {
	field, _ := spec["field"].(string)
	if field == "" {
		return nil, fmt.Errorf("%w: sort requires field", domain.ErrInvalidConfig)
	}
	order, _ := spec["order"].(string)
	descending := strings.EqualFold(order, "desc")

	sorted := make([]map[string]any, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		less := lessValue(sorted[i][field], sorted[j][field])
		if descending {
			return lessValue(sorted[j][field], sorted[i][field])
		}
		return less
	})
	return sorted, nil
}

func lessValue(a, b any) bool {
	if na, aok := toNumber(a); aok {
		if nb, bok := toNumber(b); bok {
			return na < nb
		}
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

func groupRows(rows []map[string]any, spec map[string]any) ([]map[string]any, error) {
	groupBy, _ := spec["group_by"].(string)
	if groupBy == "" {
		return nil, fmt.Errorf("%w: group requires group_by", domain.ErrInvalidConfig)
	}
	rawAggs, _ := spec["aggregations"].([]any)

	type agg struct {
		field string
		op    string
		alias string
	}
	aggs := make([]agg, 0, len(rawAggs))
	for i, raw := range rawAggs {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: aggregation %d is not an object", domain.ErrInvalidConfig, i)
		}
		a := agg{}
		a.field, _ = m["field"].(string)
		a.op, _ = m["operation"].(string)
		a.alias, _ = m["alias"].(string)
		if a.alias == "" {
			a.alias = a.op + "_" + a.field
		}
		switch a.op {
		case "count", "sum", "avg", "min", "max":
		default:
			return nil, fmt.Errorf("%w: unknown aggregation %q", domain.ErrInvalidConfig, a.op)
		}
		aggs = append(aggs, a)
	}

	groups := map[string][]map[string]any{}
	var order []string
	for _, row := range rows {
		key := fmt.Sprintf("%v", row[groupBy])
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	out := make([]map[string]any, 0, len(order))
	for _, key := range order {
		members := groups[key]
		result := map[string]any{groupBy: members[0][groupBy]}
		for _, a := range aggs {
			result[a.alias] = aggregate(members, a.field, a.op)
		}
		out = append(out, result)
	}
	return out, nil
}

func aggregate(rows []map[string]any, field, op string) any {
	if op == "count" {
		return len(rows)
	}

	var values []float64
	for _, row := range rows {
		if n, ok := toNumber(row[field]); ok {
			values = append(values, n)
		}
	}
	if len(values) == 0 {
		// No numeric values in the group: sum and avg report 0, min and
		// max report nil since there is no candidate value.
		if op == "sum" || op == "avg" {
			return float64(0)
		}
		return nil
	}

	switch op {
	case "sum":
		var total float64
		for _, v := range values {
			total += v
		}
		return total
	case "avg":
		var total float64
		for _, v := range values {
			total += v
		}
		return total / float64(len(values))
	case "min":
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case "max":
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m
	}
	return nil
}
