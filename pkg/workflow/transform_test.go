package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderRows() []any {
	return []any{
		map[string]any{"region": "east", "amount": float64(100), "status": "paid"},
		map[string]any{"region": "west", "amount": float64(40), "status": "open"},
		map[string]any{"region": "east", "amount": float64(60), "status": "paid"},
		map[string]any{"region": "west", "amount": float64(200), "status": "paid"},
	}
}

func TestTransformFilter(t *testing.T) {
	out, err := applyTransformations(orderRows(), []any{
		map[string]any{"type": "filter", "field": "status", "operator": "==", "value": "paid"},
	})
	require.NoError(t, err)

	rows := out.([]any)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "paid", row.(map[string]any)["status"])
	}
}

func TestTransformMapProjectsFields(t *testing.T) {
	out, err := applyTransformations(orderRows(), []any{
		map[string]any{"type": "map", "fields": map[string]any{
			"zone":  "region",
			"total": "amount",
		}},
	})
	require.NoError(t, err)

	rows := out.([]any)
	first := rows[0].(map[string]any)
	assert.Equal(t, "east", first["zone"])
	assert.Equal(t, float64(100), first["total"])
	assert.NotContains(t, first, "status")
}

func TestTransformSort(t *testing.T) {
	out, err := applyTransformations(orderRows(), []any{
		map[string]any{"type": "sort", "field": "amount", "order": "desc"},
	})
	require.NoError(t, err)

	rows := out.([]any)
	amounts := make([]float64, len(rows))
	for i, row := range rows {
		amounts[i] = row.(map[string]any)["amount"].(float64)
	}
	assert.Equal(t, []float64{200, 100, 60, 40}, amounts)
}

func TestTransformGroupAggregations(t *testing.T) {
	out, err := applyTransformations(orderRows(), []any{
		map[string]any{"type": "group", "group_by": "region", "aggregations": []any{
			map[string]any{"field": "amount", "operation": "count"},
			map[string]any{"field": "amount", "operation": "sum"},
			map[string]any{"field": "amount", "operation": "avg", "alias": "average"},
			map[string]any{"field": "amount", "operation": "max"},
		}},
	})
	require.NoError(t, err)

	rows := out.([]any)
	require.Len(t, rows, 2)

	byRegion := map[string]map[string]any{}
	for _, row := range rows {
		m := row.(map[string]any)
		byRegion[m["region"].(string)] = m
	}

	east := byRegion["east"]
	assert.Equal(t, 2, east["count_amount"])
	assert.Equal(t, float64(160), east["sum_amount"])
	assert.Equal(t, float64(80), east["average"])
	assert.Equal(t, float64(100), east["max_amount"])

	west := byRegion["west"]
	assert.Equal(t, float64(240), west["sum_amount"])
}

func TestTransformGroupAvgWithoutNumericValues(t *testing.T) {
	rows := []any{
		map[string]any{"region": "east", "note": "n/a"},
		map[string]any{"region": "east", "note": "n/a"},
	}
	out, err := applyTransformations(rows, []any{
		map[string]any{"type": "group", "group_by": "region", "aggregations": []any{
			map[string]any{"field": "note", "operation": "avg"},
			map[string]any{"field": "note", "operation": "sum"},
		}},
	})
	require.NoError(t, err)

	grouped := out.([]any)[0].(map[string]any)
	assert.Equal(t, float64(0), grouped["avg_note"])
	assert.Equal(t, float64(0), grouped["sum_note"])
}

func TestTransformPipelineOrderMatters(t *testing.T) {
	// Filter first, then group: the open order must not reach the group.
	out, err := applyTransformations(orderRows(), []any{
		map[string]any{"type": "filter", "field": "status", "operator": "==", "value": "paid"},
		map[string]any{"type": "group", "group_by": "region", "aggregations": []any{
			map[string]any{"field": "amount", "operation": "sum"},
		}},
	})
	require.NoError(t, err)

	rows := out.([]any)
	for _, row := range rows {
		m := row.(map[string]any)
		if m["region"] == "west" {
			assert.Equal(t, float64(200), m["sum_amount"])
		}
	}
}

func TestTransformUnknownTypeFails(t *testing.T) {
	_, err := applyTransformations(orderRows(), []any{
		map[string]any{"type": "pivot"},
	})
	assert.Error(t, err)
}
