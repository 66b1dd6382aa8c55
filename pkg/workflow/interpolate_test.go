package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRunContext() *RunContext {
	return &RunContext{
		Input: map[string]any{
			"name": "Bob",
			"order": map[string]any{
				"id": "ord-42",
			},
		},
		Results: map[string]any{
			"step1": map[string]any{
				"count": float64(3),
				"rows": []any{
					map[string]any{"sku": "a"},
					map[string]any{"sku": "b"},
				},
			},
		},
	}
}

func TestSubstitute(t *testing.T) {
	rc := testRunContext()

	got := Substitute("${input.name} ordered ${step1.count}", rc)
	assert.Equal(t, "Bob ordered 3", got)

	got = Substitute("order ${input.order.id} done", rc)
	assert.Equal(t, "order ord-42 done", got)
}

func TestSubstituteUnresolvedLeftVerbatim(t *testing.T) {
	rc := testRunContext()

	got := Substitute("hello ${input.missing} and ${nope.field}", rc)
	assert.Equal(t, "hello ${input.missing} and ${nope.field}", got)
}

func TestSubstituteValueKeepsNativeTypes(t *testing.T) {
	rc := testRunContext()

	// A string that is exactly one token resolves to the native value.
	got := SubstituteValue("${step1.rows}", rc)
	rows, ok := got.([]any)
	assert.True(t, ok)
	assert.Len(t, rows, 2)

	// Mixed text falls back to string substitution.
	got = SubstituteValue("count=${step1.count}", rc)
	assert.Equal(t, "count=3", got)
}

func TestSubstituteValueRecursesThroughConfig(t *testing.T) {
	rc := testRunContext()

	config := map[string]any{
		"query": "for ${input.name}",
		"nested": map[string]any{
			"items": []any{"${step1.count}", "literal"},
		},
	}
	got := SubstituteValue(config, rc).(map[string]any)
	assert.Equal(t, "for Bob", got["query"])

	nested := got["nested"].(map[string]any)
	items := nested["items"].([]any)
	assert.Equal(t, float64(3), items[0])
	assert.Equal(t, "literal", items[1])
}

func TestResolvePath(t *testing.T) {
	rc := testRunContext()

	v, ok := ResolvePath("step1.count", rc)
	assert.True(t, ok)
	assert.Equal(t, float64(3), v)

	_, ok = ResolvePath("step1.count.deeper", rc)
	assert.False(t, ok)

	_, ok = ResolvePath("unknown", rc)
	assert.False(t, ok)
}

func TestResolvePathThroughStructResult(t *testing.T) {
	type out struct {
		Total int `json:"total"`
	}
	rc := &RunContext{
		Results: map[string]any{"calc": out{Total: 7}},
	}

	v, ok := ResolvePath("calc.total", rc)
	assert.True(t, ok)
	assert.Equal(t, float64(7), v)
}
