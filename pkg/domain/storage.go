package domain

import "context"

// FilterOp is a row-filter predicate operator.
type FilterOp string

const (
	OpEq    FilterOp = "eq"
	OpNeq   FilterOp = "neq"
	OpGt    FilterOp = "gt"
	OpLt    FilterOp = "lt"
	OpGte   FilterOp = "gte"
	OpLte   FilterOp = "lte"
	OpLike  FilterOp = "like"
	OpILike FilterOp = "ilike"
	OpIn    FilterOp = "in"
)

// Filter is one predicate on a named field.
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value any      `json:"value"`
}

// TableStore is the row-level storage collaborator used by fetch_data,
// save_data and data_analysis steps.
type TableStore interface {
	QueryRows(ctx context.Context, table string, filters []Filter) ([]map[string]any, error)
	InsertRows(ctx context.Context, table string, rows []map[string]any) (int, error)
	UpdateRows(ctx context.Context, table string, rows []map[string]any) (int, error)
	UpsertRows(ctx context.Context, table string, rows []map[string]any) (int, error)
	DeleteRows(ctx context.Context, table string, rows []map[string]any) (int, error)
}
