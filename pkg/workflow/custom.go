package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

// CustomHandler executes "custom" steps: the fetch_data, transform_data and
// save_data pipeline primitives.
type CustomHandler struct {
	Tables domain.TableStore
	Client *http.Client
}

// NewCustomHandler builds the handler; a nil client gets a 30s default.
func NewCustomHandler(tables domain.TableStore, client *http.Client) *CustomHandler {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CustomHandler{Tables: tables, Client: client}
}

func (h *CustomHandler) Execute(ctx context.Context, config map[string]any, rc *RunContext) (any, error) {
	functionName, _ := config["function_name"].(string)
	rawParams, _ := config["parameters"].(map[string]any)
	params, _ := SubstituteValue(rawParams, rc).(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	switch functionName {
	case "fetch_data":
		return h.fetchData(ctx, params)
	case "transform_data":
		return h.transformData(params)
	case "save_data":
		return h.saveData(ctx, params)
	default:
		return nil, fmt.Errorf("%w: unknown custom function %q", domain.ErrInvalidConfig, functionName)
	}
}

func (h *CustomHandler) fetchData(ctx context.Context, params map[string]any) (any, error) {
	source, _ := params["source"].(string)
	if source == "" {
		return nil, fmt.Errorf("%w: fetch_data requires source", domain.ErrInvalidConfig)
	}

	if source == "api" {
		url, _ := params["url"].(string)
		if url == "" {
			return nil, fmt.Errorf("%w: api source requires url", domain.ErrInvalidConfig)
		}
		return h.fetchHTTP(ctx, url)
	}

	filters, err := decodeFilters(params["filters"])
	if err != nil {
		return nil, err
	}
	rows, err := h.Tables.QueryRows(ctx, source, filters)
	if err != nil {
		return nil, err
	}
	return map[string]any{"source": source, "rows": anyRows(rows), "count": len(rows)}, nil
}

func (h *CustomHandler) fetchHTTP(ctx context.Context, url string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		decoded = string(body)
	}
	return map[string]any{"source": "api", "status": resp.StatusCode, "data": decoded}, nil
}

func (h *CustomHandler) transformData(params map[string]any) (any, error) {
	data := params["data"]
	rawTransforms, _ := params["transformations"].([]any)

	result, err := applyTransformations(data, rawTransforms)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": result}, nil
}

func (h *CustomHandler) saveData(ctx context.Context, params map[string]any) (any, error) {
	destination, _ := params["destination"].(string)
	if destination == "" {
		return nil, fmt.Errorf("%w: save_data requires destination", domain.ErrInvalidConfig)
	}
	operation, _ := params["operation"].(string)
	if operation == "" {
		operation = "insert"
	}

	// File destinations are simulated; only table destinations persist.
	if destination == "file" {
		path, _ := params["path"].(string)
		return map[string]any{"destination": "file", "path": path, "simulated": true}, nil
	}

	rows, err := saveRows(params["data"])
	if err != nil {
		return nil, err
	}

	var affected int
	switch operation {
	case "insert":
		affected, err = h.Tables.InsertRows(ctx, destination, rows)
	case "update":
		affected, err = h.Tables.UpdateRows(ctx, destination, rows)
	case "upsert":
		affected, err = h.Tables.UpsertRows(ctx, destination, rows)
	case "delete":
		affected, err = h.Tables.DeleteRows(ctx, destination, rows)
	default:
		return nil, fmt.Errorf("%w: unsupported save operation %q", domain.ErrInvalidConfig, operation)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"destination": destination, "operation": operation, "affected": affected}, nil
}

func saveRows(data any) ([]map[string]any, error) {
	switch d := data.(type) {
	case []any:
		rows := make([]map[string]any, 0, len(d))
		for i, item := range d {
			row, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("data item %d is not an object", i)
			}
			rows = append(rows, row)
		}
		return rows, nil
	case map[string]any:
		return []map[string]any{d}, nil
	default:
		return nil, fmt.Errorf("save_data requires an object or array of objects")
	}
}

func decodeFilters(v any) ([]domain.Filter, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: filters must be an array", domain.ErrInvalidConfig)
	}
	filters := make([]domain.Filter, 0, len(items))
	for i, item := range items {
		var f domain.Filter
		if err := decodeConfig(item, &f); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		switch f.Op {
		case domain.OpEq, domain.OpNeq, domain.OpGt, domain.OpLt, domain.OpGte, domain.OpLte,
			domain.OpLike, domain.OpILike, domain.OpIn:
		default:
			return nil, fmt.Errorf("%w: unknown filter op %q", domain.ErrInvalidConfig, f.Op)
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func anyRows(rows []map[string]any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out
}

// decodeConfig re-marshals loosely typed config into a typed struct.
func decodeConfig(config any, target any) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}
