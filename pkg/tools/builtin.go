package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowgrid/flowgrid/pkg/analysis"
	"github.com/flowgrid/flowgrid/pkg/optimizer"
)

// RegisterBuiltins adds the standard tool set to the registry.
func RegisterBuiltins(registry *Registry) error {
	builtins := []Tool{
		&DatetimeTool{},
		NewHTTPRequestTool(nil),
		&DataAnalysisTool{},
		&SupplyChainTool{},
	}
	for _, tool := range builtins {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// DatetimeTool reports the current time.
type DatetimeTool struct{}

func (t *DatetimeTool) Name() string        { return "datetime" }
func (t *DatetimeTool) Description() string { return "Get the current date and time" }

func (t *DatetimeTool) Parameters() ToolParameters {
	return ToolParameters{
		Type: "object",
		Properties: map[string]ToolParameter{
			"timezone": {Type: "string", Description: "IANA timezone name, defaults to UTC"},
		},
	}
}

func (t *DatetimeTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	loc := time.UTC
	if tz, ok := args["timezone"].(string); ok && tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", tz, err)
		}
		loc = parsed
	}
	now := time.Now().In(loc)
	return &ToolResult{
		Success: true,
		Data: map[string]any{
			"datetime": now.Format("2006-01-02 15:04:05"),
			"iso8601":  now.Format(time.RFC3339),
			"weekday":  now.Weekday().String(),
		},
	}, nil
}

// HTTPRequestTool issues outbound GET requests.
type HTTPRequestTool struct {
	client *http.Client
}

// NewHTTPRequestTool builds the tool; a nil client gets a 30s default.
func NewHTTPRequestTool(client *http.Client) *HTTPRequestTool {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRequestTool{client: client}
}

func (t *HTTPRequestTool) Name() string        { return "http_request" }
func (t *HTTPRequestTool) Description() string { return "Fetch the body of an HTTP URL" }

func (t *HTTPRequestTool) Parameters() ToolParameters {
	return ToolParameters{
		Type: "object",
		Properties: map[string]ToolParameter{
			"url": {Type: "string", Description: "URL to fetch"},
		},
		Required: []string{"url"},
	}
}

const maxResponseBytes = 1 << 20

func (t *HTTPRequestTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	url, ok := args["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("missing 'url' argument")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &ToolResult{
		Success: true,
		Data: map[string]any{
			"status": resp.StatusCode,
			"body":   string(body),
		},
	}, nil
}

// DataAnalysisTool exposes the analysis primitives to agents.
type DataAnalysisTool struct{}

func (t *DataAnalysisTool) Name() string { return "data_analysis" }

func (t *DataAnalysisTool) Description() string {
	return "Analyze tabular data: summary statistics, trends, anomalies or a forecast"
}

func (t *DataAnalysisTool) Parameters() ToolParameters {
	return ToolParameters{
		Type: "object",
		Properties: map[string]ToolParameter{
			"rows":          {Type: "array", Description: "Row objects to analyze"},
			"analysis_type": {Type: "string", Description: "Kind of analysis", Enum: []string{"summary", "trends", "anomalies", "forecast"}},
			"period":        {Type: "string", Description: "Bucketing period for trends/forecast", Enum: []string{"daily", "weekly", "monthly", "quarterly", "yearly"}},
		},
		Required: []string{"rows", "analysis_type"},
	}
}

func (t *DataAnalysisTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	rows, err := decodeRows(args["rows"])
	if err != nil {
		return nil, err
	}
	kind, _ := args["analysis_type"].(string)
	period, _ := args["period"].(string)

	data, err := Analyze(rows, kind, analysis.Period(period))
	if err != nil {
		return nil, err
	}
	return &ToolResult{Success: true, Data: data}, nil
}

// Analyze dispatches to the matching analysis primitive. It is shared with
// the workflow data_analysis step handler.
func Analyze(rows []analysis.Row, kind string, period analysis.Period) (any, error) {
	switch kind {
	case "summary", "":
		return analysis.Summarize(rows), nil
	case "trends":
		return analysis.Trends(rows, period)
	case "anomalies":
		return analysis.DetectAnomalies(rows), nil
	case "forecast":
		return analysis.Forecast(rows, period)
	default:
		return nil, fmt.Errorf("unsupported analysis type %q", kind)
	}
}

func decodeRows(v any) ([]analysis.Row, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("'rows' must be an array of objects")
	}
	rows := make([]analysis.Row, 0, len(raw))
	for i, item := range raw {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %d is not an object", i)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SupplyChainTool exposes the optimizer to agents.
type SupplyChainTool struct{}

func (t *SupplyChainTool) Name() string { return "optimize_supply_chain" }

func (t *SupplyChainTool) Description() string {
	return "Optimize packaging and shipping routes for a set of items"
}

func (t *SupplyChainTool) Parameters() ToolParameters {
	return ToolParameters{
		Type: "object",
		Properties: map[string]ToolParameter{
			"items":              {Type: "array", Description: "Items with dimensions, weight and quantity"},
			"available_packages": {Type: "array", Description: "Package specs with dimensions and weight capacity"},
			"origin":             {Type: "object", Description: "Origin location with latitude/longitude"},
			"destination":        {Type: "object", Description: "Destination location with latitude/longitude"},
			"carriers":           {Type: "array", Description: "Carriers with service levels and rates"},
		},
		Required: []string{"items", "available_packages", "origin", "destination", "carriers"},
	}
}

func (t *SupplyChainTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	var params struct {
		Items             []optimizer.Item        `json:"items"`
		AvailablePackages []optimizer.PackageSpec `json:"available_packages"`
		Origin            optimizer.Location      `json:"origin"`
		Destination       optimizer.Location      `json:"destination"`
		Carriers          []optimizer.Carrier     `json:"carriers"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	result := optimizer.OptimizeSupplyChain(params.Items, params.AvailablePackages, params.Origin, params.Destination, params.Carriers)
	return &ToolResult{Success: true, Data: result}, nil
}

// decodeArgs re-marshals loosely typed arguments into a typed struct.
func decodeArgs(args map[string]any, target any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
