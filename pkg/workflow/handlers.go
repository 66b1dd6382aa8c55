package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowgrid/flowgrid/pkg/agent"
	"github.com/flowgrid/flowgrid/pkg/analysis"
	"github.com/flowgrid/flowgrid/pkg/domain"
	"github.com/flowgrid/flowgrid/pkg/optimizer"
	"github.com/flowgrid/flowgrid/pkg/tools"
)

// AgentExecutor runs one agent query; implemented by agent.Runner.
type AgentExecutor interface {
	Execute(ctx context.Context, userID, agentID, query string, opts agent.Options) (*agent.Result, error)
}

// AgentHandler executes "agent" steps.
type AgentHandler struct {
	Runner AgentExecutor
}

func (h *AgentHandler) Execute(ctx context.Context, config map[string]any, rc *RunContext) (any, error) {
	agentID, _ := config["agent_id"].(string)
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent step requires agent_id", domain.ErrInvalidConfig)
	}
	query, _ := config["query"].(string)
	query = Substitute(query, rc)

	opts := agent.Options{}
	if n, ok := toNumber(config["max_iterations"]); ok {
		opts.MaxIterations = int(n)
	}
	if n, ok := toNumber(config["timeout_ms"]); ok {
		opts.Timeout = time.Duration(n) * time.Millisecond
	}

	return h.Runner.Execute(ctx, rc.UserID, agentID, query, opts)
}

// EmbeddingService is the embedding collaborator; implemented by
// embedder.Service.
type EmbeddingService interface {
	CreateCollection(ctx context.Context, userID, collection string, docs []EmbedInput) (int, error)
	Search(ctx context.Context, userID, collection, query string, limit int, threshold float64) ([]domain.EmbeddingMatch, error)
}

// EmbedInput is one document to embed and store.
type EmbedInput struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EmbeddingHandler executes "embedding" steps (create or search).
type EmbeddingHandler struct {
	Service EmbeddingService
}

func (h *EmbeddingHandler) Execute(ctx context.Context, config map[string]any, rc *RunContext) (any, error) {
	operation, _ := config["operation"].(string)
	collection, _ := config["collection"].(string)
	if collection == "" {
		collection = "default"
	}

	switch operation {
	case "create":
		rawDocs, _ := config["documents"].([]any)
		if len(rawDocs) == 0 {
			return nil, fmt.Errorf("%w: embedding create requires documents", domain.ErrInvalidConfig)
		}
		docs := make([]EmbedInput, 0, len(rawDocs))
		for i, raw := range rawDocs {
			doc, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: document %d is not an object", domain.ErrInvalidConfig, i)
			}
			content, _ := doc["content"].(string)
			metadata, _ := doc["metadata"].(map[string]any)
			docs = append(docs, EmbedInput{
				Content:  Substitute(content, rc),
				Metadata: metadata,
			})
		}
		stored, err := h.Service.CreateCollection(ctx, rc.UserID, collection, docs)
		if err != nil {
			return nil, err
		}
		return map[string]any{"operation": "create", "collection": collection, "stored": stored}, nil

	case "search":
		query, _ := config["query"].(string)
		query = Substitute(query, rc)
		limit := 5
		if n, ok := toNumber(config["limit"]); ok && n > 0 {
			limit = int(n)
		}
		threshold := 0.0
		if n, ok := toNumber(config["threshold"]); ok {
			threshold = n
		}
		matches, err := h.Service.Search(ctx, rc.UserID, collection, query, limit, threshold)
		if err != nil {
			return nil, err
		}
		return map[string]any{"operation": "search", "collection": collection, "matches": matches, "count": len(matches)}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported embedding operation %q", domain.ErrInvalidConfig, operation)
	}
}

// SupplyChainHandler executes "supply_chain" steps against the optimizer.
type SupplyChainHandler struct{}

func (h *SupplyChainHandler) Execute(ctx context.Context, config map[string]any, rc *RunContext) (any, error) {
	substituted, _ := SubstituteValue(config, rc).(map[string]any)

	var params struct {
		Operation         string                  `json:"operation"`
		Items             []optimizer.Item        `json:"items"`
		AvailablePackages []optimizer.PackageSpec `json:"available_packages"`
		Origin            optimizer.Location      `json:"origin"`
		Destination       optimizer.Location      `json:"destination"`
		Carriers          []optimizer.Carrier     `json:"carriers"`
	}
	if err := decodeConfig(substituted, &params); err != nil {
		return nil, err
	}

	switch params.Operation {
	case "optimize_packaging":
		return optimizer.OptimizePackaging(params.Items, params.AvailablePackages), nil
	case "optimize_shipping_routes":
		var weight, volume float64
		for _, item := range params.Items {
			qty := item.Quantity
			if qty <= 0 {
				qty = 1
			}
			weight += item.Weight * float64(qty)
			volume += item.Volume() * float64(qty)
		}
		return optimizer.OptimizeShippingRoutes(params.Origin, params.Destination, weight, volume, params.Carriers), nil
	case "optimize_supply_chain":
		return optimizer.OptimizeSupplyChain(params.Items, params.AvailablePackages, params.Origin, params.Destination, params.Carriers), nil
	default:
		return nil, fmt.Errorf("%w: unsupported supply_chain operation %q", domain.ErrInvalidConfig, params.Operation)
	}
}

// CodeGenerator is the code-generation collaborator; implemented by
// codegen.Service.
type CodeGenerator interface {
	Generate(ctx context.Context, description, language, contextHint string) (map[string]any, error)
	Review(ctx context.Context, code, language string) (map[string]any, error)
}

// CodeGenHandler executes "code_generation" steps.
type CodeGenHandler struct {
	Service CodeGenerator
}

func (h *CodeGenHandler) Execute(ctx context.Context, config map[string]any, rc *RunContext) (any, error) {
	operation, _ := config["operation"].(string)
	language, _ := config["language"].(string)

	switch operation {
	case "generate":
		description, _ := config["description"].(string)
		contextHint, _ := config["context"].(string)
		return h.Service.Generate(ctx, Substitute(description, rc), language, Substitute(contextHint, rc))
	case "review":
		code, _ := config["code"].(string)
		return h.Service.Review(ctx, Substitute(code, rc), language)
	default:
		return nil, fmt.Errorf("%w: unsupported code_generation operation %q", domain.ErrInvalidConfig, operation)
	}
}

// DataAnalysisHandler executes "data_analysis" steps. The data source is
// either a live context path ("context.step1.rows") or a stored table name.
type DataAnalysisHandler struct {
	Tables domain.TableStore
}

func (h *DataAnalysisHandler) Execute(ctx context.Context, config map[string]any, rc *RunContext) (any, error) {
	operation, _ := config["operation"].(string)
	if operation != "" && operation != "analyze" {
		return nil, fmt.Errorf("%w: unsupported data_analysis operation %q", domain.ErrInvalidConfig, operation)
	}

	source, _ := config["data_source"].(string)
	if source == "" {
		return nil, fmt.Errorf("%w: data_analysis requires data_source", domain.ErrInvalidConfig)
	}

	var rows []analysis.Row
	if strings.HasPrefix(source, "context.") {
		value, ok := ResolvePath(strings.TrimPrefix(source, "context."), rc)
		if !ok {
			return nil, fmt.Errorf("data source %q not found in context", source)
		}
		decoded, err := toRows(value)
		if err != nil {
			return nil, err
		}
		rows = decoded
	} else {
		loaded, err := h.Tables.QueryRows(ctx, source, nil)
		if err != nil {
			return nil, err
		}
		for _, row := range loaded {
			rows = append(rows, row)
		}
	}

	analysisType, _ := config["analysis_type"].(string)
	period, _ := config["time_period"].(string)
	return tools.Analyze(rows, analysisType, analysis.Period(period))
}

func toRows(v any) ([]analysis.Row, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("data source does not resolve to a row array")
	}
	rows := make([]analysis.Row, 0, len(items))
	for i, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %d is not an object", i)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
