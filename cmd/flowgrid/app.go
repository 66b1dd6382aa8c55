package flowgrid

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowgrid/flowgrid/pkg/agent"
	"github.com/flowgrid/flowgrid/pkg/codegen"
	"github.com/flowgrid/flowgrid/pkg/config"
	"github.com/flowgrid/flowgrid/pkg/embedder"
	"github.com/flowgrid/flowgrid/pkg/providers"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
	"github.com/flowgrid/flowgrid/pkg/store"
	"github.com/flowgrid/flowgrid/pkg/tools"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

// app holds the wired components for one CLI invocation.
type app struct {
	cfg         *config.Config
	store       *store.Store
	provider    *providers.OpenAIProvider
	registry    *tools.Registry
	runner      *agent.Runner
	interpreter *workflow.Interpreter
	scheduler   *scheduler.Scheduler
}

// newApp builds the full component graph from the loaded configuration.
func newApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	provider, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
		APIKey:         cfg.Provider.APIKey,
		BaseURL:        cfg.Provider.BaseURL,
		Model:          cfg.Provider.Model,
		EmbeddingModel: cfg.Provider.EmbeddingModel,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	registry := tools.NewRegistry(tools.RegistryConfig{
		CallsPerMinute: cfg.Tools.CallsPerMinute,
		BurstSize:      cfg.Tools.BurstSize,
	})
	if err := tools.RegisterBuiltins(registry); err != nil {
		st.Close()
		return nil, err
	}

	runner := agent.NewRunner(provider, registry, st)
	embeddings := embedder.New(provider, st)
	generator := codegen.New(provider, cfg.Provider.Model)

	interp := workflow.NewInterpreter(st)
	interp.RegisterHandler(workflow.StepAgent, &workflow.AgentHandler{Runner: runner})
	interp.RegisterHandler(workflow.StepEmbedding, &workflow.EmbeddingHandler{Service: embeddings})
	interp.RegisterHandler(workflow.StepSupplyChain, &workflow.SupplyChainHandler{})
	interp.RegisterHandler(workflow.StepCodeGen, &workflow.CodeGenHandler{Service: generator})
	interp.RegisterHandler(workflow.StepDataAnalysis, &workflow.DataAnalysisHandler{Tables: st})
	interp.RegisterHandler(workflow.StepCustom, workflow.NewCustomHandler(st, nil))

	return &app{
		cfg:         cfg,
		store:       st,
		provider:    provider,
		registry:    registry,
		runner:      runner,
		interpreter: interp,
		scheduler:   scheduler.New(st, interp),
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}
