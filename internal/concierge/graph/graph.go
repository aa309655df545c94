package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/everafter-app/server/internal/concierge/graph/conversations"
	"github.com/everafter-app/server/internal/concierge/graph/nodes"
	"github.com/everafter-app/server/internal/concierge/graph/observers"
	"github.com/everafter-app/server/internal/concierge/model"
	errx "github.com/everafter-app/server/internal/core/error"
	logx "github.com/everafter-app/server/pkg/logger"
)

// Runner is a thin wrapper to execute the compiled graph with the public ChatInput.
type Runner interface {
	Invoke(ctx context.Context, in model.ChatInput) (string, error)
}

// Config holds everything needed to compose the concierge graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the
// ChatModels and MessagesManager.
type Config struct {
	APIKey  string
	BaseURL string

	Concierge    model.ConciergeModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig

	ConversationRepo model.ConversationRepository
	Kernels          model.KernelRepository
	Tenants          model.TenantRepository
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	Kernels         model.KernelRepository
	Tenants         model.TenantRepository
	PromptConfig    *model.PromptConfig
}

// GraphBuilder handles the construction of the concierge graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.ChatInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.ChatInput, *schema.Message]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.ChatInput) (string, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return "", wrapPipelineError(err)
	}
	if out == nil {
		return "", nil
	}
	return out.Content, nil
}

// wrapPipelineError classifies an error leaving the graph. Repository errors
// already carry a status (AppError or ErrNotFound) and pass through; anything
// else originated on the model side and surfaces as an upstream failure.
func wrapPipelineError(err error) error {
	var appErr *errx.AppError
	if errors.As(err, &appErr) || errors.Is(err, model.ErrNotFound) {
		return err
	}
	return errx.New(err, http.StatusBadGateway, errx.ProviderErrorMessage)
}

// BuildConciergeGraph composes ChatModels and MessagesManager, builds the
// graph, and returns a Runner.
func BuildConciergeGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.Kernels == nil || cfg.Tenants == nil {
		return nil, fmt.Errorf("kernel/tenant repos are nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Concierge: &cfg.Concierge,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: mm,
		Kernels:         cfg.Kernels,
		Tenants:         cfg.Tenants,
		PromptConfig:    &cfg.Prompt,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Concierge graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled concierge graph. The flow is
// strictly linear per turn: assemble context, call the model, parse the
// extraction region, merge and persist. No branching, no retries.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.ChatInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Concierge == nil {
		return nil, fmt.Errorf("chat model is not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.PromptConfig == nil {
		return nil, fmt.Errorf("prompt config is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.ChatInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeContextAssembler,
		nodes.NewContextAssemblerNode(b.config.MessagesManager, b.config.Kernels, b.config.PromptConfig),
		compose.WithStatePreHandler(nodes.NewContextAssemblerPreHandler()),
	)

	b.graph.AddChatModelNode(nodes.NodeConciergeChatModel,
		nodes.NewConciergeChatModelNode(b.config.ChatModels.Concierge),
		compose.WithStatePostHandler(nodes.NewConciergeChatModelPostHandler(b.config.ChatModels.ConciergeModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeExtractionParser,
		nodes.NewExtractionParserNode(),
		compose.WithStatePostHandler(nodes.NewExtractionParserPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeKernelMerger,
		nodes.NewKernelMergerNode(b.config.MessagesManager, b.config.Kernels, b.config.Tenants),
	)
}

// addEdges creates the linear flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeContextAssembler},
		{nodes.NodeContextAssembler, nodes.NodeConciergeChatModel},
		{nodes.NodeConciergeChatModel, nodes.NodeExtractionParser},
		{nodes.NodeExtractionParser, nodes.NodeKernelMerger},
		{nodes.NodeKernelMerger, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.ChatInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
