package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/everafter-app/server/internal/concierge/graph/conversations"
	"github.com/everafter-app/server/internal/concierge/graph/parsers"
	"github.com/everafter-app/server/internal/concierge/graph/prompts"
	"github.com/everafter-app/server/internal/concierge/kernel"
	"github.com/everafter-app/server/internal/concierge/model"
	logx "github.com/everafter-app/server/pkg/logger"
)

// Node keys for the concierge graph.
const (
	NodeContextAssembler   = "ContextAssembler"
	NodeConciergeChatModel = "ConciergeChatModel"
	NodeExtractionParser   = "ExtractionParser"
	NodeKernelMerger       = "KernelMerger"
)

// NewContextAssemblerPreHandler creates the pre-handler for the ContextAssembler node
func NewContextAssemblerPreHandler() func(context.Context, model.ChatInput, *model.AppState) (model.ChatInput, error) {
	return func(ctx context.Context, in model.ChatInput, s *model.AppState) (model.ChatInput, error) {
		s.TenantID = in.TenantID
		s.ConversationID = in.ConversationID
		s.UserMessage = in.Message
		// Reset per-turn state
		s.Kernel = nil
		s.History = nil
		s.Extraction = nil
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewContextAssemblerNode creates the ContextAssembler node: it loads the
// tenant's kernel, renders the system prompt around its summary, and builds
// the model context from conversation history plus the current turn.
func NewContextAssemblerNode(
	mm *conversations.MessagesManager,
	kernels model.KernelRepository,
	promptCfg *model.PromptConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.ChatInput) ([]*schema.Message, error) {
		k, err := kernels.KernelByTenant(ctx, input.TenantID)
		if errors.Is(err, model.ErrNotFound) {
			k = model.NewWeddingKernel(input.TenantID)
		} else if err != nil {
			return nil, fmt.Errorf("load kernel: %w", err)
		}

		systemPrompt, err := prompts.RenderConciergeSystem(ctx, *promptCfg, k)
		if err != nil {
			return nil, fmt.Errorf("render concierge system prompt: %w", err)
		}

		messages, history, err := mm.BuildTurnContext(ctx, input.TenantID, input.ConversationID, systemPrompt, input.Message)
		if err != nil {
			return nil, fmt.Errorf("build turn context: %w", err)
		}

		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.Kernel = k
			state.History = history
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		return messages, nil
	})
}

// NewConciergeChatModelPostHandler computes and logs usage cost for the concierge model.
func NewConciergeChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			pricing := model.ResolvePricing(modelName)
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Str("node", NodeConciergeChatModel).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", totalC).
				Msg("LLM usage")

			state.TotalCostUSD += totalC
		}
		return out, nil
	}
}

// NewExtractionParserNode creates the ExtractionParser node. Parsing never
// fails the request: a malformed data region degrades to an empty extraction.
func NewExtractionParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (model.TurnReply, error) {
		if resp == nil {
			return model.TurnReply{}, fmt.Errorf("nil model response")
		}
		reply, ex := parsers.ParseAssistantReply(resp.Content)
		return model.TurnReply{Reply: reply, Extraction: ex}, nil
	})
}

// NewExtractionParserPostHandler creates the post-handler for the ExtractionParser node
func NewExtractionParserPostHandler() func(context.Context, model.TurnReply, *model.AppState) (model.TurnReply, error) {
	return func(ctx context.Context, out model.TurnReply, state *model.AppState) (model.TurnReply, error) {
		state.Extraction = out.Extraction
		logx.Debug().
			Str("conversation_id", state.ConversationID).
			Bool("learned_this_turn", !out.Extraction.IsEmpty()).
			Msg("Extraction parsed")
		return out, nil
	}
}

// NewKernelMergerNode creates the KernelMerger node: it folds the turn's
// extraction into the kernel, applies tenant cascades, and persists the
// conversation turn. Kernel and cascade writes are independent statements;
// a failed one is logged and skipped, never rolled back (the fact is simply
// not remembered). Only a failed conversation write aborts the turn.
func NewKernelMergerNode(
	mm *conversations.MessagesManager,
	kernels model.KernelRepository,
	tenants model.TenantRepository,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnReply) (*schema.Message, error) {
		var st model.AppState
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			st = *state
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if !in.Extraction.IsEmpty() && st.Kernel != nil {
			cascades, changed := kernel.Merge(st.Kernel, in.Extraction)
			if changed {
				if err := kernels.SaveKernel(ctx, st.Kernel); err != nil {
					logx.Error().Err(err).Str("tenant_id", st.TenantID).Msg("Failed to save kernel")
				}
			}
			if cascades.DisplayName != "" {
				if err := tenants.SetDisplayName(ctx, st.TenantID, cascades.DisplayName); err != nil {
					logx.Error().Err(err).Str("tenant_id", st.TenantID).Msg("Failed to cascade display name")
				}
			}
			if cascades.WeddingDate != "" {
				if err := tenants.SetWeddingDate(ctx, st.TenantID, cascades.WeddingDate); err != nil {
					logx.Error().Err(err).Str("tenant_id", st.TenantID).Msg("Failed to cascade wedding date")
				}
			}
		}

		if err := mm.SaveTurn(ctx, st.TenantID, st.ConversationID, st.History, st.UserMessage, in.Reply); err != nil {
			return nil, fmt.Errorf("save conversation turn: %w", err)
		}

		return schema.AssistantMessage(in.Reply, nil), nil
	})
}
