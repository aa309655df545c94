package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/everafter-app/server/internal/concierge/graph/parsers"
	"github.com/everafter-app/server/internal/concierge/model"
)

//go:embed template/concierge_prompt.txt
var conciergeSystemPrompt string

// RenderConciergeSystem renders the concierge system prompt via the Eino
// prompt component (which also emits prompt callbacks). The kernel summary is
// injected so the assistant does not re-ask known facts, and the extraction
// markers are injected so prompt and parser stay in sync.
func RenderConciergeSystem(ctx context.Context, cfg model.PromptConfig, k *model.WeddingKernel) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(conciergeSystemPrompt),
	)
	vars := map[string]any{
		"ProductName":   cfg.ProductName,
		"AssistantName": cfg.AssistantName,
		"KernelSummary": SummarizeKernel(k),
		"OpenMarker":    parsers.OpenMarker,
		"CloseMarker":   parsers.CloseMarker,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("concierge prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("concierge prompt render: empty result")
	}
	return msgs[0].Content, nil
}
