package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/everafter-app/server/internal/concierge/graph/parsers"
	"github.com/everafter-app/server/internal/concierge/model"
)

func TestRenderConciergeSystem(t *testing.T) {
	cfg := model.PromptConfig{ProductName: "Everafter", AssistantName: "Juniper"}
	k := model.NewWeddingKernel("t1")
	k.Names = []string{"Emma", "James"}

	got, err := RenderConciergeSystem(context.Background(), cfg, k)
	if err != nil {
		t.Fatalf("RenderConciergeSystem: %v", err)
	}

	for _, want := range []string{
		"Juniper",
		"Everafter",
		"Partners: Emma, James",
		parsers.OpenMarker,
		parsers.CloseMarker,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered prompt missing %q", want)
		}
	}
	if strings.Contains(got, "{{") {
		t.Errorf("rendered prompt contains unexpanded template tokens")
	}
}

func TestRenderConciergeSystemEmptyKernel(t *testing.T) {
	cfg := model.PromptConfig{ProductName: "Everafter", AssistantName: "Juniper"}

	got, err := RenderConciergeSystem(context.Background(), cfg, model.NewWeddingKernel("t1"))
	if err != nil {
		t.Fatalf("RenderConciergeSystem: %v", err)
	}
	if !strings.Contains(got, EmptyKernelSummary) {
		t.Errorf("rendered prompt missing empty-kernel sentinel")
	}
}
