package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/everafter-app/server/internal/concierge/model"
)

// EmptyKernelSummary is the canonical sentinel injected when nothing has been
// learned about the couple yet.
const EmptyKernelSummary = "Nothing is known about this couple yet."

// SummarizeKernel renders all currently-known non-empty kernel fields as a
// deterministic, human-readable block in a fixed order: identity,
// relationship story, wedding basics, planning status, concerns. The result
// is injected verbatim into the system prompt so the assistant does not
// re-ask known facts.
func SummarizeKernel(k *model.WeddingKernel) string {
	if k == nil || k.IsEmpty() {
		return EmptyKernelSummary
	}

	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString("- ")
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}

	// Identity
	line("Partners", strings.Join(k.Names, ", "))
	line("Occupations", strings.Join(k.Occupations, ", "))

	// Relationship story
	line("How they met", k.HowWeMet)
	line("Proposal", k.ProposalStory)

	// Wedding basics
	line("Wedding date", k.WeddingDate)
	if k.GuestCount > 0 {
		line("Guest count", fmt.Sprintf("%d", k.GuestCount))
	}
	if k.BudgetCents > 0 {
		line("Budget", formatCents(k.BudgetCents))
	}
	line("Location", k.Location)

	// Planning status
	line("Vibe", strings.Join(k.Vibe, ", "))
	line("Priorities", strings.Join(k.Priorities, ", "))
	line("Decisions", formatDecisions(k.Decisions))

	// Concerns
	line("Stressors", strings.Join(k.Stressors, ", "))

	return strings.TrimRight(b.String(), "\n")
}

// formatCents renders integer minor units without passing through floats.
func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func formatDecisions(decisions map[string]model.Decision) string {
	if len(decisions) == 0 {
		return ""
	}
	keys := make([]string, 0, len(decisions))
	for k := range decisions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		d := decisions[key]
		s := key + ": " + d.Status
		if d.Locked {
			s += " (locked)"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}
