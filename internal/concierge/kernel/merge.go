// Package kernel holds the merge rules that fold a turn's extraction into the
// tenant's wedding kernel. The merge is pure: persistence and the cascading
// tenant-row updates are the caller's job.
package kernel

import (
	"math"
	"strings"

	"github.com/everafter-app/server/internal/concierge/model"
)

// Cascades lists related-record updates a merge produced. Empty fields mean
// no update. The caller applies each one as an independent row update; a
// partial failure is possible and is not rolled back.
type Cascades struct {
	DisplayName string // "Name1 & Name2" once both names are known
	WeddingDate string // copied onto the tenant row for fast access
}

// Merge applies the extraction onto the kernel in place and reports whether
// anything changed. Rules per field category:
//   - scalar facts: last-write-wins
//   - set-like facts: union, deduplicated, order not significant
//   - stressors: append only if not already present
//   - decisions: venue status and booked vendors folded into the decisions
//     map; a booked vendor is locked and a locked decision is never
//     overwritten by this pathway
//
// Merging the same extraction twice yields the same kernel as merging it once.
func Merge(k *model.WeddingKernel, ex *model.Extraction) (Cascades, bool) {
	var cascades Cascades
	if k == nil || ex.IsEmpty() {
		return cascades, false
	}

	changed := false

	// Set-like facts.
	if next, grew := union(k.Names, ex.Names); grew {
		k.Names = next
		changed = true
	}
	if next, grew := union(k.Occupations, ex.Occupations); grew {
		k.Occupations = next
		changed = true
	}
	if next, grew := union(k.Vibe, ex.Vibe); grew {
		k.Vibe = next
		changed = true
	}
	if next, grew := union(k.Priorities, ex.Priorities); grew {
		k.Priorities = next
		changed = true
	}
	if next, grew := union(k.Stressors, ex.Stressors); grew {
		k.Stressors = next
		changed = true
	}

	// Scalar facts.
	if v := strptr(ex.HowWeMet); v != "" && v != k.HowWeMet {
		k.HowWeMet = v
		changed = true
	}
	if v := strptr(ex.ProposalStory); v != "" && v != k.ProposalStory {
		k.ProposalStory = v
		changed = true
	}
	if v := strptr(ex.Location); v != "" && v != k.Location {
		k.Location = v
		changed = true
	}
	if ex.GuestCount != nil && *ex.GuestCount != k.GuestCount {
		k.GuestCount = *ex.GuestCount
		changed = true
	}
	if ex.BudgetTotal != nil {
		if cents := int64(math.Round(*ex.BudgetTotal * 100)); cents != k.BudgetCents {
			k.BudgetCents = cents
			changed = true
		}
	}
	if v := strptr(ex.WeddingDate); v != "" {
		if v != k.WeddingDate {
			k.WeddingDate = v
			changed = true
		}
		cascades.WeddingDate = v
	}

	// Decisions.
	if k.Decisions == nil {
		k.Decisions = map[string]model.Decision{}
	}
	if v := strptr(ex.VenueStatus); v != "" {
		if d := k.Decisions[model.DecisionKeyVenue]; !d.Locked && d.Status != v {
			k.Decisions[model.DecisionKeyVenue] = model.Decision{Status: v, Locked: d.Locked}
			changed = true
		}
	}
	for _, vendor := range ex.VendorsBooked {
		key := strings.ToLower(strings.TrimSpace(vendor))
		if key == "" {
			continue
		}
		booked := model.Decision{Status: model.DecisionStatusBooked, Locked: true}
		if k.Decisions[key] != booked {
			k.Decisions[key] = booked
			changed = true
		}
	}

	// Tenant display name cascade once both partners are known.
	if len(ex.Names) > 0 && len(k.Names) >= 2 {
		cascades.DisplayName = k.Names[0] + " & " + k.Names[1]
	}

	return cascades, changed
}

// union folds incoming values into existing, trimming whitespace and
// deduplicating case-insensitively while preserving the first-seen spelling.
func union(existing, incoming []string) ([]string, bool) {
	if len(incoming) == 0 {
		return existing, false
	}

	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[strings.ToLower(strings.TrimSpace(v))] = true
	}

	grew := false
	out := existing
	for _, v := range incoming {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		grew = true
	}
	return out, grew
}

func strptr(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
