package model

import "time"

// Decision statuses used by the concierge pipeline. The UI knows more
// (researching, shortlisted, ...) but the pipeline only ever writes these.
const (
	DecisionStatusBooked = "booked"
	DecisionKeyVenue     = "venue"
)

// Decision is a named planning item (venue, a vendor category) with a status
// and a lock flag. A locked decision is treated as non-editable downstream
// and is never overwritten by the extraction pipeline.
type Decision struct {
	Status string `json:"status"`
	Locked bool   `json:"locked"`
}

// WeddingKernel is the per-tenant fact sheet accumulated from conversation.
// Scalar facts are last-write-wins; set-like facts only grow through this
// pipeline (removal and editing happen in the planner UI, not here).
type WeddingKernel struct {
	TenantID string `json:"tenantId"`

	// Identity
	Names       []string `json:"names,omitempty"`
	Occupations []string `json:"occupations,omitempty"`

	// Relationship story
	HowWeMet      string `json:"howWeMet,omitempty"`
	ProposalStory string `json:"proposalStory,omitempty"`

	// Wedding basics
	WeddingDate string `json:"weddingDate,omitempty"` // ISO day, e.g. 2026-06-20
	GuestCount  int    `json:"guestCount,omitempty"`
	BudgetCents int64  `json:"budgetCents,omitempty"` // integer minor units, no float drift
	Location    string `json:"location,omitempty"`

	// Planning status
	Vibe       []string            `json:"vibe,omitempty"`
	Priorities []string            `json:"priorities,omitempty"`
	Decisions  map[string]Decision `json:"decisions,omitempty"`

	// Concerns (append-only through this pipeline)
	Stressors []string `json:"stressors,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewWeddingKernel returns an empty kernel for a tenant, created lazily on
// the first onboarding interaction.
func NewWeddingKernel(tenantID string) *WeddingKernel {
	now := time.Now().UTC()
	return &WeddingKernel{
		TenantID:  tenantID,
		Decisions: map[string]Decision{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsEmpty reports whether nothing has been learned about the couple yet.
func (k *WeddingKernel) IsEmpty() bool {
	return len(k.Names) == 0 && len(k.Occupations) == 0 &&
		k.HowWeMet == "" && k.ProposalStory == "" &&
		k.WeddingDate == "" && k.GuestCount == 0 && k.BudgetCents == 0 && k.Location == "" &&
		len(k.Vibe) == 0 && len(k.Priorities) == 0 && len(k.Decisions) == 0 &&
		len(k.Stressors) == 0
}
