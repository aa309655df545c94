package model

// Extraction is the structured data block the assistant embeds in its reply.
// Every field is optional: a nil pointer or empty slice means "not learned
// this turn". The assistant is instructed to omit fields it did not just
// learn, so the merger never has to diff against prior state.
type Extraction struct {
	Names         []string `json:"names,omitempty"`
	Occupations   []string `json:"occupations,omitempty"`
	HowWeMet      *string  `json:"howWeMet,omitempty"`
	ProposalStory *string  `json:"proposalStory,omitempty"`
	WeddingDate   *string  `json:"weddingDate,omitempty"`
	GuestCount    *int     `json:"guestCount,omitempty"`
	BudgetTotal   *float64 `json:"budgetTotal,omitempty"` // dollars as emitted by the model
	Location      *string  `json:"location,omitempty"`
	Vibe          []string `json:"vibe,omitempty"`
	Priorities    []string `json:"priorities,omitempty"`
	Stressors     []string `json:"stressors,omitempty"`
	VenueStatus   *string  `json:"venueStatus,omitempty"`
	VendorsBooked []string `json:"vendorsBooked,omitempty"`
}

// IsEmpty reports whether the extraction carries nothing to merge.
func (e *Extraction) IsEmpty() bool {
	if e == nil {
		return true
	}
	return len(e.Names) == 0 && len(e.Occupations) == 0 &&
		e.HowWeMet == nil && e.ProposalStory == nil &&
		e.WeddingDate == nil && e.GuestCount == nil && e.BudgetTotal == nil && e.Location == nil &&
		len(e.Vibe) == 0 && len(e.Priorities) == 0 && len(e.Stressors) == 0 &&
		e.VenueStatus == nil && len(e.VendorsBooked) == 0
}
