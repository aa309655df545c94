package parsers

import (
	"encoding/json"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/everafter-app/server/internal/concierge/model"
	logx "github.com/everafter-app/server/pkg/logger"
)

// Markers delimiting the embedded data region in assistant replies. This is
// an internal contract between the system prompt and this parser, not a
// public wire format.
const (
	OpenMarker  = "<wedding_data>"
	CloseMarker = "</wedding_data>"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen   = 128 * 1024 // 128KB of assistant text
	maxRegionLen    = 16 * 1024  // 16KB data region
	maxSetItems     = 50         // items per set-like field
	maxItemLen      = 200        // names, vibe keywords, vendor names
	maxNarrativeLen = 4096       // how-we-met, proposal story
	maxGuestCount   = 5000
	maxBudgetUSD    = 100_000_000
	maxErrSnippet   = 200
)

// ParseAssistantReply scans assistant text for a single delimited data region.
// It returns the user-visible reply with the region stripped, and the parsed
// extraction. A missing region yields the full text and a nil extraction. A
// malformed region is stripped best effort, logged, and yields a nil
// extraction; parsing must never block delivering the reply to the user.
func ParseAssistantReply(content string) (reply string, ex *model.Extraction) {
	// panic safety: a reply must always be delivered
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "extraction_parser").Msgf("panic recovered: %v", r)
			reply = strings.TrimSpace(content)
			ex = nil
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "extraction_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		// back off to a rune boundary so the cut never splits a character
		cut := maxContentLen
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	open := strings.Index(content, OpenMarker)
	if open < 0 {
		return strings.TrimSpace(content), nil
	}

	var interior string
	rest := content[open+len(OpenMarker):]
	if end := strings.Index(rest, CloseMarker); end >= 0 {
		interior = rest[:end]
		reply = strings.TrimSpace(strings.TrimSpace(content[:open]) + "\n" + strings.TrimSpace(rest[end+len(CloseMarker):]))
	} else {
		// unterminated region: strip from the open marker onward
		logx.Warn().Str("component", "extraction_parser").Msg("unterminated data region")
		interior = rest
		reply = strings.TrimSpace(content[:open])
	}

	if len(interior) > maxRegionLen {
		logx.Warn().
			Str("component", "extraction_parser").
			Int("region_len", len(interior)).
			Msg("data region too large, discarded")
		return reply, nil
	}

	var parsed model.Extraction
	if err := json.Unmarshal([]byte(interior), &parsed); err != nil {
		logx.Warn().
			Str("component", "extraction_parser").
			Err(err).
			Str("snippet", safeSnippet(interior)).
			Msg("malformed data region, continuing with empty extraction")
		return reply, nil
	}

	sanitize(&parsed)
	if parsed.IsEmpty() {
		return reply, nil
	}
	return reply, &parsed
}

// sanitize validates each field independently, dropping values that fail
// validation. A bad field is logged and skipped, never fatal.
func sanitize(ex *model.Extraction) {
	ex.Names = cleanSet(ex.Names, "names")
	ex.Occupations = cleanSet(ex.Occupations, "occupations")
	ex.Vibe = cleanSet(ex.Vibe, "vibe")
	ex.Priorities = cleanSet(ex.Priorities, "priorities")
	ex.Stressors = cleanSet(ex.Stressors, "stressors")
	ex.VendorsBooked = cleanSet(ex.VendorsBooked, "vendorsBooked")

	ex.HowWeMet = cleanText(ex.HowWeMet, "howWeMet", maxNarrativeLen)
	ex.ProposalStory = cleanText(ex.ProposalStory, "proposalStory", maxNarrativeLen)
	ex.Location = cleanText(ex.Location, "location", maxItemLen)
	ex.VenueStatus = cleanText(ex.VenueStatus, "venueStatus", maxItemLen)

	if ex.WeddingDate != nil {
		if normalized, ok := normalizeDate(*ex.WeddingDate); ok {
			ex.WeddingDate = &normalized
		} else {
			dropField("weddingDate", *ex.WeddingDate)
			ex.WeddingDate = nil
		}
	}
	if ex.GuestCount != nil && (*ex.GuestCount < 1 || *ex.GuestCount > maxGuestCount) {
		dropField("guestCount", "")
		ex.GuestCount = nil
	}
	if ex.BudgetTotal != nil {
		v := *ex.BudgetTotal
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > maxBudgetUSD {
			dropField("budgetTotal", "")
			ex.BudgetTotal = nil
		}
	}
}

func cleanSet(values []string, field string) []string {
	if len(values) == 0 {
		return nil
	}
	if len(values) > maxSetItems {
		dropField(field, "too many items")
		values = values[:maxSetItems]
	}
	out := values[:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || !utf8.ValidString(v) || len(v) > maxItemLen {
			dropField(field, v)
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanText(p *string, field string, max int) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	if !utf8.ValidString(v) || len(v) > max {
		dropField(field, v)
		return nil
	}
	return &v
}

// normalizeDate accepts an ISO day or an RFC 3339 timestamp and normalizes to
// an ISO day.
func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return s, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02"), true
	}
	return "", false
}

func dropField(field, value string) {
	logx.Warn().
		Str("component", "extraction_parser").
		Str("field", field).
		Str("value", safeSnippet(value)).
		Msg("extraction field failed validation, dropped")
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
