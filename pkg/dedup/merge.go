package dedup

import (
	"time"

	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// Merge implements the §4.7 merge policy: "non-empty beats empty, longer
// text beats shorter when both non-empty for free-text fields, numeric
// bounds widen to union, scores are recomputed, never averaged.
// retrieved_at is updated; first_found_at is preserved." existing is
// mutated in place and returned.
func Merge(existing *store.Grant, incoming *store.Grant, now time.Time) *store.Grant {
	existing.Title = preferText(existing.Title, incoming.Title)
	existing.Description = preferLonger(existing.Description, incoming.Description)
	existing.LLMSummary = preferLonger(existing.LLMSummary, incoming.LLMSummary)
	existing.EligibilitySummary = preferLonger(existing.EligibilitySummary, incoming.EligibilitySummary)
	existing.Funder = preferText(existing.Funder, incoming.Funder)
	existing.FundingDisplay = preferLonger(existing.FundingDisplay, incoming.FundingDisplay)
	existing.SourceName = preferText(existing.SourceName, incoming.SourceName)

	existing.FundingMin = widenMin(existing.FundingMin, incoming.FundingMin)
	existing.FundingMax = widenMax(existing.FundingMax, incoming.FundingMax)

	if incoming.SourceURL != "" {
		existing.SourceURL = incoming.SourceURL
		existing.SourceURLNormalized = incoming.SourceURLNormalized
	}
	if incoming.Deadline != nil {
		existing.Deadline = incoming.Deadline
	}
	if incoming.OpenDate != nil {
		existing.OpenDate = incoming.OpenDate
	}

	existing.Keywords = unionStrings(existing.Keywords, incoming.Keywords)
	existing.ProjectCategories = unionStrings(existing.ProjectCategories, incoming.ProjectCategories)
	existing.LocationMentions = unionStrings(existing.LocationMentions, incoming.LocationMentions)

	// Scores are recomputed from the incoming (freshest) Layer-1/Layer-2
	// evaluation, never averaged with the stale prior scores (§4.7).
	existing.Scores = incoming.Scores
	existing.Stale = incoming.Stale

	existing.RetrievedAt = now
	// FirstFoundAt is intentionally left untouched.
	return existing
}

func preferText(existing, incoming string) string {
	if existing == "" {
		return incoming
	}
	return existing
}

func preferLonger(existing, incoming string) string {
	if existing == "" {
		return incoming
	}
	if incoming == "" {
		return existing
	}
	if len(incoming) > len(existing) {
		return incoming
	}
	return existing
}

func widenMin(existing, incoming *float64) *float64 {
	switch {
	case existing == nil:
		return incoming
	case incoming == nil:
		return existing
	case *incoming < *existing:
		return incoming
	default:
		return existing
	}
}

func widenMax(existing, incoming *float64) *float64 {
	switch {
	case existing == nil:
		return incoming
	case incoming == nil:
		return existing
	case *incoming > *existing:
		return incoming
	default:
		return existing
	}
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
