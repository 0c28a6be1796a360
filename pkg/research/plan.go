// Package research implements the Research Agent (spec.md §4.5): the
// recursive chunked search that turns a business profile and the sector/
// geographic configuration into enriched grant candidates with Layer-1
// scores.
package research

import (
	"github.com/codeready-toolchain/grantfinder/pkg/config"
)

// Chunk identifies one focused LLM query by (focus_area, geographic_tier)
// (GLOSSARY "Chunk (search)").
type Chunk struct {
	ID             string
	FocusArea      string
	GeographicTier config.GeoTier
}

// BuildPlan constructs the deterministic Cartesian product of
// focus-areas x geographic-tiers, capped at maxChunks (§4.5 step 1:
// "Cap at 16 chunks per run (4x4)"). Focus areas beyond the cap are
// dropped in the order they appear in the profile; the geographic tier
// order is always the fixed §4.5 order (local, state, regional,
// federal).
func BuildPlan(focusAreas []string, maxChunks int) []Chunk {
	tiers := config.AllGeoTiers()
	maxFocusAreas := maxChunks / len(tiers)
	if maxFocusAreas < 1 {
		maxFocusAreas = 1
	}
	if len(focusAreas) > maxFocusAreas {
		focusAreas = focusAreas[:maxFocusAreas]
	}

	var plan []Chunk
	for _, fa := range focusAreas {
		for _, tier := range tiers {
			if len(plan) >= maxChunks {
				return plan
			}
			plan = append(plan, Chunk{ID: fa + ":" + string(tier), FocusArea: fa, GeographicTier: tier})
		}
	}
	return plan
}

// SystemPrompt fixes the output schema for a chunk query (§4.5 step 1:
// "a system prompt that fixes the output schema (JSON array of grants
// with required fields title, description, source_url, deadline,
// funding, eligibility, source_name)").
func SystemPrompt(c Chunk) string {
	return `You are a grant research assistant. Search for funding opportunities matching the focus area "` + c.FocusArea +
		`" at the "` + string(c.GeographicTier) + `" geographic level. ` +
		`Respond with ONLY a JSON array of objects, each with these exact fields: ` +
		`"title", "description", "source_url", "deadline" (ISO-8601 or null), "funding" (string description), ` +
		`"eligibility", "source_name". Do not include any prose outside the JSON array.`
}

// RefinePrompt is the §4.5 step 4 refinement-pass prompt: re-ask the
// model to normalize dates, funding bounds, and sector tags for the
// candidates already found in this chunk.
func RefinePrompt(raw string) string {
	return `Normalize the following grant candidates: convert all dates to ISO-8601, convert funding descriptions ` +
		`into explicit min/max numeric bounds where derivable, and assign a single best-fit sector tag per candidate. ` +
		`Return the same JSON array shape with normalized fields.\n\n` + raw
}
