package research

import (
	"math"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/grantfinder/pkg/config"
)

// Layer1 holds the three Research Agent scores (§4.5 step 5), each in
// [0,1].
type Layer1 struct {
	Sector      float64
	Geo         float64
	Operational float64
}

// SectorRelevance is the fraction of a sector's keywords found in the
// candidate's text, plus a 0.05 nudge when any sub-sector matches, clamped
// to [0,1]. Every keyword counts equally; sector.Weight is not applied.
func SectorRelevance(title, description string, keywords []string, sector config.SectorConfig) float64 {
	text := strings.ToLower(title + " " + description + " " + strings.Join(keywords, " "))
	if len(sector.Keywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range sector.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			hits++
		}
	}
	score := float64(hits) / float64(len(sector.Keywords))

	// Sub-sector tie-break: a matching sub-sector keyword nudges score up
	// without letting it exceed 1.0, breaking ties between sectors with
	// otherwise-equal keyword hit ratios.
	for _, sub := range sector.SubSectors {
		if strings.Contains(text, strings.ToLower(sub)) {
			score += 0.05
			break
		}
	}
	return clamp01(score)
}

// GeographicRelevance scores by the priority of the best-matching region
// with a keyword anchor present in the candidate text (§4.5).
func GeographicRelevance(text string, regions []config.RegionConfig) float64 {
	lower := strings.ToLower(text)
	best := 0.0
	for _, r := range regions {
		matched := false
		for _, anchor := range r.KeywordAnchors {
			if strings.Contains(lower, strings.ToLower(anchor)) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if p := config.GeoTierPriority(r.Tier); p > best {
			best = p
		}
	}
	return best
}

// OperationalAlignment estimates fit between the grant-implied resource
// load (derived from the funding band and any reporting-tolerance
// mentions in the description) and the profile's resource constraints
// (§4.5: "fit between grant-implied resource load ... and
// profile.resource_constraints").
func OperationalAlignment(fundingText, description string, constraints config.ResourceConstraints) float64 {
	amount := estimateFundingAmount(fundingText)
	score := 1.0
	if constraints.MaxBudget > 0 && amount > 0 {
		if amount > constraints.MaxBudget {
			overshoot := (amount - constraints.MaxBudget) / constraints.MaxBudget
			score -= clamp01(overshoot)
		}
	}
	if constraints.ReportingTolerance == "light" && mentionsHeavyReporting(description) {
		score -= 0.2
	}
	return clamp01(score)
}

// estimateFundingAmount extracts the largest dollar figure mentioned in a
// funding description string, used as a rough resource-load proxy.
func estimateFundingAmount(fundingText string) float64 {
	var digits strings.Builder
	best := 0.0
	flush := func() {
		if digits.Len() == 0 {
			return
		}
		if v, err := strconv.ParseFloat(digits.String(), 64); err == nil && v > best {
			best = v
		}
		digits.Reset()
	}
	for _, r := range fundingText {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ',' || r == '.':
			// skip thousands separators / decimals, keep scanning digits
		default:
			flush()
		}
	}
	flush()
	return best
}

var heavyReportingMarkers = []string{"quarterly report", "monthly report", "audited financial", "site visit"}

func mentionsHeavyReporting(description string) bool {
	lower := strings.ToLower(description)
	for _, m := range heavyReportingMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
