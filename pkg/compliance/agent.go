package compliance

import (
	"context"
	"strings"

	"github.com/codeready-toolchain/grantfinder/pkg/config"
	"github.com/codeready-toolchain/grantfinder/pkg/research"
	"github.com/codeready-toolchain/grantfinder/pkg/scoring"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// Outcome is one candidate's Compliance Agent disposition (§4.6
// "Output"): either a fully scored grant ready for persistence, or a
// drop with a reason recorded in the run's error_details.
type Outcome struct {
	Grant     *store.Grant
	Dropped   bool
	DropReason string
}

// Agent is the C6 Compliance Agent.
type Agent struct {
	cfg       *config.Config
	evaluator *RuleEvaluator
}

// New constructs a Compliance Agent with its rule evaluator already
// prepared (§4.6).
func New(ctx context.Context, cfg *config.Config) (*Agent, error) {
	ev, err := NewRuleEvaluator(ctx, cfg.Compliance.Rules)
	if err != nil {
		return nil, err
	}
	return &Agent{cfg: cfg, evaluator: ev}, nil
}

// Evaluate applies rule validation and Layer-2 scoring to one Research
// Agent candidate, producing either an EnrichedGrant or a drop (§4.6).
func (a *Agent) Evaluate(ctx context.Context, cand research.Candidate, userID string, profile store.BusinessProfile) (Outcome, error) {
	text := cand.Title + " " + cand.Description + " " + cand.Eligibility

	applicable := func(rule config.ComplianceRule) bool {
		input := map[string]any{
			"title":       cand.Title,
			"description": cand.Description,
			"sector":      cand.FocusArea,
			"funding":     cand.Funding,
		}
		ok, err := a.evaluator.Applies(ctx, rule, input)
		return err == nil && ok
	}

	bl := EvaluateBusinessLogic(text, a.cfg.Compliance.Rules, applicable)
	if bl.HardBlocked {
		return Outcome{Dropped: true, DropReason: "hard_block rule " + bl.BlockedBy + " matched"}, nil
	}

	fundingMin, fundingMax := parseFundingBounds(cand.Funding)
	feas := Feasibility(fundingMin, fundingMax, 0, toConfigConstraints(profile.ResourceConstraints))
	strategic := StrategicSynergy(strings.Fields(text), profile.StrategicGoals)

	vec := scoring.Vector{
		Sector:      cand.Layer1.Sector,
		Geo:         cand.Layer1.Geo,
		Operational: cand.Layer1.Operational,
		Business:    bl.Score,
		Feasibility: feas,
		Strategic:   strategic,
	}
	composite := scoring.Composite(vec, cand.Stale)

	grant := &store.Grant{
		Title:              cand.Title,
		Description:        cand.Description,
		EligibilitySummary: cand.Eligibility,
		Funder:             cand.SourceName,
		FundingMin:         fundingMin,
		FundingMax:         fundingMax,
		FundingDisplay:     cand.Funding,
		SourceURL:          cand.SourceURL,
		SourceName:         cand.SourceName,
		Sector:             cand.FocusArea,
		Stale:              cand.Stale,
		Scores: store.ScoreVector{
			Sector: vec.Sector, Geo: vec.Geo, Operational: vec.Operational,
			Business: vec.Business, Feasibility: vec.Feasibility, Strategic: vec.Strategic,
			Composite: composite,
		},
		RecordStatus: store.StatusActive,
	}
	return Outcome{Grant: grant}, nil
}

func toConfigConstraints(rc store.ResourceConstraints) config.ResourceConstraints {
	return config.ResourceConstraints{
		MaxBudget:          rc.MaxBudget,
		MaxProjectDuration: rc.MaxProjectDuration,
		ReportingTolerance: rc.ReportingTolerance,
	}
}

// parseFundingBounds extracts a best-effort (min, max) from a free-text
// funding description, e.g. "$5,000 - $25,000" or "up to $10,000".
func parseFundingBounds(fundingText string) (*float64, *float64) {
	amounts := extractAmounts(fundingText)
	switch len(amounts) {
	case 0:
		return nil, nil
	case 1:
		return nil, &amounts[0]
	default:
		min, max := amounts[0], amounts[0]
		for _, a := range amounts[1:] {
			if a < min {
				min = a
			}
			if a > max {
				max = a
			}
		}
		return &min, &max
	}
}

func extractAmounts(text string) []float64 {
	var amounts []float64
	var digits strings.Builder
	flush := func() {
		if digits.Len() == 0 {
			return
		}
		s := digits.String()
		digits.Reset()
		var v float64
		var frac float64 = 1
		seenDot := false
		for _, r := range s {
			if r == '.' {
				seenDot = true
				continue
			}
			d := float64(r - '0')
			if !seenDot {
				v = v*10 + d
			} else {
				frac /= 10
				v += d * frac
			}
		}
		amounts = append(amounts, v)
	}
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9', r == '.':
			digits.WriteRune(r)
		case r == ',':
			// thousands separator, skip
		default:
			flush()
		}
	}
	flush()
	return amounts
}
