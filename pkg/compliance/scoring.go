package compliance

import (
	"math"
	"strings"

	"github.com/codeready-toolchain/grantfinder/pkg/config"
)

// Layer2 holds the three Compliance Agent scores (§4.6), each in [0,1].
type Layer2 struct {
	Business    float64
	Feasibility float64
	Strategic   float64
}

const (
	defaultPenalty           = 0.2
	defaultHardRejectPenalty = 0.5
)

// BusinessLogicResult is the outcome of evaluating every rule against one
// candidate (§4.6 "Business-logic alignment").
type BusinessLogicResult struct {
	Score       float64
	HardBlocked bool
	BlockedBy   string
}

// EvaluateBusinessLogic starts at 1.0 and subtracts a penalty for each
// applicable include-keyword rule the candidate fails, and
// hard_reject_penalty for each applicable exclude-keyword rule it
// matches; a hard_block rule matching on excludes rejects the candidate
// outright (§4.6).
func EvaluateBusinessLogic(text string, rules []config.ComplianceRule, applicable func(config.ComplianceRule) bool) BusinessLogicResult {
	lower := strings.ToLower(text)
	score := 1.0
	for _, rule := range rules {
		if !applicable(rule) {
			continue
		}
		penalty := rule.Penalty
		if penalty <= 0 {
			penalty = defaultPenalty
		}
		hardPenalty := rule.HardRejectPenalty
		if hardPenalty <= 0 {
			hardPenalty = defaultHardRejectPenalty
		}

		if len(rule.IncludeKeywords) > 0 && !containsAny(lower, rule.IncludeKeywords) {
			score -= penalty
		}
		if len(rule.ExcludeKeywords) > 0 && containsAny(lower, rule.ExcludeKeywords) {
			if rule.HardBlock {
				return BusinessLogicResult{Score: 0, HardBlocked: true, BlockedBy: rule.ID}
			}
			score -= hardPenalty
		}
	}
	return BusinessLogicResult{Score: clamp01(score)}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// Feasibility compares grant requirements (budget range, project
// duration) to the profile's resource constraints, returning a linear
// penalty proportional to overshoot (§4.6).
func Feasibility(fundingMin, fundingMax *float64, projectDurationMonths int, constraints config.ResourceConstraints) float64 {
	score := 1.0
	if constraints.MaxBudget > 0 && fundingMax != nil && *fundingMax > constraints.MaxBudget {
		score -= clamp01((*fundingMax - constraints.MaxBudget) / constraints.MaxBudget)
	}
	if constraints.MaxProjectDuration > 0 && projectDurationMonths > constraints.MaxProjectDuration {
		overshoot := float64(projectDurationMonths-constraints.MaxProjectDuration) / float64(constraints.MaxProjectDuration)
		score -= clamp01(overshoot)
	}
	return clamp01(score)
}

// StrategicSynergy computes a cosine-like token-overlap match between a
// grant's keywords/categories and the profile's strategic_goals, case
// insensitive, normalized by sqrt(|a|*|b|) (§4.6).
func StrategicSynergy(grantTokens, strategicGoals []string) float64 {
	if len(grantTokens) == 0 || len(strategicGoals) == 0 {
		return 0
	}
	a := toTokenSet(grantTokens)
	b := toTokenSet(strategicGoals)
	overlap := 0
	for t := range a {
		if b[t] {
			overlap++
		}
	}
	denom := math.Sqrt(float64(len(a)) * float64(len(b)))
	if denom == 0 {
		return 0
	}
	return clamp01(float64(overlap) / denom)
}

func toTokenSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
