package config

// Shared configuration document types used across the pipeline.
// All four documents are reloaded atomically on SIGHUP (see manager.go).

// GeoTier is one of the four geographic scopes a grant can target.
type GeoTier string

const (
	GeoTierLocal    GeoTier = "local"
	GeoTierState    GeoTier = "state"
	GeoTierRegional GeoTier = "regional"
	GeoTierFederal  GeoTier = "federal"
)

// geoTierPriority maps a tier to the §4.5 step-5 geographic relevance score.
var geoTierPriority = map[GeoTier]float64{
	GeoTierLocal:    1.0,
	GeoTierState:    0.75,
	GeoTierRegional: 0.5,
	GeoTierFederal:  0.25,
}

// GeoTierPriority returns the priority weight for a geographic tier,
// or 0 if the tier is unrecognized.
func GeoTierPriority(t GeoTier) float64 {
	return geoTierPriority[t]
}

// AllGeoTiers returns the four tiers in the fixed order the search plan
// (§4.5 step 1) iterates them.
func AllGeoTiers() []GeoTier {
	return []GeoTier{GeoTierLocal, GeoTierState, GeoTierRegional, GeoTierFederal}
}

// SectorConfig describes one business sector for sector-relevance scoring
// and search-plan construction.
type SectorConfig struct {
	Name        string   `yaml:"name" validate:"required"`
	Keywords    []string `yaml:"keywords"`
	SubSectors  []string `yaml:"sub_sectors"`
	Weight      float64  `yaml:"weight" validate:"gte=0"`
	Description string   `yaml:"description,omitempty"`
}

// SectorDocument is the top-level sector configuration document.
type SectorDocument struct {
	Sectors map[string]SectorConfig `yaml:"sectors"`
}

// RegionConfig describes one geographic region and its priority tier.
type RegionConfig struct {
	Name           string   `yaml:"name" validate:"required"`
	Tier           GeoTier  `yaml:"tier" validate:"required,oneof=local state regional federal"`
	KeywordAnchors []string `yaml:"keyword_anchors"`
}

// GeoDocument is the top-level geographic configuration document.
type GeoDocument struct {
	Regions map[string]RegionConfig `yaml:"regions"`
}

// ComplianceRule is one business-logic rule evaluated by the compliance
// agent (§4.6). AppliesIf is an optional rego boolean expression
// evaluated against the candidate's flattened fields; an empty AppliesIf
// means the rule always applies.
type ComplianceRule struct {
	ID                string   `yaml:"id" validate:"required"`
	Description       string   `yaml:"description"`
	IncludeKeywords   []string `yaml:"include_keywords"`
	ExcludeKeywords   []string `yaml:"exclude_keywords"`
	AppliesIf         string   `yaml:"applies_if,omitempty"`
	Penalty           float64  `yaml:"penalty,omitempty"`            // default 0.2
	HardRejectPenalty float64  `yaml:"hard_reject_penalty,omitempty"` // default 0.5
	HardBlock         bool     `yaml:"hard_block,omitempty"`
}

// ReportingToleranceBand maps a funding-size band to an acceptable
// reporting-complexity tolerance, used by the feasibility score.
type ReportingToleranceBand struct {
	MaxFundingAmount float64 `yaml:"max_funding_amount"`
	ToleranceLabel   string  `yaml:"tolerance_label"` // e.g. "light", "standard", "heavy"
}

// ComplianceDocument is the top-level compliance rules configuration document.
type ComplianceDocument struct {
	Rules          []ComplianceRule         `yaml:"rules"`
	ReportingBands []ReportingToleranceBand `yaml:"reporting_tolerance_bands"`
}

// ResourceConstraints describes a business profile's operational capacity,
// used by operational-alignment (§4.5) and feasibility (§4.6) scoring.
type ResourceConstraints struct {
	MaxBudget          float64 `yaml:"max_budget"`
	MaxProjectDuration int     `yaml:"max_project_duration_months"`
	ReportingTolerance string  `yaml:"reporting_tolerance"` // light, standard, heavy
}

// ProfileDefaults holds coded defaults applied to a BusinessProfile when a
// user has not yet set an explicit value (e.g. empty resource constraints).
type ProfileDefaults struct {
	ResourceConstraints ResourceConstraints `yaml:"resource_constraints"`
	StrategicGoals      []string            `yaml:"strategic_goals"`
}
