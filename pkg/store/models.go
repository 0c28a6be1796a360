// Package store implements the Grant Store (spec.md §4.3): durable
// relational persistence for every entity in §3, on top of a pgxpool
// connection pool. Repositories take a context on every call and never
// hold a session across a suspension that awaits a third-party call (§5).
package store

import (
	"time"

	"github.com/google/uuid"
)

// SystemUserID is the synthetic owner for legacy/nullable-user_id rows
// (§9 design note), so every query can join against users uniformly.
var SystemUserID = uuid.MustParse("00000000-0000-0000-0000-000000000000")

// RecordStatus is the Grant lifecycle enum (§3).
type RecordStatus string

const (
	StatusActive   RecordStatus = "ACTIVE"
	StatusExpired  RecordStatus = "EXPIRED"
	StatusDraft    RecordStatus = "DRAFT"
	StatusArchived RecordStatus = "ARCHIVED"
)

// TriggerType is how a SearchRun was started (§3).
type TriggerType string

const (
	TriggerAutomated TriggerType = "AUTOMATED"
	TriggerManual    TriggerType = "MANUAL"
	TriggerScheduled TriggerType = "SCHEDULED"
)

// RunStatus is the SearchRun lifecycle enum (§3, §8).
type RunStatus string

const (
	RunInProgress RunStatus = "IN_PROGRESS"
	RunSuccess    RunStatus = "SUCCESS"
	RunPartial    RunStatus = "PARTIAL"
	RunFailed     RunStatus = "FAILED"
)

// ApplicationStatus is the GeneratedApplication lifecycle enum (§3).
type ApplicationStatus string

const (
	AppDraft     ApplicationStatus = "DRAFT"
	AppGenerated ApplicationStatus = "GENERATED"
	AppEdited    ApplicationStatus = "EDITED"
	AppSubmitted ApplicationStatus = "SUBMITTED"
	AppAwarded   ApplicationStatus = "AWARDED"
	AppRejected  ApplicationStatus = "REJECTED"
)

// User mirrors the `users` table.
type User struct {
	ID                  uuid.UUID
	ExternalSubject     string
	SubscriptionTier    string
	SearchesUsed        int
	SearchesLimit       int
	ApplicationsUsed    int
	ApplicationsLimit   int
	BillingPeriodStart  time.Time
	Deactivated         bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ResourceConstraints mirrors config.ResourceConstraints but is the
// per-user override persisted on the profile (§3 BusinessProfile).
type ResourceConstraints struct {
	MaxBudget          float64 `json:"max_budget"`
	MaxProjectDuration int     `json:"max_project_duration_months"`
	ReportingTolerance string  `json:"reporting_tolerance"`
}

// BusinessProfile mirrors the `business_profiles` table (§3).
type BusinessProfile struct {
	UserID                uuid.UUID
	Narrative             string
	Sectors               []string
	FocusAreas            []string
	RevenueBand           string
	TeamSize              int
	GeographicFocus       []string
	ResourceConstraints   ResourceConstraints
	StrategicGoals        []string
	VectorNamespace       string
	EmbeddingsGeneratedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Namespace returns the profile's stored vector namespace, or the §4.4
// per-user name "user_<id>" when none is stored.
func (p *BusinessProfile) Namespace() string {
	if p.VectorNamespace != "" {
		return p.VectorNamespace
	}
	return "user_" + p.UserID.String()
}

// ScoreVector is the six Layer-1/Layer-2 sub-scores plus composite (§3,
// §4.5, §4.6). Kept as a distinct value type per the §9 re-architecture
// note ("a separate ScoreVector value type").
type ScoreVector struct {
	Sector      float64
	Geo         float64
	Operational float64
	Business    float64
	Feasibility float64
	Strategic   float64
	Composite   float64
}

// Grant mirrors the `grants` table (§3).
type Grant struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	ExternalID          string
	Title               string
	Description         string
	LLMSummary          string
	EligibilitySummary  string
	Funder              string
	FundingMin          *float64
	FundingMax          *float64
	FundingExact        *float64
	FundingDisplay      string
	Deadline            *time.Time
	OpenDate            *time.Time
	SourceURL           string
	SourceURLNormalized string
	SourceName          string
	RetrievedAt         time.Time
	FirstFoundAt        time.Time
	Sector              string
	SubSector           string
	GeographicScope     string
	Keywords            []string
	ProjectCategories   []string
	LocationMentions    []string
	RawSourceData       map[string]any
	EnrichmentLog       []string
	Stale               bool
	Scores              ScoreVector
	RecordStatus        RecordStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Analysis mirrors the `analyses` table (§3).
type Analysis struct {
	ID        uuid.UUID
	GrantID   uuid.UUID
	Scores    ScoreVector
	Notes     string
	CreatedAt time.Time
}

// SearchRun mirrors the `search_runs` table (§3).
type SearchRun struct {
	ID              uuid.UUID
	UserID          *uuid.UUID
	TriggerType     TriggerType
	Status          RunStatus
	StartTS         time.Time
	EndTS           *time.Time
	DurationMS      *int64
	GrantsFound     int
	SourcesSearched int
	APICallsMade    int
	ErrorKind       string
	ErrorMessage    string
	ErrorDetails    []ErrorDetail
	Query           map[string]any
	CreatedAt       time.Time
}

// ErrorDetail is one entry in a SearchRun's error_details array (§4.5
// "Failure semantics": per-chunk/per-candidate failures recorded without
// failing the whole run).
type ErrorDetail struct {
	ChunkID   string `json:"chunk_id,omitempty"`
	Reason    string `json:"reason"`
	Fallback  string `json:"fallback,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// ApplicationHistory mirrors the `application_history` table (§3).
type ApplicationHistory struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	GrantID        uuid.UUID
	SubmissionDate *time.Time
	Status         string
	OutcomeNotes   string
	Feedback       string
	CreatedAt      time.Time
}

// ApplicationSections holds the six §4.8 section texts; a nil pointer
// marks a failed section ("sections.impact=null" per §8 scenario 5).
type ApplicationSections struct {
	ExecutiveSummary      *string `json:"executive_summary"`
	NeedsStatement        *string `json:"needs_statement"`
	ProjectDescription    *string `json:"project_description"`
	BudgetNarrative       *string `json:"budget_narrative"`
	OrganizationalCapacity *string `json:"organizational_capacity"`
	ImpactStatement       *string `json:"impact_statement"`
}

// GeneratedApplication mirrors the `generated_applications` table (§3).
type GeneratedApplication struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	GrantID       uuid.UUID
	Sections      ApplicationSections
	FullText      string
	TokensUsed    int
	GenerationMS  int64
	ModelID       string
	Status        ApplicationStatus
	Partial       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
