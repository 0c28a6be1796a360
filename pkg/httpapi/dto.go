package httpapi

import "github.com/codeready-toolchain/grantfinder/pkg/store"

// grantListQuery binds the GET /api/grants query string (§6).
type grantListQuery struct {
	MinScore       *float64 `form:"min_score"`
	DeadlineBefore string   `form:"deadline_before"`
	DeadlineAfter  string   `form:"deadline_after"`
	Category       string   `form:"category"`
	FundingMin     *float64 `form:"funding_min"`
	FundingMax     *float64 `form:"funding_max"`
	SearchText     string   `form:"search_text"`
	Limit          int      `form:"limit"`
	Offset         int      `form:"offset"`
}

// searchGrantsRequest is the POST /api/grants/search body — the same
// filter shape as the list query, plus a required search_text.
type searchGrantsRequest struct {
	SearchText     string   `json:"search_text" validate:"required,min=1"`
	MinScore       *float64 `json:"min_score"`
	DeadlineBefore string   `json:"deadline_before"`
	DeadlineAfter  string   `json:"deadline_after"`
	Category       string   `json:"category"`
	FundingMin     *float64 `json:"funding_min"`
	FundingMax     *float64 `json:"funding_max"`
}

type generateApplicationRequest struct {
	GrantID string `json:"grant_id" validate:"required,uuid"`
}

type applicationFeedbackRequest struct {
	GrantID        string `json:"grant_id" validate:"required,uuid"`
	SubmissionDate string `json:"submission_date"`
	Status         string `json:"status" validate:"required,oneof=SUBMITTED AWARDED REJECTED"`
	OutcomeNotes   string `json:"outcome_notes"`
	Feedback       string `json:"feedback"`
}

// businessProfileRequest is the PUT /api/business-profile body.
type businessProfileRequest struct {
	Narrative           string                    `json:"narrative" validate:"required"`
	Sectors             []string                  `json:"sectors"`
	FocusAreas          []string                  `json:"focus_areas"`
	RevenueBand         string                    `json:"revenue_band"`
	TeamSize            int                       `json:"team_size" validate:"gte=0"`
	GeographicFocus     []string                  `json:"geographic_focus"`
	ResourceConstraints store.ResourceConstraints `json:"resource_constraints"`
	StrategicGoals      []string                  `json:"strategic_goals"`
}

// allowedDocumentMIMEs is the §6 upload whitelist for business-profile
// supporting documents.
var allowedDocumentMIMEs = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

const maxDocumentUploadBytes = 50 << 20 // 50MB
