package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// handleGenerateApplication serves POST /api/applications/generate:
// creates a DRAFT row synchronously (so status polling works
// immediately) and hands the actual six-section generation off to the
// background worker pool (§4.8, §5 "10 min generation jobs").
func (s *Server) handleGenerateApplication(c *gin.Context) {
	user, ok := s.resolveUser(c)
	if !ok {
		return
	}

	var req generateApplicationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	grantID, err := uuid.Parse(req.GrantID)
	if err != nil {
		writeError(c, errValidation(map[string]any{"grant_id": "must be a UUID"}))
		return
	}

	if _, err := s.grants.Get(c.Request.Context(), user.ID, grantID); err != nil {
		writeError(c, err)
		return
	}

	if err := s.users.IncrementApplicationUsage(c.Request.Context(), user.ID); err != nil {
		writeError(c, err)
		return
	}

	draft, err := s.apps.CreateDraft(c.Request.Context(), user.ID, grantID)
	if err != nil {
		_ = s.users.RollbackApplicationUsage(c.Request.Context(), user.ID)
		writeError(c, err)
		return
	}

	s.appWorkers.Enqueue(applicationJob{AppID: draft.ID, UserID: user.ID, GrantID: grantID})

	c.JSON(http.StatusAccepted, gin.H{"task_id": draft.ID, "status": string(store.AppDraft)})
}

// handleApplicationStatus serves GET /api/applications/status/{task_id}.
func (s *Server) handleApplicationStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		writeError(c, errValidation(map[string]any{"task_id": "must be a UUID"}))
		return
	}
	app, err := s.apps.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// handleApplicationFeedback serves POST /api/applications/feedback.
func (s *Server) handleApplicationFeedback(c *gin.Context) {
	user, ok := s.resolveUser(c)
	if !ok {
		return
	}

	var req applicationFeedbackRequest
	if !bindAndValidate(c, &req) {
		return
	}
	grantID, err := uuid.Parse(req.GrantID)
	if err != nil {
		writeError(c, errValidation(map[string]any{"grant_id": "must be a UUID"}))
		return
	}

	hist := &store.ApplicationHistory{
		UserID:       user.ID,
		GrantID:      grantID,
		Status:       req.Status,
		OutcomeNotes: req.OutcomeNotes,
		Feedback:     req.Feedback,
	}
	if req.SubmissionDate != "" {
		t, err := time.Parse(time.RFC3339, req.SubmissionDate)
		if err != nil {
			writeError(c, errValidation(map[string]any{"submission_date": "must be RFC3339"}))
			return
		}
		hist.SubmissionDate = &t
	}

	if err := s.apps.RecordFeedback(c.Request.Context(), hist); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hist)
}
