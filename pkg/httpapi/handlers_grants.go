package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
	"github.com/codeready-toolchain/grantfinder/pkg/scheduler"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// handleSystemInfo serves GET /api/system/info: static build/version
// facts plus current scheduler queue depth, no auth-scoped data.
func (s *Server) handleSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "grantfinder",
		"queue_depth": s.queue.Len(),
		"primary_llm": s.infra.PrimaryLLM,
	})
}

// handleRunSearch serves POST /api/system/run-search: enqueues an
// on-demand MANUAL search run for the authenticated user (§4.9, §6).
func (s *Server) handleRunSearch(c *gin.Context) {
	user, ok := s.resolveUser(c)
	if !ok {
		return
	}

	job := scheduler.Job{UserID: user.ID, Trigger: store.TriggerManual}
	if err := s.queue.Enqueue(job); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "user_id": user.ID})
}

// handleListGrants serves GET /api/grants (§6 filters).
func (s *Server) handleListGrants(c *gin.Context) {
	user, ok := s.resolveUser(c)
	if !ok {
		return
	}

	var q grantListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, errValidation(map[string]any{"query": err.Error()}))
		return
	}

	f, err := q.toListFilter()
	if err != nil {
		writeError(c, err)
		return
	}

	grants, err := s.grants.List(c.Request.Context(), user.ID, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grants": grants, "count": len(grants)})
}

// handleGetGrant serves GET /api/grants/{id}.
func (s *Server) handleGetGrant(c *gin.Context) {
	user, ok := s.resolveUser(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, errValidation(map[string]any{"id": "must be a UUID"}))
		return
	}

	grant, err := s.grants.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// handleSearchGrants serves POST /api/grants/search: a filtered list
// keyed on free-text search rather than GET query params, for clients
// needing a body (long search_text, complex filters).
func (s *Server) handleSearchGrants(c *gin.Context) {
	user, ok := s.resolveUser(c)
	if !ok {
		return
	}

	var req searchGrantsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	f, err := (&grantListQuery{
		MinScore:       req.MinScore,
		DeadlineBefore: req.DeadlineBefore,
		DeadlineAfter:  req.DeadlineAfter,
		Category:       req.Category,
		FundingMin:     req.FundingMin,
		FundingMax:     req.FundingMax,
		SearchText:     req.SearchText,
	}).toListFilter()
	if err != nil {
		writeError(c, err)
		return
	}

	grants, err := s.grants.List(c.Request.Context(), user.ID, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grants": grants, "count": len(grants)})
}

func (q *grantListQuery) toListFilter() (store.ListFilter, error) {
	f := store.ListFilter{
		MinScore:   q.MinScore,
		Category:   q.Category,
		FundingMin: q.FundingMin,
		FundingMax: q.FundingMax,
		SearchText: q.SearchText,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}

	if q.DeadlineBefore != "" {
		t, err := time.Parse(time.RFC3339, q.DeadlineBefore)
		if err != nil {
			return f, apperrors.New(apperrors.KindValidation, "deadline_before must be RFC3339")
		}
		f.DeadlineBefore = &t
	}
	if q.DeadlineAfter != "" {
		t, err := time.Parse(time.RFC3339, q.DeadlineAfter)
		if err != nil {
			return f, apperrors.New(apperrors.KindValidation, "deadline_after must be RFC3339")
		}
		f.DeadlineAfter = &t
	}
	return f, nil
}

// resolveUser loads (or lazily creates) the store.User row for the
// authenticated subject.
func (s *Server) resolveUser(c *gin.Context) (*store.User, bool) {
	subject := subjectFrom(c)
	user, err := s.users.GetOrCreateBySubject(c.Request.Context(), subject)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return user, true
}
