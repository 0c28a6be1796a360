package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// handleGetProfile serves GET /api/business-profile.
func (s *Server) handleGetProfile(c *gin.Context) {
	user, ok := s.resolveUser(c)
	if !ok {
		return
	}
	profile, err := s.profiles.Get(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// handlePutProfile serves PUT /api/business-profile: upserts the
// profile, then refreshes its RAG embeddings so application generation
// draws on the latest narrative (§4.4, §4.8).
func (s *Server) handlePutProfile(c *gin.Context) {
	user, ok := s.resolveUser(c)
	if !ok {
		return
	}

	var req businessProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	profile := &store.BusinessProfile{
		UserID:              user.ID,
		Narrative:           req.Narrative,
		Sectors:             req.Sectors,
		FocusAreas:          req.FocusAreas,
		RevenueBand:         req.RevenueBand,
		TeamSize:            req.TeamSize,
		GeographicFocus:     req.GeographicFocus,
		ResourceConstraints: req.ResourceConstraints,
		StrategicGoals:      req.StrategicGoals,
	}
	if err := s.profiles.Upsert(c.Request.Context(), profile); err != nil {
		writeError(c, err)
		return
	}

	if err := s.retriever.IndexNarrative(c.Request.Context(), profile.Namespace(), profile.Narrative, s.defaults.RAGChunkSize, s.defaults.RAGChunkOverlap); err != nil {
		writeDegraded(c, gin.H{"profile": profile}, "embedding refresh unavailable, narrative will be re-indexed on next write")
		return
	}
	if err := s.profiles.MarkEmbeddingsGenerated(c.Request.Context(), user.ID, time.Now().UTC()); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// handleUploadDocument serves POST /api/business-profile/documents:
// accepts a supporting document (≤50MB, mime-whitelisted), appends its
// raw bytes as text to the profile narrative, and re-indexes (§6). No
// text extraction is performed on the uploaded file.
func (s *Server) handleUploadDocument(c *gin.Context) {
	user, ok := s.resolveUser(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentUploadBytes)
	file, header, err := c.Request.FormFile("document")
	if err != nil {
		writeError(c, errValidation(map[string]any{"document": "multipart file field is required"}))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedDocumentMIMEs[contentType] {
		writeError(c, errValidation(map[string]any{"document": "unsupported content type: " + contentType}))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(c, apperrors.New(apperrors.KindValidation, "document exceeds the 50MB upload limit or could not be read"))
		return
	}

	profile, err := s.profiles.Get(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	profile.Narrative = profile.Narrative + "\n\n" + string(data)

	if err := s.profiles.Upsert(c.Request.Context(), profile); err != nil {
		writeError(c, err)
		return
	}
	if err := s.retriever.IndexNarrative(c.Request.Context(), profile.Namespace(), profile.Narrative, s.defaults.RAGChunkSize, s.defaults.RAGChunkOverlap); err != nil {
		writeDegraded(c, gin.H{"profile": profile}, "embedding refresh unavailable, narrative will be re-indexed on next write")
		return
	}
	if err := s.profiles.MarkEmbeddingsGenerated(c.Request.Context(), user.ID, time.Now().UTC()); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}
