// Package handlers exposes the review workflow over HTTP.
package handlers

import (
	"net/http"

	"github.com/TicketWorks/ticket-review-backend/errors"
	"github.com/TicketWorks/ticket-review-backend/internal/session"
	"github.com/TicketWorks/ticket-review-backend/internal/workflow"
	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler serves the review session lifecycle and the review-screen
// operations.
type SessionHandler struct {
	manager *session.Manager
	logger  *zap.SugaredLogger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger.GetLogger().Named("session_handler"),
	}
}

type openSessionRequest struct {
	CaseID string `json:"caseId" binding:"required"`
}

// OpenSessionHandler creates and starts a review session for a case.
func (h *SessionHandler) OpenSessionHandler(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}

	s, err := h.manager.Open(c.Request.Context(), req.CaseID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, s.Snapshot())
}

// GetSessionHandler returns the session's current snapshot.
func (h *SessionHandler) GetSessionHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// CloseSessionHandler ends the session from any state.
func (h *SessionHandler) CloseSessionHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Close()
	c.Status(http.StatusNoContent)
}

// ForceCreateHandler bypasses the prior-record short-circuit.
func (h *SessionHandler) ForceCreateHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.ForceCreate(); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// TriggerProcessingHandler runs on-demand extraction over the case's
// unprocessed sources.
func (h *SessionHandler) TriggerProcessingHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.TriggerProcessing(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// ContinueFromSummaryHandler leaves the processing summary and reloads the
// document feed.
func (h *SessionHandler) ContinueFromSummaryHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.ContinueFromSummary(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

type editFieldRequest struct {
	Value *string `json:"value"`
	Note  *string `json:"note"`
}

// EditFieldHandler updates a review field's value and/or reviewer note.
func (h *SessionHandler) EditFieldHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	fieldID := c.Param("fieldId")

	var req editFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	if req.Value == nil && req.Note == nil {
		_ = c.Error(errors.ValidationFailed("Nothing to update", "Provide a value or a note"))
		return
	}

	if req.Value != nil {
		if err := s.EditField(fieldID, *req.Value); err != nil {
			_ = c.Error(err)
			return
		}
	}
	if req.Note != nil {
		if err := s.SetReviewerNote(fieldID, *req.Note); err != nil {
			_ = c.Error(err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"fields": s.Fields()})
}

// CommitHandler moves from review into form editing, folding in the coverage
// computation.
func (h *SessionHandler) CommitHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Commit(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// BackHandler returns from form editing to the review screen.
func (h *SessionHandler) BackHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Back(); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

type setFormValueRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// SetFormValueHandler updates one form field while in form editing.
func (h *SessionHandler) SetFormValueHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req setFormValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	if err := s.SetFormValue(req.Key, req.Value); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type saveRecordRequest struct {
	WantsFollowOnEntity bool `json:"wantsFollowOnEntity"`
}

// SaveRecordHandler creates the final ticket record and closes the session.
func (h *SessionHandler) SaveRecordHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req saveRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.ValidationFailed("Invalid request body", err.Error()))
		return
	}

	recordID, err := s.SaveRecord(c.Request.Context(), req.WantsFollowOnEntity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"recordId":            recordID,
		"wantsFollowOnEntity": req.WantsFollowOnEntity,
	})
}

func (h *SessionHandler) session(c *gin.Context) (*workflow.Session, bool) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	return s, true
}
