package handlers

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/TicketWorks/ticket-review-backend/errors"
	"github.com/TicketWorks/ticket-review-backend/internal/court"
	"github.com/TicketWorks/ticket-review-backend/internal/session"
	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/TicketWorks/ticket-review-backend/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CourtHandler serves the court resolution flow of a review session: search,
// selection, draft editing, and duplicate-conflict resolution.
type CourtHandler struct {
	manager *session.Manager
	logger  *zap.SugaredLogger
}

// NewCourtHandler creates a court handler.
func NewCourtHandler(manager *session.Manager) *CourtHandler {
	return &CourtHandler{
		manager: manager,
		logger:  logger.GetLogger().Named("court_handler"),
	}
}

// SearchHandler runs one page of incremental court search. A superseded
// request returns stale=true with no results; the client keeps the newer ones.
func (h *CourtHandler) SearchHandler(c *gin.Context) {
	resolver, ok := h.resolver(c)
	if !ok {
		return
	}

	term := c.Query("term")
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		_ = c.Error(apperrors.ValidationFailed("Invalid offset", "offset must be a non-negative integer"))
		return
	}

	courts, more, err := resolver.Search(c.Request.Context(), term, offset)
	if err != nil {
		if errors.Is(err, court.ErrStaleSearch) {
			c.JSON(http.StatusOK, gin.H{"stale": true})
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"courts": courts,
		"more":   more,
	})
}

type selectCourtRequest struct {
	Court types.Court `json:"court" binding:"required"`
}

// SelectHandler makes the given court the active selection.
func (h *CourtHandler) SelectHandler(c *gin.Context) {
	resolver, ok := h.resolver(c)
	if !ok {
		return
	}
	var req selectCourtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	resolver.SelectExisting(req.Court)
	c.JSON(http.StatusOK, resolver.State())
}

// ClearHandler drops the selection and empties the linked review fields.
func (h *CourtHandler) ClearHandler(c *gin.Context) {
	resolver, ok := h.resolver(c)
	if !ok {
		return
	}
	resolver.ClearSelection()
	c.JSON(http.StatusOK, resolver.State())
}

type openDraftRequest struct {
	Mode types.CourtEditorMode `json:"mode" binding:"required"`
}

// OpenDraftHandler opens the court editor in create or edit mode. Create mode
// seeds the draft from the linked review fields; edit mode copies the current
// selection.
func (h *CourtHandler) OpenDraftHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req openDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ValidationFailed("Invalid request body", err.Error()))
		return
	}

	switch req.Mode {
	case types.CourtEditorModeCreate:
		if err := s.OpenCourtCreateDraft(); err != nil {
			_ = c.Error(err)
			return
		}
	case types.CourtEditorModeEdit:
		if err := s.Courts().OpenEditDraft(); err != nil {
			_ = c.Error(apperrors.ValidationFailed("No court selected", "Select a court before editing it"))
			return
		}
	default:
		_ = c.Error(apperrors.ValidationFailed("Invalid editor mode", string(req.Mode)))
		return
	}
	c.JSON(http.StatusOK, s.Courts().State())
}

// UpdateDraftHandler replaces the open draft with the reviewer's edits.
func (h *CourtHandler) UpdateDraftHandler(c *gin.Context) {
	resolver, ok := h.resolver(c)
	if !ok {
		return
	}
	var draft types.Court
	if err := c.ShouldBindJSON(&draft); err != nil {
		_ = c.Error(apperrors.ValidationFailed("Invalid request body", err.Error()))
		return
	}
	resolver.UpdateDraft(draft)
	c.JSON(http.StatusOK, resolver.State())
}

// CloseDraftHandler discards the draft and closes the editor.
func (h *CourtHandler) CloseDraftHandler(c *gin.Context) {
	resolver, ok := h.resolver(c)
	if !ok {
		return
	}
	resolver.CloseEditor()
	c.Status(http.StatusNoContent)
}

// SaveDraftHandler persists the draft. A duplicate collision returns the
// conflict diff instead of a saved record.
func (h *CourtHandler) SaveDraftHandler(c *gin.Context) {
	resolver, ok := h.resolver(c)
	if !ok {
		return
	}
	result, err := resolver.Save(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if result.Status == types.CourtSaveDuplicate {
		c.JSON(http.StatusConflict, gin.H{
			"status":    result.Status,
			"duplicate": result.DuplicateRecord,
			"diff":      resolver.Diff(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": result.Status,
		"record": result.Record,
	})
}

// UseExistingHandler resolves a duplicate conflict by selecting the existing
// record as-is.
func (h *CourtHandler) UseExistingHandler(c *gin.Context) {
	resolver, ok := h.resolver(c)
	if !ok {
		return
	}
	if err := resolver.UseExisting(); err != nil {
		_ = c.Error(apperrors.NewConflictError("No duplicate conflict active", err.Error()))
		return
	}
	c.JSON(http.StatusOK, resolver.State())
}

// UpdateAndUseHandler resolves a duplicate conflict by applying the draft's
// edits onto the existing record, then selecting it.
func (h *CourtHandler) UpdateAndUseHandler(c *gin.Context) {
	resolver, ok := h.resolver(c)
	if !ok {
		return
	}
	result, err := resolver.UpdateAndUse(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": result.Status,
		"record": result.Record,
	})
}

type requestNewEntityRequest struct {
	Term string `json:"term"`
}

// RequestNewHandler hands court creation off to an external flow, seeded with
// the reviewer's current search term.
func (h *CourtHandler) RequestNewHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req requestNewEntityRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperrors.ValidationFailed("Invalid request body", err.Error()))
			return
		}
	}
	s.RequestNewEntity(req.Term)
	c.Status(http.StatusAccepted)
}

// GoBackHandler returns from the conflict view to the editor, keeping the
// draft.
func (h *CourtHandler) GoBackHandler(c *gin.Context) {
	resolver, ok := h.resolver(c)
	if !ok {
		return
	}
	resolver.GoBack()
	c.JSON(http.StatusOK, resolver.State())
}

func (h *CourtHandler) session(c *gin.Context) (sessionWithCourts, bool) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	if s.Courts() == nil {
		_ = c.Error(apperrors.InvalidSessionState(s.State().String(), "court resolution"))
		return nil, false
	}
	return s, true
}

func (h *CourtHandler) resolver(c *gin.Context) (*court.Resolver, bool) {
	s, ok := h.session(c)
	if !ok {
		return nil, false
	}
	return s.Courts(), true
}

// sessionWithCourts is the slice of the session the court handler uses.
type sessionWithCourts interface {
	State() types.SessionState
	Courts() *court.Resolver
	OpenCourtCreateDraft() error
	RequestNewEntity(initialTerm string)
}
