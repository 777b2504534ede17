package errors

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/TicketWorks/ticket-review-backend/logger"
)

type ErrorType string

const (
	ValidationError   ErrorType = "VALIDATION_ERROR"
	NotFoundError     ErrorType = "NOT_FOUND"
	DatabaseError     ErrorType = "DATABASE_ERROR"
	ServerError       ErrorType = "SERVER_ERROR"
	FeedError         ErrorType = "FEED_ERROR"
	ExtractionError   ErrorType = "EXTRACTION_ERROR"
	SessionStateError ErrorType = "INVALID_SESSION_STATE"
	ConflictError     ErrorType = "CONFLICT"
	CitationConflict  ErrorType = "CITATION_CONFLICT"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// New creates a new AppError
func New(errType ErrorType, message string, detail string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: getHTTPStatus(errType),
	}
}

// Wrap wraps a raw error with AppError context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     err.Error(),
		HTTPStatus: getHTTPStatus(errType),
		Raw:        err,
	}
}

// Helper functions for common errors
func NotFound(entity string, id interface{}) *AppError {
	return &AppError{
		Type:       NotFoundError,
		Message:    fmt.Sprintf("%s not found", entity),
		Detail:     fmt.Sprintf("ID: %v", id),
		HTTPStatus: http.StatusNotFound,
	}
}

func ValidationFailed(message string, details string) *AppError {
	return &AppError{
		Type:       ValidationError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// FeedFailure marks the failure of a required asynchronous feed. The feed key
// is kept in Code so the session can decide whether the failure is fatal
// (document feed) or degrades gracefully (option lists).
func FeedFailure(feedKey string, err error) *AppError {
	return &AppError{
		Type:       FeedError,
		Code:       feedKey,
		Message:    fmt.Sprintf("feed %q failed", feedKey),
		Detail:     errDetail(err),
		HTTPStatus: http.StatusBadGateway,
		Raw:        err,
	}
}

func NewDatabaseError(err error) *AppError {
	// Log original error but return sanitized message
	logger.GetLogger().Errorw("Database error", "error", err)
	return &AppError{
		Type:       DatabaseError,
		Message:    "Database operation failed",
		Detail:     "Please try again later",
		HTTPStatus: http.StatusInternalServerError,
		Raw:        err,
	}
}

func InternalServerError(message string) *AppError {
	return &AppError{
		Type:       ServerError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

func InvalidSessionState(current, requested string) *AppError {
	return &AppError{
		Type:       SessionStateError,
		Message:    "Invalid session state transition",
		Detail:     fmt.Sprintf("Cannot transition from %s to %s", current, requested),
		HTTPStatus: http.StatusConflict,
	}
}

func NewConflictError(message string, detail string) *AppError {
	return &AppError{
		Type:       ConflictError,
		Message:    message,
		Detail:     detail,
		HTTPStatus: http.StatusConflict,
	}
}

// citationConflictRe matches the backend's uniqueness-violation text for
// citation numbers, e.g. "DUPLICATE_VALUE: duplicate value found: Citation_Number
// duplicates value on record with id: a0B5f000001XyZa".
var citationConflictRe = regexp.MustCompile(`(?i)duplicate value.*citation.*record with id:?\s*([A-Za-z0-9-]+)`)

// NewCitationConflict inspects a save failure for the citation uniqueness
// violation. If matched, it returns a CitationConflict error carrying the
// conflicting record reference in Code; otherwise it returns nil.
func NewCitationConflict(err error) *AppError {
	if err == nil {
		return nil
	}
	m := citationConflictRe.FindStringSubmatch(err.Error())
	if m == nil {
		return nil
	}
	return &AppError{
		Type:       CitationConflict,
		Code:       m[1],
		Message:    "A ticket with this citation number already exists",
		Detail:     fmt.Sprintf("Conflicting record: %s", m[1]),
		HTTPStatus: http.StatusConflict,
		Raw:        err,
	}
}

// UserMessage converts any error into a message safe to surface to the
// reviewer. AppErrors keep their message; everything else is passed through
// verbatim, matching the collaborating layer's own error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := err.(*AppError); ok {
		if appErr.Detail != "" {
			return fmt.Sprintf("%s: %s", appErr.Message, appErr.Detail)
		}
		return appErr.Message
	}
	return err.Error()
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case DatabaseError:
		return http.StatusInternalServerError
	case FeedError:
		return http.StatusBadGateway
	case ExtractionError:
		return http.StatusUnprocessableEntity
	case SessionStateError, ConflictError, CitationConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
