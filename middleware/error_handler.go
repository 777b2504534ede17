package middleware

import (
	"net/http"
	"strconv"

	"github.com/TicketWorks/ticket-review-backend/errors"
	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON shape every handler failure is rendered as.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ErrorHandler converts errors attached to the gin context into the uniform
// error response. AppErrors keep their taxonomy and status; anything else
// becomes a sanitized 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		log := logger.GetLogger()

		if appError, ok := err.(*errors.AppError); ok {
			log.Errorw("Request failed",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"requestId", c.GetString(RequestIDKey),
				"type", appError.Type,
				"message", appError.Message,
				"detail", appError.Detail,
			)
			code := appError.Code
			if code == "" {
				code = strconv.Itoa(appError.HTTPStatus)
			}
			c.JSON(appError.HTTPStatus, ErrorResponse{
				Type:    string(appError.Type),
				Message: appError.Message,
				Details: appError.Detail,
				Code:    code,
			})
			return
		}

		log.Errorw("Unhandled request error",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"requestId", c.GetString(RequestIDKey),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Type:    string(errors.ServerError),
			Message: "Internal server error",
		})
	}
}
