// Package router wires the HTTP routes.
package router

import (
	"github.com/TicketWorks/ticket-review-backend/config"
	"github.com/TicketWorks/ticket-review-backend/handlers"
	"github.com/TicketWorks/ticket-review-backend/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies struct holds all dependencies required for setting up routes.
type Dependencies struct {
	Config         *config.Config
	SessionHandler *handlers.SessionHandler
	CourtHandler   *handlers.CourtHandler
	HealthHandler  *handlers.HealthHandler
	Logger         *zap.SugaredLogger
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", deps.SessionHandler.OpenSessionHandler)
			sessions.GET("/:id", deps.SessionHandler.GetSessionHandler)
			sessions.DELETE("/:id", deps.SessionHandler.CloseSessionHandler)
			sessions.POST("/:id/force-create", deps.SessionHandler.ForceCreateHandler)
			sessions.POST("/:id/process", deps.SessionHandler.TriggerProcessingHandler)
			sessions.POST("/:id/continue", deps.SessionHandler.ContinueFromSummaryHandler)
			sessions.PATCH("/:id/fields/:fieldId", deps.SessionHandler.EditFieldHandler)
			sessions.POST("/:id/commit", deps.SessionHandler.CommitHandler)
			sessions.POST("/:id/back", deps.SessionHandler.BackHandler)
			sessions.PATCH("/:id/form", deps.SessionHandler.SetFormValueHandler)
			sessions.POST("/:id/save", deps.SessionHandler.SaveRecordHandler)

			courts := sessions.Group("/:id/courts")
			{
				courts.GET("", deps.CourtHandler.SearchHandler)
				courts.POST("/select", deps.CourtHandler.SelectHandler)
				courts.POST("/clear", deps.CourtHandler.ClearHandler)
				courts.POST("/draft", deps.CourtHandler.OpenDraftHandler)
				courts.PUT("/draft", deps.CourtHandler.UpdateDraftHandler)
				courts.DELETE("/draft", deps.CourtHandler.CloseDraftHandler)
				courts.POST("/draft/save", deps.CourtHandler.SaveDraftHandler)
				courts.POST("/conflict/use-existing", deps.CourtHandler.UseExistingHandler)
				courts.POST("/conflict/update-and-use", deps.CourtHandler.UpdateAndUseHandler)
				courts.POST("/conflict/back", deps.CourtHandler.GoBackHandler)
				courts.POST("/request-new", deps.CourtHandler.RequestNewHandler)
			}
		}
	}

	return r
}
