package handlers

import (
	"github.com/cfa-prep/study-service/internal/identity"
	"github.com/cfa-prep/study-service/internal/services"
	"github.com/cfa-prep/study-service/internal/utils"
	"github.com/cfa-prep/study-service/pkg/monitoring"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	practiceHandler  *PracticeHandler
	dashboardHandler *DashboardHandler
	profileHandler   *ProfileHandler
	moduleHandler    *ModuleHandler

	provider       identity.Provider
	profileService services.ProfileService
	logger         utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	provider identity.Provider,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		practiceHandler:  NewPracticeHandler(serviceManager.Practice(), logger),
		dashboardHandler: NewDashboardHandler(serviceManager.Dashboard(), serviceManager.ImportExport(), logger),
		profileHandler:   NewProfileHandler(serviceManager.Profile(), logger),
		moduleHandler:    NewModuleHandler(serviceManager.Content(), serviceManager.ImportExport(), logger),
		provider:         provider,
		profileService:   serviceManager.Profile(),
		logger:           logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, metricsEnabled bool) {
	// Health check endpoint
	router.GET("/health", HealthCheck)
	if metricsEnabled {
		router.GET("/metrics", monitoring.PrometheusHandler())
	}

	// API v1 routes, all authenticated
	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(hm.provider, hm.profileService, hm.logger))
	{
		modules := v1.Group("/modules")
		{
			modules.GET("", hm.moduleHandler.ListModules)
			modules.POST("/import", AdminMiddleware(hm.logger), hm.moduleHandler.ImportQuestions)
		}

		practice := v1.Group("/practice")
		{
			practice.POST("/:slug/runs", hm.practiceHandler.StartRun)

			runs := practice.Group("/runs/:run_id")
			{
				runs.GET("", hm.practiceHandler.GetRun)
				runs.PUT("/selection", hm.practiceHandler.SelectChoice)
				runs.POST("/submit", hm.practiceHandler.SubmitAnswer)
				runs.POST("/advance", hm.practiceHandler.NextQuestion)
				runs.DELETE("", hm.practiceHandler.AbandonRun)
			}
		}

		v1.GET("/dashboard", hm.dashboardHandler.GetOverview)

		sessions := v1.Group("/sessions")
		{
			sessions.GET("", hm.dashboardHandler.ListSessions)
			sessions.GET("/export", hm.dashboardHandler.ExportSessions)
			sessions.DELETE("/:id", hm.dashboardHandler.DeleteSession)
		}

		profile := v1.Group("/profile")
		{
			profile.GET("", hm.profileHandler.GetProfile)
			profile.PUT("", hm.profileHandler.UpdateProfile)
		}
	}
}
