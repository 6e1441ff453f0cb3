package app

import (
	"phynetix_backend/docs"
	"phynetix_backend/internal/config"
	"phynetix_backend/internal/middleware"
	"phynetix_backend/internal/model"

	"phynetix_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		exams := authGroup.Group("/exams")
		{
			exams.POST("/:testId/start", c.exam.Start)
			exams.GET("/:testId/questions", c.exam.Questions)
		}

		attempts := authGroup.Group("/attempts")
		{
			attempts.POST("/:attemptId/answer", c.exam.Answer)
			attempts.DELETE("/:attemptId/answer/:questionId", c.exam.ClearAnswer)
			attempts.POST("/:attemptId/visit", c.exam.Visit)
			attempts.POST("/:attemptId/review", c.exam.ToggleReview)
			attempts.POST("/:attemptId/fullscreen-exit", c.exam.FullscreenExit)
			attempts.POST("/:attemptId/submit", c.exam.Submit)
			attempts.GET("/:attemptId/state", c.exam.State)
			attempts.GET("/:attemptId/result", c.exam.Result)
		}

		tests := authGroup.Group("/tests")
		{
			tests.GET("/:testId/leaderboard", c.exam.Leaderboard)
		}

		admin := authGroup.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.POST("/reconcile", c.exam.Reconcile)
		}
	}
}
