package controller

import (
	"net/http"

	"phynetix_backend/internal/session"
	"phynetix_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB       *gorm.DB
	Sessions *session.Manager
}

func NewHealthController(db *gorm.DB, sessions *session.Manager) *HealthController {
	return &HealthController{DB: db, Sessions: sessions}
}

// @Summary 健康检查
// @Description 检查服务状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.Ping(); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
		},
		"activeSessions": c.Sessions.Len(),
	})
}
