package controller

import (
	"errors"
	"net/http"
	"strconv"

	"phynetix_backend/internal/service"
	"phynetix_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	Service *service.ExamService
}

func NewExamController(svc *service.ExamService) *ExamController {
	return &ExamController{Service: svc}
}

// AnswerRequest 作答事件
type AnswerRequest struct {
	QuestionID       string `json:"questionId" binding:"required"`
	Value            string `json:"value"`
	TimeDeltaSeconds int    `json:"timeDeltaSeconds"`
}

// VisitRequest 到访事件，停留时长挂在刚离开的题目上
type VisitRequest struct {
	QuestionID         string `json:"questionId" binding:"required"`
	PreviousQuestionID string `json:"previousQuestionId"`
	SecondsOnPrevious  int    `json:"secondsOnPrevious"`
}

// ReviewRequest 标记待复查
type ReviewRequest struct {
	QuestionID string `json:"questionId" binding:"required"`
}

// @Summary 开始或恢复考试
// @Tags 考试会话
// @Produce json
// @Security BearerAuth
// @Param testId path int true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/exams/{testId}/start [post]
func (c *ExamController) Start(ctx *gin.Context) {
	testID, ok := pathUint(ctx, "testId")
	if !ok {
		return
	}
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Service.StartOrResume(ctx.Request.Context(), testID, user.UserID)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 获取试卷题目（不含答案）
// @Tags 考试会话
// @Produce json
// @Security BearerAuth
// @Param testId path int true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/exams/{testId}/questions [get]
func (c *ExamController) Questions(ctx *gin.Context) {
	testID, ok := pathUint(ctx, "testId")
	if !ok {
		return
	}

	questions, err := c.Service.Questions(ctx.Request.Context(), testID)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// @Summary 提交或修改作答
// @Tags 考试会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "作答ID"
// @Param body body AnswerRequest true "作答内容"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId}/answer [post]
func (c *ExamController) Answer(ctx *gin.Context) {
	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	err := c.Service.Answer(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID, req.QuestionID, req.Value, req.TimeDeltaSeconds)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 清除某题作答
// @Tags 考试会话
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "作答ID"
// @Param questionId path string true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId}/answer/{questionId} [delete]
func (c *ExamController) ClearAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	err := c.Service.ClearAnswer(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID, ctx.Param("questionId"))
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 记录到访某题
// @Tags 考试会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "作答ID"
// @Param body body VisitRequest true "题目与上一题停留时长"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId}/visit [post]
func (c *ExamController) Visit(ctx *gin.Context) {
	var req VisitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	err := c.Service.Visit(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID, req.QuestionID, req.PreviousQuestionID, req.SecondsOnPrevious)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 切换标记待复查
// @Tags 考试会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "作答ID"
// @Param body body ReviewRequest true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId}/review [post]
func (c *ExamController) ToggleReview(ctx *gin.Context) {
	var req ReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	err := c.Service.ToggleReview(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID, req.QuestionID)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 上报退出全屏
// @Tags 考试会话
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId}/fullscreen-exit [post]
func (c *ExamController) FullscreenExit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	count, forced, err := c.Service.FullscreenExit(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"fullscreenExitCount": count,
		"forcedSubmission":    forced,
	})
}

// @Summary 查询会话状态
// @Tags 考试会话
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId}/state [get]
func (c *ExamController) State(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Service.State(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 交卷
// @Tags 考试会话
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId}/submit [post]
func (c *ExamController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Service.Submit(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 查询成绩
// @Tags 考试会话
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId}/result [get]
func (c *ExamController) Result(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Service.Result(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 试卷得分榜
// @Tags 考试会话
// @Produce json
// @Security BearerAuth
// @Param testId path int true "试卷ID"
// @Param limit query int false "榜单长度，默认10"
// @Success 200 {object} util.Response
// @Router /api/tests/{testId}/leaderboard [get]
func (c *ExamController) Leaderboard(ctx *gin.Context) {
	testID, ok := pathUint(ctx, "testId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	entries, err := c.Service.Leaderboard(ctx.Request.Context(), testID, limit)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}

// @Summary 手动触发超时试卷兜底结算
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/reconcile [post]
func (c *ExamController) Reconcile(ctx *gin.Context) {
	c.Service.ReconcileExpired(ctx.Request.Context())
	util.Success(ctx, nil)
}

// renderError 领域错误到 HTTP 状态码的统一映射
func (c *ExamController) renderError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrTestNotFound),
		errors.Is(err, util.ErrTestNotPublished),
		errors.Is(err, util.ErrAttemptNotFound),
		errors.Is(err, util.ErrNoQuestions):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrAttemptCompleted),
		errors.Is(err, util.ErrAttemptFrozen),
		errors.Is(err, util.ErrSubmitInProgress),
		errors.Is(err, util.ErrStartLocked),
		errors.Is(err, util.ErrSessionNotActive):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

func pathUint(ctx *gin.Context, name string) (uint, bool) {
	v, err := strconv.Atoi(ctx.Param(name))
	if err != nil || v <= 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}
