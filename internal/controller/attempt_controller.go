package controller

import (
	"errors"
	"strconv"

	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

func attemptError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound), errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAttemptNotOwned), errors.Is(err, util.ErrNotEnrolled):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrQuizNotAvailable):
		util.Error(ctx, 403, "测验尚未开放，请先完成要求的课时")
	case errors.Is(err, util.ErrInvalidChoiceSelection):
		util.BadRequest(ctx, "选项不合法")
	case errors.Is(err, util.ErrConcurrentSubmit):
		util.Conflict(ctx, "当前题目已被提交")
	case errors.Is(err, util.ErrAttemptNotCompleted):
		util.Conflict(ctx, "作答尚未完成")
	case errors.Is(err, util.ErrCatalogInconsistency):
		util.LogInternalError(ctx, err)
	default:
		util.LogInternalError(ctx, err)
	}
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// Start godoc
// @Summary 开始测验作答
// @Description 已有进行中的作答时幂等返回原记录
// @Tags 作答
// @Produce  json
// @Param   id path int true "测验 ID"
// @Success 201 {object} util.Response{data=service.StartAttemptResult}
// @Failure 403 {object} util.Response "未选课或测验未开放"
// @Failure 404 {object} util.Response "测验不存在"
// @Security BearerAuth
// @Router /api/quizzes/{id}/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.AttemptService.StartAttempt(user.UserID, quizID)
	if err != nil {
		attemptError(ctx, err)
		return
	}
	if result.Resumed {
		util.Success(ctx, result)
		return
	}
	util.Created(ctx, result)
}

// CurrentQuestion godoc
// @Summary 获取当前题目
// @Description 题目不带答案标记；作答已完成时返回终局标记
// @Tags 作答
// @Produce  json
// @Param   id path int true "作答 ID"
// @Success 200 {object} util.Response{data=service.CurrentQuestionView}
// @Failure 403 {object} util.Response "非本人作答"
// @Failure 404 {object} util.Response "作答不存在"
// @Security BearerAuth
// @Router /api/attempts/{id}/question [get]
func (c *AttemptController) CurrentQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.AttemptService.GetCurrentQuestion(user.UserID, attemptID)
	if err != nil {
		attemptError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

type AnswerRequest struct {
	SelectedChoiceIDs []uint `json:"selectedChoiceIds" binding:"required,min=1"`
}

// Answer godoc
// @Summary 提交当前题目的答案
// @Description 判分并推进到下一题；最后一题或已过期时返回终局结果
// @Tags 作答
// @Accept  json
// @Produce  json
// @Param   id path int true "作答 ID"
// @Param   body body AnswerRequest true "选中的选项"
// @Success 200 {object} util.Response{data=service.AnswerResult}
// @Failure 400 {object} util.Response "选项不合法"
// @Failure 409 {object} util.Response "当前题目已被提交"
// @Security BearerAuth
// @Router /api/attempts/{id}/answer [post]
func (c *AttemptController) Answer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.AnswerCurrentQuestion(user.UserID, attemptID, req.SelectedChoiceIDs)
	if err != nil {
		attemptError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// TimeRemaining godoc
// @Summary 查询剩余时间
// @Description 只读轮询接口，到点不会触发交卷
// @Tags 作答
// @Produce  json
// @Param   id path int true "作答 ID"
// @Success 200 {object} util.Response{data=service.TimeRemainingResult}
// @Security BearerAuth
// @Router /api/attempts/{id}/time [get]
func (c *AttemptController) TimeRemaining(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.AttemptService.CheckTimeRemaining(user.UserID, attemptID)
	if err != nil {
		attemptError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Submit godoc
// @Summary 交卷
// @Description 幂等；未答题目不计分
// @Tags 作答
// @Produce  json
// @Param   id path int true "作答 ID"
// @Success 200 {object} util.Response{data=service.FinalResult}
// @Security BearerAuth
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.AttemptService.Submit(user.UserID, attemptID)
	if err != nil {
		attemptError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Results godoc
// @Summary 查看成绩
// @Description 仅在作答完成后可见
// @Tags 作答
// @Produce  json
// @Param   id path int true "作答 ID"
// @Success 200 {object} util.Response{data=service.ResultsView}
// @Failure 409 {object} util.Response "作答尚未完成"
// @Security BearerAuth
// @Router /api/attempts/{id}/results [get]
func (c *AttemptController) Results(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.AttemptService.GetResults(user.UserID, attemptID)
	if err != nil {
		attemptError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// Review godoc
// @Summary 逐题回顾
// @Description 完成后可见，含正确选项
// @Tags 作答
// @Produce  json
// @Param   id path int true "作答 ID"
// @Success 200 {object} util.Response{data=[]service.ReviewItem}
// @Failure 409 {object} util.Response "作答尚未完成"
// @Security BearerAuth
// @Router /api/attempts/{id}/review [get]
func (c *AttemptController) Review(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	attemptID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	items, err := c.AttemptService.GetReview(user.UserID, attemptID)
	if err != nil {
		attemptError(ctx, err)
		return
	}
	util.Success(ctx, items)
}
