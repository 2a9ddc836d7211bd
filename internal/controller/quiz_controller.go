package controller

import (
	"errors"

	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
	EnrollRepo  *repository.EnrollmentRepository
}

func NewQuizController(quizService *service.QuizService, enrollRepo *repository.EnrollmentRepository) *QuizController {
	return &QuizController{QuizService: quizService, EnrollRepo: enrollRepo}
}

func quizError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound), errors.Is(err, util.ErrCourseNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied), errors.Is(err, util.ErrNotEnrolled):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrQuizExists):
		util.Conflict(ctx, "该主题已有测验")
	case errors.Is(err, util.ErrQuizHasAttempts):
		util.Conflict(ctx, "已有作答记录，不可删除")
	case errors.Is(err, util.ErrInvalidChoiceSelection):
		util.BadRequest(ctx, "题目选项配置不合法")
	default:
		util.LogInternalError(ctx, err)
	}
}

// Create godoc
// @Summary 创建测验
// @Description 一个主题至多一份测验，可随卷带题目与选项
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Param   body body service.CreateQuizRequest true "测验内容"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Failure 403 {object} util.Response "无权限"
// @Failure 409 {object} util.Response "该主题已有测验"
// @Security BearerAuth
// @Router /api/quizzes [post]
func (c *QuizController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	var req service.CreateQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	quiz, err := c.QuizService.CreateQuiz(user, &req)
	if err != nil {
		quizError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// Update godoc
// @Summary 更新测验元信息
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Param   id path int true "测验 ID"
// @Param   body body service.UpdateQuizRequest true "更新内容"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Security BearerAuth
// @Router /api/quizzes/{id} [put]
func (c *QuizController) Update(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.UpdateQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	quiz, err := c.QuizService.UpdateQuiz(user, quizID, &req)
	if err != nil {
		quizError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// Delete godoc
// @Summary 删除测验
// @Description 已有作答记录的测验不可删除
// @Tags 测验管理
// @Produce  json
// @Param   id path int true "测验 ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "已有作答记录"
// @Security BearerAuth
// @Router /api/quizzes/{id} [delete]
func (c *QuizController) Delete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.QuizService.DeleteQuiz(user, quizID); err != nil {
		quizError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// GetForManagement godoc
// @Summary 教师视图获取测验
// @Description 含题目、选项与答案标记
// @Tags 测验管理
// @Produce  json
// @Param   id path int true "测验 ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Security BearerAuth
// @Router /api/quizzes/{id}/manage [get]
func (c *QuizController) GetForManagement(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	quiz, err := c.QuizService.GetQuizForManagement(user, quizID)
	if err != nil {
		quizError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// GetForStudent godoc
// @Summary 学生视图获取测验
// @Description 只含元数据与可用性，不含题目内容
// @Tags 测验
// @Produce  json
// @Param   id path int true "测验 ID"
// @Success 200 {object} util.Response{data=service.QuizAvailability}
// @Security BearerAuth
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetForStudent(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	availability, err := c.QuizService.GetQuizForStudent(user.UserID, quizID, c.EnrollRepo)
	if err != nil {
		quizError(ctx, err)
		return
	}
	util.Success(ctx, availability)
}

type ReplaceQuestionsRequest struct {
	Questions []service.QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// ReplaceQuestions godoc
// @Summary 整卷替换题目
// @Description 事务内删除原题目与选项并写入新题集，已有作答记录时拒绝
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Param   id path int true "测验 ID"
// @Param   body body ReplaceQuestionsRequest true "新题集"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Failure 409 {object} util.Response "已有作答记录"
// @Security BearerAuth
// @Router /api/quizzes/{id}/questions [put]
func (c *QuizController) ReplaceQuestions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req ReplaceQuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	quiz, err := c.QuizService.ReplaceQuestions(user, quizID, req.Questions)
	if err != nil {
		quizError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// AddQuestion godoc
// @Summary 追加题目
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Param   id path int true "测验 ID"
// @Param   body body service.AddQuestionRequest true "题目内容"
// @Success 201 {object} util.Response{data=model.Question}
// @Security BearerAuth
// @Router /api/quizzes/{id}/questions [post]
func (c *QuizController) AddQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.AddQuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	question, err := c.QuizService.AddQuestion(user, quizID, &req)
	if err != nil {
		quizError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 测验管理
// @Produce  json
// @Param   id path int true "测验 ID"
// @Param   questionId path int true "题目 ID"
// @Success 200 {object} util.Response
// @Security BearerAuth
// @Router /api/quizzes/{id}/questions/{questionId} [delete]
func (c *QuizController) DeleteQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	questionID, ok := pathID(ctx, "questionId")
	if !ok {
		return
	}
	if err := c.QuizService.DeleteQuestion(user, quizID, questionID); err != nil {
		quizError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type ReorderRequest struct {
	Order int `json:"order" binding:"min=0"`
}

// ReorderQuestion godoc
// @Summary 调整题目顺序
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Param   id path int true "测验 ID"
// @Param   questionId path int true "题目 ID"
// @Param   body body ReorderRequest true "新顺序值"
// @Success 200 {object} util.Response
// @Security BearerAuth
// @Router /api/quizzes/{id}/questions/{questionId}/order [put]
func (c *QuizController) ReorderQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	questionID, ok := pathID(ctx, "questionId")
	if !ok {
		return
	}
	var req ReorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.QuizService.ReorderQuestion(user, quizID, questionID, req.Order); err != nil {
		quizError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Statistics godoc
// @Summary 测验成绩统计
// @Description 平均分、通过率、作答数
// @Tags 测验管理
// @Produce  json
// @Param   id path int true "测验 ID"
// @Success 200 {object} util.Response{data=service.QuizStatistics}
// @Security BearerAuth
// @Router /api/quizzes/{id}/statistics [get]
func (c *QuizController) Statistics(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	stats, err := c.QuizService.GetStatistics(ctx.Request.Context(), user, quizID)
	if err != nil {
		quizError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}
