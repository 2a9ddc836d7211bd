package controller

import (
	"errors"
	"strconv"

	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

func courseError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCourseNotFound), errors.Is(err, util.ErrUserNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrNotEnrolled):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrAlreadyEnrolled):
		util.Conflict(ctx, "已选修该课程")
	case errors.Is(err, util.ErrTopicOrderTaken):
		util.Conflict(ctx, "该顺序值已被占用")
	default:
		util.LogInternalError(ctx, err)
	}
}

func pagination(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// List godoc
// @Summary 课程列表
// @Tags 课程
// @Produce  json
// @Param   page query int false "页码"
// @Param   limit query int false "每页条数"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Security BearerAuth
// @Router /api/courses [get]
func (c *CourseController) List(ctx *gin.Context) {
	page, limit := pagination(ctx)
	courses, total, err := c.CourseService.ListCourses(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: courses, Total: total, Page: page, Limit: limit})
}

// Get godoc
// @Summary 课程详情
// @Description 含主题与课时（按顺序）
// @Tags 课程
// @Produce  json
// @Param   id path int true "课程 ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Security BearerAuth
// @Router /api/courses/{id} [get]
func (c *CourseController) Get(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	course, err := c.CourseService.GetCourse(courseID)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// Create godoc
// @Summary 创建课程
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Param   body body service.CreateCourseRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course}
// @Security BearerAuth
// @Router /api/courses [post]
func (c *CourseController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	var req service.CreateCourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CourseService.CreateCourse(user, &req)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// Update godoc
// @Summary 更新课程
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Param   id path int true "课程 ID"
// @Param   body body service.UpdateCourseRequest true "更新内容"
// @Success 200 {object} util.Response{data=model.Course}
// @Security BearerAuth
// @Router /api/courses/{id} [put]
func (c *CourseController) Update(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.UpdateCourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CourseService.UpdateCourse(user, courseID, &req)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// Delete godoc
// @Summary 删除课程
// @Tags 课程管理
// @Produce  json
// @Param   id path int true "课程 ID"
// @Success 200 {object} util.Response
// @Security BearerAuth
// @Router /api/courses/{id} [delete]
func (c *CourseController) Delete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.DeleteCourse(user, courseID); err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type AssignTeacherRequest struct {
	TeacherID *uint `json:"teacherId"`
}

// AssignTeacher godoc
// @Summary 指派课程教师
// @Description 仅管理员；teacherId 为空时解绑
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Param   id path int true "课程 ID"
// @Param   body body AssignTeacherRequest true "教师 ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Security BearerAuth
// @Router /api/courses/{id}/teacher [put]
func (c *CourseController) AssignTeacher(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req AssignTeacherRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CourseService.AssignTeacher(user, courseID, req.TeacherID)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// CreateTopic godoc
// @Summary 创建主题
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Param   id path int true "课程 ID"
// @Param   body body service.CreateTopicRequest true "主题信息"
// @Success 201 {object} util.Response{data=model.Topic}
// @Failure 409 {object} util.Response "顺序值冲突"
// @Security BearerAuth
// @Router /api/courses/{id}/topics [post]
func (c *CourseController) CreateTopic(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.CreateTopicRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	topic, err := c.CourseService.CreateTopic(user, courseID, &req)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Created(ctx, topic)
}

// UpdateTopic godoc
// @Summary 更新主题
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Param   id path int true "主题 ID"
// @Param   body body service.UpdateTopicRequest true "更新内容"
// @Success 200 {object} util.Response{data=model.Topic}
// @Security BearerAuth
// @Router /api/topics/{id} [put]
func (c *CourseController) UpdateTopic(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	topicID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.UpdateTopicRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	topic, err := c.CourseService.UpdateTopic(user, topicID, &req)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, topic)
}

// DeleteTopic godoc
// @Summary 删除主题
// @Tags 课程管理
// @Produce  json
// @Param   id path int true "主题 ID"
// @Success 200 {object} util.Response
// @Security BearerAuth
// @Router /api/topics/{id} [delete]
func (c *CourseController) DeleteTopic(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	topicID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.DeleteTopic(user, topicID); err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// CreateLesson godoc
// @Summary 创建课时
// @Tags 课程管理
// @Accept  json
// @Produce  json
// @Param   id path int true "主题 ID"
// @Param   body body service.CreateLessonRequest true "课时信息"
// @Success 201 {object} util.Response{data=model.Lesson}
// @Security BearerAuth
// @Router /api/topics/{id}/lessons [post]
func (c *CourseController) CreateLesson(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	topicID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.CreateLessonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	lesson, err := c.CourseService.CreateLesson(user, topicID, &req)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Created(ctx, lesson)
}

// DeleteLesson godoc
// @Summary 删除课时
// @Tags 课程管理
// @Produce  json
// @Param   id path int true "课时 ID"
// @Success 200 {object} util.Response
// @Security BearerAuth
// @Router /api/lessons/{id} [delete]
func (c *CourseController) DeleteLesson(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.DeleteLesson(user, lessonID); err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Enroll godoc
// @Summary 选课
// @Tags 课程
// @Produce  json
// @Param   id path int true "课程 ID"
// @Success 201 {object} util.Response
// @Failure 409 {object} util.Response "已选修该课程"
// @Security BearerAuth
// @Router /api/courses/{id}/enroll [post]
func (c *CourseController) Enroll(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.Enroll(user.UserID, courseID); err != nil {
		courseError(ctx, err)
		return
	}
	util.Created(ctx, nil)
}

// Unenroll godoc
// @Summary 退课
// @Tags 课程
// @Produce  json
// @Param   id path int true "课程 ID"
// @Success 200 {object} util.Response
// @Security BearerAuth
// @Router /api/courses/{id}/enroll [delete]
func (c *CourseController) Unenroll(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.Unenroll(user.UserID, courseID); err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// MyEnrollments godoc
// @Summary 我的课程
// @Tags 课程
// @Produce  json
// @Success 200 {object} util.Response{data=[]model.Course}
// @Security BearerAuth
// @Router /api/courses/enrolled [get]
func (c *CourseController) MyEnrollments(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	courses, err := c.CourseService.ListEnrolled(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// Progress godoc
// @Summary 课程学习进度
// @Description 主题进度、测验可用性与顺序解锁状态
// @Tags 课程
// @Produce  json
// @Param   id path int true "课程 ID"
// @Success 200 {object} util.Response{data=[]service.TopicProgress}
// @Security BearerAuth
// @Router /api/courses/{id}/progress [get]
func (c *CourseController) Progress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	progress, err := c.CourseService.GetProgress(user.UserID, courseID)
	if err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// CompleteLesson godoc
// @Summary 标记课时完成
// @Description 幂等
// @Tags 课程
// @Produce  json
// @Param   id path int true "课时 ID"
// @Success 200 {object} util.Response
// @Security BearerAuth
// @Router /api/lessons/{id}/complete [post]
func (c *CourseController) CompleteLesson(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.MarkLessonCompleted(user.UserID, lessonID); err != nil {
		courseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
