package controller

import (
	"errors"

	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{UserService: userService}
}

func userError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrUserNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrEmailRegistered):
		util.Conflict(ctx, "该邮箱已被注册")
	default:
		util.LogInternalError(ctx, err)
	}
}

// Profile godoc
// @Summary 个人资料
// @Tags 用户
// @Produce  json
// @Success 200 {object} util.Response{data=model.User}
// @Security BearerAuth
// @Router /api/users/me [get]
func (c *UserController) Profile(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	profile, err := c.UserService.GetProfile(user.UserID)
	if err != nil {
		userError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// UpdateProfile godoc
// @Summary 更新个人资料
// @Tags 用户
// @Accept  json
// @Produce  json
// @Param   body body service.UpdateProfileRequest true "更新内容"
// @Success 200 {object} util.Response{data=model.User}
// @Security BearerAuth
// @Router /api/users/me [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	var req service.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	profile, err := c.UserService.UpdateProfile(user.UserID, &req)
	if err != nil {
		userError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// ChangePassword godoc
// @Summary 修改密码
// @Tags 用户
// @Accept  json
// @Produce  json
// @Param   body body service.ChangePasswordRequest true "旧密码与新密码"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response "旧密码不正确"
// @Security BearerAuth
// @Router /api/users/me/password [put]
func (c *UserController) ChangePassword(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	var req service.ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.UserService.ChangePassword(user.UserID, &req); err != nil {
		userError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadAvatar godoc
// @Summary 上传头像
// @Tags 用户
// @Accept  multipart/form-data
// @Produce  json
// @Param   avatar formData file true "头像文件"
// @Success 200 {object} util.Response{data=object}
// @Security BearerAuth
// @Router /api/users/me/avatar [post]
func (c *UserController) UploadAvatar(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	file, err := ctx.FormFile("avatar")
	if err != nil {
		util.BadRequest(ctx, "avatar file is required")
		return
	}
	url, err := c.UserService.UploadAvatar(ctx.Request.Context(), user.UserID, file)
	if err != nil {
		userError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"avatar": url})
}

// CreateUser godoc
// @Summary 管理员创建账号
// @Description 可指定任意角色
// @Tags 管理
// @Accept  json
// @Produce  json
// @Param   body body service.CreateUserRequest true "账号信息"
// @Success 201 {object} util.Response{data=model.User}
// @Security BearerAuth
// @Router /api/admin/users [post]
func (c *UserController) CreateUser(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	var req service.CreateUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	created, err := c.UserService.CreateUser(user, &req)
	if err != nil {
		userError(ctx, err)
		return
	}
	util.Created(ctx, created)
}

// ListUsers godoc
// @Summary 账号列表
// @Tags 管理
// @Produce  json
// @Param   role query string false "按角色过滤"
// @Param   page query int false "页码"
// @Param   limit query int false "每页条数"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Security BearerAuth
// @Router /api/admin/users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	page, limit := pagination(ctx)
	users, total, err := c.UserService.ListUsers(user, ctx.Query("role"), page, limit)
	if err != nil {
		userError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: users, Total: total, Page: page, Limit: limit})
}

type SuspendRequest struct {
	Suspended bool `json:"suspended"`
}

// SetSuspended godoc
// @Summary 停用/恢复账号
// @Tags 管理
// @Accept  json
// @Produce  json
// @Param   id path int true "用户 ID"
// @Param   body body SuspendRequest true "停用标志"
// @Success 200 {object} util.Response{data=model.User}
// @Security BearerAuth
// @Router /api/admin/users/{id}/suspend [put]
func (c *UserController) SetSuspended(ctx *gin.Context) {
	admin := util.GetUserFromContext(ctx)
	userID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req SuspendRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	updated, err := c.UserService.SetSuspended(admin, userID, req.Suspended)
	if err != nil {
		userError(ctx, err)
		return
	}
	util.Success(ctx, updated)
}

// RemoveUser godoc
// @Summary 删除账号
// @Description 软删除，历史成绩保留
// @Tags 管理
// @Produce  json
// @Param   id path int true "用户 ID"
// @Success 200 {object} util.Response
// @Security BearerAuth
// @Router /api/admin/users/{id} [delete]
func (c *UserController) RemoveUser(ctx *gin.Context) {
	admin := util.GetUserFromContext(ctx)
	userID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.UserService.RemoveUser(admin, userID); err != nil {
		userError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AuditLogs godoc
// @Summary 审计日志
// @Tags 管理
// @Produce  json
// @Param   page query int false "页码"
// @Param   limit query int false "每页条数"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Security BearerAuth
// @Router /api/admin/audit-logs [get]
func (c *UserController) AuditLogs(ctx *gin.Context) {
	admin := util.GetUserFromContext(ctx)
	page, limit := pagination(ctx)
	logs, total, err := c.UserService.ListAuditLogs(admin, page, limit)
	if err != nil {
		userError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: logs, Total: total, Page: page, Limit: limit})
}
