package controller

import (
	"errors"

	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// Register godoc
// @Summary 注册新用户
// @Description 公开注册，始终创建学生账号
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.RegisterRequest true "注册信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req service.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.AuthService.Register(&req)
	if err != nil {
		if errors.Is(err, util.ErrEmailRegistered) {
			util.Conflict(ctx, "该邮箱已被注册")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Created(ctx, gin.H{"id": user.ID})
}

// Login godoc
// @Summary 用户登录
// @Description 邮箱密码登录，返回 JWT
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=service.LoginResponse}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "邮箱或密码错误"
// @Failure 403 {object} util.Response "账号已停用"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req service.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.AuthService.Login(&req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrUserNotFound):
			util.Error(ctx, 401, "邮箱或密码错误")
		case errors.Is(err, util.ErrUserSuspended):
			util.Error(ctx, 403, "账号已停用")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, resp)
}

// GetSecurityQuestion godoc
// @Summary 获取密保问题
// @Description 找回密码第一步
// @Tags 认证
// @Produce  json
// @Param   email query string true "注册邮箱"
// @Success 200 {object} util.Response{data=service.SecurityQuestionResponse}
// @Failure 404 {object} util.Response "未设置密保问题"
// @Router /api/auth/security-question [get]
func (c *AuthController) GetSecurityQuestion(ctx *gin.Context) {
	email := ctx.Query("email")
	if email == "" {
		util.BadRequest(ctx, "email is required")
		return
	}
	resp, err := c.AuthService.GetSecurityQuestion(email)
	if err != nil {
		if errors.Is(err, util.ErrNoSecurityQuestion) {
			util.Error(ctx, 404, "未设置密保问题")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, resp)
}

// VerifySecurityAnswer godoc
// @Summary 校验密保答案
// @Description 答案正确返回一次性重置令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.VerifyAnswerRequest true "邮箱与答案"
// @Success 200 {object} util.Response{data=object}
// @Failure 403 {object} util.Response "答案不正确"
// @Router /api/auth/verify-answer [post]
func (c *AuthController) VerifySecurityAnswer(ctx *gin.Context) {
	var req service.VerifyAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	token, err := c.AuthService.VerifySecurityAnswer(&req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrWrongSecurityAnswer):
			util.Error(ctx, 403, "密保答案不正确")
		case errors.Is(err, util.ErrNoSecurityQuestion):
			util.Error(ctx, 404, "未设置密保问题")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"resetToken": token})
}

// ResetPassword godoc
// @Summary 重置密码
// @Description 消费一次性令牌设置新密码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.ResetPasswordRequest true "令牌与新密码"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "令牌无效或已过期"
// @Router /api/auth/reset-password [post]
func (c *AuthController) ResetPassword(ctx *gin.Context) {
	var req service.ResetPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.AuthService.ResetPassword(&req); err != nil {
		if errors.Is(err, util.ErrInvalidResetToken) {
			util.BadRequest(ctx, "令牌无效或已过期")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}
