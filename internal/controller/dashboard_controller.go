package controller

import (
	"errors"

	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	DashboardService *service.DashboardService
}

func NewDashboardController(dashboardService *service.DashboardService) *DashboardController {
	return &DashboardController{DashboardService: dashboardService}
}

// Dashboard godoc
// @Summary 角色首页
// @Description 按当前用户角色返回对应的聚合视图
// @Tags 首页
// @Produce  json
// @Success 200 {object} util.Response
// @Security BearerAuth
// @Router /api/dashboard [get]
func (c *DashboardController) Dashboard(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)

	var (
		data interface{}
		err  error
	)
	switch user.Role {
	case model.Admin:
		data, err = c.DashboardService.AdminDashboard(ctx.Request.Context(), user)
	case model.Teacher:
		data, err = c.DashboardService.TeacherDashboard(ctx.Request.Context(), user.UserID)
	default:
		data, err = c.DashboardService.StudentDashboard(ctx.Request.Context(), user.UserID)
	}
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, data)
}

// Notifications godoc
// @Summary 通知列表
// @Description 进行中的限时作答提醒
// @Tags 首页
// @Produce  json
// @Success 200 {object} util.Response{data=[]service.Notification}
// @Security BearerAuth
// @Router /api/notifications [get]
func (c *DashboardController) Notifications(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	notifications, err := c.DashboardService.Notifications(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, notifications)
}
