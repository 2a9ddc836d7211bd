package app

import (
	"lms_backend/docs"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
		public.GET("/auth/security-question", c.auth.GetSecurityQuestion)
		public.POST("/auth/verify-answer", c.auth.VerifySecurityAnswer)
		public.POST("/auth/reset-password", c.auth.ResetPassword)
	}

	// 需要授权的路由
	auth := router.Group("/api")
	auth.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		// 个人
		auth.GET("/users/me", c.user.Profile)
		auth.PUT("/users/me", c.user.UpdateProfile)
		auth.PUT("/users/me/password", c.user.ChangePassword)
		auth.POST("/users/me/avatar", c.user.UploadAvatar)

		// 首页与通知
		auth.GET("/dashboard", c.dashboard.Dashboard)
		auth.GET("/notifications", c.dashboard.Notifications)

		// 课程目录（全部登录用户可读）
		auth.GET("/courses", c.course.List)
		auth.GET("/courses/enrolled", c.course.MyEnrollments)
		auth.GET("/courses/:id", c.course.Get)

		// 学生学习流
		student := auth.Group("")
		student.Use(middleware.RoleMiddleware(model.Student))
		{
			student.POST("/courses/:id/enroll", c.course.Enroll)
			student.DELETE("/courses/:id/enroll", c.course.Unenroll)
			student.GET("/courses/:id/progress", c.course.Progress)
			student.POST("/lessons/:id/complete", c.course.CompleteLesson)

			student.GET("/quizzes/:id", c.quiz.GetForStudent)
			student.POST("/quizzes/:id/attempts", c.attempt.Start)
			student.GET("/attempts/:id/question", c.attempt.CurrentQuestion)
			student.POST("/attempts/:id/answer", c.attempt.Answer)
			student.GET("/attempts/:id/time", c.attempt.TimeRemaining)
			student.POST("/attempts/:id/submit", c.attempt.Submit)
			student.GET("/attempts/:id/results", c.attempt.Results)
			student.GET("/attempts/:id/review", c.attempt.Review)
		}

		// 教学管理（教师/管理员）
		teaching := auth.Group("")
		teaching.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teaching.POST("/courses", c.course.Create)
			teaching.PUT("/courses/:id", c.course.Update)
			teaching.DELETE("/courses/:id", c.course.Delete)
			teaching.POST("/courses/:id/topics", c.course.CreateTopic)
			teaching.PUT("/topics/:id", c.course.UpdateTopic)
			teaching.DELETE("/topics/:id", c.course.DeleteTopic)
			teaching.POST("/topics/:id/lessons", c.course.CreateLesson)
			teaching.DELETE("/lessons/:id", c.course.DeleteLesson)

			teaching.POST("/quizzes", c.quiz.Create)
			teaching.PUT("/quizzes/:id", c.quiz.Update)
			teaching.DELETE("/quizzes/:id", c.quiz.Delete)
			teaching.GET("/quizzes/:id/manage", c.quiz.GetForManagement)
			teaching.POST("/quizzes/:id/questions", c.quiz.AddQuestion)
			teaching.PUT("/quizzes/:id/questions", c.quiz.ReplaceQuestions)
			teaching.DELETE("/quizzes/:id/questions/:questionId", c.quiz.DeleteQuestion)
			teaching.PUT("/quizzes/:id/questions/:questionId/order", c.quiz.ReorderQuestion)
			teaching.GET("/quizzes/:id/statistics", c.quiz.Statistics)
		}

		// 管理端（仅管理员）
		admin := auth.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.POST("/users", c.user.CreateUser)
			admin.GET("/users", c.user.ListUsers)
			admin.PUT("/users/:id/suspend", c.user.SetSuspended)
			admin.DELETE("/users/:id", c.user.RemoveUser)
			admin.GET("/audit-logs", c.user.AuditLogs)
			admin.PUT("/courses/:id/teacher", c.course.AssignTeacher)
		}
	}
}
