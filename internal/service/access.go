package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
)

// 资源级权限判定。角色粗筛在中间件做，这里做归属细查：
// 管理员全通过；教师只能动自己名下课程的资源；学生只读公开目录。
//
// 统一走 CanManageCourse 而不是各 service 散写 if，避免规则漂移。

// CanManageCourse 课程及其下属资源（主题/课时/测验）的写权限
func CanManageCourse(user *util.Claims, course *model.Course) error {
	if user.Role == model.Admin {
		return nil
	}
	if user.Role == model.Teacher &&
		course.TeacherID != nil && *course.TeacherID == user.UserID {
		return nil
	}
	return util.ErrPermissionDenied
}

// CanViewQuizStatistics 成绩统计：管理员、课程归属教师
func CanViewQuizStatistics(user *util.Claims, course *model.Course) error {
	return CanManageCourse(user, course)
}

// CanManageUsers 账号管理仅管理员
func CanManageUsers(user *util.Claims) error {
	if user.Role == model.Admin {
		return nil
	}
	return util.ErrPermissionDenied
}
