package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const dashboardCacheTTL = time.Minute

// DashboardService 角色首页聚合，redis 短缓存
type DashboardService struct {
	UserRepo    *repository.UserRepository
	CourseRepo  *repository.CourseRepository
	TopicRepo   *repository.TopicRepository
	EnrollRepo  *repository.EnrollmentRepository
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
	Redis       *redis.Client
}

func NewDashboardService(
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	topicRepo *repository.TopicRepository,
	enrollRepo *repository.EnrollmentRepository,
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
) *DashboardService {
	return &DashboardService{
		UserRepo:    userRepo,
		CourseRepo:  courseRepo,
		TopicRepo:   topicRepo,
		EnrollRepo:  enrollRepo,
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
		Redis:       rdb,
	}
}

type RecentAttempt struct {
	AttemptID uint       `json:"attemptId"`
	QuizID    uint       `json:"quizId"`
	QuizTitle string     `json:"quizTitle"`
	StartedAt time.Time  `json:"startedAt"`
	Completed bool       `json:"completed"`
	Score     *float64   `json:"score,omitempty"`
	Passed    bool       `json:"passed"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type StudentDashboard struct {
	EnrolledCourses int             `json:"enrolledCourses"`
	PassedQuizzes   int64           `json:"passedQuizzes"`
	RecentAttempts  []RecentAttempt `json:"recentAttempts"`
	OpenAttempts    []RecentAttempt `json:"openAttempts"`
}

type TeacherCourseSummary struct {
	CourseID      uint   `json:"courseId"`
	Title         string `json:"title"`
	EnrolledCount int64  `json:"enrolledCount"`
}

type TeacherDashboard struct {
	Courses []TeacherCourseSummary `json:"courses"`
}

type AdminDashboard struct {
	TotalStudents int64 `json:"totalStudents"`
	TotalTeachers int64 `json:"totalTeachers"`
	TotalCourses  int64 `json:"totalCourses"`
}

func (s *DashboardService) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if s.Redis == nil {
		return false
	}
	data, err := s.Redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(data), out) == nil
}

func (s *DashboardService) cacheSet(ctx context.Context, key string, v interface{}) {
	if s.Redis == nil {
		return
	}
	if b, err := json.Marshal(v); err == nil {
		s.Redis.Set(ctx, key, b, dashboardCacheTTL)
	}
}

func (s *DashboardService) StudentDashboard(ctx context.Context, studentID uint) (*StudentDashboard, error) {
	key := fmt.Sprintf("dashboard:student:%d", studentID)
	var cached StudentDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	enrollments, err := s.EnrollRepo.ListByStudent(studentID)
	if err != nil {
		return nil, err
	}

	// 已选课程下全部测验的通过数
	var quizIDs []uint
	for _, e := range enrollments {
		topics, err := s.TopicRepo.ListByCourse(e.CourseID)
		if err != nil {
			return nil, err
		}
		for _, t := range topics {
			quiz, err := s.QuizRepo.FindByTopic(t.ID)
			if err == gorm.ErrRecordNotFound {
				continue
			}
			if err != nil {
				return nil, err
			}
			quizIDs = append(quizIDs, quiz.ID)
		}
	}
	passed, err := s.AttemptRepo.CountPassedDistinctQuizzes(studentID, quizIDs)
	if err != nil {
		return nil, err
	}

	attempts, err := s.AttemptRepo.ListRecentByStudent(studentID, 10)
	if err != nil {
		return nil, err
	}

	dashboard := &StudentDashboard{
		EnrolledCourses: len(enrollments),
		PassedQuizzes:   passed,
		RecentAttempts:  []RecentAttempt{},
		OpenAttempts:    []RecentAttempt{},
	}
	for i := range attempts {
		a := &attempts[i]
		item := RecentAttempt{
			AttemptID: a.ID,
			QuizID:    a.QuizID,
			StartedAt: a.StartedAt,
			Completed: a.Completed(),
			Score:     a.Score,
			Passed:    a.Passed,
			ExpiresAt: a.ExpiresAt,
		}
		if quiz, err := s.QuizRepo.FindByID(a.QuizID); err == nil {
			item.QuizTitle = quiz.Title
		}
		dashboard.RecentAttempts = append(dashboard.RecentAttempts, item)
		if !a.Completed() && (a.ExpiresAt == nil || time.Now().Before(*a.ExpiresAt)) {
			dashboard.OpenAttempts = append(dashboard.OpenAttempts, item)
		}
	}

	s.cacheSet(ctx, key, dashboard)
	return dashboard, nil
}

func (s *DashboardService) TeacherDashboard(ctx context.Context, teacherID uint) (*TeacherDashboard, error) {
	key := fmt.Sprintf("dashboard:teacher:%d", teacherID)
	var cached TeacherDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	courses, err := s.CourseRepo.ListByTeacher(teacherID)
	if err != nil {
		return nil, err
	}
	dashboard := &TeacherDashboard{Courses: []TeacherCourseSummary{}}
	for _, course := range courses {
		count, err := s.EnrollRepo.CountByCourse(course.ID)
		if err != nil {
			return nil, err
		}
		dashboard.Courses = append(dashboard.Courses, TeacherCourseSummary{
			CourseID:      course.ID,
			Title:         course.Title,
			EnrolledCount: count,
		})
	}

	s.cacheSet(ctx, key, dashboard)
	return dashboard, nil
}

func (s *DashboardService) AdminDashboard(ctx context.Context, user *util.Claims) (*AdminDashboard, error) {
	if err := CanManageUsers(user); err != nil {
		return nil, err
	}

	key := "dashboard:admin"
	var cached AdminDashboard
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	students, err := s.UserRepo.CountByRole(model.Student)
	if err != nil {
		return nil, err
	}
	teachers, err := s.UserRepo.CountByRole(model.Teacher)
	if err != nil {
		return nil, err
	}
	courses, err := s.CourseRepo.Count()
	if err != nil {
		return nil, err
	}

	dashboard := &AdminDashboard{
		TotalStudents: students,
		TotalTeachers: teachers,
		TotalCourses:  courses,
	}
	s.cacheSet(ctx, key, dashboard)
	return dashboard, nil
}

// Notifications 进行中的限时作答提醒，即将到点的排前面
type Notification struct {
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	AttemptID uint       `json:"attemptId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (s *DashboardService) Notifications(ctx context.Context, studentID uint) ([]Notification, error) {
	attempts, err := s.AttemptRepo.ListRecentByStudent(studentID, 20)
	if err != nil {
		return nil, err
	}
	notifications := []Notification{}
	now := time.Now()
	for i := range attempts {
		a := &attempts[i]
		if a.Completed() || a.ExpiresAt == nil || now.After(*a.ExpiresAt) {
			continue
		}
		quizTitle := ""
		if quiz, err := s.QuizRepo.FindByID(a.QuizID); err == nil {
			quizTitle = quiz.Title
		}
		notifications = append(notifications, Notification{
			Type:      "attempt_in_progress",
			Message:   fmt.Sprintf("You have an unfinished quiz attempt: %s", quizTitle),
			AttemptID: a.ID,
			ExpiresAt: a.ExpiresAt,
		})
	}
	return notifications, nil
}
