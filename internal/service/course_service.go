package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CourseService 课程目录：课程/主题/课时 CRUD、选课、进度与顺序解锁
type CourseService struct {
	CourseRepo  *repository.CourseRepository
	TopicRepo   *repository.TopicRepository
	LessonRepo  *repository.LessonRepository
	EnrollRepo  *repository.EnrollmentRepository
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
	UserRepo    *repository.UserRepository
}

func NewCourseService(
	courseRepo *repository.CourseRepository,
	topicRepo *repository.TopicRepository,
	lessonRepo *repository.LessonRepository,
	enrollRepo *repository.EnrollmentRepository,
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	userRepo *repository.UserRepository,
) *CourseService {
	return &CourseService{
		CourseRepo:  courseRepo,
		TopicRepo:   topicRepo,
		LessonRepo:  lessonRepo,
		EnrollRepo:  enrollRepo,
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
		UserRepo:    userRepo,
	}
}

type CreateCourseRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	TeacherID   *uint  `json:"teacherId"`
}

type UpdateCourseRequest struct {
	Title       string `json:"title" binding:"omitempty,max=255"`
	Description string `json:"description"`
}

type CreateTopicRequest struct {
	Title               string `json:"title" binding:"required,max=255"`
	Description         string `json:"description"`
	Order               int    `json:"order" binding:"min=0"`
	QuizRequiredLessons int    `json:"quizRequiredLessons" binding:"min=0"`
}

type UpdateTopicRequest struct {
	Title               string `json:"title" binding:"omitempty,max=255"`
	Description         string `json:"description"`
	Order               *int   `json:"order" binding:"omitempty,min=0"`
	QuizRequiredLessons *int   `json:"quizRequiredLessons" binding:"omitempty,min=0"`
}

type CreateLessonRequest struct {
	Title          string `json:"title" binding:"required,max=200"`
	Description    string `json:"description"`
	Order          int    `json:"order" binding:"min=0"`
	PDFURL         string `json:"pdfUrl"`
	VideoURL       string `json:"videoUrl"`
	ExternalLinks  string `json:"externalLinks"`
	ContextualHelp string `json:"contextualHelp"`
}

func (s *CourseService) CreateCourse(user *util.Claims, req *CreateCourseRequest) (*model.Course, error) {
	if user.Role != model.Admin && user.Role != model.Teacher {
		return nil, util.ErrPermissionDenied
	}

	course := &model.Course{
		Title:       req.Title,
		Description: req.Description,
	}
	switch {
	case user.Role == model.Teacher:
		// 教师建课自动归属本人，忽略请求里的 teacherId
		id := user.UserID
		course.TeacherID = &id
	case req.TeacherID != nil:
		teacher, err := s.UserRepo.FindByID(*req.TeacherID)
		if err != nil || teacher.Role != model.Teacher {
			return nil, util.ErrUserNotFound
		}
		course.TeacherID = req.TeacherID
	}

	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	logger.Log.Info("course created", zap.Uint("courseId", course.ID), zap.String("title", course.Title))
	return course, nil
}

func (s *CourseService) UpdateCourse(user *util.Claims, courseID uint, req *UpdateCourseRequest) (*model.Course, error) {
	course, err := s.ownedCourse(user, courseID)
	if err != nil {
		return nil, err
	}
	if req.Title != "" {
		course.Title = req.Title
	}
	if req.Description != "" {
		course.Description = req.Description
	}
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) DeleteCourse(user *util.Claims, courseID uint) error {
	course, err := s.ownedCourse(user, courseID)
	if err != nil {
		return err
	}
	return s.CourseRepo.Delete(course.ID)
}

// AssignTeacher 仅管理员；teacherID 为 nil 时解绑
func (s *CourseService) AssignTeacher(user *util.Claims, courseID uint, teacherID *uint) (*model.Course, error) {
	if err := CanManageUsers(user); err != nil {
		return nil, err
	}
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if teacherID != nil {
		teacher, err := s.UserRepo.FindByID(*teacherID)
		if err != nil || teacher.Role != model.Teacher {
			return nil, util.ErrUserNotFound
		}
	}
	course.TeacherID = teacherID
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) ListCourses(page, limit int) ([]model.Course, int64, error) {
	return s.CourseRepo.List(page, limit)
}

func (s *CourseService) GetCourse(courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByIDWithTopics(courseID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

func (s *CourseService) CreateTopic(user *util.Claims, courseID uint, req *CreateTopicRequest) (*model.Topic, error) {
	if _, err := s.ownedCourse(user, courseID); err != nil {
		return nil, err
	}
	taken, err := s.TopicRepo.OrderTaken(courseID, req.Order, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, util.ErrTopicOrderTaken
	}
	topic := &model.Topic{
		CourseID:            courseID,
		Title:               req.Title,
		Description:         req.Description,
		Order:               req.Order,
		QuizRequiredLessons: req.QuizRequiredLessons,
	}
	if err := s.TopicRepo.Create(topic); err != nil {
		return nil, err
	}
	return topic, nil
}

func (s *CourseService) UpdateTopic(user *util.Claims, topicID uint, req *UpdateTopicRequest) (*model.Topic, error) {
	topic, err := s.TopicRepo.FindByID(topicID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if _, err := s.ownedCourse(user, topic.CourseID); err != nil {
		return nil, err
	}

	if req.Order != nil && *req.Order != topic.Order {
		taken, err := s.TopicRepo.OrderTaken(topic.CourseID, *req.Order, topic.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, util.ErrTopicOrderTaken
		}
		topic.Order = *req.Order
	}
	if req.Title != "" {
		topic.Title = req.Title
	}
	if req.Description != "" {
		topic.Description = req.Description
	}
	if req.QuizRequiredLessons != nil {
		topic.QuizRequiredLessons = *req.QuizRequiredLessons
	}
	if err := s.TopicRepo.Update(topic); err != nil {
		return nil, err
	}
	return topic, nil
}

func (s *CourseService) DeleteTopic(user *util.Claims, topicID uint) error {
	topic, err := s.TopicRepo.FindByID(topicID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return util.ErrCourseNotFound
		}
		return err
	}
	if _, err := s.ownedCourse(user, topic.CourseID); err != nil {
		return err
	}
	return s.TopicRepo.Delete(topicID)
}

func (s *CourseService) CreateLesson(user *util.Claims, topicID uint, req *CreateLessonRequest) (*model.Lesson, error) {
	topic, err := s.TopicRepo.FindByID(topicID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if _, err := s.ownedCourse(user, topic.CourseID); err != nil {
		return nil, err
	}
	lesson := &model.Lesson{
		TopicID:        topicID,
		Title:          req.Title,
		Description:    req.Description,
		Order:          req.Order,
		PDFURL:         req.PDFURL,
		VideoURL:       req.VideoURL,
		ExternalLinks:  req.ExternalLinks,
		ContextualHelp: req.ContextualHelp,
	}
	if err := s.LessonRepo.Create(lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *CourseService) DeleteLesson(user *util.Claims, lessonID uint) error {
	lesson, err := s.LessonRepo.FindByID(lessonID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return util.ErrCourseNotFound
		}
		return err
	}
	topic, err := s.TopicRepo.FindByID(lesson.TopicID)
	if err != nil {
		return util.ErrCatalogInconsistency
	}
	if _, err := s.ownedCourse(user, topic.CourseID); err != nil {
		return err
	}
	return s.LessonRepo.Delete(lessonID)
}

// Enroll 学生选课，重复选课拒绝
func (s *CourseService) Enroll(studentID, courseID uint) error {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return util.ErrCourseNotFound
		}
		return err
	}
	exists, err := s.EnrollRepo.Exists(studentID, courseID)
	if err != nil {
		return err
	}
	if exists {
		return util.ErrAlreadyEnrolled
	}
	if err := s.EnrollRepo.Create(studentID, courseID); err != nil {
		return err
	}
	logger.Log.Info("student enrolled", zap.Uint("studentId", studentID), zap.Uint("courseId", courseID))
	return nil
}

func (s *CourseService) Unenroll(studentID, courseID uint) error {
	exists, err := s.EnrollRepo.Exists(studentID, courseID)
	if err != nil {
		return err
	}
	if !exists {
		return util.ErrNotEnrolled
	}
	return s.EnrollRepo.Delete(studentID, courseID)
}

// MarkLessonCompleted 选课学生标记课时完成，幂等
func (s *CourseService) MarkLessonCompleted(studentID, lessonID uint) error {
	lesson, err := s.LessonRepo.FindByID(lessonID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return util.ErrCourseNotFound
		}
		return err
	}
	topic, err := s.TopicRepo.FindByID(lesson.TopicID)
	if err != nil {
		return util.ErrCatalogInconsistency
	}
	enrolled, err := s.EnrollRepo.Exists(studentID, topic.CourseID)
	if err != nil {
		return err
	}
	if !enrolled {
		return util.ErrNotEnrolled
	}
	return s.LessonRepo.MarkCompleted(studentID, lessonID)
}

// TopicProgress 学生视角的主题进度与解锁状态
type TopicProgress struct {
	Topic            *model.Topic `json:"topic"`
	TotalLessons     int64        `json:"totalLessons"`
	CompletedLessons int64        `json:"completedLessons"`
	QuizAvailable    bool         `json:"quizAvailable"`
	QuizPassed       bool         `json:"quizPassed"`
	Unlocked         bool         `json:"unlocked"`
}

// GetProgress 顺序解锁：首个主题常开，其后主题要求前一主题测验通过；
// 前一主题没有测验时视为通过。
func (s *CourseService) GetProgress(studentID, courseID uint) ([]TopicProgress, error) {
	enrolled, err := s.EnrollRepo.Exists(studentID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	topics, err := s.TopicRepo.ListByCourse(courseID)
	if err != nil {
		return nil, err
	}

	progress := make([]TopicProgress, 0, len(topics))
	previousPassed := true
	for i := range topics {
		topic := &topics[i]
		total, err := s.LessonRepo.CountByTopic(topic.ID)
		if err != nil {
			return nil, err
		}
		completed, err := s.LessonRepo.CountCompletedInTopic(studentID, topic.ID)
		if err != nil {
			return nil, err
		}

		passed := false
		hasQuiz := true
		quiz, err := s.QuizRepo.FindByTopic(topic.ID)
		if err == gorm.ErrRecordNotFound {
			hasQuiz = false
		} else if err != nil {
			return nil, err
		} else {
			passed, err = s.AttemptRepo.HasPassed(studentID, quiz.ID)
			if err != nil {
				return nil, err
			}
		}

		progress = append(progress, TopicProgress{
			Topic:            topic,
			TotalLessons:     total,
			CompletedLessons: completed,
			QuizAvailable:    completed >= int64(topic.QuizRequiredLessons),
			QuizPassed:       passed,
			Unlocked:         i == 0 || previousPassed,
		})
		previousPassed = passed || !hasQuiz
	}
	return progress, nil
}

func (s *CourseService) ListEnrolled(studentID uint) ([]model.Course, error) {
	enrollments, err := s.EnrollRepo.ListByStudent(studentID)
	if err != nil {
		return nil, err
	}
	courses := make([]model.Course, 0, len(enrollments))
	for _, e := range enrollments {
		course, err := s.CourseRepo.FindByID(e.CourseID)
		if err != nil {
			continue
		}
		courses = append(courses, *course)
	}
	return courses, nil
}

func (s *CourseService) ownedCourse(user *util.Claims, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if err := CanManageCourse(user, course); err != nil {
		return nil, err
	}
	return course, nil
}
