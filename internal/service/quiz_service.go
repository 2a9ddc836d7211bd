package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuizService 测验编排：卷、题、选项的嵌套写入与教师侧统计
type QuizService struct {
	QuizRepo    *repository.QuizRepository
	TopicRepo   *repository.TopicRepository
	CourseRepo  *repository.CourseRepository
	AttemptRepo *repository.AttemptRepository
	LessonRepo  *repository.LessonRepository
	DB          *gorm.DB
	Redis       *redis.Client
}

func NewQuizService(
	quizRepo *repository.QuizRepository,
	topicRepo *repository.TopicRepository,
	courseRepo *repository.CourseRepository,
	attemptRepo *repository.AttemptRepository,
	lessonRepo *repository.LessonRepository,
	db *gorm.DB,
	rdb *redis.Client,
) *QuizService {
	return &QuizService{
		QuizRepo:    quizRepo,
		TopicRepo:   topicRepo,
		CourseRepo:  courseRepo,
		AttemptRepo: attemptRepo,
		LessonRepo:  lessonRepo,
		DB:          db,
		Redis:       rdb,
	}
}

type ChoiceInput struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuestionInput struct {
	Text    string             `json:"text" binding:"required"`
	Type    model.QuestionType `json:"type" binding:"required,oneof=single multiple"`
	Points  int                `json:"points" binding:"min=1"`
	Choices []ChoiceInput      `json:"choices" binding:"required,min=2,dive"`
}

type CreateQuizRequest struct {
	TopicID     uint            `json:"topicId" binding:"required"`
	Title       string          `json:"title" binding:"required,max=255"`
	Description string          `json:"description"`
	PassMark    int             `json:"passMark" binding:"min=0,max=100"`
	TimeLimit   int             `json:"timeLimit" binding:"min=1"`
	Questions   []QuestionInput `json:"questions" binding:"dive"`
}

type UpdateQuizRequest struct {
	Title       string `json:"title" binding:"omitempty,max=255"`
	Description string `json:"description"`
	PassMark    *int   `json:"passMark" binding:"omitempty,min=0,max=100"`
	TimeLimit   *int   `json:"timeLimit" binding:"omitempty,min=1"`
}

type QuizStatistics struct {
	QuizID             uint     `json:"quizId"`
	TotalAttempts      int      `json:"totalAttempts"`
	CompletedAttempts  int      `json:"completedAttempts"`
	PassedAttempts     int      `json:"passedAttempts"`
	AverageScore       *float64 `json:"averageScore,omitempty"`
	PassRate           *float64 `json:"passRate,omitempty"`
	AverageTimeMinutes *float64 `json:"averageTimeMinutes,omitempty"`
}

// courseOfTopic 沿目录树上溯课程，供归属校验
func (s *QuizService) courseOfTopic(topicID uint) (*model.Topic, *model.Course, error) {
	topic, err := s.TopicRepo.FindByID(topicID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, util.ErrCourseNotFound
		}
		return nil, nil, err
	}
	course, err := s.CourseRepo.FindByID(topic.CourseID)
	if err != nil {
		return nil, nil, util.ErrCatalogInconsistency
	}
	return topic, course, nil
}

func validateQuestionInput(q *QuestionInput) error {
	correct := 0
	for _, c := range q.Choices {
		if c.IsCorrect {
			correct++
		}
	}
	if q.Type == model.SingleAnswer && correct != 1 {
		return util.ErrInvalidChoiceSelection
	}
	if q.Type == model.MultipleAnswer && correct < 1 {
		return util.ErrInvalidChoiceSelection
	}
	return nil
}

// CreateQuiz 一个主题至多一份测验；题目与选项随卷整体落库
func (s *QuizService) CreateQuiz(user *util.Claims, req *CreateQuizRequest) (*model.Quiz, error) {
	_, course, err := s.courseOfTopic(req.TopicID)
	if err != nil {
		return nil, err
	}
	if err := CanManageCourse(user, course); err != nil {
		return nil, err
	}

	if _, err := s.QuizRepo.FindByTopic(req.TopicID); err == nil {
		return nil, util.ErrQuizExists
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	for i := range req.Questions {
		if err := validateQuestionInput(&req.Questions[i]); err != nil {
			return nil, err
		}
	}

	quiz := &model.Quiz{
		TopicID:     req.TopicID,
		Title:       req.Title,
		Description: req.Description,
		PassMark:    req.PassMark,
		TimeLimit:   req.TimeLimit,
	}
	for i, qi := range req.Questions {
		question := model.Question{
			Text:   qi.Text,
			Type:   qi.Type,
			Points: qi.Points,
			Order:  i,
		}
		for _, ci := range qi.Choices {
			question.Choices = append(question.Choices, model.Choice{
				Text:      ci.Text,
				IsCorrect: ci.IsCorrect,
			})
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	// gorm 级联创建本身在单事务里，无需手动开启
	if err := s.QuizRepo.Create(quiz); err != nil {
		return nil, err
	}
	logger.Log.Info("quiz created",
		zap.Uint("quizId", quiz.ID), zap.Uint("topicId", quiz.TopicID),
		zap.Int("questions", len(quiz.Questions)))
	return quiz, nil
}

func (s *QuizService) UpdateQuiz(user *util.Claims, quizID uint, req *UpdateQuizRequest) (*model.Quiz, error) {
	quiz, _, err := s.ownedQuiz(user, quizID)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		quiz.Title = req.Title
	}
	if req.Description != "" {
		quiz.Description = req.Description
	}
	if req.PassMark != nil {
		quiz.PassMark = *req.PassMark
	}
	if req.TimeLimit != nil {
		quiz.TimeLimit = *req.TimeLimit
	}
	if err := s.QuizRepo.Update(quiz); err != nil {
		return nil, err
	}
	s.invalidateStats(quizID)
	return quiz, nil
}

// DeleteQuiz 有历史作答的卷不可删，成绩记录必须可追溯
func (s *QuizService) DeleteQuiz(user *util.Claims, quizID uint) error {
	quiz, _, err := s.ownedQuiz(user, quizID)
	if err != nil {
		return err
	}
	has, err := s.AttemptRepo.HasAttempts(quizID)
	if err != nil {
		return err
	}
	if has {
		return util.ErrQuizHasAttempts
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var questionIDs []uint
		if err := tx.Model(&model.Question{}).Where("quiz_id = ?", quizID).
			Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).
				Delete(&model.Choice{}).Error; err != nil {
				return err
			}
			if err := tx.Where("quiz_id = ?", quizID).
				Delete(&model.Question{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(quiz).Error
	})
}

// GetQuizForManagement 教师/管理员视图，含答案标记
func (s *QuizService) GetQuizForManagement(user *util.Claims, quizID uint) (*model.Quiz, error) {
	if _, _, err := s.ownedQuiz(user, quizID); err != nil {
		return nil, err
	}
	return s.QuizRepo.FindByIDFull(quizID)
}

// QuizAvailability 学生视角的可用性：选课 + 课时门槛
type QuizAvailability struct {
	Quiz             *model.Quiz `json:"quiz"`
	Available        bool        `json:"available"`
	RequiredLessons  int         `json:"requiredLessons"`
	CompletedLessons int         `json:"completedLessons"`
	QuestionCount    int64       `json:"questionCount"`
	HasOpenAttempt   bool        `json:"hasOpenAttempt"`
}

// GetQuizForStudent 学生侧元数据视图，不含题目内容更不含答案
func (s *QuizService) GetQuizForStudent(studentID uint, quizID uint, enrollRepo *repository.EnrollmentRepository) (*QuizAvailability, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	topic, _, err := s.courseOfTopic(quiz.TopicID)
	if err != nil {
		return nil, err
	}
	enrolled, err := enrollRepo.Exists(studentID, topic.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	completed, err := s.LessonRepo.CountCompletedInTopic(studentID, topic.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.QuizRepo.CountQuestions(quizID)
	if err != nil {
		return nil, err
	}
	hasOpen, err := s.AttemptRepo.HasOpen(studentID, quizID)
	if err != nil {
		return nil, err
	}

	return &QuizAvailability{
		Quiz:             quiz,
		Available:        completed >= int64(topic.QuizRequiredLessons),
		RequiredLessons:  topic.QuizRequiredLessons,
		CompletedLessons: int(completed),
		QuestionCount:    count,
		HasOpenAttempt:   hasOpen,
	}, nil
}

type AddQuestionRequest struct {
	QuestionInput
}

// AddQuestion 追加到卷尾；进行中的作答题序已固化，不受影响
func (s *QuizService) AddQuestion(user *util.Claims, quizID uint, req *AddQuestionRequest) (*model.Question, error) {
	if _, _, err := s.ownedQuiz(user, quizID); err != nil {
		return nil, err
	}
	if err := validateQuestionInput(&req.QuestionInput); err != nil {
		return nil, err
	}

	maxOrder, err := s.QuizRepo.MaxQuestionOrder(quizID)
	if err != nil {
		return nil, err
	}
	question := &model.Question{
		QuizID: quizID,
		Text:   req.Text,
		Type:   req.Type,
		Points: req.Points,
		Order:  maxOrder + 1,
	}
	for _, ci := range req.Choices {
		question.Choices = append(question.Choices, model.Choice{
			Text:      ci.Text,
			IsCorrect: ci.IsCorrect,
		})
	}
	if err := s.DB.Create(question).Error; err != nil {
		return nil, err
	}
	s.invalidateStats(quizID)
	return question, nil
}

// ReplaceQuestions 整卷替换题目与选项，单事务。
// 有历史作答时拒绝，已判分的作答不允许事后改卷。
func (s *QuizService) ReplaceQuestions(user *util.Claims, quizID uint, inputs []QuestionInput) (*model.Quiz, error) {
	if _, _, err := s.ownedQuiz(user, quizID); err != nil {
		return nil, err
	}
	has, err := s.AttemptRepo.HasAttempts(quizID)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, util.ErrQuizHasAttempts
	}
	for i := range inputs {
		if err := validateQuestionInput(&inputs[i]); err != nil {
			return nil, err
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var questionIDs []uint
		if err := tx.Model(&model.Question{}).Where("quiz_id = ?", quizID).
			Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).
				Delete(&model.Choice{}).Error; err != nil {
				return err
			}
			if err := tx.Where("quiz_id = ?", quizID).
				Delete(&model.Question{}).Error; err != nil {
				return err
			}
		}
		for i, qi := range inputs {
			question := model.Question{
				QuizID: quizID,
				Text:   qi.Text,
				Type:   qi.Type,
				Points: qi.Points,
				Order:  i,
			}
			for _, ci := range qi.Choices {
				question.Choices = append(question.Choices, model.Choice{
					Text:      ci.Text,
					IsCorrect: ci.IsCorrect,
				})
			}
			if err := tx.Create(&question).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(quizID)
	return s.QuizRepo.FindByIDFull(quizID)
}

func (s *QuizService) DeleteQuestion(user *util.Claims, quizID, questionID uint) error {
	if _, _, err := s.ownedQuiz(user, quizID); err != nil {
		return err
	}
	has, err := s.AttemptRepo.HasAttempts(quizID)
	if err != nil {
		return err
	}
	if has {
		return util.ErrQuizHasAttempts
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND quiz_id = ?", questionID, quizID).Delete(&model.Question{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("question_id = ?", questionID).Delete(&model.Choice{}).Error
	})
}

// ReorderQuestion 只改展示顺序值，不做连续性重排
func (s *QuizService) ReorderQuestion(user *util.Claims, quizID, questionID uint, newOrder int) error {
	if _, _, err := s.ownedQuiz(user, quizID); err != nil {
		return err
	}
	res := s.DB.Model(&model.Question{}).
		Where("id = ? AND quiz_id = ?", questionID, quizID).
		Update("order", newOrder)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrQuizNotFound
	}
	return nil
}

const statsCacheTTL = 5 * time.Minute

func statsCacheKey(quizID uint) string {
	return fmt.Sprintf("quiz:stats:%d", quizID)
}

// GetStatistics 教师侧成绩统计，redis 短缓存兜住仪表盘轮询
func (s *QuizService) GetStatistics(ctx context.Context, user *util.Claims, quizID uint) (*QuizStatistics, error) {
	_, course, err := s.ownedQuiz(user, quizID)
	if err != nil {
		return nil, err
	}
	if err := CanViewQuizStatistics(user, course); err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, statsCacheKey(quizID)).Result(); err == nil {
			var stats QuizStatistics
			if json.Unmarshal([]byte(cached), &stats) == nil {
				return &stats, nil
			}
		}
	}

	attempts, err := s.AttemptRepo.ListByQuiz(quizID)
	if err != nil {
		return nil, err
	}

	stats := &QuizStatistics{QuizID: quizID, TotalAttempts: len(attempts)}
	var scoreSum, timeSum float64
	for i := range attempts {
		if !attempts[i].Completed() {
			continue
		}
		stats.CompletedAttempts++
		if attempts[i].Score != nil {
			scoreSum += *attempts[i].Score
		}
		if taken := attempts[i].TimeTakenMinutes(); taken != nil {
			timeSum += *taken
		}
		if attempts[i].Passed {
			stats.PassedAttempts++
		}
	}
	if stats.CompletedAttempts > 0 {
		avg := scoreSum / float64(stats.CompletedAttempts)
		rate := float64(stats.PassedAttempts) / float64(stats.CompletedAttempts) * 100
		avgTime := timeSum / float64(stats.CompletedAttempts)
		stats.AverageScore = &avg
		stats.PassRate = &rate
		stats.AverageTimeMinutes = &avgTime
	}

	if s.Redis != nil {
		if b, err := json.Marshal(stats); err == nil {
			s.Redis.Set(ctx, statsCacheKey(quizID), b, statsCacheTTL)
		}
	}
	return stats, nil
}

func (s *QuizService) invalidateStats(quizID uint) {
	if s.Redis != nil {
		s.Redis.Del(context.Background(), statsCacheKey(quizID))
	}
}

func (s *QuizService) ownedQuiz(user *util.Claims, quizID uint) (*model.Quiz, *model.Course, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, util.ErrQuizNotFound
		}
		return nil, nil, err
	}
	_, course, err := s.courseOfTopic(quiz.TopicID)
	if err != nil {
		return nil, nil, err
	}
	if err := CanManageCourse(user, course); err != nil {
		return nil, nil, err
	}
	return quiz, course, nil
}
