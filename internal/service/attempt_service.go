package service

import (
	"math/rand"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttemptService 测验作答状态机：
// NotStarted → InProgress → Completed（过期只是触发封榜的原因，不是独立终态）。
// 所有操作显式携带 studentID，不读取请求级全局状态。
type AttemptService struct {
	AttemptRepo *repository.AttemptRepository
	QuizRepo    *repository.QuizRepository
	TopicRepo   *repository.TopicRepository
	LessonRepo  *repository.LessonRepository
	EnrollRepo  *repository.EnrollmentRepository
}

func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	quizRepo *repository.QuizRepository,
	topicRepo *repository.TopicRepository,
	lessonRepo *repository.LessonRepository,
	enrollRepo *repository.EnrollmentRepository,
) *AttemptService {
	return &AttemptService{
		AttemptRepo: attemptRepo,
		QuizRepo:    quizRepo,
		TopicRepo:   topicRepo,
		LessonRepo:  lessonRepo,
		EnrollRepo:  enrollRepo,
	}
}

type StartAttemptResult struct {
	AttemptID            uint `json:"attemptId"`
	TimeRemainingSeconds *int `json:"timeRemainingSeconds"`
	Resumed              bool `json:"resumed"`
}

type ChoiceView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// QuestionView 学生侧题目投影，永远不含答案标记
type QuestionView struct {
	ID      uint               `json:"id"`
	Text    string             `json:"text"`
	Type    model.QuestionType `json:"type"`
	Points  int                `json:"points"`
	Choices []ChoiceView       `json:"choices"`
}

type CurrentQuestionView struct {
	Question             *QuestionView `json:"question,omitempty"`
	PositionOneBased     int           `json:"positionOneBased,omitempty"`
	TotalQuestions       int           `json:"totalQuestions"`
	TimeRemainingSeconds *int          `json:"timeRemainingSeconds"`
	Completed            bool          `json:"completed"`
}

type FinalResult struct {
	Score            float64  `json:"score"`
	Passed           bool     `json:"passed"`
	TimeTakenMinutes *float64 `json:"timeTakenMinutes,omitempty"`
	Completed        bool     `json:"completed"`
}

// AnswerResult 提交答案的两种出口：下一题，或（最后一题/过期/重复提交时）终局结果
type AnswerResult struct {
	Next             *CurrentQuestionView `json:"next,omitempty"`
	Result           *FinalResult         `json:"result,omitempty"`
	AlreadyCompleted bool                 `json:"alreadyCompleted,omitempty"`
}

type TimeRemainingResult struct {
	TimeRemainingSeconds *int `json:"timeRemainingSeconds"`
	IsExpired            bool `json:"isExpired"`
}

type ResultsView struct {
	Score            float64  `json:"score"`
	Passed           bool     `json:"passed"`
	TimeTakenMinutes *float64 `json:"timeTakenMinutes,omitempty"`
	TotalQuestions   int      `json:"totalQuestions"`
	CorrectAnswers   int      `json:"correctAnswers"`
}

// ReviewItem 仅在完成后可见的逐题回顾，此时才允许暴露正确选项文本
type ReviewItem struct {
	QuestionText    string   `json:"questionText"`
	PointsPossible  int      `json:"pointsPossible"`
	PointsEarned    float64  `json:"pointsEarned"`
	CorrectChoices  []string `json:"correctChoices"`
	SelectedChoices []string `json:"selectedChoices"`
}

// StartAttempt 前置：选课 + 课时门槛。已有进行中的记录时幂等返回原记录。
func (s *AttemptService) StartAttempt(studentID, quizID uint) (*StartAttemptResult, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	topic, err := s.TopicRepo.FindByID(quiz.TopicID)
	if err != nil {
		return nil, util.ErrCatalogInconsistency
	}

	enrolled, err := s.EnrollRepo.Exists(studentID, topic.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	if topic.QuizRequiredLessons > 0 {
		completed, err := s.LessonRepo.CountCompletedInTopic(studentID, topic.ID)
		if err != nil {
			return nil, err
		}
		if completed < int64(topic.QuizRequiredLessons) {
			return nil, util.ErrQuizNotAvailable
		}
	}

	// 幂等重入：有未完成的记录直接返回，不新建
	if open, err := s.AttemptRepo.FindOpen(studentID, quizID); err == nil {
		remaining, err := s.checkTimeRemaining(open)
		if err != nil {
			return nil, err
		}
		return &StartAttemptResult{AttemptID: open.ID, TimeRemainingSeconds: remaining, Resumed: true}, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	ids, err := s.QuizRepo.QuestionIDs(quizID)
	if err != nil {
		return nil, err
	}
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	now := time.Now()
	attempt := &model.QuizAttempt{
		QuizID:    quizID,
		StudentID: studentID,
		StartedAt: now,
	}
	attempt.SetQuestionOrder(ids)
	if quiz.TimeLimit > 0 {
		expires := now.Add(time.Duration(quiz.TimeLimit) * time.Minute)
		attempt.ExpiresAt = &expires
	}

	if err := s.AttemptRepo.Create(attempt); err != nil {
		return nil, err
	}
	monitoring.AttemptsStarted.Inc()

	remaining, err := s.checkTimeRemaining(attempt)
	if err != nil {
		return nil, err
	}
	return &StartAttemptResult{AttemptID: attempt.ID, TimeRemainingSeconds: remaining}, nil
}

// GetCurrentQuestion 已完成或指针越界时返回终局标记；否则返回剥离答案标记的当前题。
func (s *AttemptService) GetCurrentQuestion(studentID, attemptID uint) (*CurrentQuestionView, error) {
	attempt, err := s.ownedAttempt(studentID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.currentQuestionView(attempt)
}

func (s *AttemptService) currentQuestionView(attempt *model.QuizAttempt) (*CurrentQuestionView, error) {
	order := attempt.QuestionOrderIDs()

	remaining, err := s.checkTimeRemaining(attempt)
	if err != nil {
		return nil, err
	}

	if attempt.Completed() || attempt.CurrentQuestionIndex >= len(order) {
		return &CurrentQuestionView{
			TotalQuestions:       len(order),
			TimeRemainingSeconds: remaining,
			Completed:            true,
		}, nil
	}

	question, err := s.QuizRepo.FindQuestion(order[attempt.CurrentQuestionIndex])
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrCatalogInconsistency
		}
		return nil, err
	}

	view := &QuestionView{
		ID:      question.ID,
		Text:    question.Text,
		Type:    question.Type,
		Points:  question.Points,
		Choices: make([]ChoiceView, 0, len(question.Choices)),
	}
	for _, choice := range question.Choices {
		view.Choices = append(view.Choices, ChoiceView{ID: choice.ID, Text: choice.Text})
	}

	return &CurrentQuestionView{
		Question:             view,
		PositionOneBased:     attempt.CurrentQuestionIndex + 1,
		TotalQuestions:       len(order),
		TimeRemainingSeconds: remaining,
	}, nil
}

// AnswerCurrentQuestion 判分、落库、推进指针为一个原子单元；
// 过期或答到最后一题时走统一的封榜路径并返回终局结果。
func (s *AttemptService) AnswerCurrentQuestion(studentID, attemptID uint, selectedChoiceIDs []uint) (*AnswerResult, error) {
	attempt, err := s.ownedAttempt(studentID, attemptID)
	if err != nil {
		return nil, err
	}

	// 重复提交竞态很常见，带着既有结果拒绝而不是裸报错
	if attempt.Completed() {
		return &AnswerResult{Result: s.storedResult(attempt), AlreadyCompleted: true}, nil
	}

	// 先查过期：过期的变更请求强制封榜，让客户端总能拿到终局
	if attempt.ExpiresAt != nil && time.Now().After(*attempt.ExpiresAt) {
		result, err := s.finalize(attempt, "expired")
		if err != nil {
			return nil, err
		}
		return &AnswerResult{Result: result}, nil
	}

	order := attempt.QuestionOrderIDs()
	if attempt.CurrentQuestionIndex >= len(order) {
		// 正确时序下不应出现，按"没有更多题目"降级为封榜而不是报错
		result, err := s.finalize(attempt, "submit")
		if err != nil {
			return nil, err
		}
		return &AnswerResult{Result: result}, nil
	}

	if len(selectedChoiceIDs) == 0 {
		return nil, util.ErrInvalidChoiceSelection
	}

	question, err := s.QuizRepo.FindQuestion(order[attempt.CurrentQuestionIndex])
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrCatalogInconsistency
		}
		return nil, err
	}

	// 所有选项必须属于当前题，未知 ID 直接拒绝而不是静默丢弃
	valid := make(map[uint]bool, len(question.Choices))
	for _, choice := range question.Choices {
		valid[choice.ID] = true
	}
	deduped := make([]uint, 0, len(selectedChoiceIDs))
	seen := make(map[uint]bool, len(selectedChoiceIDs))
	for _, id := range selectedChoiceIDs {
		if !valid[id] {
			return nil, util.ErrInvalidChoiceSelection
		}
		if !seen[id] {
			seen[id] = true
			deduped = append(deduped, id)
		}
	}

	response := &model.QuestionResponse{
		AttemptID:    attempt.ID,
		QuestionID:   question.ID,
		PointsEarned: ScoreSelection(question, deduped),
	}
	response.SetSelectedChoices(deduped)

	advanced, err := s.AttemptRepo.RecordResponseAndAdvance(attempt, response)
	if err != nil {
		return nil, err
	}
	if !advanced {
		return nil, util.ErrConcurrentSubmit
	}

	if attempt.CurrentQuestionIndex >= len(order) {
		result, err := s.finalize(attempt, "last_question")
		if err != nil {
			return nil, err
		}
		return &AnswerResult{Result: result}, nil
	}

	next, err := s.currentQuestionView(attempt)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{Next: next}, nil
}

// CheckTimeRemaining 纯读取；到点只翻过期标记，不封榜——
// 轮询剩余时间的客户端不应把试卷提交掉，只有显式变更才触发封榜。
func (s *AttemptService) CheckTimeRemaining(studentID, attemptID uint) (*TimeRemainingResult, error) {
	attempt, err := s.ownedAttempt(studentID, attemptID)
	if err != nil {
		return nil, err
	}
	remaining, err := s.checkTimeRemaining(attempt)
	if err != nil {
		return nil, err
	}
	return &TimeRemainingResult{TimeRemainingSeconds: remaining, IsExpired: attempt.IsExpired}, nil
}

func (s *AttemptService) checkTimeRemaining(attempt *model.QuizAttempt) (*int, error) {
	if attempt.ExpiresAt == nil {
		return nil, nil
	}
	zero := 0
	if attempt.Completed() {
		return &zero, nil
	}
	remaining := time.Until(*attempt.ExpiresAt)
	if remaining <= 0 {
		if !attempt.IsExpired {
			if err := s.AttemptRepo.MarkExpired(attempt.ID); err != nil {
				return nil, err
			}
			attempt.IsExpired = true
		}
		return &zero, nil
	}
	secs := int(remaining.Seconds())
	return &secs, nil
}

// Submit 显式交卷，幂等；零作答也是合法可判分的结果（0 分，不及格）。
func (s *AttemptService) Submit(studentID, attemptID uint) (*FinalResult, error) {
	attempt, err := s.ownedAttempt(studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Completed() {
		return s.storedResult(attempt), nil
	}
	reason := "submit"
	if attempt.ExpiresAt != nil && time.Now().After(*attempt.ExpiresAt) {
		reason = "expired"
	}
	return s.finalize(attempt, reason)
}

// finalize 唯一的封榜路径：交卷、答完最后一题、过期三个入口都走这里。
// 幂等；并发封榜靠条件更新串行化，输掉的一方回读既有结果。
func (s *AttemptService) finalize(attempt *model.QuizAttempt, reason string) (*FinalResult, error) {
	if attempt.Completed() {
		return s.storedResult(attempt), nil
	}

	responses, err := s.AttemptRepo.ResponsesByAttempt(attempt.ID)
	if err != nil {
		return nil, err
	}
	totalPoints, err := s.QuizRepo.TotalPoints(attempt.QuizID)
	if err != nil {
		return nil, err
	}

	var score float64
	passed := false
	if len(responses) > 0 && totalPoints > 0 {
		score = SumEarnedPoints(responses) / float64(totalPoints) * 100
		quiz, err := s.QuizRepo.FindByID(attempt.QuizID)
		if err != nil {
			return nil, util.ErrCatalogInconsistency
		}
		passed = score >= float64(quiz.PassMark)
	}

	now := time.Now()
	sealed, err := s.AttemptRepo.Finalize(attempt.ID, score, passed, now, reason == "expired")
	if err != nil {
		return nil, err
	}
	if !sealed {
		// 并发方已封榜，回读它的结果
		fresh, err := s.AttemptRepo.FindByID(attempt.ID)
		if err != nil {
			return nil, err
		}
		*attempt = *fresh
		return s.storedResult(attempt), nil
	}

	attempt.Score = &score
	attempt.Passed = passed
	attempt.CompletedAt = &now
	if reason == "expired" {
		attempt.IsExpired = true
	}

	monitoring.AttemptsFinalized.WithLabelValues(reason).Inc()
	logger.Log.Info("quiz attempt finalized",
		zap.Uint("attemptId", attempt.ID),
		zap.Uint("quizId", attempt.QuizID),
		zap.Float64("score", score),
		zap.Bool("passed", passed),
		zap.String("reason", reason),
	)

	return s.storedResult(attempt), nil
}

func (s *AttemptService) storedResult(attempt *model.QuizAttempt) *FinalResult {
	var score float64
	if attempt.Score != nil {
		score = *attempt.Score
	}
	return &FinalResult{
		Score:            score,
		Passed:           attempt.Passed,
		TimeTakenMinutes: attempt.TimeTakenMinutes(),
		Completed:        attempt.Completed(),
	}
}

// GetResults 完成后才可见
func (s *AttemptService) GetResults(studentID, attemptID uint) (*ResultsView, error) {
	attempt, err := s.ownedAttempt(studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.Completed() {
		return nil, util.ErrAttemptNotCompleted
	}

	responses, err := s.AttemptRepo.ResponsesByAttempt(attempt.ID)
	if err != nil {
		return nil, err
	}
	correct := 0
	for _, r := range responses {
		if r.PointsEarned > 0 {
			correct++
		}
	}

	var score float64
	if attempt.Score != nil {
		score = *attempt.Score
	}
	return &ResultsView{
		Score:            score,
		Passed:           attempt.Passed,
		TimeTakenMinutes: attempt.TimeTakenMinutes(),
		TotalQuestions:   len(attempt.QuestionOrderIDs()),
		CorrectAnswers:   correct,
	}, nil
}

// GetReview 逐题回顾投影，完成前拒绝——这是唯一允许暴露正确选项的读路径
func (s *AttemptService) GetReview(studentID, attemptID uint) ([]ReviewItem, error) {
	attempt, err := s.ownedAttempt(studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.Completed() {
		return nil, util.ErrAttemptNotCompleted
	}

	responses, err := s.AttemptRepo.ResponsesByAttempt(attempt.ID)
	if err != nil {
		return nil, err
	}

	items := make([]ReviewItem, 0, len(responses))
	for _, response := range responses {
		question, err := s.QuizRepo.FindQuestion(response.QuestionID)
		if err != nil {
			return nil, util.ErrCatalogInconsistency
		}

		selected := make(map[uint]bool)
		for _, id := range response.SelectedChoiceIDs() {
			selected[id] = true
		}

		item := ReviewItem{
			QuestionText:    question.Text,
			PointsPossible:  question.Points,
			PointsEarned:    response.PointsEarned,
			CorrectChoices:  []string{},
			SelectedChoices: []string{},
		}
		for _, choice := range question.Choices {
			if choice.IsCorrect {
				item.CorrectChoices = append(item.CorrectChoices, choice.Text)
			}
			if selected[choice.ID] {
				item.SelectedChoices = append(item.SelectedChoices, choice.Text)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// SweepExpired 后台定时清扫：把过期且无人再访问的进行中记录封榜。
// 懒惰检查已保证单请求语义正确，这里只是兜底。
func (s *AttemptService) SweepExpired() error {
	attempts, err := s.AttemptRepo.ListExpiredOpen(time.Now(), 100)
	if err != nil {
		return err
	}
	for i := range attempts {
		if _, err := s.finalize(&attempts[i], "expired"); err != nil {
			logger.Log.Error("failed to finalize expired attempt",
				zap.Uint("attemptId", attempts[i].ID), zap.Error(err))
		}
	}
	return nil
}

func (s *AttemptService) ownedAttempt(studentID, attemptID uint) (*model.QuizAttempt, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, util.ErrAttemptNotOwned
	}
	return attempt, nil
}
