package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if logger.Log == nil {
		logger.Log = zap.NewNop()
	}

	// 每个测试独立的共享内存库，连接池复用同一份数据
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type testFixture struct {
	db      *gorm.DB
	svc     *AttemptService
	student *model.User
	course  *model.Course
	topic   *model.Topic
	quiz    *model.Quiz
}

func newAttemptService(db *gorm.DB) *AttemptService {
	return NewAttemptService(
		repository.NewAttemptRepository(db),
		repository.NewQuizRepository(db),
		repository.NewTopicRepository(db),
		repository.NewLessonRepository(db),
		repository.NewEnrollmentRepository(db),
	)
}

// 一门课、一个主题、一份限时 30 分钟的三题测验（每题 2 分，单选，首个选项正确）
func setupQuizFixture(t *testing.T) *testFixture {
	t.Helper()
	db := newTestDB(t)

	student := &model.User{Name: "Stu", Email: "stu@test.local", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(student).Error)

	course := &model.Course{Title: "Algebra"}
	require.NoError(t, db.Create(course).Error)

	topic := &model.Topic{CourseID: course.ID, Title: "Linear equations", Order: 0}
	require.NoError(t, db.Create(topic).Error)

	quiz := &model.Quiz{TopicID: topic.ID, Title: "Checkpoint", PassMark: 70, TimeLimit: 30}
	for i := 0; i < 3; i++ {
		quiz.Questions = append(quiz.Questions, model.Question{
			Text:   fmt.Sprintf("Q%d", i+1),
			Type:   model.SingleAnswer,
			Points: 2,
			Order:  i,
			Choices: []model.Choice{
				{Text: "right", IsCorrect: true},
				{Text: "wrong"},
			},
		})
	}
	require.NoError(t, db.Create(quiz).Error)

	require.NoError(t, repository.NewEnrollmentRepository(db).Create(student.ID, course.ID))

	return &testFixture{
		db:      db,
		svc:     newAttemptService(db),
		student: student,
		course:  course,
		topic:   topic,
		quiz:    quiz,
	}
}

func correctChoiceID(t *testing.T, f *testFixture, questionID uint) uint {
	t.Helper()
	var choice model.Choice
	require.NoError(t, f.db.Where("question_id = ? AND is_correct = ?", questionID, true).First(&choice).Error)
	return choice.ID
}

func wrongChoiceID(t *testing.T, f *testFixture, questionID uint) uint {
	t.Helper()
	var choice model.Choice
	require.NoError(t, f.db.Where("question_id = ? AND is_correct = ?", questionID, false).First(&choice).Error)
	return choice.ID
}

func TestStartAttemptRequiresEnrollment(t *testing.T) {
	f := setupQuizFixture(t)

	other := &model.User{Name: "Other", Email: "other@test.local", Password: "x", Role: model.Student}
	require.NoError(t, f.db.Create(other).Error)

	_, err := f.svc.StartAttempt(other.ID, f.quiz.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)
}

func TestStartAttemptLessonGate(t *testing.T) {
	f := setupQuizFixture(t)

	lesson := &model.Lesson{TopicID: f.topic.ID, Title: "L1"}
	require.NoError(t, f.db.Create(lesson).Error)
	require.NoError(t, f.db.Model(f.topic).Update("quiz_required_lessons", 1).Error)

	_, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	assert.ErrorIs(t, err, util.ErrQuizNotAvailable)

	require.NoError(t, repository.NewLessonRepository(f.db).MarkCompleted(f.student.ID, lesson.ID))

	result, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)
	assert.NotZero(t, result.AttemptID)
}

func TestStartAttemptIdempotent(t *testing.T) {
	f := setupQuizFixture(t)

	first, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)
	assert.False(t, first.Resumed)

	second, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.AttemptID, second.AttemptID)
}

func TestQuestionOrderIsStablePermutation(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	var attempt model.QuizAttempt
	require.NoError(t, f.db.First(&attempt, started.AttemptID).Error)

	order := attempt.QuestionOrderIDs()
	require.Len(t, order, 3)

	expected, err := repository.NewQuizRepository(f.db).QuestionIDs(f.quiz.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, expected, order)

	// 同一作答里题序不变
	view1, err := f.svc.GetCurrentQuestion(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	view2, err := f.svc.GetCurrentQuestion(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, view1.Question.ID, view2.Question.ID)
	assert.Equal(t, order[0], view1.Question.ID)
}

func TestAnswerFlowFinalizesOnLastQuestion(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		view, err := f.svc.GetCurrentQuestion(f.student.ID, started.AttemptID)
		require.NoError(t, err)
		require.False(t, view.Completed)
		assert.Equal(t, i+1, view.PositionOneBased)
		assert.Equal(t, 3, view.TotalQuestions)

		result, err := f.svc.AnswerCurrentQuestion(f.student.ID, started.AttemptID,
			[]uint{correctChoiceID(t, f, view.Question.ID)})
		require.NoError(t, err)

		if i < 2 {
			require.NotNil(t, result.Next)
			assert.Nil(t, result.Result)
		} else {
			require.NotNil(t, result.Result)
			assert.Equal(t, 100.0, result.Result.Score)
			assert.True(t, result.Result.Passed)
			assert.True(t, result.Result.Completed)
		}
	}

	// 完成后的当前题请求返回终局标记
	view, err := f.svc.GetCurrentQuestion(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	assert.True(t, view.Completed)
	assert.Nil(t, view.Question)
}

func TestCurrentQuestionPayloadHidesAnswerKey(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	view, err := f.svc.GetCurrentQuestion(f.student.ID, started.AttemptID)
	require.NoError(t, err)

	// 作答中的题目载荷不得携带正确答案标记
	payload, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "isCorrect")
	assert.NotContains(t, string(payload), "is_correct")
	for _, c := range view.Question.Choices {
		assert.NotZero(t, c.ID)
		assert.NotEmpty(t, c.Text)
	}
}

func TestAnswerRejectsForeignOrEmptySelection(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	_, err = f.svc.AnswerCurrentQuestion(f.student.ID, started.AttemptID, nil)
	assert.ErrorIs(t, err, util.ErrInvalidChoiceSelection)

	view, err := f.svc.GetCurrentQuestion(f.student.ID, started.AttemptID)
	require.NoError(t, err)

	// 其它题的选项不属于当前题
	var foreign model.Choice
	require.NoError(t, f.db.Where("question_id <> ?", view.Question.ID).First(&foreign).Error)
	_, err = f.svc.AnswerCurrentQuestion(f.student.ID, started.AttemptID, []uint{foreign.ID})
	assert.ErrorIs(t, err, util.ErrInvalidChoiceSelection)
}

func TestAnswerIsOwnerOnly(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	other := &model.User{Name: "Other", Email: "other2@test.local", Password: "x", Role: model.Student}
	require.NoError(t, f.db.Create(other).Error)

	_, err = f.svc.GetCurrentQuestion(other.ID, started.AttemptID)
	assert.ErrorIs(t, err, util.ErrAttemptNotOwned)
}

func TestSubmitWithoutAnswersScoresZero(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	result, err := f.svc.Submit(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Score)
	assert.False(t, result.Passed)
	assert.True(t, result.Completed)

	// 幂等：重复交卷返回同一结果
	again, err := f.svc.Submit(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, result.Score, again.Score)
	assert.Equal(t, result.Passed, again.Passed)
}

func TestPartialAnswersScoreAgainstFullPaper(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	// 答对第一题后交卷：2/6 ≈ 33.3，不及格
	view, err := f.svc.GetCurrentQuestion(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	_, err = f.svc.AnswerCurrentQuestion(f.student.ID, started.AttemptID,
		[]uint{correctChoiceID(t, f, view.Question.ID)})
	require.NoError(t, err)

	result, err := f.svc.Submit(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	assert.InDelta(t, 100.0/3.0, result.Score, 0.01)
	assert.False(t, result.Passed)
}

func TestExpiredAnswerForcesFinalize(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, f.db.Model(&model.QuizAttempt{}).
		Where("id = ?", started.AttemptID).Update("expires_at", past).Error)

	view, err := f.svc.GetCurrentQuestion(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	require.False(t, view.Completed)

	result, err := f.svc.AnswerCurrentQuestion(f.student.ID, started.AttemptID,
		[]uint{correctChoiceID(t, f, view.Question.ID)})
	require.NoError(t, err)
	require.NotNil(t, result.Result, "expired attempt must return a final result")
	assert.True(t, result.Result.Completed)
	assert.Equal(t, 0.0, result.Result.Score, "the expired answer itself is not recorded")

	var attempt model.QuizAttempt
	require.NoError(t, f.db.First(&attempt, started.AttemptID).Error)
	assert.True(t, attempt.IsExpired)
	assert.NotNil(t, attempt.CompletedAt)
}

func TestCheckTimeRemainingDoesNotFinalize(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, f.db.Model(&model.QuizAttempt{}).
		Where("id = ?", started.AttemptID).Update("expires_at", past).Error)

	remaining, err := f.svc.CheckTimeRemaining(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	require.NotNil(t, remaining.TimeRemainingSeconds)
	assert.Equal(t, 0, *remaining.TimeRemainingSeconds)
	assert.True(t, remaining.IsExpired)

	// 只翻标记，不封榜
	var attempt model.QuizAttempt
	require.NoError(t, f.db.First(&attempt, started.AttemptID).Error)
	assert.Nil(t, attempt.CompletedAt)
}

func TestResultsAndReviewRequireCompletion(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	_, err = f.svc.GetResults(f.student.ID, started.AttemptID)
	assert.ErrorIs(t, err, util.ErrAttemptNotCompleted)
	_, err = f.svc.GetReview(f.student.ID, started.AttemptID)
	assert.ErrorIs(t, err, util.ErrAttemptNotCompleted)

	// 一对一错一不答后交卷
	view, err := f.svc.GetCurrentQuestion(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	_, err = f.svc.AnswerCurrentQuestion(f.student.ID, started.AttemptID,
		[]uint{correctChoiceID(t, f, view.Question.ID)})
	require.NoError(t, err)

	view, err = f.svc.GetCurrentQuestion(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	_, err = f.svc.AnswerCurrentQuestion(f.student.ID, started.AttemptID,
		[]uint{wrongChoiceID(t, f, view.Question.ID)})
	require.NoError(t, err)

	_, err = f.svc.Submit(f.student.ID, started.AttemptID)
	require.NoError(t, err)

	results, err := f.svc.GetResults(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 3, results.TotalQuestions)
	assert.Equal(t, 1, results.CorrectAnswers)
	assert.InDelta(t, 100.0/3.0, results.Score, 0.01)
	require.NotNil(t, results.TimeTakenMinutes)

	review, err := f.svc.GetReview(f.student.ID, started.AttemptID)
	require.NoError(t, err)
	require.Len(t, review, 2, "review covers answered questions only")
	assert.Equal(t, []string{"right"}, review[0].CorrectChoices)
}

func TestRecordResponseAndAdvanceRejectsStalePointer(t *testing.T) {
	f := setupQuizFixture(t)
	repo := repository.NewAttemptRepository(f.db)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	fresh, err := repo.FindByID(started.AttemptID)
	require.NoError(t, err)
	stale, err := repo.FindByID(started.AttemptID)
	require.NoError(t, err)

	order := fresh.QuestionOrderIDs()
	first := &model.QuestionResponse{AttemptID: fresh.ID, QuestionID: order[0]}
	first.SetSelectedChoices([]uint{correctChoiceID(t, f, order[0])})

	advanced, err := repo.RecordResponseAndAdvance(fresh, first)
	require.NoError(t, err)
	assert.True(t, advanced)

	// 同一下标的并发副本：条件更新不命中，不落作答
	dup := &model.QuestionResponse{AttemptID: stale.ID, QuestionID: order[0]}
	dup.SetSelectedChoices([]uint{correctChoiceID(t, f, order[0])})
	advanced, err = repo.RecordResponseAndAdvance(stale, dup)
	require.NoError(t, err)
	assert.False(t, advanced)

	count, err := repo.CountResponses(fresh.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSweepExpiredFinalizesAbandonedAttempts(t *testing.T) {
	f := setupQuizFixture(t)

	started, err := f.svc.StartAttempt(f.student.ID, f.quiz.ID)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.db.Model(&model.QuizAttempt{}).
		Where("id = ?", started.AttemptID).Update("expires_at", past).Error)

	require.NoError(t, f.svc.SweepExpired())

	var attempt model.QuizAttempt
	require.NoError(t, f.db.First(&attempt, started.AttemptID).Error)
	assert.NotNil(t, attempt.CompletedAt)
	assert.True(t, attempt.IsExpired)
	assert.False(t, attempt.Passed)
}
