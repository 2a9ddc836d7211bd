package service

import (
	"context"
	"fmt"
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newQuizService(db *gorm.DB) *QuizService {
	return NewQuizService(
		repository.NewQuizRepository(db),
		repository.NewTopicRepository(db),
		repository.NewCourseRepository(db),
		repository.NewAttemptRepository(db),
		repository.NewLessonRepository(db),
		db,
		nil, // 测试不启用缓存
	)
}

func teacherClaims(id uint) *util.Claims {
	return &util.Claims{UserID: id, Role: model.Teacher}
}

func adminClaims(id uint) *util.Claims {
	return &util.Claims{UserID: id, Role: model.Admin}
}

func setupCourseFixture(t *testing.T) (*gorm.DB, *model.User, *model.Course, *model.Topic) {
	t.Helper()
	db := newTestDB(t)

	teacher := &model.User{Name: "T", Email: "t@test.local", Password: "x", Role: model.Teacher}
	require.NoError(t, db.Create(teacher).Error)

	course := &model.Course{Title: "Geometry", TeacherID: &teacher.ID}
	require.NoError(t, db.Create(course).Error)

	topic := &model.Topic{CourseID: course.ID, Title: "Triangles", Order: 0}
	require.NoError(t, db.Create(topic).Error)

	return db, teacher, course, topic
}

func validCreateRequest(topicID uint) *CreateQuizRequest {
	return &CreateQuizRequest{
		TopicID:   topicID,
		Title:     "Checkpoint",
		PassMark:  70,
		TimeLimit: 20,
		Questions: []QuestionInput{
			{
				Text:   "Q1",
				Type:   model.SingleAnswer,
				Points: 2,
				Choices: []ChoiceInput{
					{Text: "a", IsCorrect: true},
					{Text: "b"},
				},
			},
		},
	}
}

func TestCreateQuizOnePerTopic(t *testing.T) {
	db, teacher, _, topic := setupCourseFixture(t)
	svc := newQuizService(db)

	quiz, err := svc.CreateQuiz(teacherClaims(teacher.ID), validCreateRequest(topic.ID))
	require.NoError(t, err)
	assert.NotZero(t, quiz.ID)
	assert.Len(t, quiz.Questions, 1)

	_, err = svc.CreateQuiz(teacherClaims(teacher.ID), validCreateRequest(topic.ID))
	assert.ErrorIs(t, err, util.ErrQuizExists)
}

func TestCreateQuizOwnershipEnforced(t *testing.T) {
	db, _, _, topic := setupCourseFixture(t)
	svc := newQuizService(db)

	outsider := &model.User{Name: "O", Email: "o@test.local", Password: "x", Role: model.Teacher}
	require.NoError(t, db.Create(outsider).Error)

	_, err := svc.CreateQuiz(teacherClaims(outsider.ID), validCreateRequest(topic.ID))
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	// 管理员不受归属限制
	admin := &model.User{Name: "A", Email: "a@test.local", Password: "x", Role: model.Admin}
	require.NoError(t, db.Create(admin).Error)
	_, err = svc.CreateQuiz(adminClaims(admin.ID), validCreateRequest(topic.ID))
	require.NoError(t, err)
}

func TestCreateQuizValidatesAnswerKeys(t *testing.T) {
	db, teacher, _, topic := setupCourseFixture(t)
	svc := newQuizService(db)

	// 单选必须恰好一个正确项
	req := validCreateRequest(topic.ID)
	req.Questions[0].Choices[1].IsCorrect = true
	_, err := svc.CreateQuiz(teacherClaims(teacher.ID), req)
	assert.ErrorIs(t, err, util.ErrInvalidChoiceSelection)

	// 多选至少一个正确项
	req = validCreateRequest(topic.ID)
	req.Questions[0].Type = model.MultipleAnswer
	req.Questions[0].Choices[0].IsCorrect = false
	_, err = svc.CreateQuiz(teacherClaims(teacher.ID), req)
	assert.ErrorIs(t, err, util.ErrInvalidChoiceSelection)
}

func TestDeleteQuizBlockedByAttempts(t *testing.T) {
	db, teacher, course, topic := setupCourseFixture(t)
	svc := newQuizService(db)

	quiz, err := svc.CreateQuiz(teacherClaims(teacher.ID), validCreateRequest(topic.ID))
	require.NoError(t, err)

	student := &model.User{Name: "S", Email: "s@test.local", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(student).Error)
	require.NoError(t, repository.NewEnrollmentRepository(db).Create(student.ID, course.ID))

	attemptSvc := newAttemptService(db)
	_, err = attemptSvc.StartAttempt(student.ID, quiz.ID)
	require.NoError(t, err)

	err = svc.DeleteQuiz(teacherClaims(teacher.ID), quiz.ID)
	assert.ErrorIs(t, err, util.ErrQuizHasAttempts)

	// 无作答记录的卷可删
	topic2 := &model.Topic{CourseID: course.ID, Title: "Circles", Order: 1}
	require.NoError(t, db.Create(topic2).Error)
	quiz2, err := svc.CreateQuiz(teacherClaims(teacher.ID), validCreateRequest(topic2.ID))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteQuiz(teacherClaims(teacher.ID), quiz2.ID))
}

func TestReplaceQuestions(t *testing.T) {
	db, teacher, _, topic := setupCourseFixture(t)
	svc := newQuizService(db)
	claims := teacherClaims(teacher.ID)

	quiz, err := svc.CreateQuiz(claims, validCreateRequest(topic.ID))
	require.NoError(t, err)

	updated, err := svc.ReplaceQuestions(claims, quiz.ID, []QuestionInput{
		{
			Text:   "New Q1",
			Type:   model.MultipleAnswer,
			Points: 3,
			Choices: []ChoiceInput{
				{Text: "x", IsCorrect: true},
				{Text: "y", IsCorrect: true},
				{Text: "z"},
			},
		},
		{
			Text:   "New Q2",
			Type:   model.SingleAnswer,
			Points: 1,
			Choices: []ChoiceInput{
				{Text: "a", IsCorrect: true},
				{Text: "b"},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated.Questions, 2)
	assert.Equal(t, "New Q1", updated.Questions[0].Text)
	assert.Equal(t, 0, updated.Questions[0].Order)
	assert.Equal(t, 1, updated.Questions[1].Order)

	// 旧题与旧选项不残留
	var questionCount, choiceCount int64
	require.NoError(t, db.Model(&model.Question{}).Where("quiz_id = ?", quiz.ID).Count(&questionCount).Error)
	assert.EqualValues(t, 2, questionCount)
	require.NoError(t, db.Model(&model.Choice{}).
		Joins("JOIN questions ON questions.id = choices.question_id").
		Where("questions.quiz_id = ?", quiz.ID).Count(&choiceCount).Error)
	assert.EqualValues(t, 5, choiceCount)
}

func TestReplaceQuestionsBlockedByAttempts(t *testing.T) {
	db, teacher, course, topic := setupCourseFixture(t)
	svc := newQuizService(db)
	claims := teacherClaims(teacher.ID)

	quiz, err := svc.CreateQuiz(claims, validCreateRequest(topic.ID))
	require.NoError(t, err)

	student := &model.User{Name: "S", Email: "s@test.local", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(student).Error)
	require.NoError(t, repository.NewEnrollmentRepository(db).Create(student.ID, course.ID))
	_, err = newAttemptService(db).StartAttempt(student.ID, quiz.ID)
	require.NoError(t, err)

	_, err = svc.ReplaceQuestions(claims, quiz.ID, validCreateRequest(topic.ID).Questions)
	assert.ErrorIs(t, err, util.ErrQuizHasAttempts)
}

func TestStatisticsAggregates(t *testing.T) {
	db, teacher, course, topic := setupCourseFixture(t)
	svc := newQuizService(db)

	quiz, err := svc.CreateQuiz(teacherClaims(teacher.ID), validCreateRequest(topic.ID))
	require.NoError(t, err)

	attemptSvc := newAttemptService(db)
	enrollRepo := repository.NewEnrollmentRepository(db)

	// 一个满分通过，一个零分交卷
	for i, pass := range []bool{true, false} {
		student := &model.User{Name: "S", Email: fmt.Sprintf("s%d@test.local", i), Password: "x", Role: model.Student}
		require.NoError(t, db.Create(student).Error)
		require.NoError(t, enrollRepo.Create(student.ID, course.ID))

		started, err := attemptSvc.StartAttempt(student.ID, quiz.ID)
		require.NoError(t, err)
		if pass {
			view, err := attemptSvc.GetCurrentQuestion(student.ID, started.AttemptID)
			require.NoError(t, err)
			var choice model.Choice
			require.NoError(t, db.Where("question_id = ? AND is_correct = ?", view.Question.ID, true).First(&choice).Error)
			_, err = attemptSvc.AnswerCurrentQuestion(student.ID, started.AttemptID, []uint{choice.ID})
			require.NoError(t, err)
		} else {
			_, err = attemptSvc.Submit(student.ID, started.AttemptID)
			require.NoError(t, err)
		}
	}

	stats, err := svc.GetStatistics(context.Background(), teacherClaims(teacher.ID), quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAttempts)
	assert.Equal(t, 2, stats.CompletedAttempts)
	assert.Equal(t, 1, stats.PassedAttempts)
	require.NotNil(t, stats.AverageScore)
	assert.InDelta(t, 50.0, *stats.AverageScore, 0.01)
	require.NotNil(t, stats.PassRate)
	assert.InDelta(t, 50.0, *stats.PassRate, 0.01)
}
