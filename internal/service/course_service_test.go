package service

import (
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCourseService(db *gorm.DB) *CourseService {
	return NewCourseService(
		repository.NewCourseRepository(db),
		repository.NewTopicRepository(db),
		repository.NewLessonRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewQuizRepository(db),
		repository.NewAttemptRepository(db),
		repository.NewUserRepository(db),
	)
}

func TestEnrollIsUnique(t *testing.T) {
	db, _, course, _ := setupCourseFixture(t)
	svc := newCourseService(db)

	student := &model.User{Name: "S", Email: "s@test.local", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(student).Error)

	require.NoError(t, svc.Enroll(student.ID, course.ID))
	assert.ErrorIs(t, svc.Enroll(student.ID, course.ID), util.ErrAlreadyEnrolled)

	require.NoError(t, svc.Unenroll(student.ID, course.ID))
	assert.ErrorIs(t, svc.Unenroll(student.ID, course.ID), util.ErrNotEnrolled)
}

func TestTopicOrderUniquePerCourse(t *testing.T) {
	db, teacher, course, _ := setupCourseFixture(t)
	svc := newCourseService(db)
	claims := teacherClaims(teacher.ID)

	_, err := svc.CreateTopic(claims, course.ID, &CreateTopicRequest{Title: "Dup", Order: 0})
	assert.ErrorIs(t, err, util.ErrTopicOrderTaken)

	topic, err := svc.CreateTopic(claims, course.ID, &CreateTopicRequest{Title: "Next", Order: 1})
	require.NoError(t, err)

	// 改到已占用的顺序值同样拒绝
	zero := 0
	_, err = svc.UpdateTopic(claims, topic.ID, &UpdateTopicRequest{Order: &zero})
	assert.ErrorIs(t, err, util.ErrTopicOrderTaken)
}

func TestTeacherCreatesCourseOwnedBySelf(t *testing.T) {
	db, teacher, _, _ := setupCourseFixture(t)
	svc := newCourseService(db)

	someoneElse := uint(999)
	course, err := svc.CreateCourse(teacherClaims(teacher.ID), &CreateCourseRequest{
		Title:     "Own course",
		TeacherID: &someoneElse, // 教师建课忽略该字段
	})
	require.NoError(t, err)
	require.NotNil(t, course.TeacherID)
	assert.Equal(t, teacher.ID, *course.TeacherID)
}

func TestProgressSequentialUnlock(t *testing.T) {
	db, teacher, course, topic1 := setupCourseFixture(t)
	svc := newCourseService(db)
	quizSvc := newQuizService(db)
	attemptSvc := newAttemptService(db)

	_, err := svc.CreateTopic(teacherClaims(teacher.ID), course.ID, &CreateTopicRequest{Title: "Next", Order: 1})
	require.NoError(t, err)

	quiz1, err := quizSvc.CreateQuiz(teacherClaims(teacher.ID), validCreateRequest(topic1.ID))
	require.NoError(t, err)

	student := &model.User{Name: "S", Email: "s@test.local", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(student).Error)
	require.NoError(t, svc.Enroll(student.ID, course.ID))

	progress, err := svc.GetProgress(student.ID, course.ID)
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.True(t, progress[0].Unlocked, "first topic is always unlocked")
	assert.False(t, progress[1].Unlocked, "second topic locked until previous quiz passed")

	// 通过第一个主题的测验后第二个主题解锁
	started, err := attemptSvc.StartAttempt(student.ID, quiz1.ID)
	require.NoError(t, err)
	view, err := attemptSvc.GetCurrentQuestion(student.ID, started.AttemptID)
	require.NoError(t, err)
	var choice model.Choice
	require.NoError(t, db.Where("question_id = ? AND is_correct = ?", view.Question.ID, true).First(&choice).Error)
	_, err = attemptSvc.AnswerCurrentQuestion(student.ID, started.AttemptID, []uint{choice.ID})
	require.NoError(t, err)

	progress, err = svc.GetProgress(student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, progress[0].QuizPassed)
	assert.True(t, progress[1].Unlocked)
}

func TestMarkLessonCompletedRequiresEnrollment(t *testing.T) {
	db, _, _, topic := setupCourseFixture(t)
	svc := newCourseService(db)

	lesson := &model.Lesson{TopicID: topic.ID, Title: "L1"}
	require.NoError(t, db.Create(lesson).Error)

	student := &model.User{Name: "S", Email: "s@test.local", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(student).Error)

	assert.ErrorIs(t, svc.MarkLessonCompleted(student.ID, lesson.ID), util.ErrNotEnrolled)

	require.NoError(t, svc.Enroll(student.ID, topic.CourseID))
	require.NoError(t, svc.MarkLessonCompleted(student.ID, lesson.ID))
	// 幂等
	require.NoError(t, svc.MarkLessonCompleted(student.ID, lesson.ID))

	count, err := repository.NewLessonRepository(db).CountCompletedInTopic(student.ID, topic.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
