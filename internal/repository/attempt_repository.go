package repository

import (
	"errors"
	"time"

	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.QuizAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) Update(attempt *model.QuizAttempt) error {
	return r.DB.Save(attempt).Error
}

func (r *AttemptRepository) FindByID(id uint) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	if err := r.DB.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindOpen 未完成的进行中记录，同一 (student, quiz) 至多一条
func (r *AttemptRepository) FindOpen(studentID, quizID uint) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	err := r.DB.Where("student_id = ? AND quiz_id = ? AND completed_at IS NULL", studentID, quizID).
		Order("started_at DESC").First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) HasOpen(studentID, quizID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("student_id = ? AND quiz_id = ? AND completed_at IS NULL AND is_expired = ?", studentID, quizID, false).
		Count(&count).Error
	return count > 0, err
}

func (r *AttemptRepository) MarkExpired(attemptID uint) error {
	return r.DB.Model(&model.QuizAttempt{}).Where("id = ?", attemptID).
		Update("is_expired", true).Error
}

var errStalePointer = errors.New("stale question pointer")

// RecordResponseAndAdvance 单事务内推进指针并写入作答。
// 指针更新以 (id, 当前下标, 未完成) 为条件，竞态中后到的一方 affected=0，整体回滚。
func (r *AttemptRepository) RecordResponseAndAdvance(attempt *model.QuizAttempt, response *model.QuestionResponse) (bool, error) {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.QuizAttempt{}).
			Where("id = ? AND current_question_index = ? AND completed_at IS NULL",
				attempt.ID, attempt.CurrentQuestionIndex).
			Update("current_question_index", attempt.CurrentQuestionIndex+1)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStalePointer
		}
		return tx.Create(response).Error
	})
	if errors.Is(err, errStalePointer) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	attempt.CurrentQuestionIndex++
	return true, nil
}

// Finalize 条件更新封榜，completed_at 非空的记录不再改动；
// 返回 false 表示已有并发方先完成，调用方应回读既有结果。
func (r *AttemptRepository) Finalize(attemptID uint, score float64, passed bool, completedAt time.Time, expired bool) (bool, error) {
	updates := map[string]interface{}{
		"score":        score,
		"passed":       passed,
		"completed_at": completedAt,
	}
	if expired {
		updates["is_expired"] = true
	}
	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND completed_at IS NULL", attemptID).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AttemptRepository) ResponsesByAttempt(attemptID uint) ([]model.QuestionResponse, error) {
	var responses []model.QuestionResponse
	err := r.DB.Where("attempt_id = ?", attemptID).Order("id").Find(&responses).Error
	return responses, err
}

func (r *AttemptRepository) CountResponses(attemptID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuestionResponse{}).Where("attempt_id = ?", attemptID).Count(&count).Error
	return count, err
}

func (r *AttemptRepository) HasAttempts(quizID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).Where("quiz_id = ?", quizID).Count(&count).Error
	return count > 0, err
}

func (r *AttemptRepository) HasPassed(studentID, quizID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("student_id = ? AND quiz_id = ? AND passed = ?", studentID, quizID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *AttemptRepository) ListByQuiz(quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("quiz_id = ?", quizID).Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListByStudentAndQuiz(studentID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListRecentByStudent(studentID uint, limit int) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("student_id = ?", studentID).
		Order("started_at DESC").Limit(limit).Find(&attempts).Error
	return attempts, err
}

// ListExpiredOpen 供后台清扫：已过期但仍未完成的记录
func (r *AttemptRepository) ListExpiredOpen(now time.Time, limit int) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("completed_at IS NULL AND expires_at IS NOT NULL AND expires_at < ?", now).
		Limit(limit).Find(&attempts).Error
	return attempts, err
}

// CountPassedDistinctQuizzes 学生在给定测验集合中通过的去重测验数
func (r *AttemptRepository) CountPassedDistinctQuizzes(studentID uint, quizIDs []uint) (int64, error) {
	if len(quizIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("student_id = ? AND quiz_id IN ? AND passed = ?", studentID, quizIDs, true).
		Distinct("quiz_id").Count(&count).Error
	return count, err
}
