package repository

import (
	"time"

	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) Create(lesson *model.Lesson) error {
	return r.DB.Create(lesson).Error
}

func (r *LessonRepository) Update(lesson *model.Lesson) error {
	return r.DB.Save(lesson).Error
}

func (r *LessonRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Lesson{}, id).Error
}

func (r *LessonRepository) FindByID(id uint) (*model.Lesson, error) {
	var l model.Lesson
	if err := r.DB.First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LessonRepository) ListByTopic(topicID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("topic_id = ?", topicID).Order("`order`, id").Find(&lessons).Error
	return lessons, err
}

func (r *LessonRepository) CountByTopic(topicID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Lesson{}).Where("topic_id = ?", topicID).Count(&count).Error
	return count, err
}

// MarkCompleted 幂等：重复标记不报错
func (r *LessonRepository) MarkCompleted(studentID, lessonID uint) error {
	var existing model.LessonCompletion
	err := r.DB.Where("student_id = ? AND lesson_id = ?", studentID, lessonID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.DB.Create(&model.LessonCompletion{
			StudentID:   studentID,
			LessonID:    lessonID,
			Completed:   true,
			CompletedAt: time.Now(),
		}).Error
	}
	if err != nil {
		return err
	}
	if !existing.Completed {
		existing.Completed = true
		existing.CompletedAt = time.Now()
		return r.DB.Save(&existing).Error
	}
	return nil
}

func (r *LessonRepository) CountCompletedInTopic(studentID, topicID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.LessonCompletion{}).
		Joins("JOIN lessons ON lessons.id = lesson_completions.lesson_id").
		Where("lesson_completions.student_id = ? AND lessons.topic_id = ? AND lesson_completions.completed = ?",
			studentID, topicID, true).
		Count(&count).Error
	return count, err
}
