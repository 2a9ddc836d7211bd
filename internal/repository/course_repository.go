package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

func (r *CourseRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Course{}, id).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var c model.Course
	if err := r.DB.Preload("Teacher").First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByIDWithTopics 主题按 order 排序，平级按主键
func (r *CourseRepository) FindByIDWithTopics(id uint) (*model.Course, error) {
	var c model.Course
	err := r.DB.Preload("Teacher").
		Preload("Topics", func(db *gorm.DB) *gorm.DB {
			return db.Order("topics.`order`, topics.id")
		}).
		Preload("Topics.Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("lessons.`order`, lessons.id")
		}).
		First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CourseRepository) List(page, limit int) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64
	if err := r.DB.Model(&model.Course{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.DB.Preload("Teacher").Order("id").
		Offset((page - 1) * limit).Limit(limit).Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) ListByTeacher(teacherID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Where("teacher_id = ?", teacherID).Order("id").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Course{}).Count(&count).Error
	return count, err
}
