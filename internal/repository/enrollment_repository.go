package repository

import (
	"time"

	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) Create(studentID, courseID uint) error {
	return r.DB.Create(&model.CourseEnrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		EnrolledAt: time.Now(),
	}).Error
}

func (r *EnrollmentRepository) Delete(studentID, courseID uint) error {
	return r.DB.Where("student_id = ? AND course_id = ?", studentID, courseID).
		Delete(&model.CourseEnrollment{}).Error
}

func (r *EnrollmentRepository) Exists(studentID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.CourseEnrollment{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) ListByStudent(studentID uint) ([]model.CourseEnrollment, error) {
	var enrollments []model.CourseEnrollment
	err := r.DB.Where("student_id = ?", studentID).Order("enrolled_at").Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) ListByCourse(courseID uint) ([]model.CourseEnrollment, error) {
	var enrollments []model.CourseEnrollment
	err := r.DB.Where("course_id = ?", courseID).Order("enrolled_at").Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) CountByCourse(courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.CourseEnrollment{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}
