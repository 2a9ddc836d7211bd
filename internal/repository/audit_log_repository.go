package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type AuditLogRepository struct {
	DB *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{DB: db}
}

func (r *AuditLogRepository) Record(userID *uint, action string) error {
	return r.DB.Create(&model.AuditLog{UserID: userID, Action: action}).Error
}

func (r *AuditLogRepository) List(page, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64
	if err := r.DB.Model(&model.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.DB.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).Find(&logs).Error
	return logs, total, err
}
