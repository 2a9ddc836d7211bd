package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type TopicRepository struct {
	DB *gorm.DB
}

func NewTopicRepository(db *gorm.DB) *TopicRepository {
	return &TopicRepository{DB: db}
}

func (r *TopicRepository) Create(topic *model.Topic) error {
	return r.DB.Create(topic).Error
}

func (r *TopicRepository) Update(topic *model.Topic) error {
	return r.DB.Save(topic).Error
}

func (r *TopicRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Topic{}, id).Error
}

func (r *TopicRepository) FindByID(id uint) (*model.Topic, error) {
	var t model.Topic
	if err := r.DB.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TopicRepository) ListByCourse(courseID uint) ([]model.Topic, error) {
	var topics []model.Topic
	err := r.DB.Where("course_id = ?", courseID).
		Order("`order`, id").Find(&topics).Error
	return topics, err
}

// FindByCourseAndOrder 用于顺序解锁：取前一个主题
func (r *TopicRepository) FindByCourseAndOrder(courseID uint, order int) (*model.Topic, error) {
	var t model.Topic
	err := r.DB.Where("course_id = ? AND `order` = ?", courseID, order).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TopicRepository) OrderTaken(courseID uint, order int, excludeID uint) (bool, error) {
	var count int64
	q := r.DB.Model(&model.Topic{}).Where("course_id = ? AND `order` = ?", courseID, order)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}
