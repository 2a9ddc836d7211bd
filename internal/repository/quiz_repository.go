package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

// QuizRepository 测验目录存储：卷、题、选项
type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) Update(quiz *model.Quiz) error {
	return r.DB.Save(quiz).Error
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var q model.Quiz
	if err := r.DB.First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// FindByIDFull 预加载题目（按 order，平级按主键）与选项
func (r *QuizRepository) FindByIDFull(id uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.`order`, questions.id")
		}).
		Preload("Questions.Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("choices.id")
		}).
		First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) FindByTopic(topicID uint) (*model.Quiz, error) {
	var q model.Quiz
	if err := r.DB.Where("topic_id = ?", topicID).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) QuestionIDs(quizID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Question{}).Where("quiz_id = ?", quizID).
		Order("`order`, id").Pluck("id", &ids).Error
	return ids, err
}

func (r *QuizRepository) FindQuestion(id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.Preload("Choices", func(db *gorm.DB) *gorm.DB {
		return db.Order("choices.id")
	}).First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) CountQuestions(quizID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).Where("quiz_id = ?", quizID).Count(&count).Error
	return count, err
}

// TotalPoints 卷面总分（全部题目，不只是已作答的）
func (r *QuizRepository) TotalPoints(quizID uint) (int, error) {
	var total *int
	err := r.DB.Model(&model.Question{}).Where("quiz_id = ?", quizID).
		Select("SUM(points)").Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}

func (r *QuizRepository) MaxQuestionOrder(quizID uint) (int, error) {
	var max *int
	err := r.DB.Model(&model.Question{}).Where("quiz_id = ?", quizID).
		Select("MAX(`order`)").Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max, nil
}
