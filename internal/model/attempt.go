package model

import (
	"encoding/json"
	"time"
)

// QuizAttempt 一名学生对一份测验的一次限时作答
// (quiz, student) 不唯一，但同一时刻最多一条未完成记录
type QuizAttempt struct {
	BaseModel
	QuizID    uint `gorm:"index;type:bigint unsigned" json:"quizId"`
	StudentID uint `gorm:"index;type:bigint unsigned" json:"studentId"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	// 百分比 0-100，完成前为 null
	Score  *float64 `json:"score,omitempty"`
	Passed bool     `gorm:"default:false" json:"passed"`

	CurrentQuestionIndex int `gorm:"default:0" json:"currentQuestionIndex"`
	// 创建时固化的乱序题目 ID（JSON array），之后的题目增删改不影响本次作答
	QuestionOrder string     `gorm:"type:json" json:"questionOrder"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	IsExpired     bool       `gorm:"default:false" json:"isExpired"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

func (a *QuizAttempt) QuestionOrderIDs() []uint {
	var ids []uint
	if a.QuestionOrder == "" {
		return ids
	}
	_ = json.Unmarshal([]byte(a.QuestionOrder), &ids)
	return ids
}

func (a *QuizAttempt) SetQuestionOrder(ids []uint) {
	b, _ := json.Marshal(ids)
	a.QuestionOrder = string(b)
}

func (a *QuizAttempt) Completed() bool {
	return a.CompletedAt != nil
}

// TimeTakenMinutes 完成用时（分钟），未完成时为 nil
func (a *QuizAttempt) TimeTakenMinutes() *float64 {
	if a.CompletedAt == nil {
		return nil
	}
	minutes := a.CompletedAt.Sub(a.StartedAt).Minutes()
	return &minutes
}

// QuestionResponse 每题一条，与指针推进同事务写入，创建后不可变
type QuestionResponse struct {
	BaseModel
	AttemptID  uint `gorm:"index;uniqueIndex:idx_attempt_question;type:bigint unsigned" json:"attemptId"`
	QuestionID uint `gorm:"uniqueIndex:idx_attempt_question;type:bigint unsigned" json:"questionId"`
	// 选中的选项 ID（JSON array）
	SelectedChoices string  `gorm:"type:json" json:"selectedChoices"`
	PointsEarned    float64 `gorm:"default:0" json:"pointsEarned"`
}

func (QuestionResponse) TableName() string {
	return "question_responses"
}

func (r *QuestionResponse) SelectedChoiceIDs() []uint {
	var ids []uint
	if r.SelectedChoices == "" {
		return ids
	}
	_ = json.Unmarshal([]byte(r.SelectedChoices), &ids)
	return ids
}

func (r *QuestionResponse) SetSelectedChoices(ids []uint) {
	b, _ := json.Marshal(ids)
	r.SelectedChoices = string(b)
}
