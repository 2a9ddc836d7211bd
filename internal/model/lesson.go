package model

import "time"

// swagger:model Lesson
type Lesson struct {
	BaseModel
	TopicID        uint   `gorm:"index;type:bigint unsigned" json:"topicId"`
	Title          string `gorm:"size:200;not null" json:"title"`
	Description    string `gorm:"type:text" json:"description"`
	Order          int    `gorm:"default:0" json:"order"`
	PDFURL         string `gorm:"size:255" json:"pdfUrl,omitempty"`
	VideoURL       string `gorm:"size:255" json:"videoUrl,omitempty"`
	ExternalLinks  string `gorm:"type:json" json:"externalLinks,omitempty"` // JSON array of URLs
	ContextualHelp string `gorm:"type:text" json:"contextualHelp,omitempty"`
}

func (Lesson) TableName() string {
	return "lessons"
}

type LessonCompletion struct {
	BaseModel
	StudentID   uint      `gorm:"uniqueIndex:idx_student_lesson;type:bigint unsigned" json:"studentId"`
	LessonID    uint      `gorm:"uniqueIndex:idx_student_lesson;type:bigint unsigned" json:"lessonId"`
	Completed   bool      `gorm:"default:false" json:"completed"`
	CompletedAt time.Time `json:"completedAt"`
}

func (LessonCompletion) TableName() string {
	return "lesson_completions"
}
