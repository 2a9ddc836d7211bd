package model

type QuestionType string

const (
	SingleAnswer   QuestionType = "single"
	MultipleAnswer QuestionType = "multiple"
)

// swagger:model Quiz
type Quiz struct {
	BaseModel
	TopicID     uint   `gorm:"uniqueIndex;type:bigint unsigned" json:"topicId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	// 及格线，百分比 0-100
	PassMark int `gorm:"default:70" json:"passMark"`
	// 限时，分钟，>=1
	TimeLimit int `gorm:"default:30" json:"timeLimit"`

	Questions []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// TotalPoints 卷面总分，依赖 Questions 已预加载
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// swagger:model Question
type Question struct {
	BaseModel
	QuizID uint         `gorm:"index;type:bigint unsigned" json:"quizId"`
	Text   string       `gorm:"type:text;not null" json:"text"`
	Type   QuestionType `gorm:"size:20;default:'single';check:type IN ('single','multiple')" json:"type"`
	Points int          `gorm:"default:1" json:"points"`
	// 展示顺序，不强制唯一，相同值按插入顺序
	Order int `gorm:"default:0" json:"order"`

	Choices []Choice `gorm:"foreignKey:QuestionID" json:"choices,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model Choice
type Choice struct {
	BaseModel
	QuestionID uint   `gorm:"index;type:bigint unsigned" json:"questionId"`
	Text       string `gorm:"size:255;not null" json:"text"`
	// 答案标记，学生侧序列化前必须剥离
	IsCorrect bool `gorm:"default:false" json:"isCorrect,omitempty"`
}

func (Choice) TableName() string {
	return "choices"
}
