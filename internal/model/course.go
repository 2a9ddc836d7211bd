package model

import "time"

// swagger:model Course
type Course struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	TeacherID   *uint  `gorm:"index;type:bigint unsigned" json:"teacherId,omitempty"`
	Teacher     *User  `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`

	Topics []Topic `gorm:"foreignKey:CourseID" json:"topics,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// swagger:model Topic
type Topic struct {
	BaseModel
	CourseID    uint   `gorm:"index;uniqueIndex:idx_course_order;type:bigint unsigned" json:"courseId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Order       int    `gorm:"uniqueIndex:idx_course_order;default:0" json:"order"`
	// 需完成的课时数，达到后该主题的测验才开放
	QuizRequiredLessons int `gorm:"default:0" json:"quizRequiredLessons"`

	Lessons []Lesson `gorm:"foreignKey:TopicID" json:"lessons,omitempty"`
}

func (Topic) TableName() string {
	return "topics"
}

type CourseEnrollment struct {
	BaseModel
	StudentID  uint      `gorm:"uniqueIndex:idx_student_course;type:bigint unsigned" json:"studentId"`
	CourseID   uint      `gorm:"uniqueIndex:idx_student_course;type:bigint unsigned" json:"courseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

func (CourseEnrollment) TableName() string {
	return "course_enrollments"
}
