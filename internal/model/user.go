package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name             string    `gorm:"size:100;not null" json:"name"`
	Email            string    `gorm:"size:100;unique;not null" json:"email"`
	Password         string    `gorm:"size:100;not null" json:"-"`
	// 角色用 check 约束表达，MySQL 与测试用的 sqlite 都能建表
	Role             UserRole  `gorm:"size:20;default:'student';check:role IN ('student','teacher','admin')" json:"role"`
	Suspended        bool      `gorm:"default:false" json:"suspended"`
	Avatar           string    `gorm:"size:255" json:"avatar"`
	SecurityQuestion string    `gorm:"size:255" json:"securityQuestion,omitempty"`
	SecurityAnswer   string    `gorm:"size:100" json:"-"` // bcrypt 哈希，不是明文
	LastLogin        time.Time `gorm:"autoCreateTime" json:"lastLogin"`
	LastSeen         time.Time `gorm:"autoCreateTime" json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}

// PasswordResetToken 密保问题验证通过后签发，一次性使用
type PasswordResetToken struct {
	UUIDBase
	UserID    uint      `gorm:"index;type:bigint unsigned" json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `gorm:"default:false" json:"used"`
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}
