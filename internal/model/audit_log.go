package model

// AuditLog 管理端可见的操作流水
type AuditLog struct {
	BaseModel
	UserID *uint  `gorm:"index;type:bigint unsigned" json:"userId,omitempty"`
	Action string `gorm:"size:255;not null" json:"action"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
