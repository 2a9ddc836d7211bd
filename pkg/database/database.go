package database

import (
	"fmt"
	"log"

	"lms_backend/internal/config"
	"lms_backend/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, runMigration bool) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if runMigration {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		log.Println("Database migration completed")
	}

	// 首次启动时植入默认管理员，密码必须在首登后修改
	var count int64
	db.Model(&model.User{}).Where("role = ?", model.Admin).Count(&count)
	if count == 0 {
		hashed, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err == nil {
			db.Create(&model.User{
				Name:     "Administrator",
				Email:    "admin@lms.local",
				Password: string(hashed),
				Role:     model.Admin,
			})
		}
	}

	return db, nil
}

// Migrate 建表/同步结构，测试环境用 sqlite 跑同一份模型
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.PasswordResetToken{},
		&model.Course{},
		&model.Topic{},
		&model.Lesson{},
		&model.LessonCompletion{},
		&model.CourseEnrollment{},
		&model.Quiz{},
		&model.Question{},
		&model.Choice{},
		&model.QuizAttempt{},
		&model.QuestionResponse{},
		&model.AuditLog{},
	)
}
