package database

import (
	"fmt"
	"testing"

	"lms_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newSqliteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db
}

// 模型的列定义必须同时能在 MySQL 和 sqlite 上建表，测试环境依赖后者
func TestMigrateOnSqlite(t *testing.T) {
	db := newSqliteDB(t)
	require.NoError(t, Migrate(db))

	user := &model.User{Name: "N", Email: "n@test.local", Password: "x"}
	require.NoError(t, db.Create(user).Error)
	assert.False(t, user.LastLogin.IsZero())
	assert.False(t, user.LastSeen.IsZero())

	var stored model.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, model.Student, stored.Role, "role defaults to student")
}

// 枚举列靠 check 约束兜底，非法取值在库层被拒
func TestEnumColumnsRejectUnknownValues(t *testing.T) {
	db := newSqliteDB(t)
	require.NoError(t, Migrate(db))

	err := db.Create(&model.User{Name: "X", Email: "x@test.local", Password: "x", Role: "superuser"}).Error
	assert.Error(t, err)

	err = db.Create(&model.Question{QuizID: 1, Text: "Q", Type: "essay", Points: 1}).Error
	assert.Error(t, err)

	question := &model.Question{QuizID: 1, Text: "Q", Points: 1}
	require.NoError(t, db.Create(question).Error)
	var stored model.Question
	require.NoError(t, db.First(&stored, question.ID).Error)
	assert.Equal(t, model.SingleAnswer, stored.Type)
}
