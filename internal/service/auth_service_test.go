package service

import (
	"testing"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAuthService(db *gorm.DB) *AuthService {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-test-secret-test-secret!"
	cfg.JWT.ExpireTime = time.Hour
	return NewAuthService(
		repository.NewUserRepository(db),
		repository.NewAuditLogRepository(db),
		cfg,
	)
}

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)

	user, err := svc.Register(&RegisterRequest{
		Name:             "Alice",
		Email:            "alice@test.local",
		Password:         "password123",
		SecurityQuestion: "Favorite color?",
		SecurityAnswer:   "blue",
	})
	require.NoError(t, err)
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "password123", user.Password, "password must be hashed")
	assert.NotEqual(t, "blue", user.SecurityAnswer, "security answer must be hashed")

	_, err = svc.Register(&RegisterRequest{Name: "Dup", Email: "alice@test.local", Password: "password123"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	resp, err := svc.Login(&LoginRequest{Email: "alice@test.local", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	_, err = svc.Login(&LoginRequest{Email: "alice@test.local", Password: "wrong"})
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestLoginRejectsSuspended(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)

	_, err := svc.Register(&RegisterRequest{Name: "Bob", Email: "bob@test.local", Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.User{}).Where("email = ?", "bob@test.local").
		Update("suspended", true).Error)

	_, err = svc.Login(&LoginRequest{Email: "bob@test.local", Password: "password123"})
	assert.ErrorIs(t, err, util.ErrUserSuspended)
}

func TestPasswordResetFlow(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)

	_, err := svc.Register(&RegisterRequest{
		Name:             "Carol",
		Email:            "carol@test.local",
		Password:         "password123",
		SecurityQuestion: "First pet?",
		SecurityAnswer:   "rex",
	})
	require.NoError(t, err)

	question, err := svc.GetSecurityQuestion("carol@test.local")
	require.NoError(t, err)
	assert.Equal(t, "First pet?", question.SecurityQuestion)

	// 未注册邮箱与未设密保走同一错误，避免账号枚举
	_, err = svc.GetSecurityQuestion("nobody@test.local")
	assert.ErrorIs(t, err, util.ErrNoSecurityQuestion)

	_, err = svc.VerifySecurityAnswer(&VerifyAnswerRequest{Email: "carol@test.local", SecurityAnswer: "cat"})
	assert.ErrorIs(t, err, util.ErrWrongSecurityAnswer)

	token, err := svc.VerifySecurityAnswer(&VerifyAnswerRequest{Email: "carol@test.local", SecurityAnswer: "rex"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, svc.ResetPassword(&ResetPasswordRequest{Token: token, NewPassword: "newpassword1"}))

	// 令牌一次性
	err = svc.ResetPassword(&ResetPasswordRequest{Token: token, NewPassword: "another1234"})
	assert.ErrorIs(t, err, util.ErrInvalidResetToken)

	_, err = svc.Login(&LoginRequest{Email: "carol@test.local", Password: "newpassword1"})
	require.NoError(t, err)
	_, err = svc.Login(&LoginRequest{Email: "carol@test.local", Password: "password123"})
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestResetTokenExpiry(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db)

	_, err := svc.Register(&RegisterRequest{
		Name:             "Dave",
		Email:            "dave@test.local",
		Password:         "password123",
		SecurityQuestion: "City?",
		SecurityAnswer:   "oslo",
	})
	require.NoError(t, err)

	token, err := svc.VerifySecurityAnswer(&VerifyAnswerRequest{Email: "dave@test.local", SecurityAnswer: "oslo"})
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.PasswordResetToken{}).Where("id = ?", token).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	err = svc.ResetPassword(&ResetPasswordRequest{Token: token, NewPassword: "newpassword1"})
	assert.ErrorIs(t, err, util.ErrInvalidResetToken)
}
