package service

import (
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const resetTokenTTL = 15 * time.Minute

// AuthService 注册、登录与密保问题找回密码
type AuthService struct {
	UserRepo  *repository.UserRepository
	AuditRepo *repository.AuditLogRepository
	Config    *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, auditRepo *repository.AuditLogRepository, cfg *config.Config) *AuthService {
	return &AuthService{UserRepo: userRepo, AuditRepo: auditRepo, Config: cfg}
}

type RegisterRequest struct {
	Name             string `json:"name" binding:"required,max=100"`
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=8"`
	SecurityQuestion string `json:"securityQuestion" binding:"omitempty,max=255"`
	SecurityAnswer   string `json:"securityAnswer" binding:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type SecurityQuestionResponse struct {
	SecurityQuestion string `json:"securityQuestion"`
}

type VerifyAnswerRequest struct {
	Email          string `json:"email" binding:"required,email"`
	SecurityAnswer string `json:"securityAnswer" binding:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// Register 公开注册只产生学生账号，教师/管理员走管理端
func (s *AuthService) Register(req *RegisterRequest) (*model.User, error) {
	if _, err := s.UserRepo.FindByEmail(req.Email); err == nil {
		return nil, util.ErrEmailRegistered
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Role:     model.Student,
	}
	if req.SecurityQuestion != "" && req.SecurityAnswer != "" {
		answerHash, err := bcrypt.GenerateFromPassword([]byte(req.SecurityAnswer), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.SecurityQuestion = req.SecurityQuestion
		user.SecurityAnswer = string(answerHash)
	}

	if err := s.UserRepo.Create(user); err != nil {
		return nil, err
	}
	_ = s.AuditRepo.Record(&user.ID, "user.register")
	logger.Log.Info("user registered", zap.Uint("userId", user.ID), zap.String("email", user.Email))
	return user, nil
}

func (s *AuthService) Login(req *LoginRequest) (*LoginResponse, error) {
	user, err := s.UserRepo.FindByEmail(req.Email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, util.ErrUserNotFound
	}
	if user.Suspended {
		return nil, util.ErrUserSuspended
	}

	token, err := util.GenerateJWT(user, s.Config.JWT.Secret, s.Config.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	_ = s.UserRepo.UpdateLastLogin(user.ID)
	_ = s.AuditRepo.Record(&user.ID, "user.login")
	return &LoginResponse{Token: token, User: user}, nil
}

// GetSecurityQuestion 找回密码第一步。为避免账号枚举，
// 未注册邮箱与未设密保统一返回 ErrNoSecurityQuestion。
func (s *AuthService) GetSecurityQuestion(email string) (*SecurityQuestionResponse, error) {
	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrNoSecurityQuestion
		}
		return nil, err
	}
	if user.SecurityQuestion == "" {
		return nil, util.ErrNoSecurityQuestion
	}
	return &SecurityQuestionResponse{SecurityQuestion: user.SecurityQuestion}, nil
}

// VerifySecurityAnswer 答案比对通过后签发一次性重置令牌
func (s *AuthService) VerifySecurityAnswer(req *VerifyAnswerRequest) (string, error) {
	user, err := s.UserRepo.FindByEmail(req.Email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", util.ErrWrongSecurityAnswer
		}
		return "", err
	}
	if user.SecurityAnswer == "" {
		return "", util.ErrNoSecurityQuestion
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.SecurityAnswer), []byte(req.SecurityAnswer)); err != nil {
		_ = s.AuditRepo.Record(&user.ID, "user.reset_answer_failed")
		return "", util.ErrWrongSecurityAnswer
	}

	token := &model.PasswordResetToken{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := s.UserRepo.CreateResetToken(token); err != nil {
		return "", err
	}
	_ = s.AuditRepo.Record(&user.ID, "user.reset_token_issued")
	return token.ID, nil
}

// ResetPassword 消费一次性令牌并改密
func (s *AuthService) ResetPassword(req *ResetPasswordRequest) error {
	token, err := s.UserRepo.FindResetToken(req.Token)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return util.ErrInvalidResetToken
		}
		return err
	}
	if token.Used || time.Now().After(token.ExpiresAt) {
		return util.ErrInvalidResetToken
	}

	user, err := s.UserRepo.FindByID(token.UserID)
	if err != nil {
		return util.ErrInvalidResetToken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashed)
	if err := s.UserRepo.Update(user); err != nil {
		return err
	}
	if err := s.UserRepo.MarkResetTokenUsed(token.ID); err != nil {
		return err
	}
	_ = s.AuditRepo.Record(&user.ID, "user.password_reset")
	logger.Log.Info("password reset", zap.Uint("userId", user.ID))
	return nil
}
