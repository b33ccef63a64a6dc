package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rrrrrr/school-system/backend/internal/auth"
	"github.com/rrrrrr/school-system/backend/internal/domain"
)

const TokenTypeBearer = "bearer"

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type TokenManager interface {
	Issue(subject string, ttl time.Duration) (string, time.Time, error)
	Validate(token string) (string, error)
}

// MailPublisher 把邮件消息投递到队列，由独立的 mail worker 发送
type MailPublisher interface {
	Publish(ctx context.Context, msg domain.MailMessage) error
}

type AuthService struct {
	users  domain.UserRepository
	hasher PasswordHasher
	tokens TokenManager
	mails  MailPublisher
	now    func() time.Time
}

// NewAuthService 创建认证服务，mails 可以为 nil，此时不发送欢迎邮件
func NewAuthService(users domain.UserRepository, hasher PasswordHasher, tokens TokenManager, mails MailPublisher) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		mails:  mails,
		now:    time.Now,
	}
}

func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	User        *domain.User
}

// checkCredentials 是登录时唯一的校验点，三种失败情况都返回 ErrInvalidCredentials
func (s *AuthService) checkCredentials(user *domain.User, password string, claimedRole domain.Role) error {
	if !user.IsActive() {
		return ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if user.Role != claimedRole {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, username, password string, claimedRole domain.Role) (*LoginResult, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, unavailable(err)
	}

	if err := s.checkCredentials(user, password, claimedRole); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, unavailable(err)
	}
	user.LastLogin = &now

	token, expiresAt, err := s.tokens.Issue(user.Username, 0)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

type RegisterInput struct {
	Username   string
	Password   string
	Email      string
	Role       string
	Name       string
	Department string
	StudentID  *string
	StaffID    *string
	Position   *string
	Grade      *int
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	// 预检查只用于给出更友好的错误，真正的唯一性由存储层保证
	if _, err := s.users.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, unavailable(err)
	}

	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, unavailable(err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         role,
		Name:         in.Name,
		Department:   in.Department,
		StudentID:    in.StudentID,
		StaffID:      in.StaffID,
		Position:     in.Position,
		Grade:        in.Grade,
		Status:       domain.StatusActive,
		CreatedAt:    s.now().UTC(),
		LastLogin:    nil,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		var dupErr *domain.DuplicateKeyError
		if errors.As(err, &dupErr) {
			switch dupErr.Key {
			case domain.KeyUsername:
				return nil, ErrDuplicateUsername
			case domain.KeyEmail:
				return nil, ErrDuplicateEmail
			}
		}
		return nil, unavailable(err)
	}

	created, err := s.users.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, unavailable(err)
	}

	s.sendWelcomeMail(ctx, created)

	return created, nil
}

func (s *AuthService) sendWelcomeMail(ctx context.Context, user *domain.User) {
	if s.mails == nil {
		return
	}

	msg := domain.MailMessage{
		Type: domain.MailTypeWelcome,
		To:   user.Email,
		Data: domain.WelcomeMailData{
			Name:       user.Name,
			Username:   user.Username,
			Role:       user.Role,
			Department: user.Department,
		},
	}
	if err := s.mails.Publish(ctx, msg); err != nil {
		// 用户已经创建成功，邮件失败不影响注册结果
		slog.Warn("无法投递欢迎邮件", "username", user.Username, "error", err)
	}
}

// ResolveCurrentUser 根据令牌找到当前用户，任何失败都归为 ErrUnauthorized（存储故障除外）
func (s *AuthService) ResolveCurrentUser(ctx context.Context, token string) (*domain.User, error) {
	username, err := s.tokens.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, unavailable(err)
	}

	if !user.IsActive() {
		return nil, ErrUnauthorized
	}

	return user, nil
}

var _ TokenManager = (*auth.TokenIssuer)(nil)
var _ PasswordHasher = (*auth.Hasher)(nil)
