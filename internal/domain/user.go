package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleHR      Role = "hr"
)

// Roles 按固定顺序列出所有角色，统计接口依赖这个顺序
var Roles = []Role{RoleAdmin, RoleStudent, RoleStaff, RoleHR}

var ErrInvalidRole = errors.New("无效的角色")

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleStudent, RoleStaff, RoleHR:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// CanReadDirectory 表示该角色能否读取用户目录（统计、按角色列出用户）
func (r Role) CanReadDirectory() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleStudent, RoleStaff, RoleHR:
		return false
	default:
		return false
	}
}

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Name         string     `json:"name"`
	Department   string     `json:"department"`
	StudentID    *string    `json:"studentId"`
	StaffID      *string    `json:"staffId"`
	Position     *string    `json:"position"`
	Grade        *int       `json:"grade"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin"`
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

var (
	ErrUserNotFound = errors.New("用户不存在")
	ErrDuplicateKey = errors.New("唯一键冲突")
)

// DuplicateKeyError 由存储层在违反唯一约束时返回，Key 为 "username" 或 "email"
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("唯一键冲突: %s", e.Key)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

const (
	KeyUsername = "username"
	KeyEmail    = "email"
)

// UserRepository 是用户目录的存储接口，唯一性必须由存储本身原子地保证
type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	CountUsersByRole(ctx context.Context, role Role, status UserStatus) (int, error)
	GetUsersByRole(ctx context.Context, role Role, status UserStatus) ([]*User, error)
	Ping(ctx context.Context) error
}
