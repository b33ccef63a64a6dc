// Package seed 向存储中写入初始管理员、预设用户以及随机测试用户。
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rrrrrr/school-system/backend/internal/config"
	"github.com/rrrrrr/school-system/backend/internal/domain"
	"github.com/rrrrrr/school-system/backend/internal/utils"
)

type Hasher interface {
	Hash(password string) (string, error)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

// DefaultUsers 返回四种身份各一个的预设账户，所有账户共用同一个密码
func DefaultUsers(passwordHash string, now time.Time) []*domain.User {
	now = now.UTC()
	return []*domain.User{
		{
			Username:     "admin",
			Email:        "admin@school.edu.tw",
			PasswordHash: passwordHash,
			Role:         domain.RoleAdmin,
			Name:         "系统管理员",
			Department:   "资讯中心",
			Status:       domain.StatusActive,
			CreatedAt:    now,
		},
		{
			Username:     "student1",
			Email:        "student1@school.edu.tw",
			PasswordHash: passwordHash,
			Role:         domain.RoleStudent,
			Name:         "学生一号",
			Department:   "资讯工程系",
			StudentID:    strPtr("S001"),
			Grade:        intPtr(1),
			Status:       domain.StatusActive,
			CreatedAt:    now,
		},
		{
			Username:     "teacher1",
			Email:        "teacher1@school.edu.tw",
			PasswordHash: passwordHash,
			Role:         domain.RoleStaff,
			Name:         "教师一号",
			Department:   "资讯工程系",
			StaffID:      strPtr("T001"),
			Position:     strPtr("副教授"),
			Status:       domain.StatusActive,
			CreatedAt:    now,
		},
		{
			Username:     "hr1",
			Email:        "hr1@school.edu.tw",
			PasswordHash: passwordHash,
			Role:         domain.RoleHR,
			Name:         "人事一号",
			Department:   "人事部",
			StaffID:      strPtr("H001"),
			Position:     strPtr("人事专员"),
			Status:       domain.StatusActive,
			CreatedAt:    now,
		},
	}
}

// insert 写入一批用户，已存在的用户被跳过，返回实际写入的数量
func insert(ctx context.Context, repo domain.UserRepository, users []*domain.User) (int, error) {
	cnt := 0
	for _, user := range users {
		if err := repo.CreateUser(ctx, user); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				slog.Info("用户已存在，跳过", "username", user.Username)
				continue
			}
			return cnt, fmt.Errorf("无法插入用户 %s: %w", user.Username, err)
		}
		cnt++
	}
	return cnt, nil
}

func SeedDefaultUsers(ctx context.Context, repo domain.UserRepository, hasher Hasher, password string) (int, error) {
	passwordHash, err := hasher.Hash(password)
	if err != nil {
		return 0, err
	}
	return insert(ctx, repo, DefaultUsers(passwordHash, time.Now()))
}

func SeedRandomUsers(ctx context.Context, repo domain.UserRepository, hasher Hasher, password, emailDomain string, n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("请输入合法的用户数量")
	}

	passwordHash, err := hasher.Hash(password)
	if err != nil {
		return 0, err
	}

	users := make([]*domain.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, utils.GenerateRandomUser(passwordHash, emailDomain, time.Now()))
	}
	return insert(ctx, repo, users)
}

// EnsureInitialAdmin 在未设置初始管理员密码时什么也不做，管理员已存在时也视为成功
func EnsureInitialAdmin(ctx context.Context, repo domain.UserRepository, hasher Hasher, cfg *config.Config) (bool, error) {
	if cfg.InitialAdmin.Password == "" {
		return false, nil
	}

	passwordHash, err := hasher.Hash(cfg.InitialAdmin.Password)
	if err != nil {
		return false, fmt.Errorf("无法生成初始管理员密码哈希: %w", err)
	}

	initialAdmin := &domain.User{
		Username:     cfg.InitialAdmin.Username,
		Email:        cfg.InitialAdmin.Email,
		PasswordHash: passwordHash,
		Role:         domain.RoleAdmin,
		Name:         cfg.InitialAdmin.Name,
		Department:   cfg.InitialAdmin.Department,
		Status:       domain.StatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	if err := repo.CreateUser(ctx, initialAdmin); err != nil {
		var dupErr *domain.DuplicateKeyError
		if errors.As(err, &dupErr) && dupErr.Key == domain.KeyUsername {
			// 说明已经存在初始管理员，不处理
			return false, nil
		}
		return false, fmt.Errorf("无法创建初始管理员: %w", err)
	}

	return true, nil
}
