package service

import (
	"context"
	"fmt"

	"github.com/rrrrrr/school-system/backend/internal/domain"
)

// DirectoryService 提供只有管理员可以访问的用户目录读取
type DirectoryService struct {
	users domain.UserRepository
}

func NewDirectoryService(users domain.UserRepository) *DirectoryService {
	return &DirectoryService{users: users}
}

func authorizeDirectoryRead(actor *domain.User) error {
	if actor == nil {
		return ErrUnauthorized
	}
	if !actor.Role.CanReadDirectory() {
		return ErrForbidden
	}
	return nil
}

// GetUserStats 统计每个角色的在职用户数量，所有角色都会出现在结果中
func (s *DirectoryService) GetUserStats(ctx context.Context, actor *domain.User) (map[domain.Role]int, error) {
	if err := authorizeDirectoryRead(actor); err != nil {
		return nil, err
	}

	stats := make(map[domain.Role]int, len(domain.Roles))
	for _, role := range domain.Roles {
		count, err := s.users.CountUsersByRole(ctx, role, domain.StatusActive)
		if err != nil {
			return nil, unavailable(err)
		}
		stats[role] = count
	}

	return stats, nil
}

func (s *DirectoryService) GetUsersByRole(ctx context.Context, actor *domain.User, role string) ([]*domain.User, error) {
	if err := authorizeDirectoryRead(actor); err != nil {
		return nil, err
	}

	r, err := domain.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	users, err := s.users.GetUsersByRole(ctx, r, domain.StatusActive)
	if err != nil {
		return nil, unavailable(err)
	}

	return users, nil
}
