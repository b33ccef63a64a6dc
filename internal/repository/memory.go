package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rrrrrr/school-system/backend/internal/domain"
)

// MemoryRepository 把用户保存在进程内存中，用于开发和测试
type MemoryRepository struct {
	mu         sync.Mutex
	users      map[string]*domain.User
	byUsername map[string]string
	byEmail    map[string]string
}

var _ domain.UserRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func (m *MemoryRepository) lookup(index map[string]string, key string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := index[key]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(m.users[id]), nil
}

func (m *MemoryRepository) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.lookup(m.byUsername, username)
}

func (m *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.lookup(m.byEmail, email)
}

func (m *MemoryRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (m *MemoryRepository) CreateUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUsername[user.Username]; ok {
		return &domain.DuplicateKeyError{Key: domain.KeyUsername}
	}
	if _, ok := m.byEmail[user.Email]; ok {
		return &domain.DuplicateKeyError{Key: domain.KeyEmail}
	}

	user.ID = uuid.NewString()
	m.users[user.ID] = cloneUser(user)
	m.byUsername[user.Username] = user.ID
	m.byEmail[user.Email] = user.ID

	return nil
}

func (m *MemoryRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.LastLogin = &at

	return nil
}

func (m *MemoryRepository) CountUsersByRole(_ context.Context, role domain.Role, status domain.UserStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, user := range m.users {
		if user.Role == role && user.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *MemoryRepository) GetUsersByRole(_ context.Context, role domain.Role, status domain.UserStatus) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]*domain.User, 0)
	for _, user := range m.users {
		if user.Role == role && user.Status == status {
			users = append(users, cloneUser(user))
		}
	}
	return users, nil
}

func (m *MemoryRepository) Ping(_ context.Context) error {
	return nil
}
