package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rrrrrr/school-system/backend/internal/config"
	"github.com/rrrrrr/school-system/backend/internal/domain"
)

// RedisRepository 把每个用户保存为一个 JSON 文档：
//
//	{prefix}:user:{id}                 用户文档
//	{prefix}:username:{username}       -> id
//	{prefix}:email:{email}             -> id
//	{prefix}:role:{role}:{status}      id 集合
type RedisRepository struct {
	cfg *config.Config
	rdb *redis.Client
}

var _ domain.UserRepository = (*RedisRepository)(nil)

// 返回值 0 表示成功，1 表示用户名冲突，2 表示邮箱冲突
var createUserScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 1
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 2
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[1])
redis.call('SET', KEYS[3], ARGV[2])
redis.call('SADD', KEYS[4], ARGV[1])
return 0
`)

type userDocument struct {
	ID           string            `json:"id"`
	Username     string            `json:"username"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"passwordHash"`
	Role         domain.Role       `json:"role"`
	Name         string            `json:"name"`
	Department   string            `json:"department"`
	StudentID    *string           `json:"studentId,omitempty"`
	StaffID      *string           `json:"staffId,omitempty"`
	Position     *string           `json:"position,omitempty"`
	Grade        *int              `json:"grade,omitempty"`
	Status       domain.UserStatus `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastLogin    *time.Time        `json:"lastLogin"`
}

func toDocument(u *domain.User) userDocument {
	return userDocument{
		ID: u.ID, Username: u.Username, Email: u.Email, PasswordHash: u.PasswordHash,
		Role: u.Role, Name: u.Name, Department: u.Department,
		StudentID: u.StudentID, StaffID: u.StaffID, Position: u.Position, Grade: u.Grade,
		Status: u.Status, CreatedAt: u.CreatedAt, LastLogin: u.LastLogin,
	}
}

func (d userDocument) toUser() *domain.User {
	return &domain.User{
		ID: d.ID, Username: d.Username, Email: d.Email, PasswordHash: d.PasswordHash,
		Role: d.Role, Name: d.Name, Department: d.Department,
		StudentID: d.StudentID, StaffID: d.StaffID, Position: d.Position, Grade: d.Grade,
		Status: d.Status, CreatedAt: d.CreatedAt, LastLogin: d.LastLogin,
	}
}

func NewRedisRepository(cfg *config.Config, rdb *redis.Client) *RedisRepository {
	return &RedisRepository{
		cfg: cfg,
		rdb: rdb,
	}
}

func (r *RedisRepository) key(parts ...string) string {
	k := r.cfg.Redis.KeyPrefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (r *RedisRepository) userKey(id string) string { return r.key("user", id) }

func (r *RedisRepository) roleKey(role domain.Role, status domain.UserStatus) string {
	return r.key("role", string(role), string(status))
}

func (r *RedisRepository) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Redis.OperationTimeout)*time.Second)
}

func decodeUser(raw string) (*domain.User, error) {
	doc := userDocument{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("无法解析用户文档: %w", err)
	}
	return doc.toUser(), nil
}

func (r *RedisRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := r.operationContext(ctx)
	defer cancel()

	raw, err := r.rdb.Get(ctx, r.userKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	return decodeUser(raw)
}

func (r *RedisRepository) getUserByIndex(ctx context.Context, indexKey string) (*domain.User, error) {
	opCtx, cancel := r.operationContext(ctx)
	defer cancel()

	id, err := r.rdb.Get(opCtx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	return r.GetUserByID(ctx, id)
}

func (r *RedisRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUserByIndex(ctx, r.key("username", username))
}

func (r *RedisRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUserByIndex(ctx, r.key("email", email))
}

// CreateUser 通过 Lua 脚本原子地检查用户名和邮箱并写入文档
func (r *RedisRepository) CreateUser(ctx context.Context, user *domain.User) error {
	id := uuid.NewString()

	doc := toDocument(user)
	doc.ID = id
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	ctx, cancel := r.operationContext(ctx)
	defer cancel()

	keys := []string{
		r.key("username", user.Username),
		r.key("email", user.Email),
		r.userKey(id),
		r.roleKey(user.Role, user.Status),
	}
	result, err := createUserScript.Run(ctx, r.rdb, keys, id, string(data)).Int()
	if err != nil {
		return err
	}

	switch result {
	case 0:
		user.ID = id
		return nil
	case 1:
		return &domain.DuplicateKeyError{Key: domain.KeyUsername}
	case 2:
		return &domain.DuplicateKeyError{Key: domain.KeyEmail}
	default:
		return fmt.Errorf("未知的脚本返回值 %d", result)
	}
}

// UpdateLastLogin 使用 WATCH 乐观锁更新文档，避免覆盖并发写入
func (r *RedisRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.operationContext(ctx)
	defer cancel()

	key := r.userKey(id)
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrUserNotFound
			}
			return err
		}

		doc := userDocument{}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return fmt.Errorf("无法解析用户文档: %w", err)
		}
		doc.LastLogin = &at

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
}

func (r *RedisRepository) CountUsersByRole(ctx context.Context, role domain.Role, status domain.UserStatus) (int, error) {
	ctx, cancel := r.operationContext(ctx)
	defer cancel()

	count, err := r.rdb.SCard(ctx, r.roleKey(role, status)).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *RedisRepository) GetUsersByRole(ctx context.Context, role domain.Role, status domain.UserStatus) ([]*domain.User, error) {
	ctx, cancel := r.operationContext(ctx)
	defer cancel()

	ids, err := r.rdb.SMembers(ctx, r.roleKey(role, status)).Result()
	if err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.userKey(id)
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// 集合中残留的 id，文档已不存在
			continue
		}
		user, err := decodeUser(raw)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, nil
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.operationContext(ctx)
	defer cancel()

	return r.rdb.Ping(ctx).Err()
}
