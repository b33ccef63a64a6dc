package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rrrrrr/school-system/backend/internal/config"
	"github.com/rrrrrr/school-system/backend/internal/domain"
)

// Repository 是基于 PostgreSQL 的用户目录
type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

var _ domain.UserRepository = (*Repository)(nil)

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}

// CreateSchema 创建 users 表及唯一约束，表已存在时不做任何修改
func (r *Repository) CreateSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL,
			name          TEXT NOT NULL,
			department    TEXT NOT NULL,
			student_id    TEXT,
			staff_id      TEXT,
			position      TEXT,
			grade         INTEGER,
			status        TEXT NOT NULL DEFAULT 'active',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login    TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS users_role_status_idx ON users (role, status);
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query)
	return err
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return r.dbpool.PingContext(ctx)
}
