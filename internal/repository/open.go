package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rrrrrr/school-system/backend/internal/config"
	"github.com/rrrrrr/school-system/backend/internal/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open 根据配置中的存储后端建立连接，返回的 close 函数用于释放连接
func Open(ctx context.Context, cfg *config.Config) (domain.UserRepository, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		return openPostgres(ctx, cfg)
	case config.BackendRedis:
		return openRedis(ctx, cfg)
	case config.BackendMemory:
		return NewMemoryRepository(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("不支持的存储后端 %q", cfg.Store.Backend)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (domain.UserRepository, func() error, error) {
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("无法创建数据库连接池: %w", err)
	}

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(pingCtx); err != nil {
		dbpool.Close()
		return nil, nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	repo := NewRepository(cfg, dbpool)
	if err := repo.CreateSchema(ctx); err != nil {
		dbpool.Close()
		return nil, nil, fmt.Errorf("无法创建数据表: %w", err)
	}

	return repo, dbpool.Close, nil
}

func openRedis(ctx context.Context, cfg *config.Config) (domain.UserRepository, func() error, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("无法连接到 redis: %w", err)
	}

	return NewRedisRepository(cfg, rdb), rdb.Close, nil
}
