package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/rrrrrr/school-system/backend/internal/auth"
	"github.com/rrrrrr/school-system/backend/internal/config"
	"github.com/rrrrrr/school-system/backend/internal/repository"
	"github.com/rrrrrr/school-system/backend/internal/seed"
)

func main() {
	var op int
	var n int

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入预设用户)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.Store.Backend == config.BackendMemory {
		logger.Error("内存存储在进程退出后不会保留数据，请选择 postgres 或 redis")
		os.Exit(1)
	}

	// 连接存储
	repo, closeRepo, err := repository.Open(context.Background(), cfg)
	if err != nil {
		logger.Error("无法连接到存储", "error", err)
		os.Exit(1)
	}

	exitCode := 0
	hasher := auth.NewHasher(cfg.Bcrypt.Cost)
	ctx := context.Background()

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
		exitCode = 2
	case 1:
		cnt, err := seed.SeedRandomUsers(ctx, repo, hasher, cfg.Seed.User.Password, cfg.Email.UserDomain, n)
		if err != nil {
			slog.Error("无法插入随机用户", slog.Int("inserted", cnt), slog.String("error", err.Error()))
			exitCode = 1
			break
		}
		slog.Info("插入用户成功", slog.Int("count", cnt))
	case 2:
		cnt, err := seed.SeedDefaultUsers(ctx, repo, hasher, cfg.Seed.User.Password)
		if err != nil {
			slog.Error("无法插入预设用户", slog.Int("inserted", cnt), slog.String("error", err.Error()))
			exitCode = 1
			break
		}
		slog.Info("插入预设用户成功", slog.Int("count", cnt))
	default:
		slog.Error("指定的操作非法")
		exitCode = 2
	}

	// os.Exit 不会执行 defer，需要先释放连接
	closeRepo()
	os.Exit(exitCode)
}
