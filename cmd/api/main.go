package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rrrrrr/school-system/backend/internal/auth"
	"github.com/rrrrrr/school-system/backend/internal/config"
	"github.com/rrrrrr/school-system/backend/internal/handler"
	"github.com/rrrrrr/school-system/backend/internal/mailer"
	"github.com/rrrrrr/school-system/backend/internal/repository"
	"github.com/rrrrrr/school-system/backend/internal/seed"
	"github.com/rrrrrr/school-system/backend/internal/service"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接存储
	 **********************************************/
	repo, closeRepo, err := repository.Open(context.Background(), cfg)
	if err != nil {
		logger.Error("无法连接到存储", "backend", cfg.Store.Backend, "error", err)
		return
	}
	defer closeRepo()
	logger.Info("已连接到存储", "backend", cfg.Store.Backend)

	hasher := auth.NewHasher(cfg.Bcrypt.Cost)

	/**********************************************
	 * 确保存储中存在初始管理员以及预设用户
	 **********************************************/
	if _, err := seed.EnsureInitialAdmin(context.Background(), repo, hasher, cfg); err != nil {
		logger.Error("无法创建初始管理员", "error", err)
		return
	}

	if cfg.Seed.DefaultUsers {
		n, err := seed.SeedDefaultUsers(context.Background(), repo, hasher, cfg.Seed.User.Password)
		if err != nil {
			logger.Error("无法写入预设用户", "error", err)
			return
		}
		logger.Info("已写入预设用户", "count", n)
	}

	/**********************************************
	 * 连接 rabbitmq（可选）
	 **********************************************/
	var mails service.MailPublisher
	if cfg.RabbitMQ.DSN != "" {
		conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
		if err != nil {
			logger.Error("无法连接到 rabbitmq", "error", err)
			return
		}
		defer conn.Close()

		// 建立通道
		ch, err := conn.Channel()
		if err != nil {
			logger.Error("无法建立通道", "error", err)
			return
		}
		defer ch.Close()

		// 声明队列
		if _, err := mailer.DeclareQueue(ch, cfg.RabbitMQ.Queue); err != nil {
			logger.Error("无法声明队列", "error", err)
			return
		}

		mails = mailer.NewPublisher(ch, cfg.RabbitMQ.Queue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
	} else {
		logger.Info("未配置 RABBITMQ_DSN，不发送欢迎邮件")
	}

	/**********************************************
	 * 创建 service 和 handler
	 **********************************************/
	tokens := auth.NewTokenIssuer([]byte(cfg.JWT.Secret), time.Duration(cfg.JWT.Expiration)*time.Minute)
	authService := service.NewAuthService(repo, hasher, tokens, mails)
	directoryService := service.NewDirectoryService(repo)

	handler, err := handler.NewHandler(cfg, repo, authService, directoryService)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}
