package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"8000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Store struct {
		Backend string `env:"BACKEND" envDefault:"postgres"`
	} `envPrefix:"STORE_"`
	Database struct {
		DSN            string `env:"DSN"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout   int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		MaxOpenConns   int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns   int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime    int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD"`
		DB               int    `env:"DB" envDefault:"0"`
		KeyPrefix        string `env:"KEY_PREFIX" envDefault:"school_system"`
		ConnectTimeout   int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationTimeout int    `env:"OPERATION_TIMEOUT" envDefault:"5"`
	} `envPrefix:"REDIS_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"30"` // 分钟
		Secret     string `env:"SECRET,required,notEmpty"`
	} `envPrefix:"JWT_"`
	Bcrypt struct {
		Cost int `env:"COST" envDefault:"10"`
	} `envPrefix:"BCRYPT_"`
	InitialAdmin struct {
		Username   string `env:"USERNAME" envDefault:"admin"`
		Password   string `env:"PASSWORD"` // 为空时不创建初始管理员
		Name       string `env:"NAME" envDefault:"系统管理员"`
		Email      string `env:"EMAIL" envDefault:"admin@school.edu.tw"`
		Department string `env:"DEPARTMENT" envDefault:"资讯中心"`
	} `envPrefix:"INITIAL_ADMIN_"`
	RabbitMQ struct {
		DSN            string `env:"DSN"` // 为空时不发送欢迎邮件
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN" envDefault:"school.edu.tw"`
		SMTP       struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	Seed struct {
		DefaultUsers bool `env:"DEFAULT_USERS" envDefault:"false"`
		User         struct {
			Password string `env:"PASSWORD" envDefault:"123"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	CORS struct {
		AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	} `envPrefix:"CORS_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok && len(aggErr.Errors) > 0 {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 检查与所选存储后端相关的配置
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Database.DSN == "" {
			return errors.New(`使用 postgres 存储时必须设置环境变量 "DATABASE_DSN"`)
		}
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("不支持的存储后端 %q", c.Store.Backend)
	}

	if c.JWT.Expiration <= 0 {
		return errors.New(`环境变量 "JWT_EXPIRATION" 必须为正数`)
	}

	return nil
}

// SMTPConfigured 表示是否具备发送邮件所需的配置
func (c *Config) SMTPConfigured() bool {
	return c.Email.SMTP.Host != "" && c.Email.SMTP.Username != ""
}
