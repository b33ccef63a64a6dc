package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_DSN", "postgres://localhost/school_system")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, 30, cfg.JWT.Expiration)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "admin", cfg.InitialAdmin.Username)
	assert.Equal(t, "email_queue", cfg.RabbitMQ.Queue)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Seed.DefaultUsers)
	assert.False(t, cfg.SMTPConfigured())
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_DSN", "postgres://localhost/school_system")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfig_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("STORE_BACKEND", BackendPostgres)

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DSN")
}

func TestLoadConfig_MemoryBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", BackendMemory)
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://school.edu.tw")
	t.Setenv("JWT_EXPIRATION", "45")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 45, cfg.JWT.Expiration)
	assert.Equal(t, []string{"http://localhost:3000", "https://school.edu.tw"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.JWT.Expiration = 30

	cfg.Store.Backend = "mongodb"
	assert.Error(t, cfg.Validate())

	cfg.Store.Backend = BackendRedis
	assert.NoError(t, cfg.Validate())

	cfg.JWT.Expiration = 0
	assert.Error(t, cfg.Validate())
}
