package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("ENVIRONMENT", EnvDevelopment)
	t.Setenv("JWT_SECRET", "")

	cfg, err := LoadConfig()

	req.NoError(err)
	req.True(cfg.IsDevelopment())
	req.Equal(8080, cfg.Port)
	req.Equal("admin", cfg.AdminUsername)
	req.Equal(2*time.Minute, cfg.RecallWindow)
	req.Equal(20, cfg.HistoryPageSize)
	req.Equal(5000, cfg.MaxContentBytes)
	req.Equal(10, cfg.WorkerCount)
	req.Equal(200, cfg.WorkerQueueSize)
	req.NotEmpty(cfg.JWTSecret)
}

func TestLoadConfig_DevelopmentSecretIsRandom(t *testing.T) {
	req := require.New(t)
	t.Setenv("ENVIRONMENT", EnvDevelopment)
	t.Setenv("JWT_SECRET", "")

	first, err := LoadConfig()
	req.NoError(err)
	second, err := LoadConfig()
	req.NoError(err)

	req.Len(first.JWTSecret, 64)
	req.NotEqual(first.JWTSecret, second.JWTSecret)
}

func TestLoadConfig_KeepsConfiguredSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", EnvDevelopment)
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.JWTSecret)
}

func TestLoadConfig_Overrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("RECALL_WINDOW", "30s")
	t.Setenv("ADMIN_USERNAME", "root")

	cfg, err := LoadConfig()

	req.NoError(err)
	req.Equal(9090, cfg.Port)
	req.Equal([]string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	req.Equal(30*time.Second, cfg.RecallWindow)
	req.Equal("root", cfg.AdminUsername)
}

func TestLoadConfig_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadConfig_RejectsPrivilegedPort(t *testing.T) {
	t.Setenv("PORT", "80")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "port number 80")
}

func TestLoadConfig_RejectsMalformedValues(t *testing.T) {
	t.Setenv("HISTORY_PAGE_SIZE", "many")

	_, err := LoadConfig()
	require.Error(t, err)
}
