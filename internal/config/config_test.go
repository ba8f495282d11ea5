package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_TOKEN_SECRET", "0123456789abcdef0123")
	t.Setenv("PRIMARY_ADMINS", "@Boss, 12345")
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "reviewcash.db", cfg.Store.SQLitePath)
	assert.Equal(t, 300*time.Second, cfg.Admin.TokenTTL)
	assert.Equal(t, []string{"@Boss", "12345"}, cfg.Admin.PrimaryAdmins)
	assert.Equal(t, int64(100), cfg.Policy.MinTopUp)
	assert.Equal(t, int64(100), cfg.Policy.MinWithdraw)
	assert.Equal(t, int64(1_000_000), cfg.Policy.MaxAmount)
	assert.False(t, cfg.Policy.StrictWithdraw)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.App.TrustedProxies)
	assert.False(t, cfg.Telegram.VerifyInitData)
}

func TestLoad_InitDataFollowsBotToken(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Telegram.VerifyInitData)
	assert.Equal(t, 24*time.Hour, cfg.Telegram.InitDataMaxAge)

	t.Setenv("WEBAPP_VERIFY_INIT_DATA", "false")
	cfg, err = Load()
	require.NoError(t, err)
	assert.False(t, cfg.Telegram.VerifyInitData)

	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("WEBAPP_VERIFY_INIT_DATA", "true")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEBAPP_VERIFY_INIT_DATA")
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/reviewcash")
	t.Setenv("ADMIN_TOKEN_TTL", "600")
	t.Setenv("STRICT_WITHDRAW", "true")
	t.Setenv("WITHDRAW_BANKS", "сбер, ,втб")
	t.Setenv("WEBAPP_RPS", "0.5")
	t.Setenv("PUBLIC_URL", "https://rc.example/")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Admin.TokenTTL)
	assert.True(t, cfg.Policy.StrictWithdraw)
	assert.Equal(t, []string{"сбер", "втб"}, cfg.Policy.Banks)
	assert.Equal(t, 0.5, cfg.WebApp.RPS)
	assert.Equal(t, "https://rc.example", cfg.App.PublicURL)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.App.TrustedProxies)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ADMIN_TOKEN_SECRET=from-file-secret-value\nPRIMARY_ADMINS=1\nMIN_TOPUP=250\n"), 0o600))
	t.Setenv("ADMIN_TOKEN_SECRET", "")
	t.Setenv("MIN_TOPUP", "")
	t.Setenv("PRIMARY_ADMINS", "")
	os.Unsetenv("ADMIN_TOKEN_SECRET")
	os.Unsetenv("MIN_TOPUP")
	os.Unsetenv("PRIMARY_ADMINS")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file-secret-value", cfg.Admin.TokenSecret)
	assert.Equal(t, int64(250), cfg.Policy.MinTopUp)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	_, err := Load("does-not-exist.env")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADMIN_TOKEN_SECRET", "short")
	t.Setenv("STORE_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_TOKEN_SECRET")
	assert.Contains(t, err.Error(), "STORE_DRIVER")

	t.Setenv("ADMIN_TOKEN_SECRET", "0123456789abcdef")
	t.Setenv("STORE_DRIVER", "postgres")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("MAX_AMOUNT", "50")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_AMOUNT")
}
