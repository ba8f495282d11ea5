// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	App      *AppConfig
	Store    *StoreConfig
	Redis    *RedisConfig
	Admin    *AdminConfig
	Telegram *TelegramConfig
	Policy   *PolicyConfig
	WebApp   *WebAppConfig
}

type AppConfig struct {
	Port        string
	PublicURL   string
	CORSOrigins []string

	// TrustedProxies are addresses or CIDR ranges whose X-Forwarded-For
	// header is honored for client rate limiting.
	TrustedProxies []string
}

type StoreConfig struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

type RedisConfig struct {
	// URL is empty when cooldowns live in the primary store.
	URL string
}

type AdminConfig struct {
	TokenSecret   string
	TokenTTL      time.Duration
	PrimaryAdmins []string
	// Roster seeds the operator roster at start. Entries are "id" or
	// "id:username".
	Roster []string
}

type TelegramConfig struct {
	BotToken string
	// VerifyInitData requires signed WebApp init data on /webapp. It
	// defaults to on whenever a bot token is configured.
	VerifyInitData bool
	InitDataMaxAge time.Duration
}

type PolicyConfig struct {
	MinTopUp       int64
	MinWithdraw    int64
	MaxAmount      int64
	Banks          []string
	StrictWithdraw bool
}

type WebAppConfig struct {
	RPS   float64
	Burst int
}

// Load reads the given env files (or .env when none are named) and then the
// environment. A missing default .env is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files %v: %w", envFiles, err)
	}

	botToken := getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg := &Config{
		App: &AppConfig{
			Port:           getEnv("PORT", "8080"),
			PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
			CORSOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"https://web.telegram.org"}),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
		},
		Store: &StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			SQLitePath:  getEnv("SQLITE_PATH", "reviewcash.db"),
		},
		Redis: &RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Admin: &AdminConfig{
			TokenSecret:   getEnv("ADMIN_TOKEN_SECRET", ""),
			TokenTTL:      time.Duration(getEnvAsInt("ADMIN_TOKEN_TTL", 300)) * time.Second,
			PrimaryAdmins: getEnvAsList("PRIMARY_ADMINS", nil),
			Roster:        getEnvAsList("OPERATOR_ROSTER", nil),
		},
		Telegram: &TelegramConfig{
			BotToken:       botToken,
			VerifyInitData: getEnvAsBool("WEBAPP_VERIFY_INIT_DATA", botToken != ""),
			InitDataMaxAge: time.Duration(getEnvAsInt("WEBAPP_INIT_DATA_MAX_AGE", 86400)) * time.Second,
		},
		Policy: &PolicyConfig{
			MinTopUp:       int64(getEnvAsInt("MIN_TOPUP", 100)),
			MinWithdraw:    int64(getEnvAsInt("MIN_WITHDRAW", 100)),
			MaxAmount:      int64(getEnvAsInt("MAX_AMOUNT", 1_000_000)),
			Banks:          getEnvAsList("WITHDRAW_BANKS", nil),
			StrictWithdraw: getEnvAsBool("STRICT_WITHDRAW", false),
		},
		WebApp: &WebAppConfig{
			RPS:   getEnvAsFloat("WEBAPP_RPS", 2),
			Burst: getEnvAsInt("WEBAPP_BURST", 5),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of %s, %s", c.Store.Driver, DriverPostgres, DriverSQLite))
	}
	if len(c.Admin.TokenSecret) < 16 {
		errs = append(errs, errors.New("ADMIN_TOKEN_SECRET must be at least 16 characters"))
	}
	if c.Admin.TokenTTL <= 0 {
		errs = append(errs, errors.New("ADMIN_TOKEN_TTL must be positive"))
	}
	if len(c.Admin.PrimaryAdmins) == 0 {
		slog.Warn("PRIMARY_ADMINS is empty; no admin token will verify")
	}
	if c.Policy.MaxAmount < c.Policy.MinTopUp || c.Policy.MaxAmount < c.Policy.MinWithdraw {
		errs = append(errs, errors.New("MAX_AMOUNT must not be below MIN_TOPUP or MIN_WITHDRAW"))
	}
	if c.Telegram.VerifyInitData && c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("WEBAPP_VERIFY_INIT_DATA needs TELEGRAM_BOT_TOKEN"))
	}
	if c.WebApp.RPS <= 0 || c.WebApp.Burst <= 0 {
		errs = append(errs, errors.New("WEBAPP_RPS and WEBAPP_BURST must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv returns the value of the environment variable or a default value if not set
func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAsInt returns the value of the environment variable as an integer or a default value if not set
func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return intVal
		}
		slog.Warn("ignoring malformed integer", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
		slog.Warn("ignoring malformed number", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
		slog.Warn("ignoring malformed boolean", "key", key, "value", val)
	}
	return defaultVal
}

// getEnvAsList splits a comma separated variable, dropping empty items.
func getEnvAsList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
