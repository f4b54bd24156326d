// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDatabaseURL = "postgres://localhost:5432/oauth-example?sslmode=disable"
	defaultBaseURL     = "http://localhost:3000"
	defaultServerPort  = "3000"
	defaultWorkerPort  = "9091"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string
	AutoMigrate bool

	// GitHub OAuth
	GitHubClientID     string
	GitHubClientSecret string
	GitHubHTTPTimeout  time.Duration

	// Session
	SessionSecret            string
	SessionMaxAge            int // 秒
	SessionSaveUninitialized bool
	SessionRedisURL          string // 空の場合はPostgreSQLのsessionテーブルを使う
	SessionCleanupInterval   time.Duration

	// Server
	ServerPort        string
	BaseURL           string
	WorkerMetricsPort string
	LogLevel          string

	// Cookie
	CookieSecure bool
}

// SessionTTL はセッションの有効期間を返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

// Load は環境変数からConfigを読み込む。
// APP_ENV=development の場合は先にカレントディレクトリの.envを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") == "development" {
		if err := loadDotEnv(".env"); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.GitHubClientID = os.Getenv("GH_CLIENT_ID")
	if cfg.GitHubClientID == "" {
		missing = append(missing, "GH_CLIENT_ID")
	}

	cfg.GitHubClientSecret = os.Getenv("GH_CLIENT_SECRET")
	if cfg.GitHubClientSecret == "" {
		missing = append(missing, "GH_CLIENT_SECRET")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = getEnvString("DATABASE_URL", defaultDatabaseURL)
	cfg.AutoMigrate = getEnvBool("AUTO_MIGRATE", true)
	cfg.GitHubHTTPTimeout = getEnvDuration("GITHUB_HTTP_TIMEOUT", 10*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionSaveUninitialized = getEnvBool("SESSION_SAVE_UNINITIALIZED", true)
	cfg.SessionRedisURL = getEnvString("SESSION_REDIS_URL", "")
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", getEnvString("PORT", defaultServerPort))
	cfg.BaseURL = getEnvString("BASE_URL", defaultBaseURL)
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", defaultWorkerPort)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	if cfg.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("SESSION_MAX_AGE must be positive: %d", cfg.SessionMaxAge)
	}

	return cfg, nil
}

// loadDotEnv は.envを読み込む。ファイルが無い場合は何もしない。
// 既に設定済みの環境変数は上書きしない。
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
