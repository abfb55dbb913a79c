// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// 認証コラボレーター（GoTrue互換API）
	AuthBaseURL   string
	AuthAnonKey   string
	AuthJWTSecret string
	AuthTimeout   time.Duration

	// ファイルストレージコラボレーター
	StorageBaseURL    string
	StorageServiceKey string
	StorageBucket     string
	UploadMaxSize     int64

	// デモモード（単一の設定ゲート。本番では必ず無効にする）
	DemoMode bool

	// 管理API（未設定の場合、管理ルートはマウントされない）
	AdminAPIKey string

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitOTP     int

	// ロゴ取得ワーカー
	LogoFetchInterval      time.Duration
	LogoFetchTimeout       time.Duration
	LogoFetchMaxConcurrent int
	LogoMaxSize            int64

	// クリーンアップ
	RejectedRetentionDays int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AuthBaseURL = os.Getenv("AUTH_BASE_URL")
	if cfg.AuthBaseURL == "" {
		missing = append(missing, "AUTH_BASE_URL")
	}

	cfg.AuthAnonKey = os.Getenv("AUTH_ANON_KEY")
	if cfg.AuthAnonKey == "" {
		missing = append(missing, "AUTH_ANON_KEY")
	}

	cfg.AuthJWTSecret = os.Getenv("AUTH_JWT_SECRET")
	if cfg.AuthJWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}

	cfg.StorageBaseURL = os.Getenv("STORAGE_BASE_URL")
	if cfg.StorageBaseURL == "" {
		missing = append(missing, "STORAGE_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AuthTimeout = getEnvDuration("AUTH_TIMEOUT", 10*time.Second)
	cfg.StorageServiceKey = getEnvString("STORAGE_SERVICE_KEY", cfg.AuthAnonKey)
	cfg.StorageBucket = getEnvString("STORAGE_BUCKET", "profile-images")
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 5242880)
	cfg.DemoMode = getEnvBool("DEMO_MODE", false)
	cfg.AdminAPIKey = os.Getenv("ADMIN_API_KEY")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitOTP = getEnvInt("RATE_LIMIT_OTP", 5)
	cfg.LogoFetchInterval = getEnvDuration("LOGO_FETCH_INTERVAL", 6*time.Hour)
	cfg.LogoFetchTimeout = getEnvDuration("LOGO_FETCH_TIMEOUT", 5*time.Second)
	cfg.LogoFetchMaxConcurrent = getEnvInt("LOGO_FETCH_MAX_CONCURRENT", 5)
	cfg.LogoMaxSize = getEnvInt64("LOGO_MAX_SIZE", 2097152)
	cfg.RejectedRetentionDays = getEnvInt("REJECTED_RETENTION_DAYS", 180)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
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
