// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Lockout
	MaxFailedLogins int
	LockoutDuration time.Duration

	// Verification tokens
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration

	// Rate Limit（単位はコメントの通り）
	RateLimitGeneral  int // 認証済みAPI全般: req/min/user
	RateLimitLogin    int // ログイン試行: 回/15分/IP
	RateLimitRegister int // 新規登録: 回/時/IP

	// Cleanup
	TokenCleanupInterval time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigins []string

	// HSTS。TLS終端済みの本番環境でのみ有効にする
	EnableHSTS bool
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は不足分を列挙したエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AccessTTL = getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.RefreshTTL = getEnvDuration("REFRESH_TOKEN_TTL", 14*24*time.Hour)
	cfg.MaxFailedLogins = getEnvInt("MAX_FAILED_LOGINS", 5)
	cfg.LockoutDuration = getEnvDuration("LOCKOUT_DURATION", 30*time.Minute)
	cfg.EmailVerificationTTL = getEnvDuration("EMAIL_VERIFICATION_TTL", 24*time.Hour)
	cfg.PasswordResetTTL = getEnvDuration("PASSWORD_RESET_TTL", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 5)
	cfg.RateLimitRegister = getEnvInt("RATE_LIMIT_REGISTER", 3)
	cfg.TokenCleanupInterval = getEnvDuration("TOKEN_CLEANUP_INTERVAL", time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigins = splitAndTrim(getEnvString("CORS_ALLOWED_ORIGINS", "http://localhost:3000"))
	cfg.EnableHSTS = getEnvBool("ENABLE_HSTS", cfg.CookieSecure)

	return cfg, nil
}

// splitAndTrim はカンマ区切りの値を分割し、空要素を除いて返す。
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
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
