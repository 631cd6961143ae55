package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DbHost    string
	DbPort    string
	DbUser    string
	DbPass    string
	DbName    string
	DbSSLMode string

	Log      string
	LogLevel string
	Env      string // dev|prod

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSecure   bool
	SMTPFrom     string

	// SiteURL — публичный адрес фронта, подставляется в ссылку сброса, если Origin запроса не подходит.
	SiteURL        string
	AllowedOrigins []string

	PasswordResetTTL        time.Duration
	PasswordResetCooldown   time.Duration
	PasswordResetDailyLimit int
	EmailTimeout            time.Duration
	BcryptCost              int
}

// LoadConfig загружает .env, читает переменные окружения и выставляет дефолты.
// Ничего не логирует — чтобы не создавать зависимость от logger.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	def := func(v, d string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return d
		}
		return v
	}

	smtpPort, err := strconv.Atoi(def(os.Getenv("SMTP_PORT"), "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}
	ttlMin, err := strconv.Atoi(def(os.Getenv("PASSWORD_RESET_TTL_MIN"), "60"))
	if err != nil {
		return nil, fmt.Errorf("PASSWORD_RESET_TTL_MIN: %w", err)
	}
	cooldownSec, err := strconv.Atoi(def(os.Getenv("PASSWORD_RESET_COOLDOWN_SEC"), "60"))
	if err != nil {
		return nil, fmt.Errorf("PASSWORD_RESET_COOLDOWN_SEC: %w", err)
	}
	dailyLimit, err := strconv.Atoi(def(os.Getenv("PASSWORD_RESET_DAILY_LIMIT"), "5"))
	if err != nil {
		return nil, fmt.Errorf("PASSWORD_RESET_DAILY_LIMIT: %w", err)
	}
	emailTimeoutSec, err := strconv.Atoi(def(os.Getenv("EMAIL_TIMEOUT_SEC"), "10"))
	if err != nil {
		return nil, fmt.Errorf("EMAIL_TIMEOUT_SEC: %w", err)
	}
	bcryptCost, err := strconv.Atoi(def(os.Getenv("BCRYPT_COST"), "12"))
	if err != nil {
		return nil, fmt.Errorf("BCRYPT_COST: %w", err)
	}
	secure, _ := strconv.ParseBool(def(os.Getenv("SMTP_SECURE"), "false"))

	cfg := &Config{
		Port:      def(os.Getenv("PORT"), "8080"),
		DbHost:    os.Getenv("DB_HOST"),
		DbPort:    def(os.Getenv("DB_PORT"), "5432"),
		DbUser:    os.Getenv("DB_USER"),
		DbPass:    os.Getenv("DB_PASSWORD"),
		DbName:    os.Getenv("DB_NAME"),
		DbSSLMode: def(os.Getenv("DB_SSLMODE"), "disable"),

		Log:      os.Getenv("LOG"),
		LogLevel: strings.ToLower(def(os.Getenv("LOGLEVEL"), "info")),
		Env:      strings.ToLower(def(os.Getenv("ENV"), "prod")),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     smtpPort,
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPSecure:   secure,
		SMTPFrom:     def(os.Getenv("SMTP_FROM"), os.Getenv("SMTP_USER")),

		SiteURL:        strings.TrimRight(def(os.Getenv("SITEURL"), "http://localhost:5173"), "/"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),

		PasswordResetTTL:        time.Duration(ttlMin) * time.Minute,
		PasswordResetCooldown:   time.Duration(cooldownSec) * time.Second,
		PasswordResetDailyLimit: dailyLimit,
		EmailTimeout:            time.Duration(emailTimeoutSec) * time.Second,
		BcryptCost:              bcryptCost,
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate возвращает предупреждения и фатальную ошибку (если критично).
func (c *Config) Validate() (warnings []string, err error) {
	// Критичные: БД
	if c.DbHost == "" || c.DbUser == "" || c.DbName == "" {
		return nil, fmt.Errorf("incomplete DB config (DB_HOST/DB_USER/DB_NAME)")
	}

	if c.SMTPHost == "" || c.SMTPFrom == "" {
		warnings = append(warnings, "SMTP is not fully configured")
	}

	if c.PasswordResetTTL <= 0 {
		return nil, fmt.Errorf("PASSWORD_RESET_TTL_MIN must be positive")
	}

	if c.PasswordResetDailyLimit <= 0 {
		warnings = append(warnings, "PASSWORD_RESET_DAILY_LIMIT <= 0 disables the daily limit")
	}

	return warnings, nil
}

// GetDSN — полная DSN (с паролем)
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbPass, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}

// GetDSNSafe — DSN без пароля (для логов)
func (c *Config) GetDSNSafe() string {
	return fmt.Sprintf(
		"postgres://%s:***@%s:%s/%s?sslmode=%s",
		c.DbUser, c.DbHost, c.DbPort, c.DbName, c.DbSSLMode,
	)
}
