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
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Captcha  CaptchaConfig
	Email    EmailConfig
	Policy   PolicyConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

type CaptchaConfig struct {
	// Words is the phrase pool for the session-bound challenge.
	Words []string
	// Secret and VerifyURL configure the external proof-of-humanity
	// verifier used at registration.
	Secret        string
	VerifyURL     string
	VerifyTimeout time.Duration
}

type EmailConfig struct {
	AWSRegion    string
	FromAddress  string
	ResetBaseURL string
	// ResetTemplates are "subject|body" pairs; the body must contain
	// a {link} placeholder. One is chosen at random per email.
	ResetTemplates []string
}

type PolicyConfig struct {
	AllowedEmailDomains []string
	MaxAccountsPerIP    int
	MaxLoginAttempts    int
	LoginWindow         time.Duration
	ResetTokenTTL       time.Duration
	SessionTTL          time.Duration
	CleanupInterval     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "accounts"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
		},
		Captcha: CaptchaConfig{
			Words: getEnvAsList("CAPTCHA_WORDS", []string{
				"nakama", "sakura", "shinobi", "kitsune", "tsunami",
				"bushido", "senpai", "ronin", "kaiju", "hanabi",
			}),
			Secret:        getEnv("HCAPTCHA_SECRET", ""),
			VerifyURL:     getEnv("HCAPTCHA_VERIFY_URL", "https://hcaptcha.com/siteverify"),
			VerifyTimeout: getEnvAsDuration("HCAPTCHA_VERIFY_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
			ResetBaseURL: getEnv("RESET_BASE_URL", ""),
			ResetTemplates: getEnvAsListSep("RESET_EMAIL_TEMPLATES", "||", []string{
				"Password recovery|We received a request to reset your password. Open this link to choose a new one: {link}",
				"Reset your password|Someone asked to reset the password for your account. If it was you, follow this link: {link}",
			}),
		},
		Policy: PolicyConfig{
			AllowedEmailDomains: getEnvAsList("ALLOWED_EMAIL_DOMAINS", []string{
				"gmail.com", "yahoo.com", "hotmail.com", "outlook.com",
			}),
			MaxAccountsPerIP: getEnvAsInt("MAX_ACCOUNTS_PER_IP", 3),
			MaxLoginAttempts: getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			LoginWindow:      getEnvAsDuration("LOGIN_WINDOW", 15*time.Minute),
			ResetTokenTTL:    getEnvAsDuration("RESET_TOKEN_TTL", 1*time.Hour),
			SessionTTL:       getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			CleanupInterval:  getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if env == "production" {
		if cfg.Captcha.Secret == "" {
			return nil, fmt.Errorf("HCAPTCHA_SECRET is required in production")
		}
		if cfg.Email.FromAddress == "" {
			return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required in production")
		}
		if cfg.Email.ResetBaseURL == "" {
			return nil, fmt.Errorf("RESET_BASE_URL is required in production")
		}
	}

	if len(cfg.Captcha.Words) == 0 {
		return nil, fmt.Errorf("CAPTCHA_WORDS must not be empty")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	return getEnvAsListSep(key, ",", defaultVal)
}

func getEnvAsListSep(key, sep string, defaultVal []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, sep)
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultVal
}
