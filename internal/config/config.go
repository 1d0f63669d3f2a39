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
	Server   ServerConfig
	Auth     AuthConfig
	Mail     MailConfig
	Admin    AdminBootstrapConfig
}

type DatabaseConfig struct {
	URL               string // takes precedence over the discrete fields when set
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
	ConnectTimeout    time.Duration
	ConnectAttempts   int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AuthRateLimit  int // requests per minute per client IP on credential endpoints
}

type AuthConfig struct {
	AccessSecret       string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	OpaqueTokenExpiry  time.Duration
	BcryptCost         int
	AllowAdminSignup   bool
	SweepInterval      time.Duration

	// Failed logins are padded to LoginFailureDelay plus up to LoginFailureJitter.
	LoginFailureDelay  time.Duration
	LoginFailureJitter time.Duration
}

type MailConfig struct {
	Provider           string // "smtp" or "ses"
	From               string
	Host               string
	Port               int
	User               string
	Password           string
	InsecureSkipVerify bool
	AWSRegion          string

	// VerifyURL is the public address of GET /api/auth/email/verify.
	VerifyURL string
	// VerifiedRedirectURL is where a consumed verification link lands.
	VerifiedRedirectURL string
}

type AdminBootstrapConfig struct {
	Email    string
	Password string
	Username string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			URL:               getEnv("DATABASE_URL", ""),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "alumni"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "3000"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: getEnvAsList("CLIENT_URL", []string{"http://localhost:5173"}),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AuthRateLimit:  getEnvAsInt("RATE_LIMIT_AUTH_PER_MINUTE", 10),
		},
		Auth: AuthConfig{
			AccessSecret:       getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			OpaqueTokenExpiry:  getEnvAsDuration("OPAQUE_TOKEN_EXPIRY", 1*time.Hour),
			BcryptCost:         getEnvAsInt("BCRYPT_COST", 12),
			AllowAdminSignup:   getEnvAsBool("ALLOW_ADMIN_SIGNUP", false),
			SweepInterval:      getEnvAsDuration("TOKEN_SWEEP_INTERVAL", 1*time.Hour),
			LoginFailureDelay:  getEnvAsDuration("LOGIN_FAILURE_DELAY", 250*time.Millisecond),
			LoginFailureJitter: getEnvAsDuration("LOGIN_FAILURE_JITTER", 100*time.Millisecond),
		},
		Mail: MailConfig{
			Provider:            strings.ToLower(getEnv("MAIL_PROVIDER", "smtp")),
			From:                getEnv("MAIL_FROM", getEnv("MAIL_USER", "")),
			Host:                getEnv("MAIL_HOST", "smtp.gmail.com"),
			Port:                getEnvAsInt("MAIL_PORT", 587),
			User:                getEnv("MAIL_USER", ""),
			Password:            getEnv("MAIL_PASS", ""),
			InsecureSkipVerify:  getEnvAsBool("MAIL_INSECURE_SKIP_VERIFY", false),
			AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
			VerifyURL:           getEnv("EMAIL_VERIFY_URL", "http://localhost:3000/api/auth/email/verify"),
			VerifiedRedirectURL: getEnv("EMAIL_VERIFIED_REDIRECT_URL", "http://localhost:5173/email/verified"),
		},
		Admin: AdminBootstrapConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Username: getEnv("ADMIN_USERNAME", "admin"),
		},
	}

	if cfg.Database.URL == "" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD or DATABASE_URL is required")
	}

	if err := validateSecret("JWT_SECRET", cfg.Auth.AccessSecret, env); err != nil {
		return nil, err
	}
	if err := validateSecret("JWT_REFRESH_SECRET", cfg.Auth.RefreshSecret, env); err != nil {
		return nil, err
	}
	if cfg.Auth.AccessSecret == cfg.Auth.RefreshSecret {
		return nil, fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	switch cfg.Mail.Provider {
	case "smtp", "ses":
	default:
		return nil, fmt.Errorf("MAIL_PROVIDER must be smtp or ses (got %q)", cfg.Mail.Provider)
	}

	return cfg, nil
}

// validateSecret enforces minimum strength for a signing secret
func validateSecret(name, secret, env string) error {
	if secret == "" {
		return fmt.Errorf("%s is required", name)
	}

	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("%s must be at least %d characters in %s environment (got %d)",
			name, minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	lower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if lower == weak {
			return fmt.Errorf("%s cannot be a common weak value", name)
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
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

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
