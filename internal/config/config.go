package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	WebAuthn WebAuthnConfig
	Mail     MailConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int

	// PlatformOrigin is the public origin of the web frontend; magic-link
	// and email-change redirects land there.
	PlatformOrigin string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token issuance parameters.
type AuthConfig struct {
	// SigningSecret is the single long-lived HMAC key for all tokens,
	// loaded once at startup and injected into the token manager.
	SigningSecret string
	Issuer        string
	CookieName    string

	// SessionTTL maps a session scope to its max age. Scopes absent from
	// the map fall back to DefaultSessionTTL.
	SessionTTL        map[string]time.Duration
	DefaultSessionTTL time.Duration

	VerifyTokenTTL time.Duration
	RevertTokenTTL time.Duration

	ChallengeTTLPasskey time.Duration
	PermitTTL           time.Duration
}

// WebAuthnConfig identifies the relying party.
type WebAuthnConfig struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string
}

// MailConfig holds outbound email settings.
type MailConfig struct {
	From     string
	SMTPAddr string
	SMTPUser string
	SMTPPass string

	// OutboxKey is the redis list emails are queued on when no SMTP
	// endpoint is configured (non-production retrieval).
	OutboxKey string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	platformOrigin := strings.TrimRight(getEnv("PLATFORM_ORIGIN", "http://localhost:3000"), "/")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "playrbase-auth"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			PlatformOrigin:        platformOrigin,
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			SigningSecret: getEnv("AUTH_SIGNING_SECRET", "dev-secret"),
			Issuer:        getEnv("AUTH_ISSUER", "playrbase"),
			CookieName:    getEnv("AUTH_COOKIE_NAME", "playrbase-token"),
			SessionTTL: map[string]time.Duration{
				"user":   time.Duration(getEnvAsInt("AUTH_SESSION_TTL_USER_SECONDS", 3600)) * time.Second,
				"admin":  time.Duration(getEnvAsInt("AUTH_SESSION_TTL_ADMIN_SECONDS", 3600)) * time.Second,
				"apikey": time.Duration(getEnvAsInt("AUTH_SESSION_TTL_APIKEY_SECONDS", 30*24*3600)) * time.Second,
			},
			DefaultSessionTTL:   time.Hour,
			VerifyTokenTTL:      time.Duration(getEnvAsInt("AUTH_VERIFY_TOKEN_TTL_MINUTES", 30)) * time.Minute,
			RevertTokenTTL:      time.Duration(getEnvAsInt("AUTH_REVERT_TOKEN_TTL_HOURS", 48)) * time.Hour,
			ChallengeTTLPasskey: time.Duration(getEnvAsInt("AUTH_PASSKEY_CHALLENGE_TTL_MINUTES", 5)) * time.Minute,
			PermitTTL:           time.Duration(getEnvAsInt("AUTH_BIRTHDATE_PERMIT_TTL_MINUTES", 30)) * time.Minute,
		},
		WebAuthn: WebAuthnConfig{
			RPDisplayName: getEnv("WEBAUTHN_RP_DISPLAY_NAME", "PlayrBase"),
			RPID:          getEnv("WEBAUTHN_RP_ID", "localhost"),
			RPOrigins:     strings.Split(getEnv("WEBAUTHN_RP_ORIGINS", platformOrigin), ","),
		},
		Mail: MailConfig{
			From:      getEnv("MAIL_FROM", "noreply@playrbase.app"),
			SMTPAddr:  os.Getenv("MAIL_SMTP_ADDR"),
			SMTPUser:  os.Getenv("MAIL_SMTP_USER"),
			SMTPPass:  os.Getenv("MAIL_SMTP_PASS"),
			OutboxKey: getEnv("MAIL_OUTBOX_KEY", "playrbase:mail:outbox"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Production reports whether the service runs with production hardening
// (Secure cookies, real SMTP delivery).
func (a AppConfig) Production() bool {
	return a.Env == "production"
}

// TTLForScope looks up the session max age for a scope.
func (c AuthConfig) TTLForScope(scope string) time.Duration {
	if ttl, ok := c.SessionTTL[scope]; ok && ttl > 0 {
		return ttl
	}
	if c.DefaultSessionTTL > 0 {
		return c.DefaultSessionTTL
	}
	return time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
