package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const ProductionEnvironment = "PRO"

type CSRF struct {
	Secret      string
	Expiration  time.Duration
	ExemptPaths []string
}

type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type Config struct {
	Environment string
	Port        string
	SentryDSN   string
	RedisURL    string

	Database Database
	CSRF     CSRF

	CORSOrigins []string
	APIPrefix   string
	SwaggerPath string

	AdminJWTSecret string
	AdminEmail     string
	AdminPassword  string

	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration

	CronSecret           string
	AuthTokenRetention   time.Duration
	CleanupBatchSize     int
	RunMigrationsOnStart bool
}

func (c Config) IsProduction() bool {
	return c.Environment == ProductionEnvironment
}

// Load reads configuration from the process environment. When loadDotEnv is set a
// local .env file is merged first; missing files are ignored.
func Load(loadDotEnv bool) (Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	var problems []error

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		problems = append(problems, err)
	}
	csrfSecret, err := mustEnv("SECURITY_CSRF_SECRET")
	if err != nil {
		problems = append(problems, err)
	}
	csrfExpiration, err := mustPositiveInt("SECURITY_CSRF_TOKEN_EXPIRATION")
	if err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("security configuration validation failed: %w", errors.Join(problems...))
	}

	apiPrefix := envOrDefault("API_PREFIX", "/api/v1")
	exemptPaths := envList("SECURITY_CSRF_EXEMPT_PATHS")
	if len(exemptPaths) == 0 {
		exemptPaths = DefaultExemptPaths(apiPrefix)
	}

	return Config{
		Environment: envOrDefault("APP_ENV", "development"),
		Port:        envOrDefault("PORT", "8080"),
		SentryDSN:   strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		Database: Database{
			URL:             databaseURL,
			MaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
			ConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		},
		CSRF: CSRF{
			Secret:      csrfSecret,
			Expiration:  time.Duration(csrfExpiration) * time.Millisecond,
			ExemptPaths: exemptPaths,
		},
		CORSOrigins:          envList("SECURITY_CORS_ORIGINS"),
		APIPrefix:            apiPrefix,
		SwaggerPath:          envOrDefault("SWAGGER_PATH", "/docs"),
		AdminJWTSecret:       strings.TrimSpace(os.Getenv("ADMIN_JWT_SECRET")),
		AdminEmail:           os.Getenv("ADMIN_EMAIL"),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
		LoginRateLimitMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateLimitWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
		CronSecret:           strings.TrimSpace(os.Getenv("CRON_SECRET")),
		AuthTokenRetention:   envDaysOrDefault("AUTH_TOKEN_RETENTION_DAYS", 7),
		CleanupBatchSize:     envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
		RunMigrationsOnStart: EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
	}, nil
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return value, nil
}

func mustPositiveInt(name string) (int, error) {
	value, err := mustEnv(name)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return parsed, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envList(name string) []string {
	raw := os.Getenv(name)
	items := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// DefaultExemptPaths lists the CSRF exempt prefixes used when none are
// configured. Login steps run before an API token exists and admin routes use a
// bearer JWT. Revoking an API token is not exempt.
func DefaultExemptPaths(apiPrefix string) []string {
	return []string{
		apiPrefix + "/security/auth/local/",
		apiPrefix + "/security/auth/token/",
		apiPrefix + "/security/admin/",
	}
}
