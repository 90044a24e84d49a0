package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const minSecretLength = 32

type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Cookie    CookieConfig    `yaml:"cookie"`
	Google    GoogleConfig    `yaml:"google"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
	Cache     CacheConfig     `yaml:"cache"`
}

// Default : значения, которые используются, если их нет ни в yaml, ни в окружении
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:            ":4000",
			BasePath:        "/api/v1",
			Env:             "development",
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			QueryTimeout:    5 * time.Second,
			CleanupInterval: time.Hour,
			RetainExpired:   24 * time.Hour,
		},
		JWT: JWTConfig{
			AccessTokenTTL:      "15m",
			RefreshTokenTTLDays: 7,
			Issuer:              "hr-auth-server",
		},
		Cookie: CookieConfig{SameSite: "lax"},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   20,
			Window:  time.Minute,
			Prefix:  "rl:auth",
		},
		Audit: AuditConfig{
			BufferSize: 256,
			AMQP:       AMQPConfig{Queue: "security.events"},
			S3:         S3Config{Prefix: "security-events"},
		},
		Cache: CacheConfig{UserTTL: 5 * time.Minute},
	}
}

// LoadConfig читает yaml (если файл есть), затем .env и переменные окружения.
// Переменные окружения имеют приоритет над yaml
func LoadConfig(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	// .env не обязателен
	_ = godotenv.Load()

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Server.Env = envStr("APP_ENV", cfg.Server.Env)
	cfg.Server.Addr = envStr("SERVER_ADDR", cfg.Server.Addr)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Server.BasePath = envStr("BASE_PATH", cfg.Server.BasePath)
	cfg.Server.FrontendURL = envStr("FRONTEND_URL", cfg.Server.FrontendURL)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}
	cfg.Server.TrustedProxyHops = envInt("TRUSTED_PROXY_HOPS", cfg.Server.TrustedProxyHops)

	cfg.Database.DSN = envStr("DATABASE_URL", cfg.Database.DSN)
	cfg.Database.MigrateOnStart = envBool("MIGRATE_ON_START", cfg.Database.MigrateOnStart)

	cfg.Redis.Addr = envStr("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envStr("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)

	cfg.JWT.AccessSecret = envStr("ACCESS_TOKEN_SECRET", cfg.JWT.AccessSecret)
	cfg.JWT.AccessTokenTTL = envStr("ACCESS_TOKEN_TTL", cfg.JWT.AccessTokenTTL)
	cfg.JWT.RefreshSecret = envStr("REFRESH_TOKEN_SECRET", cfg.JWT.RefreshSecret)
	cfg.JWT.RefreshTokenTTLDays = envInt("REFRESH_TOKEN_TTL_DAYS", cfg.JWT.RefreshTokenTTLDays)

	cfg.Cookie.SameSite = strings.ToLower(envStr("COOKIE_SAME_SITE", cfg.Cookie.SameSite))

	cfg.Google.ClientID = envStr("GOOGLE_CLIENT_ID", cfg.Google.ClientID)
	cfg.Google.ClientSecret = envStr("GOOGLE_CLIENT_SECRET", cfg.Google.ClientSecret)
	cfg.Google.CallbackURL = envStr("GOOGLE_CALLBACK_URL", cfg.Google.CallbackURL)

	cfg.RateLimit.Enabled = envBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Limit = envInt("RATE_LIMIT_LIMIT", cfg.RateLimit.Limit)
	cfg.RateLimit.Window = envDur("RATE_LIMIT_WINDOW", cfg.RateLimit.Window)

	cfg.Audit.AMQP.URL = envStr("AUDIT_AMQP_URL", cfg.Audit.AMQP.URL)
	cfg.Audit.S3.Bucket = envStr("AUDIT_S3_BUCKET", cfg.Audit.S3.Bucket)
	cfg.Audit.S3.Region = envStr("AUDIT_S3_REGION", cfg.Audit.S3.Region)
	cfg.Audit.S3.Endpoint = envStr("AUDIT_S3_ENDPOINT", cfg.Audit.S3.Endpoint)
	cfg.Audit.S3.Local = envBool("AUDIT_S3_LOCAL", cfg.Audit.S3.Local)
}

// Validate проверяет конфигурацию до старта сервера
func (c *AppConfig) Validate() error {
	var problems []string

	if len(c.JWT.AccessSecret) < minSecretLength {
		problems = append(problems, "ACCESS_TOKEN_SECRET должен быть не короче 32 символов")
	}
	if len(c.JWT.RefreshSecret) < minSecretLength {
		problems = append(problems, "REFRESH_TOKEN_SECRET должен быть не короче 32 символов")
	}
	if ttl, err := time.ParseDuration(c.JWT.AccessTokenTTL); err != nil || ttl <= 0 {
		problems = append(problems, fmt.Sprintf("ACCESS_TOKEN_TTL некорректен: %q", c.JWT.AccessTokenTTL))
	}
	if c.JWT.RefreshTokenTTLDays <= 0 {
		problems = append(problems, "REFRESH_TOKEN_TTL_DAYS должен быть положительным")
	}

	switch c.Cookie.SameSite {
	case "strict", "lax":
	case "none":
		if !c.IsProduction() {
			problems = append(problems, "COOKIE_SAME_SITE=none требует secure cookie (APP_ENV=production)")
		}
	default:
		problems = append(problems, fmt.Sprintf("COOKIE_SAME_SITE некорректен: %q", c.Cookie.SameSite))
	}

	if len(c.Server.CORSOrigins) == 0 {
		problems = append(problems, "CORS_ORIGINS не задан")
	}
	if c.Server.TrustedProxyHops < 0 {
		problems = append(problems, "TRUSTED_PROXY_HOPS не может быть отрицательным")
	}
	if c.Server.FrontendURL == "" {
		problems = append(problems, "FRONTEND_URL не задан")
	}
	if c.Google.ClientID == "" {
		problems = append(problems, "GOOGLE_CLIENT_ID не задан")
	}

	if len(problems) > 0 {
		return fmt.Errorf("некорректная конфигурация: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *AppConfig) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *AppConfig) AccessTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.JWT.AccessTokenTTL)
	return ttl
}

func (c *AppConfig) RefreshTTL() time.Duration {
	return time.Duration(c.JWT.RefreshTokenTTLDays) * 24 * time.Hour
}

func (c *AppConfig) SameSite() http.SameSite {
	switch c.Cookie.SameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func SetupServer(serverAddress string) (*http.Server, *chi.Mux) {
	router := chi.NewRouter()
	server := &http.Server{
		Addr:              serverAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server, router
}

func SetupDatabase(cfg *DatabaseConfig) (*Database, error) {
	db, err := NewDatabaseConnection("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.QueryTimeout = cfg.QueryTimeout
	return db, nil
}

func SetupRedis(cfg *RedisConfig) (*RedisClient, error) {
	return NewRedisClient(cfg)
}

func SetupLogger(cfg *AppConfig) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
