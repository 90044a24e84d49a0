package config

import "time"

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	BasePath        string        `yaml:"base_path"`
	Env             string        `yaml:"env"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	FrontendURL     string        `yaml:"frontend_url"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// TrustedProxyHops : сколько reverse proxy стоит перед сервером.
	// 0 - X-Forwarded-For игнорируется, клиент определяется по TCP адресу
	TrustedProxyHops int `yaml:"trusted_proxy_hops"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// RetainExpired : сколько хранить истёкшие refresh-записи
	RetainExpired time.Duration `yaml:"retain_expired"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Local    bool   `yaml:"local"`
	Prefix   string `yaml:"prefix"`
}

type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// JWTConfig : секреты и время жизни токенов.
// AccessTokenTTL задаётся строкой длительности ("15m"), refresh - в днях
type JWTConfig struct {
	AccessSecret        string `yaml:"access_secret"`
	RefreshSecret       string `yaml:"refresh_secret"`
	AccessTokenTTL      string `yaml:"access_token_ttl"`
	RefreshTokenTTLDays int    `yaml:"refresh_token_ttl_days"`
	Issuer              string `yaml:"issuer"`
}

type CookieConfig struct {
	SameSite string `yaml:"same_site"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
	Prefix  string        `yaml:"prefix"`
}

type AuditConfig struct {
	BufferSize int        `yaml:"buffer_size"`
	S3         S3Config   `yaml:"s3"`
	AMQP       AMQPConfig `yaml:"amqp"`
}

type CacheConfig struct {
	UserTTL time.Duration `yaml:"user_ttl"`
}
