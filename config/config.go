package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	App         AppConfig         `yaml:"app"`
	Database    DatabaseConfig    `yaml:"database"`
	MySQL       MySQLConfig       `yaml:"mysql"`
	Redis       RedisConfig       `yaml:"redis"`
	BloomFilter BloomFilterConfig `yaml:"bloom_filter"`
	Snowflake   SnowflakeConfig   `yaml:"snowflake"`
	Auth        AuthConfig        `yaml:"auth"`
	Google      GoogleConfig      `yaml:"google"`
	QR          QRConfig          `yaml:"qr"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" env:"PORT"`
	Mode         string        `yaml:"mode" env:"GIN_MODE"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AppConfig controls how user-facing short URLs are built.
type AppConfig struct {
	Env     string `yaml:"env" env:"APP_ENV"`
	Domain  string `yaml:"domain" env:"APP_DOMAIN"`
	DevHost string `yaml:"dev_host"`
}

// DatabaseConfig selects the gorm driver
type DatabaseConfig struct {
	Driver       string `yaml:"driver" env:"DB_DRIVER"`
	DSN          string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	LogLevel     string `yaml:"log_level"`
}

// MySQLConfig represents MySQL configuration
type MySQLConfig struct {
	Host     string `yaml:"host" env:"MYSQL_HOST"`
	Port     int    `yaml:"port" env:"MYSQL_PORT"`
	Username string `yaml:"username" env:"MYSQL_USER"`
	Password string `yaml:"password" env:"MYSQL_PASSWORD"`
	Database string `yaml:"database" env:"MYSQL_DATABASE"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED"`
	Host     string        `yaml:"host" env:"REDIS_HOST"`
	Port     int           `yaml:"port" env:"REDIS_PORT"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	TTL      time.Duration `yaml:"ttl"`
}

// BloomFilterConfig represents Bloom filter configuration
type BloomFilterConfig struct {
	Capacity          uint    `yaml:"capacity"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`

	// GuardResolve lets a filter miss answer 404 without a database read.
	// The filter is per process, so turn this off when several instances share one database.
	GuardResolve bool `yaml:"guard_resolve" env:"BLOOM_GUARD_RESOLVE"`
}

// SnowflakeConfig represents Snowflake ID generator configuration
type SnowflakeConfig struct {
	DatacenterID int64 `yaml:"datacenter_id"`
	WorkerID     int64 `yaml:"worker_id"`
}

// AuthConfig holds session and bootstrap settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	CookieName    string        `yaml:"cookie_name"`
	AdminEmail    string        `yaml:"admin_email" env:"ADMIN_EMAIL"`
	AdminPassword string        `yaml:"admin_password" env:"ADMIN_PASSWORD"`
	GateSlugRoute bool          `yaml:"gate_slug_route"`
}

// GoogleConfig holds OAuth2 client credentials. Google sign-in is off when ClientID is empty.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `yaml:"redirect_url" env:"GOOGLE_REDIRECT_URL"`
}

// QRConfig represents QR code rendering configuration
type QRConfig struct {
	Size    int `yaml:"size"`
	CacheMB int `yaml:"cache_mb"`
}

// RateLimitConfig represents the optional request rate limiter
type RateLimitConfig struct {
	Enabled   bool                `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	Strategy  string              `yaml:"strategy"`
	Global    RateLimitRule       `yaml:"global"`
	Endpoints []EndpointRateLimit `yaml:"endpoints"`
}

// RateLimitRule is a limit per window in seconds
type RateLimitRule struct {
	Limit  int `yaml:"limit"`
	Window int `yaml:"window"`
}

// EndpointRateLimit overrides the global rule for one route
type EndpointRateLimit struct {
	Path   string `yaml:"path"`
	Limit  int    `yaml:"limit"`
	Window int    `yaml:"window"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// DSN returns MySQL data source name
func (m *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

// Addr returns Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IsProduction reports whether the app runs with the production domain
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// BaseURL returns the prefix used to build full short URLs
func (c *Config) BaseURL() string {
	if c.IsProduction() && c.App.Domain != "" {
		return c.App.Domain
	}
	host := c.App.DevHost
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}

// DatabaseDSN returns the DSN for the configured driver
func (c *Config) DatabaseDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	if c.Database.Driver == "mysql" {
		return c.MySQL.DSN()
	}
	return ""
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.DatabaseDSN() == "" {
		return errors.New("database dsn is required")
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required in production")
	}
	if c.IsProduction() && c.App.Domain == "" {
		return errors.New("app.domain is required in production")
	}
	return nil
}

// Default returns the configuration used when a field is absent from the file
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		App: AppConfig{Env: "development"},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "file:ishort.db?_pragma=foreign_keys(1)",
			MaxIdleConns: 10,
			MaxOpenConns: 100,
			LogLevel:     "warn",
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
			TTL:      24 * time.Hour,
		},
		BloomFilter: BloomFilterConfig{Capacity: 1000000, FalsePositiveRate: 0.001, GuardResolve: true},
		Auth: AuthConfig{
			SessionTTL: 24 * time.Hour,
			CookieName: "auth_token",
		},
		QR:        QRConfig{Size: 256, CacheMB: 16},
		RateLimit: RateLimitConfig{Strategy: "sliding_window"},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
}

var globalConfig *Config

// Load loads configuration from file, then applies .env and environment overrides
func Load(configPath string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}
