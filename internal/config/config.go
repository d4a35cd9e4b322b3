package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the dz server configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Media    MediaConfig    `mapstructure:"media"`
	Themes   ThemesConfig   `mapstructure:"themes"`
	Content  ContentConfig  `mapstructure:"content"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

// AppConfig holds application identity and the root all relative paths resolve against
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	RootDir string `mapstructure:"root_dir"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	AdminDir        string        `mapstructure:"admin_dir"`
	// Profiling mounts pprof under /_/debug for signed-in users
	Profiling bool `mapstructure:"profiling"`
}

// DatabaseConfig selects the SQL driver and data source
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// SessionConfig represents cookie session configuration
type SessionConfig struct {
	Store              string        `mapstructure:"store"`
	CookieName         string        `mapstructure:"cookie_name"`
	Secure             bool          `mapstructure:"secure"`
	GCInterval         time.Duration `mapstructure:"gc_interval"`
	IdleExpiration     time.Duration `mapstructure:"idle_expiration"`
	AbsoluteExpiration time.Duration `mapstructure:"absolute_expiration"`
}

// RedisConfig is used by the redis session store and login rate limiter
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	MinResponseTime time.Duration `mapstructure:"min_response_time"`
	LoginRate       int           `mapstructure:"login_rate"`
	LoginWindow     time.Duration `mapstructure:"login_window"`
}

// MediaConfig limits media uploads
type MediaConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// ThemesConfig limits theme archive uploads
type ThemesConfig struct {
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
	MaxFileSize   int64 `mapstructure:"max_file_size"`
}

// ContentConfig locates the dz_content folders
type ContentConfig struct {
	BasePath    string `mapstructure:"base_path"`
	ThemesPath  string `mapstructure:"themes_path"`
	PluginsPath string `mapstructure:"plugins_path"`
	UploadsPath string `mapstructure:"uploads_path"`
	VaultPath   string `mapstructure:"vault_path"`
}

// AdminConfig describes the account created on a fresh install
type AdminConfig struct {
	Email           string `mapstructure:"email"`
	DisplayName     string `mapstructure:"display_name"`
	CredentialsFile string `mapstructure:"credentials_file"`
	PasswordLength  int    `mapstructure:"password_length"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Resolve returns p joined to the app root unless it is already absolute
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.RootDir, p)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dz")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.root_dir", ".")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.admin_dir", "web/dist")
	v.SetDefault("server.profiling", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "dz.db")

	v.SetDefault("session.store", "database")
	v.SetDefault("session.cookie_name", "session_id")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.gc_interval", 30*time.Minute)
	v.SetDefault("session.idle_expiration", time.Hour)
	v.SetDefault("session.absolute_expiration", 12*time.Hour)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.min_response_time", time.Second)
	v.SetDefault("auth.login_rate", 10)
	v.SetDefault("auth.login_window", time.Minute)

	v.SetDefault("media.max_file_size", 10<<20)
	v.SetDefault("themes.max_upload_size", 50<<20)
	v.SetDefault("themes.max_file_size", 100<<20)

	v.SetDefault("content.base_path", "dz_content")
	v.SetDefault("content.themes_path", "dz_content/themes")
	v.SetDefault("content.plugins_path", "dz_content/plugins")
	v.SetDefault("content.uploads_path", "dz_content/uploads")
	v.SetDefault("content.vault_path", "dz_content/vault")

	v.SetDefault("admin.email", "admin@localhost.com")
	v.SetDefault("admin.display_name", "admin")
	v.SetDefault("admin.credentials_file", "dragonbyte_application_password")
	v.SetDefault("admin.password_length", 32)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads dz.yaml (or configFile when set), a .env file and DZ_* environment variables
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dz")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Bare PORT and DATABASE_URL are honoured for container platforms
	_ = v.BindEnv("server.port", "DZ_SERVER_PORT", "PORT")
	_ = v.BindEnv("database.dsn", "DZ_DATABASE_DSN", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad panics if config cannot be loaded
func MustLoad(configFile string) *Config {
	cfg, err := Load(configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

var (
	validDrivers       = map[string]bool{"sqlite": true, "sqlite3": true, "pgx": true, "postgres": true}
	validSessionStores = map[string]bool{"memory": true, "database": true, "redis": true}
)

func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}
	if cfg.Server.BaseURL != "" && strings.HasSuffix(cfg.Server.BaseURL, "/") {
		return fmt.Errorf("server.base_url must not end with '/', got: %s", cfg.Server.BaseURL)
	}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be one of sqlite, sqlite3, pgx, postgres, got: %s", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if !validSessionStores[cfg.Session.Store] {
		return fmt.Errorf("session.store must be one of memory, database, redis, got: %s", cfg.Session.Store)
	}
	if cfg.Session.Store == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when session.store is redis")
	}
	if cfg.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if cfg.Session.IdleExpiration <= 0 || cfg.Session.AbsoluteExpiration <= 0 {
		return fmt.Errorf("session expirations must be positive")
	}
	if cfg.Session.IdleExpiration > cfg.Session.AbsoluteExpiration {
		return fmt.Errorf("session.idle_expiration (%s) exceeds session.absolute_expiration (%s)",
			cfg.Session.IdleExpiration, cfg.Session.AbsoluteExpiration)
	}
	if cfg.Media.MaxFileSize <= 0 {
		return fmt.Errorf("media.max_file_size must be positive")
	}
	if cfg.Themes.MaxUploadSize <= 0 || cfg.Themes.MaxFileSize <= 0 {
		return fmt.Errorf("themes upload limits must be positive")
	}
	if cfg.Admin.PasswordLength < 12 {
		return fmt.Errorf("admin.password_length must be at least 12, got: %d", cfg.Admin.PasswordLength)
	}
	if cfg.Auth.LoginRate <= 0 || cfg.Auth.LoginWindow <= 0 {
		return fmt.Errorf("auth.login_rate and auth.login_window must be positive")
	}
	return nil
}
