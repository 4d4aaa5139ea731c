// Package config provides configuration management for the MDM server.
//
// This package handles loading configuration from multiple sources:
//   - YAML configuration files
//   - Environment variables (with MDM_ prefix)
//   - .env files
//   - Default values
//
// # Configuration Sources Priority
//
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Default values (hardcoded)
//  2. Configuration files (./configs/config.yaml, ~/.mdm/config.yaml, /etc/mdm/config.yaml)
//  3. .env files
//  4. Environment variables (MDM_ prefix, plus the legacy PORT, JWT_SECRET,
//     JWT_REFRESH_SECRET, JWT_COOKIE_EXPIRE and NODE_ENV names)
//
// # Usage Example
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
//
// # Environment Variables
//
// Use MDM_ prefix and underscores for nested keys:
//   - MDM_SERVER_PORT=8095
//   - MDM_COUCHDB_URL=http://localhost:5984
//   - MDM_STORAGE_BACKEND=memory
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends understood by the storage package.
const (
	BackendCouchDB = "couchdb"
	BackendMemory  = "memory"
)

// Config is the root configuration structure.
type Config struct {
	// Server contains HTTP server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Storage selects the document store implementation
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// CouchDB contains database connection settings
	CouchDB CouchDBConfig `mapstructure:"couchdb" yaml:"couchdb"`

	// Redis configures the optional entity registry cache
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`

	// Logging contains logging settings
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Security contains authentication and rate limiting settings
	Security SecurityConfig `mapstructure:"security" yaml:"security"`

	// Catalog contains catalog behaviour settings
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the server bind address (default: 0.0.0.0)
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the server listen port (default: 5000)
	Port int `mapstructure:"port" yaml:"port"`

	// Environment is development or production; production hides internal error details
	Environment string `mapstructure:"environment" yaml:"environment"`

	// ReadTimeout is the maximum duration for reading requests
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing responses
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Debug enables debug logging and error details in responses
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// TLSEnabled enables HTTPS
	TLSEnabled bool `mapstructure:"tls_enabled" yaml:"tls_enabled"`

	// TLSCert is the path to the TLS certificate file
	TLSCert string `mapstructure:"tls_cert" yaml:"tls_cert"`

	// TLSKey is the path to the TLS private key file
	TLSKey string `mapstructure:"tls_key" yaml:"tls_key"`
}

// IsProduction reports whether the server runs with production semantics.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// StorageConfig selects the document store.
type StorageConfig struct {
	// Backend is couchdb or memory
	Backend string `mapstructure:"backend" yaml:"backend"`

	// QueryLimit caps the number of documents a single query returns
	QueryLimit int `mapstructure:"query_limit" yaml:"query_limit"`
}

// CouchDBConfig contains CouchDB connection settings.
type CouchDBConfig struct {
	// URL is the CouchDB server URL (e.g., http://localhost:5984)
	URL string `mapstructure:"url" yaml:"url"`

	// Database is the database name to use
	Database string `mapstructure:"database" yaml:"database"`

	// Username for CouchDB authentication
	Username string `mapstructure:"username" yaml:"username"`

	// Password for CouchDB authentication
	Password string `mapstructure:"password" yaml:"password"`
}

// RedisConfig configures the entity registry cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `mapstructure:"url" yaml:"url"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	RegistryTTL  time.Duration `mapstructure:"registry_ttl" yaml:"registry_ttl"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the log format (json, text)
	Format string `mapstructure:"format" yaml:"format"`

	// Output is stdout, stderr or a file path
	Output string `mapstructure:"output" yaml:"output"`
}

// SecurityConfig contains security and rate limiting settings.
type SecurityConfig struct {
	// RateLimit is the maximum requests per second per client
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`

	// AllowedOrigins are the CORS allowed origins
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// AuthEnabled enables JWT authentication on the catalog routes
	AuthEnabled bool `mapstructure:"auth_enabled" yaml:"auth_enabled"`

	// JWTSecret signs access tokens
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// JWTRefreshSecret signs refresh tokens
	JWTRefreshSecret string `mapstructure:"jwt_refresh_secret" yaml:"jwt_refresh_secret"`

	// JWTExpiration is the access token lifetime (default: 1h)
	JWTExpiration time.Duration `mapstructure:"jwt_expiration" yaml:"jwt_expiration"`

	// RefreshTokenExpiration is the refresh token lifetime (default: 7 days)
	RefreshTokenExpiration time.Duration `mapstructure:"refresh_token_expiration" yaml:"refresh_token_expiration"`

	// CookieExpireDays is the lifetime of the refresh token cookie in days
	CookieExpireDays int `mapstructure:"cookie_expire_days" yaml:"cookie_expire_days"`
}

// CatalogConfig contains catalog behaviour settings.
type CatalogConfig struct {
	// DefaultLanguage is used when a plain string is written to a localized field
	DefaultLanguage string `mapstructure:"default_language" yaml:"default_language"`

	// HistoryDefaultLimit is the page size for history queries without a limit
	HistoryDefaultLimit int `mapstructure:"history_default_limit" yaml:"history_default_limit"`
}

var cfg *Config

// Load reads configuration from a file and environment variables.
// If cfgFile is empty, it searches for config.yaml in standard locations.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mdm")
		v.AddConfigPath("/etc/mdm")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			if !isFileNotFoundError(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.MergeInConfig() // Ignore error if .env file doesn't exist

	v.SetEnvPrefix("MDM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = c
	return c, nil
}

// bindLegacyEnv maps the unprefixed variable names deployments already use.
// The MDM_ prefixed name is bound first so it keeps precedence.
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"server.port":                 "PORT",
		"server.environment":          "NODE_ENV",
		"security.jwt_secret":         "JWT_SECRET",
		"security.jwt_refresh_secret": "JWT_REFRESH_SECRET",
		"security.cookie_expire_days": "JWT_COOKIE_EXPIRE",
	}
	for key, env := range legacy {
		prefixed := "MDM_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}
}

// Defaults returns a configuration populated only with default values.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	c := &Config{}
	_ = v.Unmarshal(c)
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.tls_enabled", false)

	v.SetDefault("storage.backend", BackendCouchDB)
	v.SetDefault("storage.query_limit", 10000)

	v.SetDefault("couchdb.url", "http://localhost:5984")
	v.SetDefault("couchdb.database", "mdm")
	v.SetDefault("couchdb.username", "admin")
	v.SetDefault("couchdb.password", "password")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.registry_ttl", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("security.rate_limit", 100)
	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.auth_enabled", true)
	v.SetDefault("security.jwt_secret", "change-me-in-production")
	v.SetDefault("security.jwt_refresh_secret", "change-me-too-in-production")
	v.SetDefault("security.jwt_expiration", "1h")
	v.SetDefault("security.refresh_token_expiration", "168h") // 7 days
	v.SetDefault("security.cookie_expire_days", 30)

	v.SetDefault("catalog.default_language", "tr")
	v.SetDefault("catalog.history_default_limit", 50)
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	switch cfg.Storage.Backend {
	case BackendCouchDB:
		if cfg.CouchDB.URL == "" {
			return fmt.Errorf("couchdb url is required")
		}
		if cfg.CouchDB.Database == "" {
			return fmt.Errorf("couchdb database is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", cfg.Logging.Level)
	}

	if cfg.Security.AuthEnabled && cfg.Security.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required when auth is enabled")
	}

	if cfg.Catalog.DefaultLanguage == "" {
		return fmt.Errorf("catalog default language is required")
	}

	return nil
}

// Get returns the most recently loaded configuration.
func Get() *Config {
	return cfg
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
