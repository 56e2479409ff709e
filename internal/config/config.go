// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the configurator backend
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Security SecurityConfig
	Pricing  PricingConfig
	Cart     CartConfig
	Storage  StorageConfig
	Logging  LoggingConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// JWTConfig contains JWT token configuration. Tokens are only read to
// attribute cart events to a user.
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	TrustedProxies     []string
}

// PricingConfig contains remote pricing service configuration
type PricingConfig struct {
	ServiceURL    string
	Timeout       time.Duration
	CacheTTL      time.Duration
	CacheCapacity int
	MaxFailures   int
	OpenTimeout   time.Duration
}

// CartConfig contains cart aggregate settings
type CartConfig struct {
	MaxItems                int
	MaxQuantity             int
	AllowNegativeQuantities bool
	DefaultTaxRate          float64
	Currency                string
	Locale                  string
	AutoSave                bool
	AutoSaveInterval        time.Duration
	RemotePricedCategories  []string
	RecalculationDebounce   time.Duration
	EventChannelPrefix      string
}

// StorageConfig contains cart snapshot storage configuration
type StorageConfig struct {
	Driver      string
	SnapshotTTL time.Duration
	KeyPrefix   string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Storage drivers
const (
	StorageDriverRedis    = "redis"
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Configurator Backend"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
		},
		Server: ServerConfig{
			Port:           getEnv("APP_PORT", "8080"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "configurator_db"),
			User:         getEnv("DB_USER", "configurator_user"),
			Password:     getEnv("DB_PASSWORD", "configurator_password"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", true),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "your-super-secret-jwt-key-change-in-production"),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRE", 24*time.Hour),
		},
		Security: SecurityConfig{
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 300),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001"}),
			CORSAllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
		},
		Pricing: PricingConfig{
			ServiceURL:    getEnv("PRICING_SERVICE_URL", "http://localhost:3000/api/price/doors"),
			Timeout:       getEnvAsDuration("PRICING_TIMEOUT", 10*time.Second),
			CacheTTL:      getEnvAsDuration("PRICING_CACHE_TTL", 5*time.Minute),
			CacheCapacity: getEnvAsInt("PRICING_CACHE_CAPACITY", 512),
			MaxFailures:   getEnvAsInt("PRICING_BREAKER_MAX_FAILURES", 5),
			OpenTimeout:   getEnvAsDuration("PRICING_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Cart: CartConfig{
			MaxItems:                getEnvAsInt("CART_MAX_ITEMS", 100),
			MaxQuantity:             getEnvAsInt("CART_MAX_QUANTITY", 999),
			AllowNegativeQuantities: getEnvAsBool("CART_ALLOW_NEGATIVE_QUANTITIES", false),
			DefaultTaxRate:          getEnvAsFloat("CART_DEFAULT_TAX_RATE", 20),
			Currency:                getEnv("CART_CURRENCY", "RUB"),
			Locale:                  getEnv("CART_LOCALE", "ru-RU"),
			AutoSave:                getEnvAsBool("CART_AUTOSAVE", true),
			AutoSaveInterval:        getEnvAsDuration("CART_AUTOSAVE_INTERVAL", 30*time.Second),
			RemotePricedCategories:  getEnvAsSlice("CART_REMOTE_PRICED_CATEGORIES", []string{"doors"}),
			RecalculationDebounce:   getEnvAsDuration("CART_RECALCULATION_DEBOUNCE", 400*time.Millisecond),
			EventChannelPrefix:      getEnv("CART_EVENT_CHANNEL_PREFIX", "cart:events:"),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverRedis)),
			SnapshotTTL: getEnvAsDuration("STORAGE_SNAPSHOT_TTL", 24*time.Hour),
			KeyPrefix:   getEnv("STORAGE_KEY_PREFIX", "cart:session:"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "debug"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	switch c.Storage.Driver {
	case StorageDriverRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis storage driver")
		}
	case StorageDriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required for the postgres storage driver")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Cart.MaxItems <= 0 {
		return fmt.Errorf("CART_MAX_ITEMS must be positive")
	}
	if c.Cart.MaxQuantity <= 0 {
		return fmt.Errorf("CART_MAX_QUANTITY must be positive")
	}
	if c.Cart.DefaultTaxRate < 0 || c.Cart.DefaultTaxRate > 100 {
		return fmt.Errorf("CART_DEFAULT_TAX_RATE must be within [0, 100]")
	}
	if c.Cart.AutoSave && c.Cart.AutoSaveInterval <= 0 {
		return fmt.Errorf("CART_AUTOSAVE_INTERVAL must be positive when autosave is enabled")
	}

	if c.Pricing.Timeout <= 0 {
		return fmt.Errorf("PRICING_TIMEOUT must be positive")
	}
	if c.Pricing.CacheCapacity <= 0 {
		return fmt.Errorf("PRICING_CACHE_CAPACITY must be positive")
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Storage.Driver == StorageDriverRedis || c.Redis.Enabled
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
