// config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env            string
	Port           string
	AllowedOrigins []string
	SeedFile       string

	Database DatabaseConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Accrual  AccrualConfig
}

type DatabaseConfig struct {
	Driver          string // postgres | sqlite
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret    string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	ServiceToken string // empty disables /internal routes
}

type StorageConfig struct {
	Driver          string // local | r2
	UploadDir       string
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AccrualConfig struct {
	Enabled  bool
	Interval time.Duration
}

// IsDevelopment reports whether APP_ENV is set to development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	accessTTL, err := getEnvDuration("JWT_ACCESS_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := getEnvDuration("JWT_REFRESH_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	accrualInterval, err := getEnvDuration("ACCRUAL_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	maxOpen, err := getEnvInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	maxIdle, err := getEnvInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(getEnvString("DB_DRIVER", "postgres"))
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" && driver == "sqlite" {
		dbURL = "realestate.db"
	}

	cfg := &Config{
		Env:            strings.ToLower(getEnvString("APP_ENV", "production")),
		Port:           getEnvString("PORT", "8000"),
		AllowedOrigins: splitList(getEnvString("ALLOWED_ORIGINS", "http://localhost:3000")),
		SeedFile:       os.Getenv("SEED_FILE"),
		Database: DatabaseConfig{
			Driver:          driver,
			URL:             dbURL,
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: connMaxLifetime,
		},
		Auth: AuthConfig{
			JWTSecret:    os.Getenv("JWT_SECRET"),
			AccessTTL:    accessTTL,
			RefreshTTL:   refreshTTL,
			ServiceToken: os.Getenv("INTERNAL_SERVICE_TOKEN"),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(getEnvString("STORAGE_DRIVER", "local")),
			UploadDir:       getEnvString("UPLOAD_DIR", "uploads"),
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Accrual: AccrualConfig{
			Enabled:  getEnvBool("ACCRUAL_ENABLED", false),
			Interval: accrualInterval,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable not set")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	switch c.Storage.Driver {
	case "local":
	case "r2":
		if c.Storage.AccountID == "" || c.Storage.Bucket == "" {
			return fmt.Errorf("CLOUDFLARE_ACCOUNT_ID and R2_BUCKET_NAME are required when STORAGE_DRIVER=r2")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q (want local or r2)", c.Storage.Driver)
	}
	if c.Accrual.Enabled && c.Accrual.Interval <= 0 {
		return fmt.Errorf("ACCRUAL_INTERVAL must be positive")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
		}
		return intValue, nil
	}
	return defaultValue, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// splitList splits a comma-separated value and trims each entry.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
