package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Record store selection
	Store StoreConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Attachment storage
	Blob BlobConfig

	// Listing and rendering
	Blog BlogConfig

	// RSS feed
	Feed FeedConfig

	// Background blob cleanup
	Cleanup CleanupConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig selects the record store backend
type StoreConfig struct {
	Backend        string // "postgres" or "redis"
	MigrationsPath string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BlobConfig holds attachment storage settings
type BlobConfig struct {
	Dir           string
	PublicPath    string
	MaxUploadSize int64 // in bytes
}

// BlogConfig holds listing and rendering settings
type BlogConfig struct {
	Locale         string
	ListLimit      int
	HighlightStyle string
}

// FeedConfig holds RSS feed metadata
type FeedConfig struct {
	Title       string
	Description string
	Link        string
	Author      string
	Size        int
}

// CleanupConfig holds blob cleanup worker settings
type CleanupConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	// Processing claims older than this are returned to the queue
	StaleAfter  time.Duration
	Workers     int
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables, after loading a .env file if present
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Backend:        getEnv("STORE_BACKEND", BackendPostgres),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "brainblog"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Blob: BlobConfig{
			Dir:           getEnv("BLOB_DIR", "./data/files"),
			PublicPath:    getEnv("BLOB_PUBLIC_PATH", "/files"),
			MaxUploadSize: getInt64Env("MAX_UPLOAD_SIZE", 50*1024*1024), // 50MB
		},
		Blog: BlogConfig{
			Locale:         getEnv("BLOG_LOCALE", "fr"),
			ListLimit:      getIntEnv("LIST_LIMIT", 20),
			HighlightStyle: getEnv("HIGHLIGHT_STYLE", "github"),
		},
		Feed: FeedConfig{
			Title:       getEnv("FEED_TITLE", "BrainBlog"),
			Description: getEnv("FEED_DESCRIPTION", "Latest articles"),
			Link:        getEnv("FEED_LINK", "http://localhost:8080"),
			Author:      getEnv("FEED_AUTHOR", "BrainBlog"),
			Size:        getIntEnv("FEED_SIZE", 20),
		},
		Cleanup: CleanupConfig{
			Interval:    getDurationEnv("CLEANUP_INTERVAL", 30*time.Second),
			BatchSize:   getIntEnv("CLEANUP_BATCH_SIZE", 50),
			MaxAttempts: getIntEnv("CLEANUP_MAX_ATTEMPTS", 5),
			StaleAfter:  getDurationEnv("CLEANUP_STALE_AFTER", 10*time.Minute),
			Workers:     getIntEnv("CLEANUP_WORKERS", 4),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: postgres, redis")
	}
	if c.Blob.Dir == "" {
		return fmt.Errorf("BLOB_DIR is required")
	}
	if c.Blog.ListLimit < 0 {
		return fmt.Errorf("LIST_LIMIT must not be negative")
	}
	if c.Cleanup.Workers < 1 {
		return fmt.Errorf("CLEANUP_WORKERS must be at least 1")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
