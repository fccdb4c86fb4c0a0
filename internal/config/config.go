package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Inventory backends
const (
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Inventory InventoryConfig
	Drafts    DraftConfig
	Log       LogConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port    int
	GinMode string
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	DBName     string
	SSLMode    string
	TestDBName string // Separate database for testing
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// InventoryConfig selects and configures the inventory system of record
type InventoryConfig struct {
	Backend string
	BaseURL string
	Token   string
	Timeout time.Duration
}

// DraftConfig controls the lifetime of open drafts
type DraftConfig struct {
	IdleTTL       time.Duration
	SweepSchedule string
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from environment variables, reading a
// .env file first when one is present
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:    getEnvAsInt("SERVER_PORT", 8080),
			GinMode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			Username:   getEnv("DB_USERNAME", "postgres"),
			Password:   getEnv("DB_PASSWORD", "password"),
			DBName:     getEnv("DB_NAME", "fabricstock"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			TestDBName: getEnv("TEST_DB_NAME", "fabricstock_test"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "your-secret-key-here"),
		},
		Inventory: InventoryConfig{
			Backend: getEnv("INVENTORY_BACKEND", BackendHTTP),
			BaseURL: getEnv("INVENTORY_API_URL", "http://localhost:8000/api"),
			Token:   getEnv("INVENTORY_API_TOKEN", ""),
			Timeout: getEnvAsDuration("INVENTORY_API_TIMEOUT", 15*time.Second),
		},
		Drafts: DraftConfig{
			IdleTTL:       getEnvAsDuration("DRAFT_IDLE_TTL", 2*time.Hour),
			SweepSchedule: getEnv("DRAFT_SWEEP_SCHEDULE", "@every 5m"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate checks the settings that have no usable default
func (c *Config) Validate() error {
	switch c.Inventory.Backend {
	case BackendHTTP:
		if c.Inventory.BaseURL == "" {
			return fmt.Errorf("INVENTORY_API_URL must be set for the %s backend", BackendHTTP)
		}
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown inventory backend %q", c.Inventory.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.Drafts.IdleTTL <= 0 {
		return fmt.Errorf("DRAFT_IDLE_TTL must be positive")
	}
	return nil
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
