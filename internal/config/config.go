package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath     string
	PriceHistoryDir  string
	QuoteServiceURL  string
	LogLevel         string
	Port             int
	DevMode          bool
	AllowOverdraft   bool // Cash ledger policy: permit withdrawals past the balance
	PriceRefreshSpec string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnvAsInt("PORT", 8001),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		DatabasePath:     getEnv("DATABASE_PATH", "./data/folio.db"),
		PriceHistoryDir:  getEnv("PRICE_HISTORY_DIR", "./data/history"),
		QuoteServiceURL:  getEnv("QUOTE_SERVICE_URL", "https://query1.finance.yahoo.com"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AllowOverdraft:   getEnvAsBool("ALLOW_OVERDRAFT", true),
		PriceRefreshSpec: getEnv("PRICE_REFRESH_SPEC", "@every 15m"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be a valid port number, got %d", c.Port)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
