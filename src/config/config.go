package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	DatabasePath string
	LogLevel     string

	// Ingestion settings
	IncomingDir  string
	ProcessedDir string

	// Deduction policy knobs. These mirror business constants whose derivation
	// is undocumented, so they stay configurable rather than hard-coded.
	IncludeWelfareInDeductions bool

	// Report cache
	SummaryCacheTTL time.Duration
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from /backend)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	Cfg = &AppConfig{
		DatabasePath: getEnv("DATABASE_PATH", "./icrs.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		IncomingDir:  getEnv("INCOMING_DIR", "data/incoming"),
		ProcessedDir: getEnv("PROCESSED_DIR", "data/processed"),

		IncludeWelfareInDeductions: getEnvAsBool("INCLUDE_WELFARE_IN_DEDUCTIONS", true),

		SummaryCacheTTL: getEnvAsDuration("SUMMARY_CACHE_TTL", 15*time.Minute),
	}

	log.Printf("Configuration loaded: LogLevel=%s, DBPath=%s, ProcessedDir=%s",
		Cfg.LogLevel, Cfg.DatabasePath, Cfg.ProcessedDir)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a fallback.
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
