package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config is the application configuration. The invitation expiry horizon,
// the audit page sizes and the database selection are the only externally
// tunable parameters the core's behavior depends on.
type Config struct {
	Environment string
	Port        string

	// Database
	UseMemoryDB bool
	PostgresDSN string

	// JWT verification of the upstream identity provider's tokens
	JWTSecret string

	// Invitations
	InviteTTL time.Duration
	BaseURL   string // public base URL used to build invite links

	// Audit
	AuditDefaultLimit int
	AuditMaxLimit     int

	// CORS
	AllowedOrigins []string

	Debug bool
}

// LoadConfig reads configuration from the environment, with .env file
// support for local development.
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		Environment:       getEnvWithDefault("ENVIRONMENT", "development"),
		Port:              getEnvWithDefault("PORT", "3000"),
		UseMemoryDB:       getEnvBool("USE_MEMORY_DB", true),
		JWTSecret:         getEnvWithDefault("JWT_SECRET", "your-secret-key-change-in-production"),
		InviteTTL:         time.Duration(getEnvInt("INVITE_TTL_HOURS", 7*24)) * time.Hour,
		AuditDefaultLimit: getEnvInt("AUDIT_DEFAULT_LIMIT", 50),
		AuditMaxLimit:     getEnvInt("AUDIT_MAX_LIMIT", 200),
		Debug:             getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.BaseURL = strings.TrimSpace(getEnvWithDefault("BASE_URL", "http://localhost:3000"))

	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		config.AllowedOrigins = strings.Split(allowedOrigins, ",")
	}

	if config.Environment == "production" {
		if config.PostgresDSN != "" {
			config.UseMemoryDB = false
		} else {
			fmt.Println("[warn] production environment without POSTGRES_DSN; invitations will not survive restarts")
		}
		config.Debug = false
	}

	return config
}

var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide Config, loading it once per cold start
// and reusing it across warm invocations.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" || c.JWTSecret == "your-secret-key-change-in-production" {
		if c.Environment == "production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		fmt.Println("[warn] using default JWT secret (development only)")
	}

	if c.InviteTTL <= 0 {
		return fmt.Errorf("INVITE_TTL_HOURS must be positive")
	}
	if c.AuditDefaultLimit <= 0 || c.AuditMaxLimit < c.AuditDefaultLimit {
		return fmt.Errorf("audit limits misconfigured: default=%d max=%d", c.AuditDefaultLimit, c.AuditMaxLimit)
	}

	if !c.UseMemoryDB && c.PostgresDSN == "" {
		return fmt.Errorf("database configuration incomplete: set POSTGRES_DSN or USE_MEMORY_DB")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// loadEnvFile loads KEY=VALUE pairs from a .env file, without overriding
// variables already present in the environment.
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return // missing file is fine
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
