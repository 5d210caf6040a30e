package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kapu/netfolio/internal/constants"
)

// Catalog sources.
const (
	CatalogSourceEmbedded = "embedded"
	CatalogSourceFile     = "file"
	CatalogSourceDatabase = "database"
)

type Config struct {
	Server   ServerConfig
	Gemini   GeminiConfig
	OpenAI   OpenAIConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
	Database DatabaseConfig
	Chat     ChatConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Addr         string
	BasePath     string
	ResumeFile   string
	LoadingDelay time.Duration
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	ThinkingBudget int
}

type OpenAIConfig struct {
	APIKey         string
	Model          string
	EnableFallback bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CatalogConfig struct {
	Source string
	File   string
	Watch  bool
}

type DatabaseConfig struct {
	Driver string
	DSN    string
}

type ChatConfig struct {
	RateLimit int
	Timeout   time.Duration
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", ":8080"),
			BasePath:     normalizeBasePath(getEnv("BASE_PATH", "")),
			ResumeFile:   getEnv("RESUME_FILE", ""),
			LoadingDelay: time.Duration(getEnvInt("LOADING_DELAY_MS", int(constants.UIConfig.LoadingDelay/time.Millisecond))) * time.Millisecond,
		},
		Gemini: GeminiConfig{
			APIKey:         getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
			Model:          getEnv("GEMINI_MODEL", constants.AIDefaults.GeminiModel),
			ThinkingBudget: getEnvInt("GEMINI_THINKING_BUDGET", constants.AIDefaults.ThinkingBudget),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", constants.AIDefaults.OpenAIModel),
			EnableFallback: getEnvBool("OPENAI_ENABLE_FALLBACK", true),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Catalog: CatalogConfig{
			Source: strings.ToLower(getEnv("CATALOG_SOURCE", CatalogSourceEmbedded)),
			File:   getEnv("CATALOG_FILE", ""),
			Watch:  getEnvBool("CATALOG_WATCH", true),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
			DSN:    getEnv("DATABASE_DSN", ""),
		},
		Chat: ChatConfig{
			RateLimit: getEnvInt("CHAT_RATE_LIMIT", 20),
			Timeout:   time.Duration(getEnvInt("CHAT_TIMEOUT_SECONDS", int(constants.AIDefaults.RequestTimeout/time.Second))) * time.Second,
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks cross-field requirements. A missing Gemini key is allowed: the
// chat overlay then answers with the offline message.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("SERVER_ADDR is required")
	}
	switch c.Catalog.Source {
	case CatalogSourceEmbedded:
	case CatalogSourceFile:
		if c.Catalog.File == "" {
			return fmt.Errorf("CATALOG_FILE is required when CATALOG_SOURCE=file")
		}
	case CatalogSourceDatabase:
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required when CATALOG_SOURCE=database")
		}
	default:
		return fmt.Errorf("unknown CATALOG_SOURCE %q", c.Catalog.Source)
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Chat.RateLimit <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be positive")
	}
	if c.Gemini.ThinkingBudget < 0 {
		return fmt.Errorf("GEMINI_THINKING_BUDGET must not be negative")
	}
	return nil
}

// AIEnabled reports whether any chat provider can be constructed.
func (c *Config) AIEnabled() bool {
	return c.Gemini.APIKey != "" || c.OpenAI.APIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// normalizeBasePath turns "netfolio/" or "/netfolio/" into "/netfolio"; "/" becomes "".
func normalizeBasePath(value string) string {
	trimmed := strings.Trim(strings.TrimSpace(value), "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}
