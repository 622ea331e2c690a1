// Package config loads the application configuration from environment
// variables. Almost everything is optional: a missing API key disables the
// feature behind it, and malformed values fall back to defaults rather than
// failing startup.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"meal-scheduler/internal/rerank"
)

// Config holds the configuration for the application.
type Config struct {
	// LLM backends. Empty keys leave the corresponding features disabled.
	LLMProvider  string // "gemini" or "groq"
	GeminiAPIKey string
	GroqAPIKey   string

	// Recipe data.
	CatalogPath    string
	ClippedPath    string
	MealDBEnabled  bool
	MealDBBaseURL  string
	SourceCacheTTL time.Duration

	// Nutrition lookup.
	USDAAPIKey    string
	USDACachePath string

	// Reranking.
	Rerank rerank.Config

	// Persistence.
	DatabasePath string

	// API server.
	Port          string
	APIAuthSecret string

	// Telegram bot (optional for the CLI, required for the bot binary).
	TelegramBotToken    string
	TelegramWebhookURL  string
	TelegramAllowUserID int64
}

// NewFromEnv creates a Config from environment variables. A .env file is
// loaded first when present.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LLMProvider:  getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GroqAPIKey:   os.Getenv("GROQ_API_KEY"),

		CatalogPath:    getEnv("RECIPE_CATALOG_PATH", "data/recipes.json"),
		ClippedPath:    getEnv("CLIPPED_RECIPES_PATH", "data/clipped_recipes.json"),
		MealDBEnabled:  getEnvBool("MEALDB_ENABLED", false),
		MealDBBaseURL:  os.Getenv("MEALDB_BASE_URL"),
		SourceCacheTTL: getEnvDuration("SOURCE_CACHE_TTL_SECONDS", 5*time.Minute),

		USDAAPIKey:    os.Getenv("USDA_API_KEY"),
		USDACachePath: getEnv("USDA_CACHE_PATH", "data/usda_cache.json"),

		DatabasePath: getEnv("DATABASE_PATH", "data/meal_scheduler.db"),

		Port:          getEnv("PORT", "8080"),
		APIAuthSecret: os.Getenv("API_AUTH_SECRET"),

		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
	}

	if cfg.LLMProvider != "gemini" && cfg.LLMProvider != "groq" {
		log.Printf("unknown LLM_PROVIDER %q, using gemini", cfg.LLMProvider)
		cfg.LLMProvider = "gemini"
	}

	if raw := os.Getenv("TELEGRAM_ALLOW_USER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOW_USER_ID %q: %w", raw, err)
		}
		cfg.TelegramAllowUserID = id
	}

	mode, ok := rerank.ParseMode(os.Getenv("RERANK_MODE"))
	if !ok {
		log.Printf("unknown RERANK_MODE %q, using %s", os.Getenv("RERANK_MODE"), mode)
	}
	cfg.Rerank = rerank.Config{
		Enabled:  getEnvBool("RERANK_ENABLED", false),
		TopK:     getEnvInt("RERANK_TOP_K", 3),
		Mode:     mode,
		CacheTTL: getEnvDuration("RERANK_CACHE_TTL_SECONDS", 24*time.Hour),
		Timeout:  getEnvDuration("RERANK_TIMEOUT_SECONDS", 15*time.Second),
	}

	return cfg, nil
}

// LLMKey returns the API key for the configured provider.
func (c *Config) LLMKey() string {
	if c.LLMProvider == "groq" {
		return c.GroqAPIKey
	}
	return c.GeminiAPIKey
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s value %q, using %v", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("invalid %s value %q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		log.Printf("invalid %s value %q, using %s", key, raw, fallback)
		return fallback
	}
	return time.Duration(secs) * time.Second
}
