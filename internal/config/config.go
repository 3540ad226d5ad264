package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the configuration for the application.
type Config struct {
	FirebaseProjectID string
	FirebaseAPIKey    string
	AppID             string
	GeminiAPIKey      string
	GeminiModel       string

	// Optional stored credentials for non-interactive sign-in (CLI and bot).
	Email    string
	Password string

	MetricsDBPath string

	// Telegram Config (required for the bot only)
	TelegramBotToken   string
	TelegramAllowedIDs []int64
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	projectID := os.Getenv("FIREBASE_PROJECT_ID")
	if projectID == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID environment variable not set")
	}

	apiKey := os.Getenv("FIREBASE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("FIREBASE_API_KEY environment variable not set")
	}

	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	if geminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	appID := os.Getenv("RECIPE_BOOK_APP_ID")
	if appID == "" {
		appID = "jess-tommy-recipe-book"
	}

	geminiModel := os.Getenv("GEMINI_MODEL")
	if geminiModel == "" {
		geminiModel = "gemini-2.5-flash-preview-09-2025"
	}

	metricsDBPath := os.Getenv("METRICS_DB_PATH")
	if metricsDBPath == "" {
		metricsDBPath = "data/recipe-book.db"
	}

	var allowedIDs []int64
	if raw := os.Getenv("TELEGRAM_ALLOW_USER_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOW_USER_ID %q: %w", raw, err)
		}
		allowedIDs = append(allowedIDs, id)
	}

	return &Config{
		FirebaseProjectID:  projectID,
		FirebaseAPIKey:     apiKey,
		AppID:              appID,
		GeminiAPIKey:       geminiAPIKey,
		GeminiModel:        geminiModel,
		Email:              os.Getenv("RECIPE_BOOK_EMAIL"),
		Password:           os.Getenv("RECIPE_BOOK_PASSWORD"),
		MetricsDBPath:      metricsDBPath,
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAllowedIDs: allowedIDs,
	}, nil
}
