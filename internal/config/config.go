package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Dedup store backends.
const (
	BackendFile  = "file"
	BackendMongo = "mongo"
)

// Config holds the application configuration.
type Config struct {
	AppEnv          string
	Debug           bool
	Version         string
	SentryDSN       string
	DefaultLanguage string `validate:"required"`

	// Telegram read side
	TelegramBotToken string `validate:"required"`
	TelegramChannel  string `validate:"required"`

	// Translation
	GeminiAPIKey string `validate:"required"`
	GeminiModel  string `validate:"required"`

	// Facebook publish side
	FBPageID           string `validate:"required"`
	LongLivedUserToken string `validate:"required"`
	FBGraphURL         string `validate:"required,url"`
	FBGraphVideoURL    string `validate:"required,url"`
	FBGraphVersion     string `validate:"required"`

	StoreConfig

	// Pipeline tuning
	FetchLimit          int           `validate:"min=1,max=100"`
	GroupScanWindow     int           `validate:"min=1"`
	MinTokens           int           `validate:"min=0"`
	DedupByText         bool
	TranslateAttempts   int           `validate:"min=1"`
	TranslateRetryDelay time.Duration `validate:"min=0"`
	ItemPause           time.Duration `validate:"min=0"`
	MediaDir            string        `validate:"required"`
}

// StoreConfig selects and locates the results store.
type StoreConfig struct {
	DedupBackend    string `validate:"oneof=file mongo"`
	ResultsPath     string `validate:"required_if=DedupBackend file"`
	MongoDBURI      string `validate:"required_if=DedupBackend mongo"`
	MongoDBDatabase string `validate:"required_if=DedupBackend mongo"`
}

// LoadStoreConfig reads only the store settings, for commands that never
// talk to Telegram, Gemini or Facebook.
func LoadStoreConfig() (*StoreConfig, error) {
	_ = godotenv.Load()
	sc := storeFromEnv()
	if err := validate(&sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func storeFromEnv() StoreConfig {
	return StoreConfig{
		DedupBackend:    strings.ToLower(getEnv("DEDUP_BACKEND", BackendFile)),
		ResultsPath:     getEnv("RESULTS_PATH", "results.json"),
		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", ""),
	}
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by a scheduler).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return FromEnv()
}

// FromEnv builds and validates a Config from the current environment only.
func FromEnv() (*Config, error) {
	var parseErrs []error

	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Debug:           parseBool("DEBUG", false, &parseErrs),
		Version:         getEnv("VERSION", "dev"),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChannel:  getEnv("TELEGRAM_CHANNEL", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		FBPageID:           getEnv("FB_PAGE_ID", ""),
		LongLivedUserToken: getEnv("LONG_LIVED_USER_TOKEN", ""),
		FBGraphURL:         strings.TrimRight(getEnv("FB_GRAPH_URL", "https://graph.facebook.com"), "/"),
		FBGraphVideoURL:    strings.TrimRight(getEnv("FB_GRAPH_VIDEO_URL", "https://graph-video.facebook.com"), "/"),
		FBGraphVersion:     getEnv("FB_GRAPH_VERSION", "v19.0"),

		StoreConfig: storeFromEnv(),

		FetchLimit:          parseInt("FETCH_LIMIT", 10, &parseErrs),
		GroupScanWindow:     parseInt("GROUP_SCAN_WINDOW", 10, &parseErrs),
		MinTokens:           parseInt("MIN_TOKENS", 0, &parseErrs),
		DedupByText:         parseBool("DEDUP_BY_TEXT", true, &parseErrs),
		TranslateAttempts:   parseInt("TRANSLATE_ATTEMPTS", 2, &parseErrs),
		TranslateRetryDelay: parseDuration("TRANSLATE_RETRY_DELAY", 2*time.Second, &parseErrs),
		ItemPause:           parseDuration("ITEM_PAUSE", time.Second, &parseErrs),
		MediaDir:            getEnv("MEDIA_DIR", os.TempDir()),
	}
	if len(parseErrs) > 0 {
		return nil, errors.Join(parseErrs...)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}

	return cfg, nil
}

// envNames maps struct fields to the variables they are read from, so
// validation errors point the operator at the right setting.
var envNames = map[string]string{
	"DefaultLanguage":     "DEFAULT_LANGUAGE",
	"TelegramBotToken":    "TELEGRAM_BOT_TOKEN",
	"TelegramChannel":     "TELEGRAM_CHANNEL",
	"GeminiAPIKey":        "GEMINI_API_KEY",
	"GeminiModel":         "GEMINI_MODEL",
	"FBPageID":            "FB_PAGE_ID",
	"LongLivedUserToken":  "LONG_LIVED_USER_TOKEN",
	"FBGraphURL":          "FB_GRAPH_URL",
	"FBGraphVideoURL":     "FB_GRAPH_VIDEO_URL",
	"FBGraphVersion":      "FB_GRAPH_VERSION",
	"DedupBackend":        "DEDUP_BACKEND",
	"ResultsPath":         "RESULTS_PATH",
	"MongoDBURI":          "MONGODB_URI",
	"MongoDBDatabase":     "MONGODB_DATABASE",
	"FetchLimit":          "FETCH_LIMIT",
	"GroupScanWindow":     "GROUP_SCAN_WINDOW",
	"MinTokens":           "MIN_TOKENS",
	"TranslateAttempts":   "TRANSLATE_ATTEMPTS",
	"TranslateRetryDelay": "TRANSLATE_RETRY_DELAY",
	"ItemPause":           "ITEM_PAUSE",
	"MediaDir":            "MEDIA_DIR",
}

func validate(v interface{}) error {
	if err := validator.New().Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return newValidationError(verrs)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func newValidationError(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := envNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("%s is required", name))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s=%s)", name, fe.Tag(), fe.Param()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseInt(key string, def int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func parseBool(key string, def bool, errs *[]error) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func parseDuration(key string, def time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}
