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

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string
	Port         string

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	GeocodingBaseURL   string
	WeatherCacheTTL    time.Duration

	GeminiAPIKey string
	GeminiModel  string
	GroqAPIKey   string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64

	APIJWTSecret string

	AgronomyParamsPath string
	CropTablePath      string

	ScheduleReuse       time.Duration
	DefaultSoilMoisture float64
}

// Load reads .env files (default ".env") into the environment and then builds
// the Config. A missing .env file is not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	return NewFromEnv()
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	openWeatherKey := os.Getenv("OPENWEATHER_API_KEY")
	if openWeatherKey == "" {
		return nil, fmt.Errorf("OPENWEATHER_API_KEY environment variable not set")
	}

	cfg := &Config{
		DatabasePath:       getEnv("DATABASE_PATH", "data/irrigation.db"),
		Port:               getEnv("PORT", "8080"),
		OpenWeatherAPIKey:  openWeatherKey,
		OpenWeatherBaseURL: os.Getenv("OPENWEATHER_BASE_URL"),
		GeocodingBaseURL:   os.Getenv("GEOCODING_BASE_URL"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        os.Getenv("GEMINI_MODEL"),
		GroqAPIKey:         os.Getenv("GROQ_API_KEY"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
		APIJWTSecret:       os.Getenv("API_JWT_SECRET"),
		AgronomyParamsPath: os.Getenv("AGRONOMY_PARAMS_PATH"),
		CropTablePath:      os.Getenv("CROP_TABLE_PATH"),
	}

	var err error
	if cfg.TelegramAllowedUserIDs, err = parseIDs(os.Getenv("TELEGRAM_ALLOWED_USER_IDS")); err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}
	if v := os.Getenv("ADMIN_TELEGRAM_ID"); v != "" {
		if cfg.AdminTelegramID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	reuseHours, err := getFloat("SCHEDULE_REUSE_HOURS", 24)
	if err != nil {
		return nil, err
	}
	cfg.ScheduleReuse = time.Duration(reuseHours * float64(time.Hour))

	ttlMinutes, err := getFloat("WEATHER_CACHE_MINUTES", 60)
	if err != nil {
		return nil, err
	}
	cfg.WeatherCacheTTL = time.Duration(ttlMinutes * float64(time.Minute))

	if cfg.DefaultSoilMoisture, err = getFloat("DEFAULT_SOIL_MOISTURE", 0.3); err != nil {
		return nil, err
	}
	if cfg.DefaultSoilMoisture <= 0 || cfg.DefaultSoilMoisture >= 1 {
		return nil, fmt.Errorf("DEFAULT_SOIL_MOISTURE must be between 0 and 1, got %v", cfg.DefaultSoilMoisture)
	}

	return cfg, nil
}

// HasLLM reports whether any model backend is configured.
func (c *Config) HasLLM() bool {
	return c.GeminiAPIKey != "" || c.GroqAPIKey != ""
}

// RequireTelegram checks the keys the bot cannot start without.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
