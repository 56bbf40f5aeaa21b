package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                      string
	WSPath                    string
	VerifyToken               string
	WhatsAppToken             string
	PhoneNumberID             string
	WhatsAppBusinessAccountID string
	GraphAPIURL               string
	SendTimeout               time.Duration
	SendRatePerSecond         float64

	DBDriver   string // sqlite or postgres
	DBPath     string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	EncryptionKey string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	PositionTTL           time.Duration
	PositionSweepSchedule string
	SeedFile              string
	LogLevel              string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	return &Config{
		Port:                      getEnv("PORT", "8080"),
		WSPath:                    getEnv("WS_PATH", "/ws-maximus"),
		VerifyToken:               getEnv("VERIFY_TOKEN", ""),
		WhatsAppToken:             getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:             getEnv("PHONE_NUMBER_ID", ""),
		WhatsAppBusinessAccountID: getEnv("WABA_ID", ""),
		GraphAPIURL:               getEnv("GRAPH_API_URL", "https://graph.facebook.com/v19.0"),
		SendTimeout:               getEnvDuration("SEND_TIMEOUT", 15*time.Second),
		SendRatePerSecond:         getEnvFloat("SEND_RATE_PER_SECOND", 20),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./assistant.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "assistant"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.nousresearch.com/v1/"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "nous-hermes3-mistral-24b"),
		LLMTimeout: getEnvDuration("LLM_TIMEOUT", 30*time.Second),

		PositionTTL:           getEnvDuration("POSITION_TTL", 24*time.Hour),
		PositionSweepSchedule: getEnv("POSITION_SWEEP_SCHEDULE", "@every 10m"),
		SeedFile:              getEnv("SEED_FILE", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
	return d
}

func getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("invalid number, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
	return f
}
