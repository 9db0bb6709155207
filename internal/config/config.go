// Package config reads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	RESTPort      string
	RESTAuthToken string
	GRPCAddr      string

	DatabaseURL string
	DBMigrate   bool
	AMQPURL     string

	SlackBotToken    string
	SlackChannel     string
	SlackMentionTeam string

	CogniflowAPIKey     string
	CogniflowBaseURL    string
	CogniflowTextModel  string
	CogniflowImageModel string
	SafeBrowsingAPIKey  string
	SafeBrowsingBaseURL string
	GeminiAPIKey        string
	GeminiBaseURL       string
	GeminiModel         string
	GeminiEnabled       bool
	VendorTimeout       time.Duration

	RulesFile       string
	CacheTTL        time.Duration
	HistoryLimit    int
	NotifyThreshold float64

	WorkerCount int
	LogLevel    string
}

// Load reads .env (if present) and then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to load .env file")
	}

	return Config{
		RESTPort:      getEnv("REST_API_PORT", "8080"),
		RESTAuthToken: os.Getenv("REST_API_AUTH_TOKEN"),
		GRPCAddr:      getEnv("GRPC_LISTEN_ADDR", "127.0.0.1:50051"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMigrate:   getEnvBool("DB_MIGRATE", true),
		AMQPURL:     os.Getenv("AMQP_URL"),

		SlackBotToken:    os.Getenv("SLACK_BOT_TOKEN"),
		SlackChannel:     getEnv("SLACK_CHANNEL_SECURITY", "#fraud-alerts"),
		SlackMentionTeam: os.Getenv("SLACK_MENTION_TEAM"),

		CogniflowAPIKey:     os.Getenv("COGNIFLOW_API_KEY"),
		CogniflowBaseURL:    os.Getenv("COGNIFLOW_BASE_URL"),
		CogniflowTextModel:  os.Getenv("COGNIFLOW_TEXT_MODEL"),
		CogniflowImageModel: os.Getenv("COGNIFLOW_IMAGE_MODEL"),
		SafeBrowsingAPIKey:  os.Getenv("SAFE_BROWSING_API_KEY"),
		SafeBrowsingBaseURL: os.Getenv("SAFE_BROWSING_BASE_URL"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:       os.Getenv("GEMINI_BASE_URL"),
		GeminiModel:         os.Getenv("GEMINI_MODEL"),
		GeminiEnabled:       getEnvBool("GEMINI_ENABLED", false),
		VendorTimeout:       getEnvDuration("VENDOR_TIMEOUT", 15*time.Second),

		RulesFile:       os.Getenv("RULES_FILE"),
		CacheTTL:        getEnvDuration("CACHE_TTL", 30*time.Minute),
		HistoryLimit:    getEnvInt("HISTORY_LIMIT", 50),
		NotifyThreshold: getEnvFloat("NOTIFY_CONFIDENCE_THRESHOLD", 0.8),

		WorkerCount: getEnvInt("WORKER_COUNT", 4),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

// SetupLogging configures the global logrus logger. Services log JSON, the
// CLI logs text.
func SetupLogging(level string, json bool) {
	if json {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.WithField("level", level).Warn("Unknown LOG_LEVEL, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.WithField("key", key).Warn("Invalid integer in environment, using default")
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.WithField("key", key).Warn("Invalid number in environment, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "30m") or a plain number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.WithField("key", key).Warn("Invalid duration in environment, using default")
	return defaultValue
}
