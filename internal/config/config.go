package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/zfogg/recipebook/internal/logger"
	"go.uber.org/zap"
)

// Analytics sinks
const (
	AnalyticsSinkElasticsearch = "elasticsearch"
	AnalyticsSinkDatabase      = "database"
)

// Config holds runtime configuration loaded from environment variables.
// Call godotenv.Load() before Load if a .env file should be honoured.
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFile     string

	DatabaseURL string

	ElasticsearchURL      string
	ElasticsearchUsername string
	ElasticsearchPassword string
	SearchIndex           string
	AnalyticsIndex        string
	AnalyticsSink         string
	SearchTimeout         time.Duration
	SyncTimeout           time.Duration

	RedisURL       string
	SearchCacheTTL time.Duration

	ReconcileInterval   time.Duration
	ReconcileSampleSize int
	BackfillBatchSize   int

	OTelEnabled      bool
	OTLPEndpoint     string
	OTelSamplingRate float64
}

// Load reads the configuration from the environment, applying defaults
func Load() *Config {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8787"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:     getEnvOrDefault("LOG_FILE", "server.log"),

		DatabaseURL: databaseURL(),

		ElasticsearchURL:      getEnvOrDefault("ELASTICSEARCH_URL", "http://localhost:9200"),
		ElasticsearchUsername: os.Getenv("ELASTICSEARCH_USERNAME"),
		ElasticsearchPassword: os.Getenv("ELASTICSEARCH_PASSWORD"),
		SearchIndex:           getEnvOrDefault("SEARCH_INDEX", "recipes"),
		AnalyticsIndex:        getEnvOrDefault("ANALYTICS_INDEX", "search_analytics"),
		AnalyticsSink:         getEnvOrDefault("ANALYTICS_SINK", AnalyticsSinkElasticsearch),
		SearchTimeout:         getDurationOrDefault("SEARCH_TIMEOUT", 4*time.Second),
		SyncTimeout:           getDurationOrDefault("SYNC_TIMEOUT", 4*time.Second),

		RedisURL:       os.Getenv("REDIS_URL"),
		SearchCacheTTL: getDurationOrDefault("SEARCH_CACHE_TTL", 5*time.Minute),

		ReconcileInterval:   getDurationOrDefault("RECONCILE_INTERVAL", 0),
		ReconcileSampleSize: getIntOrDefault("RECONCILE_SAMPLE_SIZE", 100),
		BackfillBatchSize:   getIntOrDefault("BACKFILL_BATCH_SIZE", 500),

		OTelEnabled:      os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelSamplingRate: getFloatOrDefault("OTEL_SAMPLING_RATE", 1.0),
	}

	if cfg.AnalyticsSink != AnalyticsSinkElasticsearch && cfg.AnalyticsSink != AnalyticsSinkDatabase {
		logger.Log.Warn("Unknown ANALYTICS_SINK, using elasticsearch",
			zap.String("value", cfg.AnalyticsSink),
		)
		cfg.AnalyticsSink = AnalyticsSinkElasticsearch
	}

	return cfg
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// databaseURL prefers DATABASE_URL and falls back to individual components
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "")
	dbname := getEnvOrDefault("DB_NAME", "recipebook")
	sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		logger.Log.Warn("Invalid duration in environment, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Duration("default", defaultValue),
		)
		return defaultValue
	}
	return d
}

func getIntOrDefault(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logger.Log.Warn("Invalid integer in environment, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Int("default", defaultValue),
		)
		return defaultValue
	}
	return n
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
