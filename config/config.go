package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries all runtime settings. Values come from the environment
// with the defaults from constants.go; main loads .env first via godotenv.
type Config struct {
	Port string

	// Object store
	SourceBucket   string
	ProductsBucket string
	S3Region       string
	S3Profile      string
	S3UsePathStyle bool

	// Analytical store
	DatabaseDSN string

	// Generation
	CohereAPIKey        string
	GenerationModel     string
	GenerationMaxTokens int

	// Policy
	WaitWindow        time.Duration
	MinCompletionRate float64
	SweepInterval     time.Duration

	// Aggregation
	MinReviewsPerProduct int
	MaxPromptChars       int

	// Dedup guard
	StalenessThreshold time.Duration

	// Optional durable registry
	RedisAddr     string
	RedisPassword string

	// Optional Kafka event source
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

// Load reads configuration from the environment.
func Load() Config {
	cfg := Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		SourceBucket:         getEnvOrDefault("SOURCE_BUCKET", "youtube-processed-data"),
		ProductsBucket:       os.Getenv("PRODUCTS_BUCKET"),
		S3Region:             strings.TrimSpace(os.Getenv("S3_REGION")),
		S3Profile:            strings.TrimSpace(os.Getenv("S3_PROFILE")),
		S3UsePathStyle:       strings.EqualFold(os.Getenv("S3_USE_PATH_STYLE"), "true"),
		DatabaseDSN:          os.Getenv("DATABASE_DSN"),
		CohereAPIKey:         os.Getenv("COHERE_API_KEY"),
		GenerationModel:      getEnvOrDefault("GENERATION_MODEL", DefaultGenerationModel),
		GenerationMaxTokens:  getEnvIntOrDefault("GENERATION_MAX_TOKENS", DefaultGenerationMaxTokens),
		WaitWindow:           getEnvMinutesOrDefault("WAIT_TIME_MINUTES", DefaultWaitWindow),
		MinCompletionRate:    getEnvFloatOrDefault("MIN_COMPLETION_RATE", DefaultMinCompletionRate),
		SweepInterval:        getEnvSecondsOrDefault("SWEEP_INTERVAL_SECONDS", DefaultSweepInterval),
		MinReviewsPerProduct: getEnvIntOrDefault("MIN_REVIEWS_PER_PRODUCT", DefaultMinReviewsPerProduct),
		MaxPromptChars:       getEnvIntOrDefault("MAX_PROMPT_CHARS", DefaultMaxPromptChars),
		StalenessThreshold:   getEnvMinutesOrDefault("STALENESS_MINUTES", DefaultStalenessThreshold),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:        os.Getenv("REDIS_PASS"),
		KafkaTopic:           getEnvOrDefault("KAFKA_TOPIC", "storage-events"),
		KafkaGroupID:         getEnvOrDefault("KAFKA_GROUP_ID", "reviewbot-aggregator"),
	}

	// Products default to the source bucket, matching the upstream layout.
	if cfg.ProductsBucket == "" {
		cfg.ProductsBucket = cfg.SourceBucket
	}

	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f > 0 && f <= 1 {
			return f
		}
	}
	return defaultVal
}

func getEnvMinutesOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return defaultVal
}

func getEnvSecondsOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return defaultVal
}
