package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                string
	BaseURL             string
	StoragePath         string
	MaxFileSize         int64
	SessionTTL          time.Duration
	MaxSessionsPerOwner int
	CleanupInterval     time.Duration
	MaxRetries          int
	RetryInitialDelay   time.Duration
	DownloadTimeout     time.Duration
	ProviderTimeout     time.Duration
	RateLimitRPS        float64
	RateLimitBurst      int
	TwitterParserURL    string
	InstagramParserURL  string
	ParserAPIKey        string
}

func Load() *Config {
	return &Config{
		Port:                getEnv("PORT", "8080"),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),
		StoragePath:         getEnv("STORAGE_PATH", "./storage/downloads"),
		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 500*1024*1024), // 500MB
		SessionTTL:          getEnvHours("SESSION_TTL_HOURS", 1*time.Hour),
		MaxSessionsPerOwner: getEnvInt("MAX_SESSIONS_PER_OWNER", 5),
		CleanupInterval:     getEnvHours("CLEANUP_INTERVAL_HOURS", 1*time.Hour),
		MaxRetries:          getEnvInt("MAX_RETRIES", 3),
		RetryInitialDelay:   getEnvMillis("RETRY_INITIAL_DELAY_MS", 2*time.Second),
		DownloadTimeout:     getEnvSeconds("DOWNLOAD_TIMEOUT_SECONDS", 60*time.Second),
		ProviderTimeout:     getEnvSeconds("PROVIDER_TIMEOUT_SECONDS", 120*time.Second),
		RateLimitRPS:        getEnvFloat64("RATE_LIMIT_RPS", 10),
		RateLimitBurst:      getEnvInt("RATE_LIMIT_BURST", 20),
		TwitterParserURL:    getEnv("TWITTER_PARSER_ENDPOINT", ""),
		InstagramParserURL:  getEnv("INSTAGRAM_PARSER_ENDPOINT", ""),
		ParserAPIKey:        getEnv("PARSER_API_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvHours(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if hours, err := strconv.ParseFloat(val, 64); err == nil {
			return time.Duration(hours * float64(time.Hour))
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if secs, err := strconv.ParseInt(val, 10, 64); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
