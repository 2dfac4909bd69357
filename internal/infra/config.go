package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	CloudflareAccountID string
	CloudflareAPIToken  string
	CloudflareBaseURL   string
	CloudflareModel     string

	GenerationStrategy string
	NumImages          int
	MaxImages          int
	ImageTimeout       time.Duration
	InitialBackoff     time.Duration
	SequentialDelay    time.Duration
	SequentialAttempts int
	ParallelStagger    time.Duration
	ParallelAttempts   int
	MaxParallel        int

	MinRequestInterval time.Duration
	ThrottleScope      string

	RedisURL           string
	DatabaseURL        string
	StoragePath        string
	GeoIPDBPath        string
	CORSAllowedOrigins []string
	DefaultLocale      string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		CloudflareAccountID: strings.TrimSpace(os.Getenv("CLOUDFLARE_ACCOUNT_ID")),
		CloudflareAPIToken:  strings.TrimSpace(os.Getenv("CLOUDFLARE_API_TOKEN")),
		CloudflareBaseURL:   getEnv("CLOUDFLARE_BASE_URL", "https://api.cloudflare.com/client/v4"),
		CloudflareModel:     getEnv("CLOUDFLARE_MODEL", "@cf/stabilityai/stable-diffusion-xl-base-1.0"),
		GenerationStrategy:  strings.ToLower(getEnv("GENERATION_STRATEGY", "sequential")),
		NumImages:           getEnvInt("NUM_IMAGES", 2),
		MaxImages:           getEnvInt("MAX_IMAGES", 4),
		InitialBackoff:      getEnvMillis("INITIAL_BACKOFF_MS", 5000),
		SequentialDelay:     getEnvMillis("SEQUENTIAL_DELAY_MS", 3000),
		SequentialAttempts:  getEnvInt("SEQUENTIAL_ATTEMPTS", 2),
		ParallelStagger:     getEnvMillis("PARALLEL_STAGGER_MS", 2000),
		ParallelAttempts:    getEnvInt("PARALLEL_ATTEMPTS", 3),
		MaxParallel:         getEnvInt("MAX_PARALLEL", 4),
		MinRequestInterval:  getEnvMillis("MIN_REQUEST_INTERVAL_MS", 5000),
		ThrottleScope:       strings.ToLower(getEnv("THROTTLE_SCOPE", "global")),
		RedisURL:            os.Getenv("REDIS_URL"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		StoragePath:         os.Getenv("STORAGE_PATH"),
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en"),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.CloudflareAccountID == "" {
		return nil, fmt.Errorf("CLOUDFLARE_ACCOUNT_ID is required")
	}
	if cfg.CloudflareAPIToken == "" {
		return nil, fmt.Errorf("CLOUDFLARE_API_TOKEN is required")
	}
	switch cfg.GenerationStrategy {
	case "sequential", "parallel":
	default:
		return nil, fmt.Errorf("GENERATION_STRATEGY must be sequential or parallel, got %q", cfg.GenerationStrategy)
	}
	switch cfg.ThrottleScope {
	case "global", "client":
	default:
		return nil, fmt.Errorf("THROTTLE_SCOPE must be global or client, got %q", cfg.ThrottleScope)
	}
	// Parallel slots share the upstream rate limit, so each one needs longer.
	timeoutMS := 25000
	if cfg.GenerationStrategy == "parallel" {
		timeoutMS = 50000
	}
	cfg.ImageTimeout = getEnvMillis("IMAGE_TIMEOUT_MS", timeoutMS)
	if cfg.NumImages <= 0 {
		cfg.NumImages = 1
	}
	if cfg.MaxImages < cfg.NumImages {
		cfg.MaxImages = cfg.NumImages
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
