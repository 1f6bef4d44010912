package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dealmungchi/dealextractor/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// HTTP server configuration
	Port string

	// Sanity content store configuration
	SanityProjectID  string
	SanityDataset    string
	SanityToken      string
	SanityAPIVersion string
	SanityRateLimit  float64

	// Capture engine configuration
	ChromePath     string
	ChromeHeadless bool
	UserAgent      string
	CaptureTimeout time.Duration
	SettleDelay    time.Duration
	CDNMarker      string
	MinImageWidth  int

	// Image configuration
	ImageTimeout  time.Duration
	ImageMaxBytes int64
	JPEGQuality   int

	// OCR configuration
	OCRLanguages      []string
	OCRMaxConcurrency int64
	OCRCacheTTL       time.Duration

	// Memcache configuration
	MemcacheAddr string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int
	RedisTrimInterval    time.Duration

	// Environment
	Environment string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	captureTimeout, _ := strconv.Atoi(getEnv("CAPTURE_TIMEOUT_SECONDS", "60"))
	settleDelay, _ := strconv.Atoi(getEnv("CAPTURE_SETTLE_SECONDS", "3"))
	minImageWidth, _ := strconv.Atoi(getEnv("CAPTURE_MIN_IMAGE_WIDTH", "200"))
	imageTimeout, _ := strconv.Atoi(getEnv("IMAGE_TIMEOUT_SECONDS", "30"))
	imageMaxBytes, _ := strconv.ParseInt(getEnv("IMAGE_MAX_BYTES", "20971520"), 10, 64)
	jpegQuality, _ := strconv.Atoi(getEnv("JPEG_QUALITY", "85"))
	ocrConcurrency, _ := strconv.ParseInt(getEnv("OCR_MAX_CONCURRENCY", "2"), 10, 64)
	ocrCacheTTL, _ := strconv.Atoi(getEnv("OCR_CACHE_TTL_SECONDS", "86400"))
	sanityRateLimit, _ := strconv.ParseFloat(getEnv("SANITY_RATE_LIMIT", "10"), 64)
	headless, _ := strconv.ParseBool(getEnv("CHROME_HEADLESS", "true"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	redisStreamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	redisTrimInterval, _ := strconv.Atoi(getEnv("REDIS_TRIM_INTERVAL_SECONDS", "300"))

	return &Config{
		Port:                 getEnv("PORT", "3000"),
		SanityProjectID:      getEnv("SANITY_PROJECT_ID", ""),
		SanityDataset:        getEnv("SANITY_DATASET", "production"),
		SanityToken:          getEnv("SANITY_TOKEN", ""),
		SanityAPIVersion:     getEnv("SANITY_API_VERSION", "v2021-06-07"),
		SanityRateLimit:      sanityRateLimit,
		ChromePath:           getEnv("CHROME_PATH", ""),
		ChromeHeadless:       headless,
		UserAgent:            getEnv("CAPTURE_USER_AGENT", defaultUserAgent),
		CaptureTimeout:       time.Duration(captureTimeout) * time.Second,
		SettleDelay:          time.Duration(settleDelay) * time.Second,
		CDNMarker:            getEnv("CAPTURE_CDN_MARKER", "fbcdn"),
		MinImageWidth:        minImageWidth,
		ImageTimeout:         time.Duration(imageTimeout) * time.Second,
		ImageMaxBytes:        imageMaxBytes,
		JPEGQuality:          jpegQuality,
		OCRLanguages:         splitList(getEnv("OCR_LANGUAGES", "ara,eng")),
		OCRMaxConcurrency:    ocrConcurrency,
		OCRCacheTTL:          time.Duration(ocrCacheTTL) * time.Second,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "deals"),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLength,
		RedisTrimInterval:    time.Duration(redisTrimInterval) * time.Second,
		Environment:          getEnv("DEAL_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return errors.NewConfiguration(fmt.Sprintf("invalid PORT %q", c.Port), err)
	}
	if c.SanityProjectID == "" {
		return errors.NewConfiguration("SANITY_PROJECT_ID is required", nil)
	}
	if c.SanityDataset == "" {
		return errors.NewConfiguration("SANITY_DATASET must not be empty", nil)
	}
	if c.SanityRateLimit <= 0 {
		return errors.NewConfiguration("SANITY_RATE_LIMIT must be positive", nil)
	}
	if c.CaptureTimeout <= 0 || c.ImageTimeout <= 0 {
		return errors.NewConfiguration("capture and image timeouts must be positive", nil)
	}
	if c.SettleDelay < 0 || c.SettleDelay >= c.CaptureTimeout {
		return errors.NewConfiguration("CAPTURE_SETTLE_SECONDS must be shorter than the capture timeout", nil)
	}
	if c.ImageMaxBytes <= 0 {
		return errors.NewConfiguration("IMAGE_MAX_BYTES must be positive", nil)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.NewConfiguration(fmt.Sprintf("JPEG_QUALITY %d out of range 1-100", c.JPEGQuality), nil)
	}
	if len(c.OCRLanguages) == 0 {
		return errors.NewConfiguration("OCR_LANGUAGES must list at least one language", nil)
	}
	if c.OCRMaxConcurrency < 1 {
		return errors.NewConfiguration("OCR_MAX_CONCURRENCY must be at least 1", nil)
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
