package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultUserAgent identifies the collector to the platforms it visits
const DefaultUserAgent = "EC-Index-DataCollector/1.0 (https://ec-index.eu; contact@ec-index.eu) - Market Research Bot"

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Collector  CollectorConfig
	Storage    StorageConfig
	Ebay       EbayConfig
	Amazon     AmazonConfig
	Scraper    ScraperConfig
	TokenCache TokenCacheConfig
	Schedule   ScheduleConfig
	Trigger    TriggerConfig
	Logging    LoggingConfig
}

// ServerConfig holds the operations HTTP server configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// CollectorConfig holds the shared transport policy
type CollectorConfig struct {
	RequestsPerSecond float64
	MaxRetries        int
	Timeout           time.Duration
	UserAgent         string
}

// StorageConfig holds file locations and the history backend
type StorageConfig struct {
	RawDir         string
	ProcessedDir   string
	ExportDir      string
	HistoryBackend string
	BenchmarksFile string
}

// EbayConfig holds Browse API credentials
type EbayConfig struct {
	AppID             string
	CertID            string
	Marketplace       string
	BaseURL           string
	RequestsPerSecond float64
}

// Configured reports whether the client credentials are present
func (c EbayConfig) Configured() bool {
	return c.AppID != "" && c.CertID != ""
}

// AmazonConfig holds Product Advertising API credentials and the source mode
type AmazonConfig struct {
	Mode           string
	AccessKey      string
	SecretKey      string
	PartnerTag     string
	Region         string
	Host           string
	MarketplaceURL string
}

// Configured reports whether the signing credentials are present
func (c AmazonConfig) Configured() bool {
	return c.AccessKey != "" && c.SecretKey != "" && c.PartnerTag != ""
}

// ScraperConfig holds settings of the HTML collectors
type ScraperConfig struct {
	UseBrowser     bool
	BrowserTimeout time.Duration
	GeizhalsURL    string
	IdealoURL      string
}

// TokenCacheConfig selects where OAuth tokens are cached
type TokenCacheConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Namespace     string
}

// ScheduleConfig holds cron expressions of the scheduler
type ScheduleConfig struct {
	Timezone  string
	Weekly    string
	Midweek   string
	Heartbeat string
}

// TriggerConfig throttles manual triggers per client
type TriggerConfig struct {
	Limit  int
	Window time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, after applying a .env file
// when one exists
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnvString("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 1),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			MigrationsPath:  getEnvString("DB_MIGRATIONS_PATH", ""),
		},
		Collector: CollectorConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 1),
			MaxRetries:        getEnvInt("MAX_RETRIES", 3),
			Timeout:           getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			UserAgent:         getEnvString("USER_AGENT", DefaultUserAgent),
		},
		Storage: StorageConfig{
			RawDir:         getEnvString("RAW_DATA_DIR", "./data/raw"),
			ProcessedDir:   getEnvString("PROCESSED_DATA_DIR", "./data/processed"),
			ExportDir:      getEnvString("EXPORT_DIR", "./data/export"),
			HistoryBackend: getEnvString("HISTORY_BACKEND", "file"),
			BenchmarksFile: getEnvString("BENCHMARKS_FILE", ""),
		},
		Ebay: EbayConfig{
			AppID:             getEnvString("EBAY_APP_ID", ""),
			CertID:            getEnvString("EBAY_CERT_ID", ""),
			Marketplace:       getEnvString("EBAY_MARKETPLACE", "EBAY_DE"),
			BaseURL:           getEnvString("EBAY_BASE_URL", "https://api.ebay.com"),
			RequestsPerSecond: getEnvFloat("EBAY_RPS", 2),
		},
		Amazon: AmazonConfig{
			Mode:           getEnvString("AMAZON_MODE", "api"),
			AccessKey:      getEnvString("AMAZON_ACCESS_KEY", ""),
			SecretKey:      getEnvString("AMAZON_SECRET_KEY", ""),
			PartnerTag:     getEnvString("AMAZON_PARTNER_TAG", ""),
			Region:         getEnvString("AMAZON_REGION", "eu-west-1"),
			Host:           getEnvString("AMAZON_HOST", "webservices.amazon.de"),
			MarketplaceURL: getEnvString("AMAZON_MARKETPLACE_URL", "https://www.amazon.de"),
		},
		Scraper: ScraperConfig{
			UseBrowser:     getEnvBool("SCRAPER_USE_BROWSER", false),
			BrowserTimeout: getEnvDuration("SCRAPER_BROWSER_TIMEOUT", 45*time.Second),
			GeizhalsURL:    getEnvString("GEIZHALS_URL", "https://geizhals.de"),
			IdealoURL:      getEnvString("IDEALO_URL", "https://www.idealo.de"),
		},
		TokenCache: TokenCacheConfig{
			Backend:       getEnvString("TOKEN_CACHE", "memory"),
			RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			Namespace:     getEnvString("TOKEN_CACHE_NAMESPACE", "ecindex:token"),
		},
		Schedule: ScheduleConfig{
			Timezone:  getEnvString("SCHEDULE_TIMEZONE", "Europe/Berlin"),
			Weekly:    getEnvString("SCHEDULE_WEEKLY", "0 3 * * 0"),
			Midweek:   getEnvString("SCHEDULE_MIDWEEK", "0 3 * * 3"),
			Heartbeat: getEnvString("SCHEDULE_HEARTBEAT", "0 9 * * *"),
		},
		Trigger: TriggerConfig{
			Limit:  getEnvInt("TRIGGER_RATE_LIMIT", 10),
			Window: getEnvDuration("TRIGGER_RATE_WINDOW", time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
	}, nil
}

// Validate ensures configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Collector.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}

	if c.Collector.MaxRetries < 1 || c.Collector.MaxRetries > 10 {
		return fmt.Errorf("max retries must be between 1 and 10")
	}

	if c.Collector.Timeout < time.Second {
		return fmt.Errorf("request timeout must be at least 1 second")
	}

	if c.Ebay.RequestsPerSecond <= 0 {
		return fmt.Errorf("ebay requests per second must be positive")
	}

	switch c.Storage.HistoryBackend {
	case "file":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database URL is required for the postgres history backend")
		}
	default:
		return fmt.Errorf("invalid history backend: %s", c.Storage.HistoryBackend)
	}

	validAmazonModes := map[string]bool{"api": true, "scrape": true}
	if !validAmazonModes[c.Amazon.Mode] {
		return fmt.Errorf("invalid amazon mode: %s", c.Amazon.Mode)
	}

	validCaches := map[string]bool{"memory": true, "redis": true}
	if !validCaches[c.TokenCache.Backend] {
		return fmt.Errorf("invalid token cache: %s", c.TokenCache.Backend)
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
	}

	if c.Trigger.Limit < 1 {
		return fmt.Errorf("trigger rate limit must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// Helper functions
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
