package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Jobs     JobsConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DelayBand is a (min, max) range a randomized delay is drawn from.
type DelayBand struct {
	Min time.Duration
	Max time.Duration
}

type ScraperConfig struct {
	AllowedDomains   []string
	BaseURL          string
	MaxPagesPerCrawl int
	Timeout          time.Duration
	UserAgents       []string
	UseBrowser       bool

	// ItemDelay precedes a single item fetch, PageDelay separates listing
	// pages and ListingItemDelay follows every item scraped during a crawl.
	ItemDelay        DelayBand
	PageDelay        DelayBand
	ListingItemDelay DelayBand
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	AcceptLanguage string
	Locale         string
	Humanize       bool
	ProxyServer    string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type JobsConfig struct {
	Capacity int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("PORT", 8084),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Scraper: ScraperConfig{
			AllowedDomains:   getStringSliceOrDefault("SCRAPER_ALLOWED_DOMAINS", DefaultAllowedDomains()),
			BaseURL:          getEnvOrDefault("SCRAPER_BASE_URL", "https://www.amazon.com"),
			MaxPagesPerCrawl: getIntOrDefault("SCRAPER_MAX_PAGES", 5),
			Timeout:          getDurationOrDefault("SCRAPER_TIMEOUT", 30*time.Second),
			UserAgents:       getStringSliceOrDefault("SCRAPER_USER_AGENTS", DefaultUserAgents()),
			UseBrowser:       getBoolOrDefault("SCRAPER_USE_BROWSER", false),
			ItemDelay:        getBandOrDefault("SCRAPER_ITEM_DELAY", DelayBand{Min: 1 * time.Second, Max: 3 * time.Second}),
			PageDelay:        getBandOrDefault("SCRAPER_PAGE_DELAY", DelayBand{Min: 2 * time.Second, Max: 4 * time.Second}),
			ListingItemDelay: getBandOrDefault("SCRAPER_LISTING_ITEM_DELAY", DelayBand{Min: 1 * time.Second, Max: 2 * time.Second}),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.5"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			Humanize:       getBoolOrDefault("BROWSER_HUMANIZE", false),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "amazon_scraper"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "scraper:events"),
		},
		Jobs: JobsConfig{
			Capacity: getIntOrDefault("JOBS_CAPACITY", 128),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if err := c.Scraper.Validate(); err != nil {
		return err
	}

	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Jobs.Capacity < 1 {
		return fmt.Errorf("JOBS_CAPACITY must be at least 1")
	}

	return nil
}

// Validate checks the settings the extraction core depends on.
func (s *ScraperConfig) Validate() error {
	if len(s.AllowedDomains) == 0 {
		return fmt.Errorf("at least one allowed domain is required")
	}

	if s.MaxPagesPerCrawl < 1 {
		return fmt.Errorf("SCRAPER_MAX_PAGES must be at least 1")
	}

	if len(s.UserAgents) == 0 {
		return fmt.Errorf("at least one user agent is required")
	}

	bands := map[string]DelayBand{
		"SCRAPER_ITEM_DELAY":         s.ItemDelay,
		"SCRAPER_PAGE_DELAY":         s.PageDelay,
		"SCRAPER_LISTING_ITEM_DELAY": s.ListingItemDelay,
	}
	for name, band := range bands {
		if band.Min < 0 {
			return fmt.Errorf("%s_MIN cannot be negative", name)
		}
		if band.Min > band.Max {
			return fmt.Errorf("%s_MIN cannot be greater than %s_MAX", name, name)
		}
	}

	return nil
}

// Default returns the configuration Load produces with an empty environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8084, ReadTimeout: 15 * time.Second, WriteTimeout: 60 * time.Second, ShutdownTimeout: 30 * time.Second},
		Scraper: ScraperConfig{
			AllowedDomains:   DefaultAllowedDomains(),
			BaseURL:          "https://www.amazon.com",
			MaxPagesPerCrawl: 5,
			Timeout:          30 * time.Second,
			UserAgents:       DefaultUserAgents(),
			ItemDelay:        DelayBand{Min: 1 * time.Second, Max: 3 * time.Second},
			PageDelay:        DelayBand{Min: 2 * time.Second, Max: 4 * time.Second},
			ListingItemDelay: DelayBand{Min: 1 * time.Second, Max: 2 * time.Second},
		},
		Browser:  BrowserConfig{Headless: true, Timeout: 30 * time.Second, AcceptLanguage: "en-US,en;q=0.5", Locale: "en-US"},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "amazon_scraper", MaxConns: 10},
		Redis:    RedisConfig{Addr: "localhost:6379", Stream: "scraper:events"},
		Jobs:     JobsConfig{Capacity: 128},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
	}
}

func DefaultAllowedDomains() []string {
	return []string{
		"amazon.com",
		"amazon.co.uk",
		"amazon.de",
		"amazon.fr",
		"amazon.it",
		"amazon.es",
		"amazon.co.jp",
		"amazon.jp",
	}
}

func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBandOrDefault(prefix string, defaultValue DelayBand) DelayBand {
	return DelayBand{
		Min: getDurationOrDefault(prefix+"_MIN", defaultValue.Min),
		Max: getDurationOrDefault(prefix+"_MAX", defaultValue.Max),
	}
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
