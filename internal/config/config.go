package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"pricewatch/comparator/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Crawler   CrawlerConfig    `mapstructure:"crawler"`
	Matcher   MatcherConfig    `mapstructure:"matcher"`
	Scheduler SchedulerConfig  `mapstructure:"scheduler"`
	Retailers []RetailerConfig `mapstructure:"retailers"`

	// SearchTerms is the shared vocabulary crawled against every retailer.
	// The crawler only visits a bounded prefix of it per run.
	SearchTerms []string `mapstructure:"search_terms"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds catalog store configuration. Driver "memory" swaps the
// postgres-backed store for an in-process one (dev and test runs).
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds Redis connection details for the crawl state manager
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// CrawlerConfig holds the crawl policy knobs shared across retailers.
// Per-retailer politeness delays live in RetailerConfig.
type CrawlerConfig struct {
	MaxSearchTerms       int     `mapstructure:"max_search_terms"`
	MaxPagesPerTerm      int     `mapstructure:"max_pages_per_term"`
	PageDelayMS          int     `mapstructure:"page_delay_ms"`
	RetailerDelayMS      int     `mapstructure:"retailer_delay_ms"`
	NavigationTimeout    int     `mapstructure:"navigation_timeout_s"`
	SelectorTimeout      int     `mapstructure:"selector_timeout_s"`
	MaxRequestsPerSecond int     `mapstructure:"max_requests_per_second"`
	ErrorRateThreshold   float64 `mapstructure:"error_rate_threshold"`
	MinRecrawlMinutes    int     `mapstructure:"min_recrawl_minutes"`
	RetentionDays        int     `mapstructure:"retention_days"`
}

// MatcherConfig holds fuzzy-matching policy constants
type MatcherConfig struct {
	IndexTTLMinutes int     `mapstructure:"index_ttl_minutes"`
	ScoreThreshold  float64 `mapstructure:"score_threshold"`
	MaxResults      int     `mapstructure:"max_results"`
}

// SchedulerConfig holds cron schedules for the background jobs
type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CrawlSchedule     string `mapstructure:"crawl_schedule"`
	CleanupSchedule   string `mapstructure:"cleanup_schedule"`
	RefreshSchedule   string `mapstructure:"refresh_schedule"`
	RunTimeoutMinutes int    `mapstructure:"run_timeout_minutes"`
}

// SelectorSet supplies the CSS selectors the crawler extracts with. The
// crawler only knows the shape of the result, never the retailer's markup.
type SelectorSet struct {
	ProductContainer string `mapstructure:"product_container"`
	Name             string `mapstructure:"name"`
	Price            string `mapstructure:"price"`
	Image            string `mapstructure:"image"`
	ProductLink      string `mapstructure:"product_link"`
}

// RetailerConfig describes one retailer as pure external configuration.
// Adding a retailer requires no crawler code changes.
type RetailerConfig struct {
	Name            domain.Retailer `mapstructure:"name"`
	DisplayName     string          `mapstructure:"display_name"`
	BaseURL         string          `mapstructure:"base_url"`
	SearchURL       string          `mapstructure:"search_url"` // {query}/{page} placeholders
	Selectors       SelectorSet     `mapstructure:"selectors"`
	RateLimitMS     int             `mapstructure:"rate_limit_ms"`
	PriceMultiplier float64         `mapstructure:"price_multiplier"`
	RenderJS        bool            `mapstructure:"render_js"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config.yaml present: defaults plus environment are enough.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if len(config.Retailers) == 0 {
		config.Retailers = DefaultRetailers()
	}
	if len(config.SearchTerms) == 0 {
		config.SearchTerms = DefaultSearchTerms()
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "pricewatch")
	viper.SetDefault("database.user", "pricewatch_user")
	viper.SetDefault("database.password", "pricewatch_pass")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.database", 0)

	viper.SetDefault("crawler.max_search_terms", 20)
	viper.SetDefault("crawler.max_pages_per_term", 3)
	viper.SetDefault("crawler.page_delay_ms", 1000)
	viper.SetDefault("crawler.retailer_delay_ms", 5000)
	viper.SetDefault("crawler.navigation_timeout_s", 30)
	viper.SetDefault("crawler.selector_timeout_s", 10)
	viper.SetDefault("crawler.max_requests_per_second", 1)
	viper.SetDefault("crawler.error_rate_threshold", 0.5)
	viper.SetDefault("crawler.min_recrawl_minutes", 360)
	viper.SetDefault("crawler.retention_days", 30)

	viper.SetDefault("matcher.index_ttl_minutes", 30)
	viper.SetDefault("matcher.score_threshold", 0.6)
	viper.SetDefault("matcher.max_results", 10)

	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.crawl_schedule", "0 2 */2 * *")
	viper.SetDefault("scheduler.cleanup_schedule", "0 3 * * 0")
	viper.SetDefault("scheduler.refresh_schedule", "0 */6 * * *")
	viper.SetDefault("scheduler.run_timeout_minutes", 120)
}
