package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go -out schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:ingest.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule struct {
		Enabled       bool `yaml:"enabled" json:"enabled" jsonschema:"default=true,description=Run the in-process sweep loop"`
		SweepInterval int  `yaml:"sweep_interval" json:"sweep_interval" jsonschema:"default=1,description=Due-source sweep interval in minutes"`
	} `yaml:"schedule" json:"schedule" jsonschema:"description=Scheduler configuration"`

	Scrape ScrapeConfig `yaml:"scrape" json:"scrape" jsonschema:"description=Adapter configuration for outbound fetches"`

	AI AIConfig `yaml:"ai" json:"ai" jsonschema:"description=Downstream AI processing configuration"`
}

// ScrapeConfig holds shared adapter settings
type ScrapeConfig struct {
	Timeout        time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Feed and page fetch timeout"`
	BrowserTimeout time.Duration `yaml:"browser_timeout" json:"browser_timeout" jsonschema:"default=45s,description=Headless browser render timeout"`
	SourceTimeout  time.Duration `yaml:"source_timeout" json:"source_timeout" jsonschema:"default=2m,description=Bound for one source's full run"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for HTTP requests"`
	MaxArticles    int           `yaml:"max_articles" json:"max_articles" jsonschema:"default=20,description=Default per-source extraction cap"`
}

// AIConfig holds the downstream text-processing settings
type AIConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable downstream article processing"`
	Endpoint    string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey      string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string        `yaml:"model" json:"model" jsonschema:"description=Model name (e.g. gpt-4o-mini or llama3)"`
	Temperature float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.3,description=Temperature for response generation"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=2000,description=Maximum tokens in response"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	Workers     int           `yaml:"workers" json:"workers" jsonschema:"default=2,description=Processing worker pool size"`
	QueueSize   int           `yaml:"queue_size" json:"queue_size" jsonschema:"default=256,description=Processing queue depth"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:ingest.db?cache=shared&mode=rwc"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for schedule
	if cfg.Schedule.SweepInterval == 0 {
		cfg.Schedule.SweepInterval = 1
	}

	// set defaults for scraping
	if cfg.Scrape.Timeout == 0 {
		cfg.Scrape.Timeout = 15 * time.Second
	}
	if cfg.Scrape.BrowserTimeout == 0 {
		cfg.Scrape.BrowserTimeout = 45 * time.Second
	}
	if cfg.Scrape.SourceTimeout == 0 {
		cfg.Scrape.SourceTimeout = 2 * time.Minute
	}
	if cfg.Scrape.MaxArticles == 0 {
		cfg.Scrape.MaxArticles = 20
	}

	// set defaults for AI processing
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.3
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 2000
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	if cfg.AI.Workers == 0 {
		cfg.AI.Workers = 2
	}
	if cfg.AI.QueueSize == 0 {
		cfg.AI.QueueSize = 256
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	if cfg.Schedule.SweepInterval < 1 {
		return fmt.Errorf("schedule.sweep_interval must be at least 1 minute")
	}

	if cfg.Scrape.Timeout < time.Second {
		return fmt.Errorf("scrape.timeout must be at least 1 second")
	}
	if cfg.Scrape.BrowserTimeout < cfg.Scrape.Timeout {
		return fmt.Errorf("scrape.browser_timeout must not be shorter than scrape.timeout")
	}
	if cfg.Scrape.MaxArticles < 1 {
		return fmt.Errorf("scrape.max_articles must be at least 1")
	}

	if cfg.AI.Enabled {
		if cfg.AI.Endpoint == "" {
			return fmt.Errorf("ai.endpoint is required when ai is enabled")
		}
		if cfg.AI.Model == "" {
			return fmt.Errorf("ai.model is required when ai is enabled")
		}
	}
	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2")
	}

	return nil
}
