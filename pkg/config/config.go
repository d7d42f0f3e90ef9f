package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:examdigest.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule struct {
		FetchInterval    time.Duration `yaml:"fetch_interval" json:"fetch_interval" jsonschema:"default=6h,description=Source fetch interval"`
		ClassifyInterval time.Duration `yaml:"classify_interval" json:"classify_interval" jsonschema:"default=30m,description=Classification interval"`
		DigestHour       int           `yaml:"digest_hour" json:"digest_hour" jsonschema:"default=8,minimum=0,maximum=23,description=Local hour for the daily digest"`
	} `yaml:"schedule" json:"schedule" jsonschema:"description=Scheduler configuration"`

	Scrape ScrapeConfig `yaml:"scrape" json:"scrape" jsonschema:"description=Source adapter settings"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for AI-assisted classification"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Full-text extraction configuration"`

	Digest DigestConfig `yaml:"digest" json:"digest" jsonschema:"description=Digest assembly configuration"`

	SMTP SMTPConfig `yaml:"smtp" json:"smtp" jsonschema:"description=Email delivery configuration"`
}

// ScrapeConfig holds source adapter settings
type ScrapeConfig struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=20s,description=Per-source fetch timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=ExamDigest/1.0,description=User agent for upstream requests"`
}

// LLMConfig holds LLM configuration for AI-assisted classification. The AI
// stage is attempted only when an API key is configured; the rule-based
// baseline works without it.
type LLMConfig struct {
	Endpoint    string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey      string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string        `yaml:"model" json:"model" jsonschema:"default=gpt-4o-mini,description=Model name"`
	Temperature float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.3,description=Temperature for response generation"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=500,description=Maximum tokens in response"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
	BatchSize   int           `yaml:"batch_size" json:"batch_size" jsonschema:"default=10,minimum=1,description=Articles per classification run, keeps request rate under provider limits"`
}

// Enabled reports whether the AI enhancement stage is configured.
func (c LLMConfig) Enabled() bool { return c.APIKey != "" }

// ExtractionConfig holds full-text extraction settings
type ExtractionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable full-text extraction before classification"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout per article"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum text length to consider valid"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=ExamDigest/1.0,description=User agent for HTTP requests"`
}

// DigestConfig holds digest assembly settings. The window values implement
// the widening policy: start with the primary window, widen to the fallback
// window when too few articles are found, then take the absolute latest.
type DigestConfig struct {
	PrimaryWindow   time.Duration `yaml:"primary_window" json:"primary_window" jsonschema:"default=24h,description=Primary lookback window"`
	FallbackWindow  time.Duration `yaml:"fallback_window" json:"fallback_window" jsonschema:"default=72h,description=Widened lookback window"`
	MinItems        int           `yaml:"min_items" json:"min_items" jsonschema:"default=2,description=Minimum pool size before widening"`
	MaxItems        int           `yaml:"max_items" json:"max_items" jsonschema:"default=15,description=Maximum articles per digest"`
	BaseURL         string        `yaml:"base_url" json:"base_url" jsonschema:"description=Public base URL for unsubscribe links"`
	RequireVerified bool          `yaml:"require_verified" json:"require_verified" jsonschema:"default=false,description=Deliver scheduled digests to verified subscribers only"`
}

// SMTPConfig holds email delivery settings
type SMTPConfig struct {
	Host     string `yaml:"host" json:"host" jsonschema:"description=SMTP server host"`
	Port     int    `yaml:"port" json:"port" jsonschema:"default=587,description=SMTP server port"`
	Username string `yaml:"username" json:"username" jsonschema:"description=SMTP username"`
	Password string `yaml:"password" json:"password" jsonschema:"description=SMTP password (can use environment variable)"`
	From     string `yaml:"from" json:"from" jsonschema:"description=From address for outgoing mail"`
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

	cfg.setDefaults()

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

// setDefaults fills zero values with working defaults
func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "file:examdigest.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	if c.Schedule.FetchInterval == 0 {
		c.Schedule.FetchInterval = 6 * time.Hour
	}
	if c.Schedule.ClassifyInterval == 0 {
		c.Schedule.ClassifyInterval = 30 * time.Minute
	}
	if c.Schedule.DigestHour == 0 {
		c.Schedule.DigestHour = 8
	}

	if c.Scrape.Timeout == 0 {
		c.Scrape.Timeout = 20 * time.Second
	}
	if c.Scrape.UserAgent == "" {
		c.Scrape.UserAgent = "ExamDigest/1.0"
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}
	if c.LLM.BatchSize == 0 {
		c.LLM.BatchSize = 10
	}

	if c.Extraction.Timeout == 0 {
		c.Extraction.Timeout = 30 * time.Second
	}
	if c.Extraction.MinTextLength == 0 {
		c.Extraction.MinTextLength = 100
	}
	if c.Extraction.UserAgent == "" {
		c.Extraction.UserAgent = "ExamDigest/1.0"
	}

	if c.Digest.PrimaryWindow == 0 {
		c.Digest.PrimaryWindow = 24 * time.Hour
	}
	if c.Digest.FallbackWindow == 0 {
		c.Digest.FallbackWindow = 72 * time.Hour
	}
	if c.Digest.MinItems == 0 {
		c.Digest.MinItems = 2
	}
	if c.Digest.MaxItems == 0 {
		c.Digest.MaxItems = 15
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	if cfg.Schedule.DigestHour < 0 || cfg.Schedule.DigestHour > 23 {
		return fmt.Errorf("schedule.digest_hour must be between 0 and 23")
	}

	// AI is optional, but when a key is set the model config must be sane
	if cfg.LLM.Enabled() {
		if cfg.LLM.Model == "" {
			return fmt.Errorf("llm.model is required when llm.api_key is set")
		}
		if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
			return fmt.Errorf("llm.temperature must be between 0 and 2")
		}
	}
	if cfg.LLM.BatchSize < 1 {
		return fmt.Errorf("llm.batch_size must be at least 1")
	}

	if cfg.Extraction.Enabled {
		if cfg.Extraction.Timeout < time.Second {
			return fmt.Errorf("extraction timeout must be at least 1 second")
		}
		if cfg.Extraction.MinTextLength < 0 {
			return fmt.Errorf("extraction min_text_length must be non-negative")
		}
	}

	if cfg.Digest.PrimaryWindow > cfg.Digest.FallbackWindow {
		return fmt.Errorf("digest.primary_window must not exceed digest.fallback_window")
	}
	if cfg.Digest.MaxItems < 1 {
		return fmt.Errorf("digest.max_items must be at least 1")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetLLMConfig returns LLM configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}

// GetDigestConfig returns digest assembly configuration
func (c *Config) GetDigestConfig() DigestConfig {
	return c.Digest
}

// GetSMTPConfig returns email delivery configuration
func (c *Config) GetSMTPConfig() SMTPConfig {
	return c.SMTP
}
