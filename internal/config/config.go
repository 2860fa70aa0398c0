// Package config loads and validates discovery service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	DB       DBConfig       `mapstructure:"db"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Artifact ArtifactConfig `mapstructure:"artifact"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	RequestTimeout int `mapstructure:"request_timeout_seconds"`
	StreamTimeout  int `mapstructure:"stream_timeout_seconds"`
}

// LLMConfig points at the OpenAI-compatible chat endpoint.
type LLMConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SearchConfig tunes the two search-agent LLM calls. The analyze and link
// steps carry separate retry/backoff knobs.
type SearchConfig struct {
	AnalyzeRetries   int `mapstructure:"analyze_retries"`
	AnalyzeBackoffMs int `mapstructure:"analyze_backoff_ms"`
	LinkRetries      int `mapstructure:"link_retries"`
	LinkBackoffMs    int `mapstructure:"link_backoff_ms"`
}

// CrawlConfig governs the crawl dispatcher and scrapers.
type CrawlConfig struct {
	GlobalBudget      int      `mapstructure:"global_budget"`
	ExcludedPlatforms []string `mapstructure:"excluded_platforms"`
	UserAgent         string   `mapstructure:"user_agent"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
	DomainRPS         float64  `mapstructure:"domain_rps"`
	HeadlessEnabled   bool     `mapstructure:"headless_enabled"`
	HeadlessTimeout   int      `mapstructure:"headless_timeout_seconds"`
}

// DBConfig controls access to the relational database. Provider is "postgres"
// or "memory".
type DBConfig struct {
	Provider     string `mapstructure:"provider"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// NotifyConfig holds metadata for run-completion notifications. Provider is
// "pubsub", "memory" or "noop".
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ArtifactConfig selects the audit artifact store: "gcs", "local", "memory"
// or "noop".
type ArtifactConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Dir      string `mapstructure:"dir"`
	Prefix   string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DISCOVERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("server.stream_timeout_seconds", 600)
	v.SetDefault("llm.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("search.analyze_retries", 3)
	v.SetDefault("search.analyze_backoff_ms", 2000)
	v.SetDefault("search.link_retries", 3)
	v.SetDefault("search.link_backoff_ms", 500)
	v.SetDefault("crawl.global_budget", 20)
	v.SetDefault("crawl.excluded_platforms", []string{"shopee"})
	v.SetDefault("crawl.user_agent", "salescout-discovery/1.0")
	v.SetDefault("crawl.timeout_seconds", 15)
	v.SetDefault("crawl.domain_rps", 0.5)
	v.SetDefault("crawl.headless_enabled", false)
	v.SetDefault("crawl.headless_timeout_seconds", 25)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.max_open_conns", 8)
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("notify.topic", "discovery-runs")
	v.SetDefault("artifact.provider", "noop")
	v.SetDefault("artifact.prefix", "runs")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.GlobalBudget <= 0 {
		return fmt.Errorf("crawl.global_budget must be > 0")
	}
	if c.Search.AnalyzeRetries <= 0 || c.Search.LinkRetries <= 0 {
		return fmt.Errorf("search retries must be > 0")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	if c.Notify.Provider == "pubsub" && (c.Notify.ProjectID == "" || c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic must be set when notify.provider is pubsub")
	}
	if c.Artifact.Provider == "gcs" && c.Artifact.Bucket == "" {
		return fmt.Errorf("artifact.bucket must be set when artifact.provider is gcs")
	}
	return nil
}

// LLMTimeout converts the configured LLM timeout into a duration.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// AnalyzeBackoff returns the base delay for analyze-call retries.
func (c Config) AnalyzeBackoff() time.Duration {
	return time.Duration(c.Search.AnalyzeBackoffMs) * time.Millisecond
}

// LinkBackoff returns the base delay for link-generation retries.
func (c Config) LinkBackoff() time.Duration {
	return time.Duration(c.Search.LinkBackoffMs) * time.Millisecond
}
