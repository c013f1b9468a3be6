// Package config loads and validates service configuration via Viper.
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
	Auth     AuthConfig     `mapstructure:"auth"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Relay    RelayConfig    `mapstructure:"relay"`
	CouchDB  CouchDBConfig  `mapstructure:"couchdb"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures the outbound page fetcher.
type HTTPConfig struct {
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	UserAgent       string `mapstructure:"user_agent"`
	MaxContentBytes int64  `mapstructure:"max_content_bytes"`
	MaxRedirects    int    `mapstructure:"max_redirects"`
}

// RelayConfig governs the image rehosting stage.
type RelayConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	Server                string `mapstructure:"server"`
	UploadPath            string `mapstructure:"upload_path"`
	Secret                string `mapstructure:"secret"`
	Concurrency           int    `mapstructure:"concurrency"`
	PerImageTimeoutSecond int    `mapstructure:"per_image_timeout_seconds"`
}

// CouchDBConfig points at the replicated document store.
type CouchDBConfig struct {
	URL            string `mapstructure:"url"`
	Database       string `mapstructure:"database"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// VaultConfig controls note placement and write retry behavior.
type VaultConfig struct {
	BasePath    string `mapstructure:"base_path"`
	DateFolders bool   `mapstructure:"date_folders"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

// PipelineConfig bounds a whole clip request.
type PipelineConfig struct {
	DeadlineSeconds int `mapstructure:"deadline_seconds"`
}

// NotifyConfig holds WeCom push credentials.
type NotifyConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CorpID     string `mapstructure:"corp_id"`
	AgentID    string `mapstructure:"agent_id"`
	CorpSecret string `mapstructure:"corp_secret"`
	UserID     string `mapstructure:"user_id"`
	AtAll      bool   `mapstructure:"at_all"`
}

// LLMConfig configures the optional enrichment call.
type LLMConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RetryCount     int    `mapstructure:"retry_count"`
	Language       string `mapstructure:"language"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLIPVAULT")
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
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("http.max_content_bytes", 10*1024*1024)
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.upload_path", "/upload")
	v.SetDefault("relay.concurrency", 2)
	v.SetDefault("relay.per_image_timeout_seconds", 30)
	v.SetDefault("couchdb.database", "obsidian")
	v.SetDefault("couchdb.timeout_seconds", 15)
	v.SetDefault("vault.base_path", "Clippings")
	v.SetDefault("vault.date_folders", true)
	v.SetDefault("vault.max_retries", 5)
	v.SetDefault("pipeline.deadline_seconds", 180)
	v.SetDefault("notify.at_all", true)
	v.SetDefault("llm.timeout_seconds", 180)
	v.SetDefault("llm.retry_count", 2)
	v.SetDefault("llm.language", "auto")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Relay.Enabled {
		if c.Relay.Server == "" {
			return fmt.Errorf("relay.server must be set when relay is enabled")
		}
		if c.Relay.Concurrency <= 0 {
			return fmt.Errorf("relay.concurrency must be > 0 when relay is enabled")
		}
	}
	if c.CouchDB.URL == "" {
		return fmt.Errorf("couchdb.url must be set")
	}
	if c.Vault.MaxRetries <= 0 {
		return fmt.Errorf("vault.max_retries must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout returns the page fetch timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PipelineDeadline returns the per-request deadline as a duration.
func (c Config) PipelineDeadline() time.Duration {
	return time.Duration(c.Pipeline.DeadlineSeconds) * time.Second
}
