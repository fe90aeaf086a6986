// Package config provides YAML-based configuration loading for the
// reputation ledger.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Identity sources.
const (
	IdentityStatic = "static"
	IdentitySQL    = "sql"
	IdentityStore  = "store"
)

// Config is the top-level configuration, loaded from reputation.yaml.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Identity IdentityConfig `yaml:"identity"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Server   ServerConfig   `yaml:"server"`
	Relay    RelayConfig    `yaml:"relay"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig selects and configures the key-value substrate.
type StoreConfig struct {
	Backend     string       `yaml:"backend"`
	MaxAttempts int          `yaml:"max_attempts"`
	SQLite      SQLiteConfig `yaml:"sqlite"`
	Dolt        DoltConfig   `yaml:"dolt"`
	Badger      BadgerConfig `yaml:"badger"`
	Redis       RedisConfig  `yaml:"redis"`
}

// SQLiteConfig holds the SQLite database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DoltConfig holds connection settings for the Dolt SQL server.
type DoltConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// BadgerConfig holds badger settings. GCSchedule is a 5-field cron
// expression; empty disables value-log GC.
type BadgerConfig struct {
	Path           string  `yaml:"path"`
	InMemory       bool    `yaml:"in_memory"`
	SyncWrites     bool    `yaml:"sync_writes"`
	GCSchedule     string  `yaml:"gc_schedule"`
	GCDiscardRatio float64 `yaml:"gc_discard_ratio"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// IdentityConfig selects where agent registrations are read from.
type IdentityConfig struct {
	Source string        `yaml:"source"`
	Agents []AgentConfig `yaml:"agents"`
}

// AgentConfig is one agent registration. Owner is 64 hex characters.
type AgentConfig struct {
	ID       uint64 `yaml:"id"`
	Owner    string `yaml:"owner"`
	TokenURI string `yaml:"token_uri"`
}

// LedgerConfig holds protocol switches.
type LedgerConfig struct {
	RequireFeedbackAuth bool `yaml:"require_feedback_auth"`
	// Outbox persists notifications to the events table. Needs a SQL backend.
	Outbox bool `yaml:"outbox"`
}

// ServerConfig configures the HTTP API. ResponseRate is a pointer so an
// explicit zero, which disables response limiting, survives defaulting.
type ServerConfig struct {
	Port          int      `yaml:"port"`
	ResponseRate  *float64 `yaml:"response_rate"`
	ResponseBurst int      `yaml:"response_burst"`
}

// Rate returns the per-caller response rate in events per second.
func (s ServerConfig) Rate() float64 {
	if s.ResponseRate == nil {
		return 0
	}
	return *s.ResponseRate
}

// RelayConfig configures webhook relays. Events filters which notification
// types are relayed; empty relays all.
type RelayConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Events  []string      `yaml:"events"`
}

// SlackConfig holds the Slack incoming webhook.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig holds the Discord webhook credentials.
type DiscordConfig struct {
	WebhookID    string `yaml:"webhook_id"`
	WebhookToken string `yaml:"webhook_token"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsSQL reports whether the configured backend is a gorm database.
func (s StoreConfig) IsSQL() bool {
	return s.Backend == BackendSQLite || s.Backend == BackendMySQL
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Store.MaxAttempts == 0 {
		c.Store.MaxAttempts = 8
	}
	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = "reputation.db"
	}
	if c.Store.Dolt.Host == "" {
		c.Store.Dolt.Host = "127.0.0.1"
	}
	if c.Store.Dolt.Port == 0 {
		c.Store.Dolt.Port = 3306
	}
	if c.Store.Dolt.Database == "" {
		c.Store.Dolt.Database = "reputation"
	}
	if c.Store.Badger.Path == "" {
		c.Store.Badger.Path = "reputation.badger"
	}
	if c.Store.Badger.GCDiscardRatio == 0 {
		c.Store.Badger.GCDiscardRatio = 0.5
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = "rep:"
	}

	if c.Identity.Source == "" {
		if c.Store.IsSQL() {
			c.Identity.Source = IdentitySQL
		} else {
			c.Identity.Source = IdentityStore
		}
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ResponseRate == nil {
		rate := 1.0
		c.Server.ResponseRate = &rate
	}
	if c.Server.ResponseBurst == 0 {
		c.Server.ResponseBurst = 5
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

var validEvents = map[string]bool{
	"new_feedback":      true,
	"feedback_revoked":  true,
	"response_appended": true,
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	switch c.Store.Backend {
	case BackendMemory, BackendSQLite, BackendMySQL, BackendBadger, BackendRedis:
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not one of memory, sqlite, mysql, badger, redis", c.Store.Backend))
	}
	if c.Store.MaxAttempts < 1 {
		errs = append(errs, "store.max_attempts must be at least 1")
	}
	if r := c.Store.Badger.GCDiscardRatio; r <= 0 || r >= 1 {
		errs = append(errs, "store.badger.gc_discard_ratio must be between 0 and 1")
	}

	switch c.Identity.Source {
	case IdentityStatic:
		if len(c.Identity.Agents) == 0 {
			errs = append(errs, "identity.agents is required for the static source")
		}
	case IdentitySQL:
		if !c.Store.IsSQL() {
			errs = append(errs, "identity.source sql requires store.backend sqlite or mysql")
		}
	case IdentityStore:
	default:
		errs = append(errs, fmt.Sprintf("identity.source %q is not one of static, sql, store", c.Identity.Source))
	}
	seen := make(map[uint64]bool)
	for i, a := range c.Identity.Agents {
		if len(a.Owner) != 64 {
			errs = append(errs, fmt.Sprintf("identity.agents[%d].owner must be 64 hex characters", i))
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Sprintf("identity.agents[%d].id %d is duplicated", i, a.ID))
		}
		seen[a.ID] = true
	}

	if c.Ledger.Outbox && !c.Store.IsSQL() {
		errs = append(errs, "ledger.outbox requires store.backend sqlite or mysql")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Server.Rate() < 0 {
		errs = append(errs, "server.response_rate must not be negative")
	}
	if c.Server.ResponseBurst < 1 {
		errs = append(errs, "server.response_burst must be at least 1")
	}

	if (c.Relay.Discord.WebhookID == "") != (c.Relay.Discord.WebhookToken == "") {
		errs = append(errs, "relay.discord needs both webhook_id and webhook_token")
	}
	for i, e := range c.Relay.Events {
		if !validEvents[e] {
			errs = append(errs, fmt.Sprintf("relay.events[%d] %q is not a known event type", i, e))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not one of text, json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
