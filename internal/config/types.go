package config

import "time"

// Config is the complete cascade configuration.
type Config struct {
	Service  ServiceConfig `yaml:"service"`
	Runtime  RuntimeConfig `yaml:"runtime"`
	Journal  JournalConfig `yaml:"journal,omitempty"`
	API      APIConfig     `yaml:"api,omitempty"`
	Document string        `yaml:"document,omitempty"`
	// TemplatesDir holds pipeline template YAML files. Defaults to
	// "templates" next to the config file.
	TemplatesDir string `yaml:"templates_dir,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// Debug surfaces warning-severity diagnostics that are otherwise
	// suppressed.
	Debug bool `yaml:"debug"`
}

// RuntimeConfig tunes the dispatch runtime. Every limit here is a
// configurable default, not a semantic constant.
type RuntimeConfig struct {
	// HandlerTimeout force-fails a handler that runs longer.
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
	// MaxChainDepth caps declarative continuation recursion.
	MaxChainDepth int `yaml:"max_chain_depth"`
	// RatePerSecond bounds execution starts; exceeding it trips the
	// runaway-chain guard. 0 disables the guard.
	RatePerSecond int `yaml:"rate_per_second"`
	// QueueCapacity bounds the pending execution backlog.
	QueueCapacity int `yaml:"queue_capacity"`
}

// JournalConfig defines the execution journal location. An empty path
// keeps the journal in memory (session-scoped, the default).
type JournalConfig struct {
	Path string `yaml:"path,omitempty"`
}

// APIConfig defines the HTTP control API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// Defaults returns a Config with working defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "cascade",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Runtime: RuntimeConfig{
			HandlerTimeout: 30 * time.Second,
			MaxChainDepth:  10,
			RatePerSecond:  100,
			QueueCapacity:  1024,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8420",
		},
		TemplatesDir: "templates",
	}
}
