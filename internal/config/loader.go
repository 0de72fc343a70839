package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from a YAML file, or from config.yaml inside
// a directory. Values like ${HOME} are expanded from the environment.
// Missing sections fall back to Defaults.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config not found: %s", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", absPath, err)
	}

	applyDefaults(cfg)

	// Relative paths resolve against the config file's directory.
	baseDir := filepath.Dir(absPath)
	if cfg.TemplatesDir != "" && !filepath.IsAbs(cfg.TemplatesDir) {
		cfg.TemplatesDir = filepath.Join(baseDir, cfg.TemplatesDir)
	}
	if cfg.Document != "" && !filepath.IsAbs(cfg.Document) {
		cfg.Document = filepath.Join(baseDir, cfg.Document)
	}
	if cfg.Journal.Path != "" && !filepath.IsAbs(cfg.Journal.Path) {
		cfg.Journal.Path = filepath.Join(baseDir, cfg.Journal.Path)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func expandEnv(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Service.Name == "" {
		cfg.Service.Name = def.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = def.Service.LogFormat
	}
	if cfg.Runtime.HandlerTimeout <= 0 {
		cfg.Runtime.HandlerTimeout = def.Runtime.HandlerTimeout
	}
	if cfg.Runtime.MaxChainDepth <= 0 {
		cfg.Runtime.MaxChainDepth = def.Runtime.MaxChainDepth
	}
	if cfg.Runtime.QueueCapacity <= 0 {
		cfg.Runtime.QueueCapacity = def.Runtime.QueueCapacity
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = def.API.Listen
	}
	if cfg.TemplatesDir == "" {
		cfg.TemplatesDir = def.TemplatesDir
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Service.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("service.log_level %q is not one of debug/info/warn/error", cfg.Service.LogLevel)
	}
	switch strings.ToLower(cfg.Service.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format %q is not json or text", cfg.Service.LogFormat)
	}
	if cfg.Runtime.RatePerSecond < 0 {
		return fmt.Errorf("runtime.rate_per_second must not be negative")
	}
	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required when api.enabled")
	}
	return nil
}
