// Package config loads the service configuration from a YAML file with
// ${VAR} environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Facta   FactaConfig   `yaml:"facta"`
	Huggy   HuggyConfig   `yaml:"huggy"`
	Workers WorkersConfig `yaml:"workers"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsPath string `yaml:"metrics_path"`
}

// RedisConfig holds the Redis connection settings. All state (sessions,
// tokens, leases, the task queue) lives in one Redis under KeyPrefix.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// FactaConfig holds the credit upstream credentials.
type FactaConfig struct {
	BaseURL  string `yaml:"base_url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// HuggyConfig holds the chat platform connection, the traffic filter and
// the routing identifiers (flows, workflow steps, tabulations).
type HuggyConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token"`

	FilterSenderType string `yaml:"filter_sender_type"`
	FilterDepartment string `yaml:"filter_department"`
	FilterSituation  string `yaml:"filter_situation"`

	AutoDistributionFlow int               `yaml:"auto_distribution_flow"`
	AuthorizationFlow    int               `yaml:"authorization_flow"`
	ApprovedStep         string            `yaml:"approved_step"`
	Tabulations          map[string]string `yaml:"tabulations"`
}

// WorkersConfig holds the task processing settings.
type WorkersConfig struct {
	Concurrency int `yaml:"concurrency"`

	TaskTimeout    time.Duration `yaml:"-"`
	TaskTimeoutRaw string        `yaml:"task_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, expands and validates the configuration at path.
// Environment variables in the format ${VAR_NAME} are expanded; unset
// variables expand to empty strings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func (c *Config) parseDurations() error {
	if c.Workers.TaskTimeoutRaw != "" {
		d, err := time.ParseDuration(c.Workers.TaskTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing task_timeout %q: %w", c.Workers.TaskTimeoutRaw, err)
		}
		c.Workers.TaskTimeout = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = "/metrics"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Workers.Concurrency <= 0 {
		c.Workers.Concurrency = 4
	}
	if c.Workers.TaskTimeout <= 0 {
		c.Workers.TaskTimeout = time.Minute
	}
	if c.Huggy.FilterSenderType == "" {
		c.Huggy.FilterSenderType = "whatsapp-enterprise"
	}
	if c.Huggy.FilterSituation == "" {
		c.Huggy.FilterSituation = "auto"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required fields are present. It returns the
// first failure encountered.
func (c *Config) Validate() error {
	if c.Facta.BaseURL == "" {
		return fmt.Errorf("facta.base_url is required")
	}
	if c.Facta.User == "" || c.Facta.Password == "" {
		return fmt.Errorf("facta.user and facta.password are required")
	}
	if c.Huggy.BaseURL == "" {
		return fmt.Errorf("huggy.base_url is required")
	}
	if c.Huggy.APIToken == "" {
		return fmt.Errorf("huggy.api_token is required")
	}
	if c.Huggy.FilterDepartment == "" {
		return fmt.Errorf("huggy.filter_department is required")
	}
	return nil
}
