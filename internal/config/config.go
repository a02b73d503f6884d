package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	Listen  string  `yaml:"listen"`
	Logger  Logger  `yaml:"logger"`
	Storage Storage `yaml:"storage"`
	Auth    Auth    `yaml:"auth"`
	Sandbox Sandbox `yaml:"sandbox"`
	Admin   Admin   `yaml:"admin"`
	CORS    CORS    `yaml:"cors"`
}

type Logger struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Storage struct {
	Database string `yaml:"database"`
}

type Auth struct {
	JWT JWT `yaml:"jwt"`
}

type JWT struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

// Sandbox configures the external code-execution service.
type Sandbox struct {
	URL                 string `yaml:"url"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MaxPollRetries      int    `yaml:"max_poll_retries"`
	RequestTimeoutSecs  int    `yaml:"request_timeout_seconds"`
}

type Admin struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Sandbox.PollIntervalSeconds <= 0 {
		c.Sandbox.PollIntervalSeconds = 1
	}
	if c.Sandbox.MaxPollRetries <= 0 {
		c.Sandbox.MaxPollRetries = 10
	}
	if c.Sandbox.RequestTimeoutSecs <= 0 {
		c.Sandbox.RequestTimeoutSecs = 10
	}
	if c.Auth.JWT.ExpireHours <= 0 {
		c.Auth.JWT.ExpireHours = 24
	}
}
