package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config.yml"
	PathEnv     = "CRM_CONFIG"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Logging      LoggingConfig      `yaml:"logging"`
	Repository   RepositoryConfig   `yaml:"repository"`
	Reminders    RemindersConfig    `yaml:"reminders"`
	Notification NotificationConfig `yaml:"notification"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Host            string        `yaml:"host"`
	RateLimit       int           `yaml:"rate_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConnections int           `yaml:"max_connections"`
	MinConnections int           `yaml:"min_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
}

type LoggingConfig struct {
	Development bool `yaml:"development"`
}

type RepositoryConfig struct {
	Type string `yaml:"type"` // "postgres" or "inmemory"
}

type RemindersConfig struct {
	Store        string        `yaml:"store"` // "inmemory", "postgres" or "redis"
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisPrefix  string        `yaml:"redis_prefix"`
}

type NotificationConfig struct {
	Sender  string `yaml:"sender"` // "log" or "nats"
	NatsURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Load reads the file named by CRM_CONFIG, or config.yml when it is unset.
func Load() (*Config, error) {
	path := os.Getenv(PathEnv)
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Repository.Type == "" {
		c.Repository.Type = "inmemory"
	}
	if c.Database.MaxConnections <= 0 {
		c.Database.MaxConnections = 10
	}
	if c.Database.IdleTimeout <= 0 {
		c.Database.IdleTimeout = 5 * time.Minute
	}
	if c.Reminders.Store == "" {
		c.Reminders.Store = "inmemory"
	}
	if c.Reminders.PollInterval <= 0 {
		c.Reminders.PollInterval = time.Second
	}
	if c.Reminders.BatchSize <= 0 {
		c.Reminders.BatchSize = 100
	}
	if c.Reminders.RedisPrefix == "" {
		c.Reminders.RedisPrefix = "crm:reminders"
	}
	if c.Notification.Sender == "" {
		c.Notification.Sender = "log"
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Repository.Type {
	case "inmemory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("repository.type: unknown value %q", c.Repository.Type))
	}

	switch c.Reminders.Store {
	case "inmemory":
	case "postgres":
		if c.Repository.Type != "postgres" {
			errs = append(errs, errors.New("reminders.store: postgres requires repository.type postgres"))
		}
	case "redis":
		if c.Reminders.RedisAddr == "" {
			errs = append(errs, errors.New("reminders.redis_addr: required for redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("reminders.store: unknown value %q", c.Reminders.Store))
	}

	if c.Repository.Type == "postgres" && c.Database.URL == "" {
		errs = append(errs, errors.New("database.url: required for postgres"))
	}

	switch c.Notification.Sender {
	case "log":
	case "nats":
		if c.Notification.NatsURL == "" {
			errs = append(errs, errors.New("notification.nats_url: required for nats sender"))
		}
	default:
		errs = append(errs, fmt.Errorf("notification.sender: unknown value %q", c.Notification.Sender))
	}

	return errors.Join(errs...)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
