package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	orderfsm "github.com/goliatone/go-orderfsm"
)

const ErrCodeInvalidConfig = "CONFIG_INVALID"

// ErrInvalidConfig reports a configuration that fails Validate or cannot be parsed.
var ErrInvalidConfig = errors.New("invalid configuration", errors.CategoryValidation).
	WithTextCode(ErrCodeInvalidConfig)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is the orderfsm binary configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Report  ReportConfig  `yaml:"report"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Driver string      `yaml:"driver"`
	SQLite SQLiteStore `yaml:"sqlite"`
	Redis  RedisStore  `yaml:"redis"`
}

type SQLiteStore struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type RedisStore struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	GroupID    string   `yaml:"group_id"`
	AutoCreate bool     `yaml:"auto_create"`
}

// ReportConfig schedules the periodic order summary; an empty schedule disables it.
// StartupDelay logs one summary that long after the consumer starts; zero skips it.
type ReportConfig struct {
	Schedule     string        `yaml:"schedule"`
	Timeout      time.Duration `yaml:"timeout"`
	Location     string        `yaml:"location"`
	StartupDelay time.Duration `yaml:"startup_delay"`
}

// TimeLocation resolves Location; empty means the local zone.
func (r ReportConfig) TimeLocation() (*time.Location, error) {
	if strings.TrimSpace(r.Location) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(strings.TrimSpace(r.Location))
}

// MetricsConfig exposes prometheus metrics on Addr; empty disables the endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Store: StoreConfig{
			Driver: DriverMemory,
			SQLite: SQLiteStore{DSN: "orderfsm.db", Table: "orders"},
			Redis:  RedisStore{Addr: "localhost:6379", KeyPrefix: "orderfsm:order:"},
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "order-events",
			GroupID: "orderfsm",
		},
		Report:  ReportConfig{Schedule: "@every 1m", Timeout: 10 * time.Second, StartupDelay: 5 * time.Second},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Parse decodes YAML on top of Defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, orderfsm.CloneError(ErrInvalidConfig, "failed to parse configuration", err, nil)
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

// Load reads path, or returns validated defaults when path is empty.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := Defaults()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), orderfsm.CloneError(ErrInvalidConfig, "failed to read configuration", err, map[string]any{
			"path": path,
		})
	}
	return Parse(data)
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	brokers := c.Kafka.Brokers[:0]
	for _, b := range c.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Kafka.Brokers = brokers
}

// Validate checks enumerated values and required fields for the selected driver.
func (c Config) Validate() error {
	var problems []string
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not supported", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be console or json", c.Log.Format))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Store.SQLite.DSN) == "" {
			problems = append(problems, "store.sqlite.dsn is required")
		}
	case DriverRedis:
		if strings.TrimSpace(c.Store.Redis.Addr) == "" {
			problems = append(problems, "store.redis.addr is required")
		}
		if c.Store.Redis.TTL < 0 {
			problems = append(problems, "store.redis.ttl cannot be negative")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q must be memory, sqlite or redis", c.Store.Driver))
	}
	if c.Report.Timeout < 0 {
		problems = append(problems, "report.timeout cannot be negative")
	}
	if c.Report.StartupDelay < 0 {
		problems = append(problems, "report.startup_delay cannot be negative")
	}
	if _, err := c.Report.TimeLocation(); err != nil {
		problems = append(problems, fmt.Sprintf("report.location %q is not a known time zone", c.Report.Location))
	}
	if c.Metrics.Addr != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		problems = append(problems, "metrics.path must start with /")
	}
	if len(problems) == 0 {
		return nil
	}
	return orderfsm.CloneError(ErrInvalidConfig, strings.Join(problems, "; "), nil, map[string]any{
		"problems": problems,
	})
}

// ValidateKafka checks the settings the consume command needs.
func (c Config) ValidateKafka() error {
	var problems []string
	if len(c.Kafka.Brokers) == 0 {
		problems = append(problems, "kafka.brokers is required")
	}
	if strings.TrimSpace(c.Kafka.Topic) == "" {
		problems = append(problems, "kafka.topic is required")
	}
	if strings.TrimSpace(c.Kafka.GroupID) == "" {
		problems = append(problems, "kafka.group_id is required")
	}
	if len(problems) == 0 {
		return nil
	}
	return orderfsm.CloneError(ErrInvalidConfig, strings.Join(problems, "; "), nil, map[string]any{
		"problems": problems,
	})
}
