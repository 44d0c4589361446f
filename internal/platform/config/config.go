package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration. Each subcommand reads the sections it needs.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Loans     LoansConfig     `yaml:"loans"`
	Inventory InventoryConfig `yaml:"inventory"`
	Identity  IdentityConfig  `yaml:"identity"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoansConfig configures the loan orchestrator service.
type LoansConfig struct {
	Addr                 string        `yaml:"addr"`
	IdentityURL          string        `yaml:"identity_url"`
	InventoryURL         string        `yaml:"inventory_url"`
	CompensateOnFailure  bool          `yaml:"compensate_on_failure"`
	OverdueSweepInterval time.Duration `yaml:"overdue_sweep_interval"`
	HandlerTimeout       time.Duration `yaml:"handler_timeout"`
	PublishTimeout       time.Duration `yaml:"publish_timeout"`
}

type InventoryConfig struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
}

type IdentityConfig struct {
	Addr string `yaml:"addr"`
}

// GatewayConfig bounds every outbound call to a collaborator service.
type GatewayConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	BackoffBase time.Duration `yaml:"backoff_base"`
}

// DatabaseConfig selects the loan ledger backend: memory, postgres or sqlite.
type DatabaseConfig struct {
	Driver       string        `yaml:"driver"`
	URL          string        `yaml:"url"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnMaxLife  time.Duration `yaml:"conn_max_life"`
}

// RedisConfig configures the optional book summary cache. Empty URL disables it.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BookCacheTTL time.Duration `yaml:"book_cache_ttl"`
}

// KafkaConfig configures loan event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers"`
	Topic           string        `yaml:"topic"`
	ClientID        string        `yaml:"client_id"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Loans: LoansConfig{
			Addr:                 ":8080",
			IdentityURL:          "http://localhost:8081",
			InventoryURL:         "http://localhost:8082",
			CompensateOnFailure:  true,
			OverdueSweepInterval: time.Hour,
			HandlerTimeout:       30 * time.Second,
			PublishTimeout:       5 * time.Second,
		},
		Identity:  IdentityConfig{Addr: ":8081"},
		Inventory: InventoryConfig{Addr: ":8082"},
		Gateway: GatewayConfig{
			Timeout:     5 * time.Second,
			MaxRetries:  3,
			BackoffBase: time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "memory",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			ConnMaxLife:  30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			BookCacheTTL: 10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic:           "loan-events",
			ClientID:        "smartlib-loans",
			DeliveryTimeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file, then
// environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := overlayEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv is Load without a config file.
func FromEnv() (Config, error) {
	return Load("")
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func overlayEnv(cfg *Config) error {
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	setString(&cfg.Loans.Addr, "LOANS_ADDR")
	setString(&cfg.Loans.IdentityURL, "IDENTITY_SERVICE_URL")
	setString(&cfg.Loans.InventoryURL, "INVENTORY_SERVICE_URL")
	setString(&cfg.Identity.Addr, "IDENTITY_ADDR")
	setString(&cfg.Inventory.Addr, "INVENTORY_ADDR")
	setString(&cfg.Inventory.DatabaseURL, "INVENTORY_DATABASE_URL")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")
	setString(&cfg.Kafka.ClientID, "KAFKA_CLIENT_ID")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}

	if err := setBool(&cfg.Loans.CompensateOnFailure, "LOANS_COMPENSATE_ON_FAILURE"); err != nil {
		return err
	}
	if err := setInt(&cfg.Gateway.MaxRetries, "GATEWAY_MAX_RETRIES"); err != nil {
		return err
	}
	if err := setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE"); err != nil {
		return err
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&cfg.Loans.OverdueSweepInterval, "LOANS_OVERDUE_SWEEP_INTERVAL"},
		{&cfg.Loans.HandlerTimeout, "LOANS_HANDLER_TIMEOUT"},
		{&cfg.Loans.PublishTimeout, "LOANS_PUBLISH_TIMEOUT"},
		{&cfg.Kafka.DeliveryTimeout, "KAFKA_DELIVERY_TIMEOUT"},
		{&cfg.Gateway.Timeout, "GATEWAY_TIMEOUT"},
		{&cfg.Gateway.BackoffBase, "GATEWAY_BACKOFF_BASE"},
		{&cfg.Redis.BookCacheTTL, "REDIS_BOOK_CACHE_TTL"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
