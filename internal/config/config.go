package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"farewatch/internal/fraud"
	"farewatch/internal/logging"
)

// Storage drivers accepted by storage.driver.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Scoring  fraud.Policy   `mapstructure:"scoring"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Events   EventsConfig   `mapstructure:"events"`
	Export   ExportConfig   `mapstructure:"export"`
	Demo     DemoConfig     `mapstructure:"demo"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// StorageConfig selects the transaction store.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig covers the redis store driver.
type RedisConfig struct {
	Addrs        []string      `mapstructure:"addrs"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	DefaultLimit    int           `mapstructure:"default_limit"`
	MaxListLimit    int           `mapstructure:"max_list_limit"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
}

// AlertingConfig defines alert routing for flagged transactions.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// EventsConfig configures the Kafka publisher.
type EventsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// DemoConfig drives the synthetic ticket generator.
type DemoConfig struct {
	LogsPerMinute int      `mapstructure:"logs_per_minute"`
	FraudRate     float64  `mapstructure:"fraud_rate"`
	IncludeFraud  bool     `mapstructure:"include_fraud"`
	Stations      []string `mapstructure:"stations"`
	Count         int      `mapstructure:"count"`
	Seed          uint64   `mapstructure:"seed"`
}

// Interval converts LogsPerMinute into a tick period.
func (d DemoConfig) Interval() time.Duration {
	if d.LogsPerMinute <= 0 {
		return time.Minute
	}
	return time.Minute / time.Duration(d.LogsPerMinute)
}

// LoadDotEnv loads KEY=VALUE pairs from files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAREWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "farewatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Keys without a real default still need registering so AutomaticEnv
	// picks them up during Unmarshal.
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.connect_timeout", "5s")

	v.SetDefault("storage.driver", DriverPostgres)

	v.SetDefault("redis.addrs", []string{"localhost:6379"})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.key_prefix", "farewatch")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "15s")
	v.SetDefault("http.default_limit", 100)
	v.SetDefault("http.max_list_limit", 1000)
	v.SetDefault("http.allowed_origin", "*")

	p := fraud.DefaultPolicy()
	v.SetDefault("scoring.base", p.Base)
	v.SetDefault("scoring.high_amount_threshold", p.HighAmountThreshold)
	v.SetDefault("scoring.high_amount_risk", p.HighAmountRisk)
	v.SetDefault("scoring.low_amount_threshold", p.LowAmountThreshold)
	v.SetDefault("scoring.low_amount_risk", p.LowAmountRisk)
	v.SetDefault("scoring.high_risk_stations", p.HighRiskStations)
	v.SetDefault("scoring.station_risk", p.StationRisk)
	v.SetDefault("scoring.station_case_insensitive", p.StationCaseInsensitive)
	v.SetDefault("scoring.suspicious_suffixes", p.SuspiciousSuffixes)
	v.SetDefault("scoring.suffix_risk", p.SuffixRisk)
	v.SetDefault("scoring.off_hours.before", p.OffHours.Before)
	v.SetDefault("scoring.off_hours.after", p.OffHours.After)
	v.SetDefault("scoring.off_hours.risk", p.OffHours.Risk)
	v.SetDefault("scoring.off_hours.location", p.OffHours.Location)
	v.SetDefault("scoring.random.source", p.Random.Source)
	v.SetDefault("scoring.random.min", p.Random.Min)
	v.SetDefault("scoring.random.max", p.Random.Max)
	v.SetDefault("scoring.floor", p.Floor)
	v.SetDefault("scoring.ceiling", p.Ceiling)
	v.SetDefault("scoring.thresholds.flag", p.Thresholds.Flag)
	v.SetDefault("scoring.thresholds.clear", p.Thresholds.Clear)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "ticket-transactions.analyzed")
	v.SetDefault("events.batch_timeout", "50ms")
	v.SetDefault("events.write_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("demo.logs_per_minute", 5)
	v.SetDefault("demo.fraud_rate", 0.05)
	v.SetDefault("demo.include_fraud", true)
	v.SetDefault("demo.stations", []string{
		"Central Station", "North Station", "South Gate",
		"East Station", "West Terminal", "Airport Terminal",
	})
	v.SetDefault("demo.count", 0)
	v.SetDefault("demo.seed", 0)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for storage.driver=%s", DriverPostgres)
		}
	case DriverRedis:
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required for storage.driver=%s", DriverRedis)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver must be one of %s, %s, %s (got %q)", DriverPostgres, DriverRedis, DriverMemory, c.Storage.Driver)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if _, err := fraud.NewRandomSource(c.Scoring.Random.Source); err != nil {
		return fmt.Errorf("scoring.random.source: %w", err)
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.HTTP.DefaultLimit <= 0 || c.HTTP.MaxListLimit < c.HTTP.DefaultLimit {
		return fmt.Errorf("http limits must satisfy 0 < default_limit <= max_list_limit")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("events.brokers is required when events are enabled")
		}
		if c.Events.Topic == "" {
			return fmt.Errorf("events.topic is required when events are enabled")
		}
	}
	if c.Demo.FraudRate < 0 || c.Demo.FraudRate > 1 {
		return fmt.Errorf("demo.fraud_rate must be within [0,1]")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// ResolveListLimit clamps a requested list size into (0, MaxListLimit].
func (h HTTPConfig) ResolveListLimit(requested int) int {
	switch {
	case requested <= 0:
		return h.DefaultLimit
	case requested > h.MaxListLimit:
		return h.MaxListLimit
	default:
		return requested
	}
}
