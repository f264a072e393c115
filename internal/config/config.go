package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "SCANS"

// Config holds the service configuration
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	QualityDB  QualityDBConfig  `mapstructure:"quality_db"`
	PartStatus PartStatusConfig `mapstructure:"part_status"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Plant      PlantConfig      `mapstructure:"plant"`
	RuleCache  RuleCacheConfig  `mapstructure:"rule_cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database"`
	SSLMode     string        `mapstructure:"ssl_mode"`
	MaxConns    int32         `mapstructure:"max_conns"`
	MinConns    int32         `mapstructure:"min_conns"`
	MaxConnTime time.Duration `mapstructure:"max_conn_time"`
	MaxIdleTime time.Duration `mapstructure:"max_idle_time"`
	HealthCheck time.Duration `mapstructure:"health_check"`
}

// QualityDBConfig points at the external inspection database used by the
// relational verification check. An empty DSN disables the check.
type QualityDBConfig struct {
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PartStatusConfig configures the REST part-status service
type PartStatusConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// PlantConfig holds plant-local settings. Date freshness checks are
// evaluated in TimeZone.
type PlantConfig struct {
	TimeZone string `mapstructure:"time_zone"`
}

type RuleCacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	RPS                 float64       `mapstructure:"rps"`
	Burst               int           `mapstructure:"burst"`
	TrustTerminalHeader bool          `mapstructure:"trust_terminal_header"`
	IdleTimeout         time.Duration `mapstructure:"idle_timeout"`
}

// Location resolves the plant time zone
func (p PlantConfig) Location() (*time.Location, error) {
	if p.TimeZone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(p.TimeZone)
}

// DSN builds a postgres connection string for the scans database
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "mfg-scans")
	v.SetDefault("service.version", "0.1.0")
	v.SetDefault("service.environment", "development")
	v.SetDefault("service.log_level", "info")

	v.SetDefault("server.port", 8086)
	v.SetDefault("server.grpc_port", 9086)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "mfg_scans")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_time", time.Hour)
	v.SetDefault("database.max_idle_time", 30*time.Minute)
	v.SetDefault("database.health_check", time.Minute)

	v.SetDefault("quality_db.dsn", "")
	v.SetDefault("quality_db.timeout", 4*time.Second)

	v.SetDefault("part_status.base_url", "")
	v.SetDefault("part_status.timeout", 4*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "")

	v.SetDefault("plant.time_zone", "Europe/Warsaw")

	v.SetDefault("rule_cache.ttl", 10*time.Minute)

	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.trust_terminal_header", false)
	v.SetDefault("rate_limit.idle_timeout", 10*time.Minute)
}

// Load reads configuration from defaults, an optional config file and
// SCANS_* environment variables, in increasing precedence.
func Load(configFiles ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(configFiles) > 0 && configFiles[0] != "" {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mfg-scans")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.PartStatus.Timeout <= 0 || cfg.PartStatus.Timeout > 5*time.Second {
		return nil, fmt.Errorf("part_status.timeout must be within (0s, 5s], got %s", cfg.PartStatus.Timeout)
	}
	if cfg.QualityDB.Timeout <= 0 || cfg.QualityDB.Timeout > 5*time.Second {
		return nil, fmt.Errorf("quality_db.timeout must be within (0s, 5s], got %s", cfg.QualityDB.Timeout)
	}
	if _, err := cfg.Plant.Location(); err != nil {
		return nil, fmt.Errorf("invalid plant.time_zone: %w", err)
	}

	return cfg, nil
}
