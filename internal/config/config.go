// Package config loads streamguard settings from defaults, a config file,
// STREAMGUARD_* environment variables and bound flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hed1ad/streamguard/pkg/detectors"
)

// EnvPrefix is the prefix of environment overrides, e.g. STREAMGUARD_DETECTOR_THRESHOLD.
const EnvPrefix = "STREAMGUARD"

// Config is the full application configuration.
type Config struct {
	Detector detectors.Config `mapstructure:"detector"`
	Logging  LoggingConfig    `mapstructure:"logging"`
	Server   ServerConfig     `mapstructure:"server"`
	Redis    RedisConfig      `mapstructure:"redis"`
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// RedisConfig configures the report store. An empty Addr selects the in-memory store.
type RedisConfig struct {
	Addr string        `mapstructure:"addr"`
	DB   int           `mapstructure:"db"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	d := detectors.DefaultConfig()
	v.SetDefault("detector.window_size", d.WindowSize)
	v.SetDefault("detector.threshold", d.Threshold)
	v.SetDefault("detector.decay", d.Decay)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 8<<20)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)
}

// NewViper returns a Viper instance with defaults and environment binding.
// When path is not empty the file is read as well.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	return v, nil
}

// Load decodes v into a Config and validates the detector section.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Detector.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
