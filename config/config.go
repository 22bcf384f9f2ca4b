// Package config manages metronome daemon configuration via Viper.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/metronome/errors"
)

// Config represents the metronome daemon configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig configures the due-job ticker and history retention.
type SchedulerConfig struct {
	TickIntervalSeconds int `mapstructure:"tick_interval_seconds"` // How often to check for due jobs (default: 60)
	RunRetentionDays    int `mapstructure:"run_retention_days"`    // How long to keep run history (default: 30)
}

// LogConfig configures logging output.
type LogConfig struct {
	JSON    bool `mapstructure:"json"`    // JSON structured output instead of console
	Verbose bool `mapstructure:"verbose"` // Debug-level logging
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "metronome.db")
	v.SetDefault("scheduler.tick_interval_seconds", 60)
	v.SetDefault("scheduler.run_retention_days", 30)
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbose", false)
}

// Load reads configuration from METRONOME_* environment variables and an
// optional metronome.yaml in the working directory.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("METRONOME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("metronome")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine - defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper loads configuration using a provided Viper instance.
// Useful for tests that need isolated configuration.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}
