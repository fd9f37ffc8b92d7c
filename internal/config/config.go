// Package config loads the processor's configuration surface — the
// four fields spec.md §6 enumerates — from the environment and an
// optional file, via spf13/viper, the way 0xtitan6-polymarket-mm
// configures its market-maker.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	FsyncAlways = "always"
	FsyncNever  = "never"
)

// Config is the processor's full configuration surface.
type Config struct {
	CommandQueueCapacity      int    `mapstructure:"command_queue_capacity"`
	SubscriberBufferCapacity  int    `mapstructure:"subscriber_buffer_capacity"`
	WALPath                   string `mapstructure:"wal_path"`
	FsyncMode                 string `mapstructure:"fsync_mode"`
}

// Fsync reports whether the configured mode requires fsync
// before an append returns — the default, and the only mode the
// durability guarantee in spec.md §6/§7 is stated for.
func (c Config) Fsync() bool {
	return c.FsyncMode != FsyncNever
}

// Load reads configuration from environment variables prefixed
// MATCHBOOK_ (e.g. MATCHBOOK_WAL_PATH) and, if present, a config file
// at configPath. Unset fields fall back to documented defaults.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("matchbook")
	v.AutomaticEnv()

	v.SetDefault("command_queue_capacity", 4096)
	v.SetDefault("subscriber_buffer_capacity", 1024)
	v.SetDefault("wal_path", "matchbook.wal")
	v.SetDefault("fsync_mode", FsyncAlways)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.CommandQueueCapacity <= 0 {
		return fmt.Errorf("config: command_queue_capacity must be positive, got %d", c.CommandQueueCapacity)
	}
	if c.SubscriberBufferCapacity <= 0 {
		return fmt.Errorf("config: subscriber_buffer_capacity must be positive, got %d", c.SubscriberBufferCapacity)
	}
	if c.WALPath == "" {
		return fmt.Errorf("config: wal_path must not be empty")
	}
	if c.FsyncMode != FsyncAlways && c.FsyncMode != FsyncNever {
		return fmt.Errorf("config: fsync_mode must be %q or %q, got %q", FsyncAlways, FsyncNever, c.FsyncMode)
	}
	return nil
}
