package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Listen   string         `mapstructure:"listen"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Registry RegistryConfig `mapstructure:"registry"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Platform PlatformConfig `mapstructure:"platform"`

	v *viper.Viper
}

type StorageConfig struct {
	Path      string        `mapstructure:"path"`
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

type AuthConfig struct {
	// Timeout bounds identity verification at connect time; a slow identity
	// service rejects the connection rather than hanging the handshake.
	Timeout time.Duration `mapstructure:"timeout"`
}

type RegistryConfig struct {
	MailboxSize   int           `mapstructure:"mailbox_size"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
}

type ChannelsConfig struct {
	// AMQPURL switches the channel-delivery job bus from the in-process
	// transport to a broker. Empty means in-process.
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

type PlatformConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Token     string        `mapstructure:"token"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// Load reads configuration from an optional YAML file plus RTC_* environment
// overrides, applying defaults for everything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("listen", ":8182")
	v.SetDefault("storage.path", "rtc.db")
	v.SetDefault("storage.op_timeout", 5*time.Second)
	v.SetDefault("auth.timeout", 3*time.Second)
	v.SetDefault("registry.mailbox_size", 1024)
	v.SetDefault("registry.send_timeout", 500*time.Millisecond)
	v.SetDefault("registry.sweep_interval", time.Minute)
	v.SetDefault("registry.idle_timeout", 30*time.Minute)
	v.SetDefault("channels.exchange", "clinic.notifications")
	v.SetDefault("platform.cache_size", 4096)
	v.SetDefault("platform.cache_ttl", 5*time.Minute)

	v.SetEnvPrefix("RTC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Watch re-reads the file on change and invokes onReload with the fresh
// config. Only hot-reloadable tunables (reaper intervals) should be acted
// on; transports are not rebuilt at runtime.
func (c *Config) Watch(logger *slog.Logger, onReload func(*Config)) {
	if c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		fresh := &Config{v: c.v}
		if err := c.v.Unmarshal(fresh); err != nil {
			logger.Warn("config reload failed", "file", e.Name, "err", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onReload(fresh)
	})
	c.v.WatchConfig()
}
