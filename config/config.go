// Package config loads and watches the client configuration with viper.
//
// Precedence, highest first: pflag overrides, TOURALERT_* environment (a
// .env file in the working directory is loaded into the environment first),
// the config file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
)

const (
	EnvPrefix  = "TOURALERT"
	configName = "touralert"
)

type Config struct {
	Stream      StreamConfig      `mapstructure:"stream"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Subscribers SubscribersConfig `mapstructure:"subscribers"`
	Filters     []FilterConfig    `mapstructure:"filters"`
	Sound       SoundConfig       `mapstructure:"sound"`
	Chat        ChatConfig        `mapstructure:"chat"`
	Bus         BusConfig         `mapstructure:"bus"`
	Dedupe      DedupeConfig      `mapstructure:"dedupe"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Status      StatusConfig      `mapstructure:"status"`
	Log         LogConfig         `mapstructure:"log"`

	v *viper.Viper
}

type StreamConfig struct {
	Address          string        `mapstructure:"address"`
	RetryInterval    time.Duration `mapstructure:"retry_interval"`
	HealthInterval   time.Duration `mapstructure:"health_interval"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	IdentityParam    string        `mapstructure:"identity_param"`
	ReadLimit        int64         `mapstructure:"read_limit"`
}

type IdentityConfig struct {
	Name string `mapstructure:"name"`
}

type SubscribersConfig struct {
	MailboxSize int `mapstructure:"mailbox_size"`
}

// FilterConfig is one named category rule. Filters are a list rather than a
// map because viper lowercases map keys and names like "7A" are case-sensitive.
type FilterConfig struct {
	Name    string `mapstructure:"name"`
	RoleID  string `mapstructure:"role_id"`
	Enabled bool   `mapstructure:"enabled"`
}

type SoundConfig struct {
	File        string        `mapstructure:"file"`
	Dir         string        `mapstructure:"dir"`
	Volume      float64       `mapstructure:"volume"`
	Command     []string      `mapstructure:"command"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

type ChatConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type BusConfig struct {
	AMQPURI string `mapstructure:"amqp_uri"`
	Topic   string `mapstructure:"topic"`
}

type DedupeConfig struct {
	Size int `mapstructure:"size"`
}

type BreakerConfig struct {
	Failures uint32        `mapstructure:"failures"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

type StatusConfig struct {
	Listen string `mapstructure:"listen"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stream.address", "ws://127.0.0.1:8080/ws")
	v.SetDefault("stream.retry_interval", 5*time.Second)
	v.SetDefault("stream.health_interval", 5*time.Second)
	v.SetDefault("stream.handshake_timeout", 10*time.Second)
	v.SetDefault("stream.identity_param", "player")
	v.SetDefault("stream.read_limit", 1<<20)
	v.SetDefault("identity.name", "")
	v.SetDefault("subscribers.mailbox_size", 256)

	defaults := make([]map[string]any, 0, len(model.DefaultRuleNames))
	for _, name := range model.DefaultRuleNames {
		defaults = append(defaults, map[string]any{"name": name, "role_id": "", "enabled": false})
	}
	v.SetDefault("filters", defaults)

	v.SetDefault("sound.file", "FFXIV_Incoming_Tell_1.mp3")
	v.SetDefault("sound.dir", "sounds")
	v.SetDefault("sound.volume", 1.0)
	v.SetDefault("sound.command", []string{})
	v.SetDefault("sound.min_interval", time.Second)
	v.SetDefault("chat.enabled", true)
	v.SetDefault("bus.amqp_uri", "")
	v.SetDefault("bus.topic", "touralert.notifications")
	v.SetDefault("dedupe.size", 0)
	v.SetDefault("breaker.failures", 5)
	v.SetDefault("breaker.cooldown", 30*time.Second)
	v.SetDefault("status.listen", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Overrides returns the flag set accepted as trailing CLI arguments.
func Overrides() *pflag.FlagSet {
	fs := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	fs.String("address", "", "websocket URL of the notification source")
	fs.String("identity", "", "display name sent as the identity query parameter")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("status-listen", "", "address of the status HTTP endpoint")
	return fs
}

var flagKeys = map[string]string{
	"address":       "stream.address",
	"identity":      "identity.name",
	"log-level":     "log.level",
	"status-listen": "status.listen",
}

// LoadConfig reads the configuration. path may be empty to search for
// touralert.{yaml,json,toml} in the working directory and ~/.config/touralert;
// args are parsed as pflag overrides.
func LoadConfig(path string, args []string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fs := Overrides()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/touralert")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{v: v}
	if err := cfg.decode(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode() error {
	if err := c.v.Unmarshal(c); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if c.Filters == nil {
		c.Filters = []FilterConfig{}
	}
	return c.Validate()
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Stream.Address == "" {
		errs = append(errs, errors.New("stream.address is required"))
	}
	if c.Stream.RetryInterval <= 0 {
		errs = append(errs, errors.New("stream.retry_interval must be positive"))
	}
	if c.Stream.HealthInterval <= 0 {
		errs = append(errs, errors.New("stream.health_interval must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json", "otel":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text, json or otel", c.Log.Format))
	}
	seen := make(map[string]struct{}, len(c.Filters))
	for _, f := range c.Filters {
		if f.Name == "" {
			errs = append(errs, errors.New("filters: rule without name"))
			continue
		}
		if _, dup := seen[f.Name]; dup {
			errs = append(errs, fmt.Errorf("filters: duplicate rule %q", f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

// Rules converts the filter list into domain rules.
func (c *Config) Rules() []model.FilterRule {
	out := make([]model.FilterRule, 0, len(c.Filters))
	for _, f := range c.Filters {
		out = append(out, model.FilterRule{Name: f.Name, RoleID: f.RoleID, Enabled: f.Enabled})
	}
	return out
}

// File returns the config file in use, empty when running on defaults.
func (c *Config) File() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// Watch re-decodes the file on every change and hands valid results to fn.
// It is a no-op when no config file is in use.
func (c *Config) Watch(logger *slog.Logger, fn func(*Config)) {
	if c.File() == "" {
		return
	}
	var mu sync.Mutex
	c.v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		next := &Config{v: c.v}
		if err := next.decode(); err != nil {
			logger.Warn("[CONFIG] reload rejected", slog.String("file", e.Name), slog.Any("err", err))
			return
		}
		logger.Info("[CONFIG] reloaded", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		fn(next)
	})
	c.v.WatchConfig()
}

// ParseLevel maps a config level name to slog.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
