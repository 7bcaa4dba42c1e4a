// Package config binds cobra flags, LINGUA_* environment variables and an
// optional lingua.{yaml,toml,json} file into one Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/exstore"
	"github.com/abhisek/lingua/internal/llm"
	"github.com/abhisek/lingua/internal/session"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the resolved configuration of the server and CLI.
type Config struct {
	Addr      string
	DBPath    string
	LogLevel  string
	LogFormat string

	Store         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	SweepInterval time.Duration
	TTLs          exstore.TTLs

	Session session.Config

	LLM         llm.Config
	Temperature float64
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:          ":8080",
		LogLevel:      "info",
		LogFormat:     "console",
		Store:         StoreMemory,
		RedisAddr:     "localhost:6379",
		RedisPrefix:   "lingua",
		SweepInterval: time.Minute,
		TTLs:          exstore.DefaultTTLs(),
		Session:       session.DefaultConfig(),
		LLM:           llm.DefaultConfig(),
		Temperature:   0.7,
	}
}

// AddFlags registers the global flags on cmd's persistent flag set.
func AddFlags(cmd *cobra.Command) {
	d := Default()
	f := cmd.PersistentFlags()
	f.String("db", "", "SQLite database path (default $XDG_DATA_HOME/lingua/lingua.db)")
	f.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	f.String("log-format", d.LogFormat, "Log format (console, json)")
	f.String("model", string(d.LLM.DefaultModel), "Default model ("+modelNames()+")")
	f.Duration("llm-timeout", d.LLM.Timeout, "Timeout of a single provider call")
	f.Int("llm-max-attempts", d.LLM.Retry.MaxAttempts, "Attempts per provider call for rate limits and outages (1 = no retry)")
	f.Duration("rate-limit-retry-after", d.LLM.RateLimitRetryAfter, "Wait reported for rate limits without a Retry-After header")
	f.Int("max-tokens", d.LLM.MaxTokens, "Output token cap per provider call")
	f.Float64("temperature", d.Temperature, "Sampling temperature for exercise generation")
}

// AddServeFlags registers the flags only the server needs.
func AddServeFlags(cmd *cobra.Command) {
	d := Default()
	f := cmd.Flags()
	f.StringP("addr", "a", d.Addr, "HTTP listen address")
	f.String("store", d.Store, "Exercise store backend (memory, redis)")
	f.String("redis-addr", d.RedisAddr, "Redis address for the redis store")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.String("redis-prefix", d.RedisPrefix, "Key prefix for the redis store")
	f.Duration("sweep-interval", d.SweepInterval, "How often expired exercises and sessions are compacted")
	f.Duration("exercise-ttl", exstore.DefaultTTL, "Lifetime of a generated exercise")
	f.StringToString("ttl", nil, "Per-kind exercise lifetime, e.g. speaking=20m")
	f.Duration("session-duration", d.Session.DefaultDuration, "Default session length")
	f.Duration("session-retention", d.Session.Retention, "How long finished sessions stay readable")
}

func modelNames() string {
	var names []string
	for _, m := range llm.Models() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

// NewViper binds cmd's flags and the environment to a fresh viper instance
// and reads the config file if one exists.
func NewViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix("LINGUA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("lingua")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/lingua")
	v.AddConfigPath("/etc/lingua")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// Load resolves a Config from v. API keys come from the environment.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	cfg.LLM = llm.ConfigFromEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}

	str("addr", &cfg.Addr)
	str("db", &cfg.DBPath)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("store", &cfg.Store)
	str("redis-addr", &cfg.RedisAddr)
	str("redis-password", &cfg.RedisPassword)
	str("redis-prefix", &cfg.RedisPrefix)
	if v.IsSet("redis-db") {
		cfg.RedisDB = v.GetInt("redis-db")
	}
	dur("sweep-interval", &cfg.SweepInterval)
	dur("session-duration", &cfg.Session.DefaultDuration)
	dur("session-retention", &cfg.Session.Retention)

	if v.IsSet("model") {
		cfg.LLM.DefaultModel = llm.Model(v.GetString("model"))
	}
	dur("llm-timeout", &cfg.LLM.Timeout)
	dur("rate-limit-retry-after", &cfg.LLM.RateLimitRetryAfter)
	if v.IsSet("llm-max-attempts") {
		cfg.LLM.Retry.MaxAttempts = v.GetInt("llm-max-attempts")
	}
	if v.IsSet("max-tokens") {
		cfg.LLM.MaxTokens = v.GetInt("max-tokens")
	}
	if v.IsSet("temperature") {
		cfg.Temperature = v.GetFloat64("temperature")
	}

	if v.IsSet("exercise-ttl") {
		d := v.GetDuration("exercise-ttl")
		for _, k := range exercise.Kinds {
			cfg.TTLs[k] = d
		}
	}
	for name, raw := range v.GetStringMapString("ttl") {
		k, err := exercise.ParseKind(name)
		if err != nil {
			return Config{}, fmt.Errorf("ttl: %w", err)
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("ttl for %s: %w", k, err)
		}
		cfg.TTLs[k] = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that do not depend on credentials.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreMemory, StoreRedis)
	}
	if _, err := llm.ParseModel(string(c.LLM.DefaultModel)); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	for k, d := range c.TTLs {
		if d <= 0 {
			return fmt.Errorf("ttl for %s must be positive, got %s", k, d)
		}
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.Session.DefaultDuration <= 0 {
		return fmt.Errorf("session duration must be positive, got %s", c.Session.DefaultDuration)
	}
	return nil
}
