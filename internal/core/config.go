package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the runtime configuration for the server and CLI.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Crypto    CryptoConfig    `mapstructure:"crypto"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Translate TranslateConfig `mapstructure:"translate"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Rate      RateConfig      `mapstructure:"rate"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type CryptoConfig struct {
	Passphrase string `mapstructure:"passphrase"`
	Salt       string `mapstructure:"salt"`
}

type JWTConfig struct {
	HSSecret string `mapstructure:"hs_secret"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	NotifyTopic string   `mapstructure:"notify_topic"`
}

type TranslateConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ChatConfig struct {
	PreviewTimeout   time.Duration `mapstructure:"preview_timeout"`
	BroadcastTimeout time.Duration `mapstructure:"broadcast_timeout"`
	NotifyTimeout    time.Duration `mapstructure:"notify_timeout"`
	PurgeInterval    time.Duration `mapstructure:"purge_interval"`
}

type RateConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

// IsProduction reports whether the app runs with production logging.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("database.path", "parley.db")
	v.SetDefault("crypto.passphrase", "")
	v.SetDefault("crypto.salt", "parley")
	v.SetDefault("jwt.hs_secret", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "parley")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.notify_topic", "parley.call-notifications")
	v.SetDefault("translate.endpoint", "")
	v.SetDefault("translate.api_key", "")
	v.SetDefault("translate.timeout", 3*time.Second)
	v.SetDefault("chat.preview_timeout", 2*time.Second)
	v.SetDefault("chat.broadcast_timeout", 5*time.Second)
	v.SetDefault("chat.notify_timeout", 10*time.Second)
	v.SetDefault("chat.purge_interval", time.Minute)
	v.SetDefault("rate.per_minute", 120)
	v.SetDefault("rate.burst", 20)
}

// LoadConfig reads .env, then the optional YAML file at path, then PARLEY_*
// environment overrides. The returned viper instance can be watched.
func LoadConfig(path string) (*Config, *viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := parseConfig(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		if brokers := v.GetString("kafka.brokers"); brokers != "" {
			cfg.Kafka.Brokers = strings.Split(brokers, ",")
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("config: database.path is required")
	}
	if c.Chat.PreviewTimeout <= 0 {
		return errors.New("config: chat.preview_timeout must be positive")
	}
	if c.Rate.PerMinute < 0 || c.Rate.Burst < 0 {
		return errors.New("config: rate limits cannot be negative")
	}
	return nil
}

// WatchConfig re-parses the config file on change and hands the result to
// onChange. Invalid edits are reported through onError and otherwise ignored.
func WatchConfig(v *viper.Viper, onChange func(*Config), onError func(error)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		cfg, err := parseConfig(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
