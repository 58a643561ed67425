package config

import (
	"time"

	pkgconfig "github.com/weiawesome/tweet-graph/pkg/config"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Store      StoreConfig
	Auth       AuthConfig
	Events     EventsConfig
	Reconciler ReconcilerConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StoreConfig struct {
	// KeyPrefix namespaces every key; empty keeps the legacy layout.
	KeyPrefix string `mapstructure:"key_prefix"`
}

type AuthConfig struct {
	Issuer          string        `mapstructure:"issuer"`
	AccessDuration  time.Duration `mapstructure:"access_duration"`
	RefreshDuration time.Duration `mapstructure:"refresh_duration"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
}

type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

type ReconcilerConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	pkgconfig.SetDefaults(v, map[string]any{
		"server.host":           "0.0.0.0",
		"server.port":           8096,
		"redis.address":         "localhost:6379",
		"redis.password":        "",
		"redis.db":              0,
		"store.key_prefix":      "",
		"auth.issuer":           "tweet-graph",
		"auth.access_duration":  "15m",
		"auth.refresh_duration": "168h",
		"auth.bcrypt_cost":      10,
		"events.enabled":        true,
		"events.channel":        "tweet-graph:events",
		"reconciler.interval":   "5m",
		"reconciler.batch_size": 500,
		"log.level":             "info",
		"log.pretty":            false,
	})

	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":           "PORT",
		"redis.address":         "REDIS_ADDRESS",
		"redis.password":        "REDIS_PASSWORD",
		"redis.db":              "REDIS_DB",
		"store.key_prefix":      "STORE_KEY_PREFIX",
		"auth.issuer":           "AUTH_ISSUER",
		"auth.access_duration":  "AUTH_ACCESS_DURATION",
		"auth.refresh_duration": "AUTH_REFRESH_DURATION",
		"auth.bcrypt_cost":      "AUTH_BCRYPT_COST",
		"events.enabled":        "EVENTS_ENABLED",
		"events.channel":        "EVENTS_CHANNEL",
		"reconciler.interval":   "RECONCILER_INTERVAL",
		"reconciler.batch_size": "RECONCILER_BATCH_SIZE",
		"log.level":             "LOG_LEVEL",
		"log.pretty":            "LOG_PRETTY",
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
