// Package config содержит логику чтения конфигурации сервиса лаборатории.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Config содержит параметры конфигурации сервиса лаборатории.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	PostgRESTURL string `env:"POSTGREST_URL"`
	PostgRESTKey string `env:"POSTGREST_KEY"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisBridge   bool   `env:"REDIS_BRIDGE"`

	EnableRealtime bool `env:"ENABLE_REALTIME"`

	Passphrase    string        `env:"APP_PASSPHRASE"`
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL"`

	LogoPath string `env:"LOGO_PATH"`
	NodeID   int64  `env:"NODE_ID"`
}

// fileKeys сопоставляет флаги с ключами YAML-файла конфигурации.
var fileKeys = map[string]string{
	"a":              "run_address",
	"d":              "database_uri",
	"u":              "postgrest_url",
	"k":              "postgrest_key",
	"redis-addr":     "redis_addr",
	"redis-password": "redis_password",
	"redis-db":       "redis_db",
	"redis-bridge":   "redis_bridge",
	"realtime":       "enable_realtime",
	"p":              "app_passphrase",
	"session-secret": "session_secret",
	"session-ttl":    "session_ttl",
	"logo":           "logo_path",
	"node":           "node_id",
}

// Parse считывает конфигурацию. Приоритет по возрастанию: значения по
// умолчанию, YAML-файл (-c или CONFIG_FILE), флаги, переменные окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	var configFile string
	flag.StringVar(&configFile, "c", os.Getenv("CONFIG_FILE"), "path to YAML config file")

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PostgRESTURL, "u", "", "PostgREST base URL")
	flag.StringVar(&cfg.PostgRESTKey, "k", "", "PostgREST API key")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address for realtime notifications")
	flag.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database number")
	flag.BoolVar(&cfg.RedisBridge, "redis-bridge", false, "republish database notifications to Redis")
	flag.BoolVar(&cfg.EnableRealtime, "realtime", true, "subscribe to change notifications")
	flag.StringVar(&cfg.Passphrase, "p", "", "shared login passphrase")
	flag.StringVar(&cfg.SessionSecret, "session-secret", "", "session cookie signing key")
	flag.DurationVar(&cfg.SessionTTL, "session-ttl", 30*time.Minute, "session lifetime")
	flag.StringVar(&cfg.LogoPath, "logo", "", "PNG logo for lab exports")
	flag.Int64Var(&cfg.NodeID, "node", 1, "node number for local identifiers")

	flag.Parse()

	if configFile != "" {
		if err := applyFile(flag.CommandLine, configFile); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}

	return cfg, nil
}

// applyFile подставляет значения из файла во флаги, не заданные явно.
func applyFile(fs *flag.FlagSet, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = true
	})

	for name, key := range fileKeys {
		if explicit[name] || !v.IsSet(key) {
			continue
		}
		if err := fs.Set(name, v.GetString(key)); err != nil {
			return fmt.Errorf("config file key %s: %w", key, err)
		}
	}
	return nil
}
