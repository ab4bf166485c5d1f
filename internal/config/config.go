// config реализует конфигурацию placenotes-service: загрузка из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config: корневая конфигурация сервиса.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	DB        DBConfig        `yaml:"db"`
	Cache     CacheConfig     `yaml:"cache"`
	Query     QueryConfig     `yaml:"query"`
	Auth      AuthConfig      `yaml:"auth"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// HTTPConfig: REST API и служебные ручки (/livez, /healthz, /metrics).
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// GRPCConfig: административный gRPC-порт (health, reflection).
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50060"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// DBConfig: подключение к MongoDB. Имя базы берётся из пути URI, иначе "placenotes".
type DBConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
}

// CacheConfig: кэш ответов на запросы поиска.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"         env:"CACHE_TTL"         env-default:"5m"`
	MaxEntries int           `yaml:"max_entries" env:"CACHE_MAX_ENTRIES" env-default:"10000"`
}

// QueryConfig: параметры выдачи. Радиусы в метрах.
type QueryConfig struct {
	PageSize      int     `yaml:"page_size"      env:"PAGE_SIZE"      env-default:"20"`
	DefaultRadius float64 `yaml:"default_radius" env:"DEFAULT_RADIUS" env-default:"1000"`
	MaxRadius     float64 `yaml:"max_radius"     env:"MAX_RADIUS"     env-default:"50000"`
	// LoadTimeout: дедлайн общей загрузки ответа из хранилища при промахе кэша.
	LoadTimeout time.Duration `yaml:"load_timeout" env:"QUERY_LOAD_TIMEOUT" env-default:"5s"`
}

// AuthConfig: проверка bearer-токенов, выпущенных auth-сервисом.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	Issuer    string `yaml:"issuer"     env:"JWT_ISSUER"`
	Audience  string `yaml:"audience"   env:"JWT_AUDIENCE"`
}

// BroadcastConfig: межинстансная инвалидация через Redis pub/sub.
// Пустой RedisURL отключает рассылку.
type BroadcastConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	Channel  string `yaml:"channel"   env:"BROADCAST_CHANNEL" env-default:"placenotes:invalidate"`
}

// RateLimitConfig: ограничение частоты запросов на клиента. RPS=0 отключает лимит.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"   env:"RATE_LIMIT_RPS"   env-default:"20"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"40"`
}

// TimeoutConfig: сервисные таймауты (общий дедлайн обработки запроса).
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// MustLoad: обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// Поверх значений из файла всегда накладываются ENV-переменные.
func Load(path string) (*Config, error) {
	var cfg Config

	fromFile := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config %q: %w", p, err)
		}

		return nil
	}

	switch {
	case path != "":
		if err := fromFile(path); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := fromFile(os.Getenv("CONFIG_PATH")); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat("local.yaml"); err == nil {
			if err := fromFile("local.yaml"); err != nil {
				return nil, err
			}
		} else if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
	}

	// ENV перекрывает значения из YAML.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to overlay env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate: базовая валидация значений.
func (c *Config) validate() error {
	switch c.Env {
	case "local", "dev", "prod":
	default:
		return fmt.Errorf("env must be one of local, dev, prod (got %q)", c.Env)
	}

	if c.DB.URL == "" {
		return errors.New("db.url is required")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0")
	}

	if c.Cache.MaxEntries <= 0 {
		return errors.New("cache.max_entries must be > 0")
	}

	if c.Query.PageSize <= 0 {
		return errors.New("query.page_size must be > 0")
	}

	if c.Query.MaxRadius <= 0 {
		return errors.New("query.max_radius must be > 0")
	}

	if c.Query.DefaultRadius <= 0 || c.Query.DefaultRadius > c.Query.MaxRadius {
		return errors.New("query.default_radius must be in (0, query.max_radius]")
	}

	if c.RateLimit.RPS < 0 {
		return errors.New("rate_limit.rps must be >= 0")
	}

	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		return errors.New("rate_limit.burst must be > 0 when rate_limit.rps is set")
	}

	if c.Broadcast.RedisURL != "" && c.Broadcast.Channel == "" {
		return errors.New("broadcast.channel is required when broadcast.redis_url is set")
	}

	return nil
}
