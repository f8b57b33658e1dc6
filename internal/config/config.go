// Package config предоставляет структуры и функции для парсинга и загрузки конфига.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"DATABASE_URL" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	JWTToken                `yaml:"jwttoken"`
	Stripe                  `yaml:"stripe"`
	App                     `yaml:"app"`
	RateLimits              `yaml:"rate_limits"`
	Billing                 `yaml:"billing"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	RedisAddress      string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	RedisPassword     string        `yaml:"password" env:"REDIS_PASSWORD"`
	RedisUser         string        `yaml:"user"`
	RedisDB           int           `yaml:"db"`
	RedisMaxRetries   int           `yaml:"max_retries"`
	RedisDialTimeout  time.Duration `yaml:"dial_timeout"`
	RedisTimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ настройки брокера уведомлений.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// SMTP настройки почтового сервера для воркера уведомлений.
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"password" env:"SMTP_PASSWORD"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"720h"`
}

// Stripe настройки платёжного провайдера.
type Stripe struct {
	StripeSecretKey     string        `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	WebhookTolerance    time.Duration `yaml:"webhook_tolerance" env-default:"5m"`
	StarterPriceID      string        `yaml:"starter_price_id" env:"STRIPE_STARTER_PRICE_ID"`
	ProPriceID          string        `yaml:"pro_price_id" env:"STRIPE_PRO_PRICE_ID"`
	EnterprisePriceID   string        `yaml:"enterprise_price_id" env:"STRIPE_ENTERPRISE_PRICE_ID"`
	TrialDays           int64         `yaml:"trial_days" env-default:"14"`
}

// App общие параметры приложения.
type App struct {
	AppName string `yaml:"name" env-default:"WorkflowDebugger"`
	AppURL  string `yaml:"base_url" env:"APP_URL" env-default:"http://localhost:3000"`
}

// Limit правило лимита: не больше Requests запросов за Window.
type Limit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// RateLimits настройки ограничителя частоты запросов.
type RateLimits struct {
	Backend       string        `yaml:"backend" env:"RATE_LIMIT_BACKEND" env-default:"memory"`
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1m"`
	Signup        Limit         `yaml:"signup"`
	ResetRequest  Limit         `yaml:"reset_request"`
	ResetConfirm  Limit         `yaml:"reset_confirm"`
	Export        Limit         `yaml:"export"`
	UserPerMinute int           `yaml:"user_per_minute" env-default:"100"`
	UserBurst     int           `yaml:"user_burst" env-default:"20"`
}

// Billing параметры проверки доступа.
type Billing struct {
	GracePeriod time.Duration `yaml:"grace_period" env-default:"168h"`
}

// Limits по умолчанию для чувствительных операций.
var (
	DefaultSignupLimit       = Limit{Requests: 5, Window: 15 * time.Minute}
	DefaultResetRequestLimit = Limit{Requests: 3, Window: 15 * time.Minute}
	DefaultResetConfirmLimit = Limit{Requests: 5, Window: 15 * time.Minute}
	DefaultExportLimit       = Limit{Requests: 3, Window: time.Hour}
)

// Load читает конфиг из файла path, поверх применяет переменные окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cfg.applyLimitDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH.
// Перед чтением подхватывает .env, если он есть.
func MustLoad() *Config {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) applyLimitDefaults() {
	set := func(l *Limit, def Limit) {
		if l.Requests <= 0 {
			l.Requests = def.Requests
		}
		if l.Window <= 0 {
			l.Window = def.Window
		}
	}
	set(&c.Signup, DefaultSignupLimit)
	set(&c.ResetRequest, DefaultResetRequestLimit)
	set(&c.ResetConfirm, DefaultResetConfirmLimit)
	set(&c.Export, DefaultExportLimit)
}

func (c *Config) validate() error {
	if c.StripeWebhookSecret == "" {
		return errors.New("stripe.webhook_secret is empty")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("rate_limits.sweep_interval must be positive, got %s", c.SweepInterval)
	}
	if c.UserPerMinute <= 0 || c.UserBurst <= 0 {
		return fmt.Errorf("rate_limits.user_per_minute and user_burst must be positive, got %d and %d", c.UserPerMinute, c.UserBurst)
	}
	switch c.Backend {
	case "memory":
	case "redis":
		if c.RedisAddress == "" {
			return errors.New("rate_limits.backend is redis but redis_connection.addressredis is empty")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.Backend)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer: %s (timeout %s, idle %s)\n"+
			"Redis: %s db=%d\n"+
			"RateLimitBackend: %s\n"+
			"AppURL: %s\n",
		c.Env,
		c.AddressHTTP, c.TimeoutHTTP, c.IdleTimeout,
		c.RedisAddress, c.RedisDB,
		c.Backend,
		c.AppURL,
	)
}
