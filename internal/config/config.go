// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
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
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	Stripe                  `yaml:"stripe"`
	BillingRetry            `yaml:"billing_retry"`
	Scheduler               `yaml:"scheduler"`
	RateLimit               `yaml:"rate_limit"`
	SMTP                    `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-required:"true"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"2s"`
}

// JWTToken структура для проверки jwt-токенов бэкенда авторизации
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"1h"`
	Issuer       string        `yaml:"issuer" env:"JWT_ISSUER"`
}

// RabbitMQ структура для подключения к брокеру операторских уведомлений
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL" env-required:"true"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
	Workers    int           `yaml:"workers" env-default:"4"`
}

// Stripe структура с ключами и идентификаторами цен платёжного провайдера
type Stripe struct {
	SecretKey         string `yaml:"secret_key" env:"STRIPE_SECRET_KEY" env-required:"true"`
	WebhookSecret     string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET" env-required:"true"`
	PriceIDProMonthly string `yaml:"price_id_pro_monthly" env:"STRIPE_PRICE_ID_PRO_MONTHLY" env-required:"true"`
	PriceIDProYearly  string `yaml:"price_id_pro_yearly" env:"STRIPE_PRICE_ID_PRO_YEARLY" env-required:"true"`
	FrontendURL       string `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
}

// BillingRetry структура для настройки повторов записи смены тарифа
type BillingRetry struct {
	MaxAttempts     uint64        `yaml:"max_attempts" env-default:"5"`
	InitialInterval time.Duration `yaml:"initial_interval" env-default:"200ms"`
	MaxInterval     time.Duration `yaml:"max_interval" env-default:"5s"`
}

// Scheduler структура для фоновой очистки старых счётчиков
type Scheduler struct {
	PurgeCron            string `yaml:"purge_cron" env-default:"0 3 1 * *"`
	UsageRetentionMonths int    `yaml:"usage_retention_months" env-default:"12"`
	MetricsAddress       string `yaml:"metrics_address" env:"SCHEDULER_METRICS_ADDRESS" env-default:":9091"`
}

// SMTP структура для писем операторам. Без Host и OperatorEmail письма не отправляются.
type SMTP struct {
	Host          string `yaml:"host" env:"SMTP_HOST"`
	Port          string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User          string `yaml:"user" env:"SMTP_USER"`
	Pass          string `yaml:"pass" env:"SMTP_PASS"`
	OperatorEmail string `yaml:"operator_email" env:"OPERATOR_EMAIL"`
}

// Enabled сообщает, настроена ли отправка писем.
func (s SMTP) Enabled() bool {
	return s.Host != "" && s.OperatorEmail != ""
}

// RateLimit структура для ограничения частоты запросов одного аккаунта
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" env-default:"5"`
	Burst             int     `yaml:"burst" env-default:"10"`
}

// Load читает конфиг из файла path и переменных окружения и проверяет его.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет значения, которые cleanenv не может проверить сам.
func (c *Config) Validate() error {
	var errs []error
	if c.BillingRetry.MaxAttempts == 0 {
		errs = append(errs, errors.New("billing_retry.max_attempts must be positive"))
	}
	if c.BillingRetry.InitialInterval <= 0 || c.BillingRetry.MaxInterval < c.BillingRetry.InitialInterval {
		errs = append(errs, errors.New("billing_retry intervals must be positive and max >= initial"))
	}
	if c.Scheduler.UsageRetentionMonths < 1 {
		errs = append(errs, errors.New("scheduler.usage_retention_months must be at least 1"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("rate_limit must allow at least one request"))
	}
	if c.Stripe.PriceIDProMonthly == c.Stripe.PriceIDProYearly {
		errs = append(errs, errors.New("stripe price ids must differ between plans"))
	}
	return errors.Join(errs...)
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH.
// Файл .env, если он есть, подгружается в окружение до чтения.
func MustLoad() *Config {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  MaxRetries: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"RabbitMQ:\n"+
			"  MaxRetries: %d\n"+
			"  Workers: %d\n"+
			"BillingRetry:\n"+
			"  MaxAttempts: %d\n"+
			"  InitialInterval: %s\n"+
			"  MaxInterval: %s\n"+
			"Scheduler:\n"+
			"  PurgeCron: %s\n"+
			"  UsageRetentionMonths: %d\n"+
			"SMTP:\n"+
			"  Host: %s\n"+
			"  OperatorEmail: %s\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.RedisConnection.MaxRetries,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.RabbitMQ.MaxRetries,
		c.Workers,
		c.BillingRetry.MaxAttempts,
		c.InitialInterval,
		c.MaxInterval,
		c.PurgeCron,
		c.UsageRetentionMonths,
		c.Host,
		c.OperatorEmail,
	)
}
