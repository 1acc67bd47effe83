package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Server struct {
	Host          string `envconfig:"SERVER_HOST" default:"localhost"`
	HTTPPort      string `envconfig:"SERVER_HTTP_PORT" default:"8080"`
	ReadTimeout   int    `envconfig:"SERVER_TIMEOUT" default:"10"`
	TriggerSecret string `envconfig:"TRIGGER_SECRET"`
}

type Db struct {
	Driver  string `envconfig:"DB_DRIVER" default:"sqlite"`
	Dialect string `envconfig:"DB_DIALECT" default:"sqlite3"`
	Source  string `envconfig:"DB_NAME" default:"dispatcher.db"`
}

type Dispatch struct {
	Cron        string        `envconfig:"DISPATCH_CRON" default:"*/15 * * * *"`
	TickMinutes int           `envconfig:"DISPATCH_TICK_MINUTES" default:"15"`
	HardCap     int           `envconfig:"DISPATCH_HARD_CAP" default:"500"`
	ChunkSize   int           `envconfig:"DISPATCH_CHUNK_SIZE" default:"100"`
	RunTimeout  time.Duration `envconfig:"DISPATCH_RUN_TIMEOUT" default:"30s"`
	Provider    string        `envconfig:"DISPATCH_PROVIDER" default:"http"`
}

type Quota struct {
	FreeLimit int `envconfig:"QUOTA_FREE_LIMIT" default:"5"`
}

type Content struct {
	HistoryMax int `envconfig:"CONTENT_HISTORY_MAX" default:"50"`
}

type Email struct {
	APIURL     string `envconfig:"EMAIL_API_URL"`
	APIKey     string `envconfig:"EMAIL_API_KEY"`
	TemplateID string `envconfig:"EMAIL_TEMPLATE_ID"`
	RatePerSec int    `envconfig:"EMAIL_RATE_PER_SEC" default:"2"`
	From       string `envconfig:"EMAIL_FROM"`
	FromName   string `envconfig:"EMAIL_FROM_NAME" default:"Hopeana"`
	ReplyTo    string `envconfig:"EMAIL_REPLY_TO"`
	Subject    string `envconfig:"EMAIL_SUBJECT" default:"Your Daily Dose of Motivation"`
}

type SMTP struct {
	Host     string `envconfig:"SMTP_HOST"`
	Port     string `envconfig:"SMTP_PORT"`
	User     string `envconfig:"SMTP_USER"`
	Password string `envconfig:"SMTP_PASSWORD"`
}

type RabbitMQ struct {
	Host string `envconfig:"RABBITMQ_HOST"`
	Port string `envconfig:"RABBITMQ_PORT"`
	User string `envconfig:"RABBITMQ_USER"`
	Pass string `envconfig:"RABBITMQ_PASSWORD"`
}

type Breaker struct {
	TimeInterval time.Duration `envconfig:"BREAKER_INTERVAL" default:"30s"`
	TimeTimeOut  time.Duration `envconfig:"BREAKER_TIMEOUT" default:"60s"`
	RepeatNumber uint32        `envconfig:"BREAKER_FAILURES" default:"3"`
}

type Redis struct {
	Addr       string        `envconfig:"REDIS_ADDR"`
	ContentTTL time.Duration `envconfig:"REDIS_CONTENT_TTL" default:"5m"`
}

type Logs struct {
	File     string `envconfig:"LOG_FILE" default:"logs/dispatcher.log"`
	Level    string `envconfig:"LOG_LEVEL" default:"debug"`
	HTTPFile string `envconfig:"HTTP_LOG_FILE" default:"logs/http.log"`
}

type Config struct {
	Server   Server
	DB       Db
	Dispatch Dispatch
	Quota    Quota
	Content  Content
	Email    Email
	SMTP     SMTP
	RabbitMQ RabbitMQ
	Breaker  Breaker
	Redis    Redis
	Logs     Logs
}

func NewConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Dispatch.Provider {
	case "http":
		if c.Email.APIURL == "" {
			return fmt.Errorf("EMAIL_API_URL is required for the http provider")
		}
	case "smtp":
		if c.SMTP.Host == "" || c.SMTP.Port == "" {
			return fmt.Errorf("SMTP_HOST and SMTP_PORT are required for the smtp provider")
		}
	case "rabbitmq":
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("RABBITMQ_HOST is required for the rabbitmq provider")
		}
	default:
		return fmt.Errorf("unknown DISPATCH_PROVIDER %q", c.Dispatch.Provider)
	}
	if c.Email.From == "" {
		return fmt.Errorf("EMAIL_FROM is required")
	}
	return nil
}

func (c *Config) ServerAddress() string {
	return c.Server.Host + ":" + c.Server.HTTPPort
}

func (r *RabbitMQ) Address() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.User, r.Pass, r.Host, r.Port)
}

// Storage is the subset of Config needed by offline tools such as the
// content seeder.
type Storage struct {
	DB    Db
	Redis Redis
	Logs  Logs
}

func NewStorageConfig() (*Storage, error) {
	var cfg Storage
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Worker is the configuration of the mail worker.
type Worker struct {
	SMTP     SMTP
	RabbitMQ RabbitMQ
	Logs     Logs
}

func NewWorkerConfig() (*Worker, error) {
	var cfg Worker
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
