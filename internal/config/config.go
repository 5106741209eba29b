package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config хранит все параметры приложения
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Events   EventsConfig   `yaml:"events"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	UseTLS   bool   `yaml:"use_tls"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
	GroupID string `yaml:"group_id"`
}

// EventsConfig selects the broker order events go to: rabbitmq, kafka or none.
type EventsConfig struct {
	Driver string `yaml:"driver"`
}

type AuthConfig struct {
	JWTSecret           string        `yaml:"jwt_secret"`
	TokenTTL            time.Duration `yaml:"token_ttl"`
	ResetTTL            time.Duration `yaml:"reset_ttl"`
	BaseURL             string        `yaml:"base_url"`
	SeedManagerName     string        `yaml:"seed_manager_name"`
	SeedManagerEmail    string        `yaml:"seed_manager_email"`
	SeedManagerPassword string        `yaml:"seed_manager_password"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type JobsConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	PendingTTL    time.Duration `yaml:"pending_ttl"`
	NotifyHour    int           `yaml:"notify_hour"`
	NotifyDays    int           `yaml:"notify_days"`
	Timezone      string        `yaml:"timezone"`
}

// Location resolves Timezone, falling back to the process local zone.
func (j JobsConfig) Location() *time.Location {
	if j.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(j.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Defaults() Config {
	return Config{
		HTTP:     HTTPConfig{Port: 3000, AllowedOrigins: []string{"*"}},
		Database: DatabaseConfig{Port: 5432, SSLMode: "disable", MaxConns: 10},
		RabbitMQ: RabbitMQConfig{Port: 5672, VHost: "/"},
		Kafka:    KafkaConfig{Topic: "orders", GroupID: "order-desk-notificator"},
		Events:   EventsConfig{Driver: "none"},
		Auth:     AuthConfig{TokenTTL: 72 * time.Hour, ResetTTL: time.Hour, BaseURL: "http://localhost:3000/api/v1"},
		Mail:     MailConfig{Port: 587, From: "no-reply@order-desk.local"},
		Jobs:     JobsConfig{SweepInterval: 10 * time.Minute, PendingTTL: 4 * time.Hour, NotifyHour: 8, NotifyDays: 5},
		Log:      LogConfig{Level: "info"},
	}
}

// LoadConfig reads the YAML file at path (a missing file is fine), then a .env file if present,
// then environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("couldnt open the file for the configuration: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("error reading %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	num("PORT", &cfg.HTTP.Port)
	str("DB_HOST", &cfg.Database.Host)
	num("DB_PORT", &cfg.Database.Port)
	str("DB_USER", &cfg.Database.User)
	str("DB_PASSWORD", &cfg.Database.Password)
	str("DB_NAME", &cfg.Database.Database)
	str("DB_SSLMODE", &cfg.Database.SSLMode)
	str("RABBITMQ_HOST", &cfg.RabbitMQ.Host)
	num("RABBITMQ_PORT", &cfg.RabbitMQ.Port)
	str("RABBITMQ_USER", &cfg.RabbitMQ.User)
	str("RABBITMQ_PASSWORD", &cfg.RabbitMQ.Password)
	str("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	str("EVENTS_DRIVER", &cfg.Events.Driver)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	str("BASE_URL", &cfg.Auth.BaseURL)
	str("MAIL_HOST", &cfg.Mail.Host)
	num("MAIL_PORT", &cfg.Mail.Port)
	str("MAIL_USER", &cfg.Mail.User)
	str("MAIL_PASSWORD", &cfg.Mail.Password)
	str("MAIL_FROM", &cfg.Mail.From)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("TZ_NAME", &cfg.Jobs.Timezone)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
		errs = append(errs, errors.New("database config incomplete"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	switch c.Events.Driver {
	case "none", "":
	case "rabbitmq":
		if c.RabbitMQ.Host == "" || c.RabbitMQ.User == "" {
			errs = append(errs, errors.New("rabbitmq config incomplete"))
		}
	case "kafka":
		if strings.TrimSpace(c.Kafka.Brokers) == "" {
			errs = append(errs, errors.New("kafka.brokers is required for the kafka driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events driver %q", c.Events.Driver))
	}
	if c.Jobs.NotifyHour < 0 || c.Jobs.NotifyHour > 23 {
		errs = append(errs, errors.New("jobs.notify_hour must be within 0..23"))
	}
	if c.Jobs.SweepInterval <= 0 || c.Jobs.PendingTTL <= 0 {
		errs = append(errs, errors.New("jobs.sweep_interval and jobs.pending_ttl must be positive"))
	}
	return errors.Join(errs...)
}
