package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DeletePolicySkip       = "skip"
	DeletePolicyRegenerate = "regenerate"
)

// EngineConfig задаёт параметры генерации экземпляров.
type EngineConfig struct {
	HorizonMonths int
	Location      *time.Location
	BatchWorkers  int
	DeletePolicy  string
}

type SchedulerConfig struct {
	Cron         string
	RunOnStart   bool
	MaxRetries   int
	RetryBackoff time.Duration
}

type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
	LogLevel logrus.Level
}

// Config содержит все настройки приложения
type Config struct {
	DB        *DBConfig
	Engine    EngineConfig
	Scheduler SchedulerConfig
	Server    ServerConfig
}

// Load читает .env (если он есть) и переменные окружения.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn(".env file not found, using environment")
	}
	return FromEnv()
}

// FromEnv собирает конфигурацию только из окружения.
func FromEnv() (*Config, error) {
	dbCfg, err := LoadDBConfig()
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(getEnv("ENGINE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid ENGINE_TIMEZONE: %w", err)
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		DB: dbCfg,
		Engine: EngineConfig{
			HorizonMonths: getEnvInt("HORIZON_MONTHS", 3),
			Location:      loc,
			BatchWorkers:  getEnvInt("BATCH_WORKERS", 4),
			DeletePolicy:  strings.ToLower(getEnv("DELETE_INSTANCE_POLICY", DeletePolicyRegenerate)),
		},
		Scheduler: SchedulerConfig{
			Cron:         getEnv("SCHEDULER_CRON", "0 0 * * *"),
			RunOnStart:   getEnvBool("SCHEDULER_RUN_ON_START", true),
			MaxRetries:   getEnvInt("SCHEDULER_MAX_RETRIES", 3),
			RetryBackoff: time.Duration(getEnvInt("SCHEDULER_RETRY_BACKOFF_MS", 500)) * time.Millisecond,
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr: getEnv("GRPC_ADDR", ":50051"),
			LogLevel: level,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Engine.HorizonMonths < 1 {
		return fmt.Errorf("invalid HORIZON_MONTHS: must be at least 1")
	}
	if c.Engine.BatchWorkers < 1 {
		return fmt.Errorf("invalid BATCH_WORKERS: must be at least 1")
	}
	if c.Engine.DeletePolicy != DeletePolicySkip && c.Engine.DeletePolicy != DeletePolicyRegenerate {
		return fmt.Errorf("invalid DELETE_INSTANCE_POLICY %q: want %s or %s",
			c.Engine.DeletePolicy, DeletePolicySkip, DeletePolicyRegenerate)
	}
	if _, err := cron.ParseStandard(c.Scheduler.Cron); err != nil {
		return fmt.Errorf("invalid SCHEDULER_CRON: %w", err)
	}
	if c.Scheduler.MaxRetries < 0 {
		return fmt.Errorf("invalid SCHEDULER_MAX_RETRIES: must not be negative")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
