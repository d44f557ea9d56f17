package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"approvalflow/internal/workflow"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the process configuration, sourced from configs/.env and the environment
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	Port        string
	GinMode     string
	JWTSecret   string
	CORSOrigins []string

	LogLevel  string
	LogPretty bool

	MonitorInterval time.Duration
	SweepTimeout    time.Duration
	CancelWindow    time.Duration

	TraceEnabled bool
	TraceOutput  string
}

const devJWTSecret = "default_super_secret_key" // Development fallback only

// Load reads envFile (ignored when missing) and then the process environment
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Str("file", envFile).Msg("No env file found or error loading it")
		}
	}

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "postgres"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		Port:        getEnv("PORT", "8080"),
		GinMode:     os.Getenv("GIN_MODE"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getBool("LOG_PRETTY", false),

		MonitorInterval: getDuration("MONITOR_INTERVAL", 5*time.Minute),
		SweepTimeout:    getDuration("SWEEP_TIMEOUT", 30*time.Second),
		CancelWindow:    getDuration("CANCEL_WINDOW", workflow.DefaultCancelWindow),

		TraceEnabled: getBool("TRACE_ENABLED", false),
		TraceOutput:  os.Getenv("TRACE_OUTPUT"),
	}

	if cfg.JWTSecret == "" {
		if cfg.GinMode == "release" {
			return nil, errors.New("JWT_SECRET environment variable is required in release mode")
		}
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

// DSN builds the postgres connection URL
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSslMode
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Dur("default", fallback).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
