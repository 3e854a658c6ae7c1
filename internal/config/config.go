// Package config loads process configuration from the environment (with an
// optional .env file) and seminar settings from an optional YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds infrastructure settings for the binaries.
type Config struct {
	Env       string
	Addr      string
	LogFormat string

	Database DatabaseConfig

	RedisURL string

	KafkaBroker   string
	KafkaTopic    string
	KafkaGroupID  string
	KafkaUsername string
	KafkaPassword string

	SMTP SMTPConfig

	SettingsFile string

	// AdminUsername and AdminEmail name the account granted the admin
	// system role on server start. Empty disables the bootstrap.
	AdminUsername string
	AdminEmail    string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// SMTPConfig holds outgoing mail settings. Mail delivery is disabled
// when Host is empty.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Load reads configuration from the environment. Outside production a
// .env file in the working directory is loaded first; a missing file is
// not an error.
func Load() Config {
	if os.Getenv("ENV") != "prod" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			slog.Warn(".env not loaded", "err", err)
		}
	}

	return Config{
		Env:       getEnv("ENV", "dev"),
		Addr:      ":" + getEnv("PORT", "8080"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "seminar"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisURL:      getEnv("REDIS_URL", ""),
		KafkaBroker:   getEnv("KAFKA_BROKER", ""),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "seminar.mail"),
		KafkaGroupID:  getEnv("KAFKA_GROUP_ID", "seminar-mailer"),
		KafkaUsername: getEnv("KAFKA_USERNAME", ""),
		KafkaPassword: getEnv("KAFKA_PASSWORD", ""),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
			FromName: getEnv("SMTP_FROM_NAME", "Seminar"),
		},
		SettingsFile:  getEnv("SETTINGS_FILE", ""),
		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
	}
}

// NewLogger builds the process logger. format is "json" or "text".
func NewLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// lookupInt returns (value, true) when key is set to a valid integer.
func lookupInt(key string) (int, bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}
