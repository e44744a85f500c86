// Package config реализует загрузку конфигурации.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/udisondev/vcalc/pkg/credentials"
)

// Config конфигурация сервера.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	TLS         TLSConfig         `yaml:"tls"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Events      EventsConfig      `yaml:"events"`
	Limits      LimitsConfig      `yaml:"limits"`
	Log         LogConfig         `yaml:"log"`

	// Ready закрывается когда сервер полностью готов к приёму соединений.
	// Опциональное поле, используется для тестов.
	Ready chan struct{} `yaml:"-"`
}

// ServerConfig конфигурация TCP сервера.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr возвращает адрес сервера в формате host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TLSConfig конфигурация TLS.
// TLS выключен, если CertFile пустой: существующие клиенты работают по голому TCP.
type TLSConfig struct {
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"`
}

// Enabled сообщает, включён ли TLS.
func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

// CredentialsConfig конфигурация базы пользователей.
type CredentialsConfig struct {
	File  string            `yaml:"file"`
	Index credentials.Index `yaml:"index"`
}

// EventsConfig конфигурация публикации событий в NATS.
// Публикация выключена, если URLs пустой.
type EventsConfig struct {
	URLs          []string      `yaml:"urls"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
	MaxReconnects int           `yaml:"max_reconnects"`
}

// Enabled сообщает, включена ли публикация событий.
func (c EventsConfig) Enabled() bool {
	return len(c.URLs) > 0
}

// LimitsConfig конфигурация лимитов.
type LimitsConfig struct {
	MaxConnections  int           `yaml:"max_connections"`
	MaxVectorLen    int           `yaml:"max_vector_len"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"` // 0 = без ограничения
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	AuthTimeout     time.Duration `yaml:"auth_timeout"` // 0 = без таймаута
	IOTimeout       time.Duration `yaml:"io_timeout"`   // 0 = без таймаута
}

// LogConfig конфигурация логирования.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"` // путь к файлу логов (пустой = stdout)
}

// Validate проверяет корректность конфигурации.
func (c *Config) Validate() error {
	var errs []error

	// Server
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}

	// TLS
	if c.TLS.Enabled() {
		if c.TLS.CertFile == "" {
			errs = append(errs, fmt.Errorf("tls.cert_file is required when tls.key_file is set"))
		} else if _, err := os.Stat(c.TLS.CertFile); err != nil {
			errs = append(errs, fmt.Errorf("tls.cert_file: %w", err))
		}
		if c.TLS.KeyFile == "" {
			errs = append(errs, fmt.Errorf("tls.key_file is required when tls.cert_file is set"))
		} else if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			errs = append(errs, fmt.Errorf("tls.key_file: %w", err))
		}
	}
	switch c.TLS.MinVersion {
	case "", "1.2", "1.3":
	default:
		errs = append(errs, fmt.Errorf("tls.min_version must be 1.2 or 1.3, got %q", c.TLS.MinVersion))
	}

	// Credentials
	if c.Credentials.File == "" {
		errs = append(errs, fmt.Errorf("credentials.file is required"))
	}
	switch c.Credentials.Index {
	case credentials.IndexLinear, credentials.IndexIndexed:
	default:
		errs = append(errs, fmt.Errorf("credentials.index must be %q or %q, got %q",
			credentials.IndexLinear, credentials.IndexIndexed, c.Credentials.Index))
	}

	// Events
	if c.Events.Enabled() && c.Events.ReconnectWait < 0 {
		errs = append(errs, fmt.Errorf("events.reconnect_wait must not be negative"))
	}

	// Limits
	if c.Limits.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("limits.max_connections must be positive"))
	}
	if c.Limits.MaxVectorLen < 1 {
		errs = append(errs, fmt.Errorf("limits.max_vector_len must be positive"))
	}
	if c.Limits.RateLimitPerSec < 0 {
		errs = append(errs, fmt.Errorf("limits.rate_limit_per_sec must not be negative"))
	}
	if c.Limits.RateLimitPerSec > 0 && c.Limits.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("limits.rate_limit_burst must be positive"))
	}
	if c.Limits.AuthTimeout < 0 {
		errs = append(errs, fmt.Errorf("limits.auth_timeout must not be negative"))
	}
	if c.Limits.IOTimeout < 0 {
		errs = append(errs, fmt.Errorf("limits.io_timeout must not be negative"))
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 33333,
		},
		TLS: TLSConfig{
			MinVersion: "1.2",
		},
		Credentials: CredentialsConfig{
			Index: credentials.IndexLinear,
		},
		Events: EventsConfig{
			ReconnectWait: 2 * time.Second,
			MaxReconnects: -1,
		},
		Limits: LimitsConfig{
			MaxConnections:  100,
			MaxVectorLen:    1 << 20,
			RateLimitPerSec: 10000,
			RateLimitBurst:  1000,
			AuthTimeout:     10 * time.Second,
			IOTimeout:       60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
