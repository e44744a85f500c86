// Package appdir управляет директорией приложения с XDG-совместимыми путями.
package appdir

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/udisondev/vcalc/pkg/credentials"
)

const appName = "vcalc"

//go:embed default_config.yaml
var defaultConfig []byte

// DefaultConfig возвращает содержимое конфига, который создаёт Init.
func DefaultConfig() []byte {
	return defaultConfig
}

// Dir возвращает путь к директории приложения.
// Linux: ~/.config/vcalc
// macOS: ~/Library/Application Support/vcalc
// Windows: %AppData%\vcalc
func Dir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// ConfigPath возвращает путь к файлу конфигурации.
func ConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// CredentialsPath возвращает путь к базе пользователей.
func CredentialsPath() string {
	return filepath.Join(Dir(), "vcalc.conf")
}

// CertsDir возвращает путь к директории сертификатов.
func CertsDir() string {
	return filepath.Join(Dir(), "certs")
}

// LogsDir возвращает путь к директории логов.
func LogsDir() string {
	return filepath.Join(Dir(), "logs")
}

// CertPath возвращает путь к файлу сертификата.
func CertPath() string {
	return filepath.Join(CertsDir(), "server.crt")
}

// KeyPath возвращает путь к файлу ключа.
func KeyPath() string {
	return filepath.Join(CertsDir(), "server.key")
}

// LogFilePath возвращает путь к файлу логов.
func LogFilePath() string {
	return filepath.Join(LogsDir(), "vcalc.log")
}

// Init инициализирует директорию приложения.
// Создаёт все необходимые поддиректории, дефолтный конфиг,
// пустую базу пользователей и сертификаты для опционального TLS.
func Init() error {
	// Создаём директории
	dirs := []string{Dir(), CertsDir(), LogsDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	// Создаём дефолтный конфиг если его нет
	if err := ensureDefaultConfig(); err != nil {
		return fmt.Errorf("ensure default config: %w", err)
	}

	// Создаём пустую базу пользователей если её нет
	if err := ensureCredentials(); err != nil {
		return fmt.Errorf("ensure credentials: %w", err)
	}

	// Генерируем сертификаты если их нет
	if err := ensureCerts(); err != nil {
		return fmt.Errorf("ensure certificates: %w", err)
	}

	return nil
}

// ensureDefaultConfig создаёт дефолтный конфиг если его нет.
func ensureDefaultConfig() error {
	configPath := ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		// Конфиг уже существует
		return nil
	}

	if err := os.WriteFile(configPath, defaultConfig, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// ensureCredentials создаёт пустую базу пользователей если её нет.
func ensureCredentials() error {
	path := CredentialsPath()

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return credentials.WriteFile(path, nil)
}

// ensureCerts генерирует сертификаты если их нет.
func ensureCerts() error {
	certPath := CertPath()
	keyPath := KeyPath()

	// Проверяем существование обоих файлов
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)

	if certErr == nil && keyErr == nil {
		// Оба файла существуют
		return nil
	}

	// Генерируем новые сертификаты
	_, err := GenerateCert(certPath, keyPath, CertValidity)
	return err
}
