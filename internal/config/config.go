// Пакет config — загрузка и валидация конфигурации Media Store
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Media Store.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Пользователь базы данных
	DBUser string
	// Пароль пользователя базы данных
	DBPassword string
	// Режим SSL подключения к PostgreSQL
	DBSSLMode string

	// Срок действия выдаваемых presigned URL
	PresignExpiry time.Duration
	// Максимальный размер inline-передачи в байтах
	MaxInlineSize int64

	// Размер LRU-кэша записей media
	CacheSize int
	// TTL записей кэша
	CacheTTL time.Duration

	// Максимум одновременно выполняемых цепочек bulk-батча
	BulkConcurrency int

	// Путь к директории локального file-backend'а
	LocalDataDir string
	// Квота локального file-backend'а в байтах (0 — без ограничения)
	LocalQuota int64

	// URL сервиса provenance (пустая строка — события не отправляются)
	ProvenanceURL string

	// Таймаут чтения запроса HTTP-сервером
	ReadTimeout time.Duration
	// Таймаут записи ответа HTTP-сервером
	WriteTimeout time.Duration
	// Таймаут graceful shutdown HTTP-сервера.
	// Должен быть меньше K8s terminationGracePeriodSeconds.
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// MS_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("MS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("MS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("MS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// MS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MS_LOG_LEVEL: %w", err)
	}

	// MS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// MS_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("MS_DB_HOST")
	if err != nil {
		return nil, err
	}

	// MS_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("MS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("MS_DB_PORT: %w", err)
	}

	// MS_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("MS_DB_NAME")
	if err != nil {
		return nil, err
	}

	// MS_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("MS_DB_USER")
	if err != nil {
		return nil, err
	}

	// MS_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("MS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// MS_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("MS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("MS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// MS_PRESIGN_EXPIRY — срок действия presigned URL (по умолчанию 15m)
	cfg.PresignExpiry, err = getEnvDuration("MS_PRESIGN_EXPIRY", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MS_PRESIGN_EXPIRY: %w", err)
	}

	// MS_MAX_INLINE_SIZE — максимальный размер inline-передачи (по умолчанию 32 MB)
	cfg.MaxInlineSize, err = getEnvInt64("MS_MAX_INLINE_SIZE", 33554432)
	if err != nil {
		return nil, fmt.Errorf("MS_MAX_INLINE_SIZE: %w", err)
	}
	if cfg.MaxInlineSize <= 0 {
		return nil, fmt.Errorf("MS_MAX_INLINE_SIZE: значение должно быть положительным")
	}

	// MS_CACHE_SIZE — размер LRU-кэша записей (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("MS_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("MS_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("MS_CACHE_SIZE: значение должно быть положительным")
	}

	// MS_CACHE_TTL — TTL записей кэша (по умолчанию 1m)
	cfg.CacheTTL, err = getEnvDuration("MS_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MS_CACHE_TTL: %w", err)
	}

	// MS_BULK_CONCURRENCY — параллелизм bulk-движка (по умолчанию 8)
	cfg.BulkConcurrency, err = getEnvInt("MS_BULK_CONCURRENCY", 8)
	if err != nil {
		return nil, fmt.Errorf("MS_BULK_CONCURRENCY: %w", err)
	}
	if cfg.BulkConcurrency <= 0 {
		return nil, fmt.Errorf("MS_BULK_CONCURRENCY: значение должно быть положительным")
	}

	// MS_LOCAL_DATA_DIR — директория локального backend (по умолчанию /var/lib/mediastore)
	cfg.LocalDataDir = getEnvDefault("MS_LOCAL_DATA_DIR", "/var/lib/mediastore")

	// MS_LOCAL_QUOTA — квота локального backend в байтах (по умолчанию без ограничения)
	cfg.LocalQuota, err = getEnvInt64("MS_LOCAL_QUOTA", 0)
	if err != nil {
		return nil, fmt.Errorf("MS_LOCAL_QUOTA: %w", err)
	}
	if cfg.LocalQuota < 0 {
		return nil, fmt.Errorf("MS_LOCAL_QUOTA: значение не может быть отрицательным")
	}

	// MS_PROVENANCE_URL — URL сервиса provenance (опционально)
	cfg.ProvenanceURL = getEnvDefault("MS_PROVENANCE_URL", "")

	// MS_READ_TIMEOUT — таймаут чтения запроса (по умолчанию 30s)
	cfg.ReadTimeout, err = getEnvDuration("MS_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_READ_TIMEOUT: %w", err)
	}

	// MS_WRITE_TIMEOUT — таймаут записи ответа (по умолчанию 60s).
	// Больше таймаута чтения: inline-download крупного объекта.
	cfg.WriteTimeout, err = getEnvDuration("MS_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_WRITE_TIMEOUT: %w", err)
	}

	// MS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("MS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
