package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"MS_DB_HOST":     "localhost",
		"MS_DB_NAME":     "mediastore",
		"MS_DB_USER":     "mediastore",
		"MS_DB_PASSWORD": "secret",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.PresignExpiry != 15*time.Minute {
		t.Errorf("PresignExpiry = %v, ожидается 15m", cfg.PresignExpiry)
	}
	if cfg.MaxInlineSize != 33554432 {
		t.Errorf("MaxInlineSize = %d, ожидается 32 MB", cfg.MaxInlineSize)
	}
	if cfg.CacheSize != 1024 {
		t.Errorf("CacheSize = %d, ожидается 1024", cfg.CacheSize)
	}
	if cfg.BulkConcurrency != 8 {
		t.Errorf("BulkConcurrency = %d, ожидается 8", cfg.BulkConcurrency)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	envs := minimalEnvs()
	delete(envs, "MS_DB_HOST")
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() должен вернуть ошибку при отсутствии MS_DB_HOST")
	}
	if !strings.Contains(err.Error(), "MS_DB_HOST") {
		t.Errorf("ошибка %q не называет MS_DB_HOST", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	envs := minimalEnvs()
	envs["MS_PORT"] = "9090"
	envs["MS_LOG_LEVEL"] = "debug"
	envs["MS_LOG_FORMAT"] = "text"
	envs["MS_PRESIGN_EXPIRY"] = "1h"
	envs["MS_BULK_CONCURRENCY"] = "16"
	envs["MS_CACHE_TTL"] = "30s"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.PresignExpiry != time.Hour {
		t.Errorf("PresignExpiry = %v, ожидается 1h", cfg.PresignExpiry)
	}
	if cfg.BulkConcurrency != 16 {
		t.Errorf("BulkConcurrency = %d, ожидается 16", cfg.BulkConcurrency)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v, ожидается 30s", cfg.CacheTTL)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"порт вне диапазона", "MS_PORT", "70000"},
		{"порт не число", "MS_PORT", "http"},
		{"неизвестный уровень логов", "MS_LOG_LEVEL", "verbose"},
		{"неизвестный формат логов", "MS_LOG_FORMAT", "xml"},
		{"неизвестный ssl mode", "MS_DB_SSL_MODE", "maybe"},
		{"отрицательный inline-лимит", "MS_MAX_INLINE_SIZE", "-1"},
		{"нулевой размер кэша", "MS_CACHE_SIZE", "0"},
		{"некорректная длительность", "MS_PRESIGN_EXPIRY", "fifteen minutes"},
		{"нулевой параллелизм", "MS_BULK_CONCURRENCY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.val
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() должен вернуть ошибку для %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.local",
		DBPort:     5433,
		DBName:     "media",
		DBUser:     "svc",
		DBPassword: "pw",
		DBSSLMode:  "require",
	}
	want := "host=db.local port=5433 dbname=media user=svc password=pw sslmode=require"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
}
