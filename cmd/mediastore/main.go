// Точка входа Media Store — сервис жизненного цикла media-записей.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт репозитории, реестр PID, резолвер backend'ов, сервисный слой
// и API handlers, запускает HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/bigkaa/mediastore/internal/api/handlers"
	"github.com/bigkaa/mediastore/internal/backend"
	"github.com/bigkaa/mediastore/internal/config"
	"github.com/bigkaa/mediastore/internal/database"
	"github.com/bigkaa/mediastore/internal/locker"
	"github.com/bigkaa/mediastore/internal/provenance"
	"github.com/bigkaa/mediastore/internal/registry"
	"github.com/bigkaa/mediastore/internal/repository"
	"github.com/bigkaa/mediastore/internal/server"
	"github.com/bigkaa/mediastore/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Media Store запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Репозитории и реестр PID
	typeRepo := repository.NewIdentifierTypeRepository(pool)
	configRepo := repository.NewStoreConfigRepository(pool)
	pidRegistry := registry.New(typeRepo)
	mediaRepo := repository.NewMediaRepository(pool, pidRegistry)

	// 6. Резолвер storage backend'ов
	resolver := backend.NewResolver(configRepo, cfg.LocalDataDir, cfg.LocalQuota, logger)

	// 7. Provenance recorder (опционально)
	var recorder provenance.Recorder = provenance.NopRecorder{}
	if cfg.ProvenanceURL != "" {
		recorder = provenance.NewHTTPRecorder(cfg.ProvenanceURL, 5*time.Second, "mediastore", logger)
		logger.Info("Provenance recorder настроен", slog.String("url", cfg.ProvenanceURL))
	}

	// 8. Сервисный слой
	locks := locker.New()
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	mediaSvc := service.NewMediaService(mediaRepo, pidRegistry, configRepo, locks, cache, recorder, logger)
	transferSvc := service.NewTransferService(mediaRepo, resolver, locks, cache, recorder,
		cfg.PresignExpiry, cfg.MaxInlineSize, logger)
	bulkEngine := service.NewBulkEngine(mediaSvc, cfg.BulkConcurrency, logger)

	// 9. API handlers
	health := handlers.NewHealthHandler(database.NewReadinessChecker(pool))
	apiHandler := handlers.NewAPIHandler(health, mediaSvc, transferSvc, bulkEngine,
		configRepo, typeRepo, logger)

	// 10. HTTP-сервер с graceful shutdown
	srv := server.New(cfg, logger, apiHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
