// resolver.go — выбор и кэширование backend'а по StoreConfig записи.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
)

// Resolver резолвит StoreConfig записи в готовый Store.
// Учётные данные S3 подтягиваются из credential store (репозитория) и
// не покидают пакет. Инстансы backend'ов кэшируются по pk конфигурации:
// клиент MinIO и каталог бакета безопасны для конкурентного использования.
type Resolver struct {
	configs repository.StoreConfigRepository

	// localDataDir — корневой каталог для local backend'ов
	localDataDir string
	// localQuota — квота local-бакета в байтах (0 — без ограничения)
	localQuota int64

	mu     sync.RWMutex
	stores map[int64]Store

	logger *slog.Logger
}

// NewResolver создаёт резолвер backend'ов.
func NewResolver(configs repository.StoreConfigRepository, localDataDir string, localQuota int64, logger *slog.Logger) *Resolver {
	return &Resolver{
		configs:      configs,
		localDataDir: localDataDir,
		localQuota:   localQuota,
		stores:       make(map[int64]Store),
		logger:       logger.With(slog.String("component", "backend_resolver")),
	}
}

// Resolve возвращает Store для конфигурации sc.
func (r *Resolver) Resolve(ctx context.Context, sc model.StoreConfig) (Store, error) {
	r.mu.RLock()
	store, ok := r.stores[sc.PK]
	r.mu.RUnlock()
	if ok {
		return store, nil
	}

	store, err := r.build(ctx, sc)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// Конкурентный build той же конфигурации — оставляем первый инстанс.
	if existing, ok := r.stores[sc.PK]; ok {
		store = existing
	} else {
		r.stores[sc.PK] = store
	}
	r.mu.Unlock()

	return store, nil
}

// build создаёт инстанс backend'а по типу конфигурации.
func (r *Resolver) build(ctx context.Context, sc model.StoreConfig) (Store, error) {
	switch sc.Type {
	case model.StoreTypeS3:
		if sc.S3ConfigPK == nil {
			return nil, fmt.Errorf("%w: конфигурация %d типа s3 без учётных данных", ErrUnavailable, sc.PK)
		}
		creds, err := r.configs.GetS3Credentials(ctx, *sc.S3ConfigPK)
		if err != nil {
			return nil, fmt.Errorf("%w: получение учётных данных S3: %v", ErrUnavailable, err)
		}
		store, err := NewS3Store(creds.URL, creds.AccessKey, creds.SecretKey, sc.Bucket)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		r.logger.Debug("Создан S3 backend",
			slog.Int64("store_config_pk", sc.PK),
			slog.String("bucket", sc.Bucket),
		)
		return store, nil

	case model.StoreTypeLocal:
		store, err := NewLocalStore(r.localDataDir, sc.Bucket, r.localQuota)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		r.logger.Debug("Создан local backend",
			slog.Int64("store_config_pk", sc.PK),
			slog.String("bucket", sc.Bucket),
		)
		return store, nil

	default:
		return nil, fmt.Errorf("%w: неизвестный тип backend %q", ErrUnavailable, sc.Type)
	}
}
