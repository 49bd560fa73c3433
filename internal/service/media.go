// Пакет service — бизнес-логика Media Store.
// media.go — сервис жизненного цикла записей media: create, чтение,
// частичные мутации, rename, поиск по тегам.
//
// Дисциплина конкурентности: каждое read-modify-write выполняется под
// эксклюзивной секцией PID (locker) и дополнительно защищено
// compare-and-swap по version в БД — стейл-writer другого экземпляра
// сервиса получает ErrVersionConflict.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/locker"
	"github.com/bigkaa/mediastore/internal/provenance"
	"github.com/bigkaa/mediastore/internal/repository"
)

// initialVersion — версия вновь созданной записи.
const initialVersion int64 = 1

// Prometheus-метрики мутаций записей.
var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ms_media_mutations_total",
		Help: "Количество мутаций записей media (по операции и результату).",
	}, []string{"op", "status"})
)

// MediaStore — атомарные операции хранилища записей media.
// Продакшен-реализация — repository.MediaRepository; в тестах — fake.
type MediaStore interface {
	Create(ctx context.Context, rec *model.MediaRecord) error
	GetByPID(ctx context.Context, pid string) (*model.MediaRecord, error)
	UpdateCAS(ctx context.Context, rec *model.MediaRecord, expectedVersion int64) error
	UpdateStatus(ctx context.Context, pid string, from, to model.StoreStatus, bumpVersion bool) (*model.MediaRecord, error)
	Rename(ctx context.Context, oldPID string, rec *model.MediaRecord, expectedVersion int64) error
	SoftDelete(ctx context.Context, pid string) error
	SearchByTags(ctx context.Context, tags []string, limit, offset int) ([]*model.MediaRecord, int, error)
}

// PIDValidator — валидация формата PID (реализуется registry.Registry).
type PIDValidator interface {
	Validate(ctx context.Context, pid, pidType string) error
}

// MediaService — сервис жизненного цикла записей media.
type MediaService struct {
	store     MediaStore
	validator PIDValidator
	configs   repository.StoreConfigRepository
	locks     *locker.Locker
	cache     *CacheService
	prov      provenance.Recorder
	logger    *slog.Logger
}

// NewMediaService создаёт сервис записей media.
func NewMediaService(
	store MediaStore,
	validator PIDValidator,
	configs repository.StoreConfigRepository,
	locks *locker.Locker,
	cache *CacheService,
	prov provenance.Recorder,
	logger *slog.Logger,
) *MediaService {
	return &MediaService{
		store:     store,
		validator: validator,
		configs:   configs,
		locks:     locks,
		cache:     cache,
		prov:      prov,
		logger:    logger.With(slog.String("component", "media_service")),
	}
}

// StoreConfigSpec — привязка записи к backend при создании:
// либо pk существующей конфигурации, либо inline-описание.
type StoreConfigSpec struct {
	// PK — существующая конфигурация (приоритетно, если задан)
	PK *int64
	// Type, Bucket, S3URL — inline-описание (find-or-create)
	Type   string
	Bucket string
	S3URL  string
}

// CreateParams — параметры создания записи media.
type CreateParams struct {
	PID         string
	PIDType     string
	StoreConfig StoreConfigSpec
	Identifiers map[string]string
	Metadata    map[string]any
	Tags        []string
}

// Create создаёт запись media в состоянии PENDING.
// PID валидируется по шаблону типа и атомарно резервируется вместе
// с insert'ом — конкурентный create того же PID получает ErrDuplicatePID.
func (s *MediaService) Create(ctx context.Context, p CreateParams) (*model.MediaRecord, error) {
	rec, err := s.create(ctx, p)
	if err != nil {
		mutationsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	mutationsTotal.WithLabelValues("create", "success").Inc()
	return rec, nil
}

func (s *MediaService) create(ctx context.Context, p CreateParams) (*model.MediaRecord, error) {
	if err := s.validator.Validate(ctx, p.PID, p.PIDType); err != nil {
		return nil, mapRepoError(err)
	}

	sc, err := s.resolveStoreConfig(ctx, p.StoreConfig)
	if err != nil {
		return nil, err
	}

	tags, err := normalizeTags(p.Tags)
	if err != nil {
		return nil, err
	}
	identifiers, err := normalizeIdentifiers(p.Identifiers)
	if err != nil {
		return nil, err
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	rec := &model.MediaRecord{
		PID:         p.PID,
		PIDType:     p.PIDType,
		Version:     initialVersion,
		StoreConfig: *sc,
		StoreKey:    p.PID, // store_key по умолчанию равен pid
		StoreStatus: model.StatusPending,
		Identifiers: identifiers,
		Metadata:    metadata,
		Tags:        tags,
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, mapRepoError(err)
	}

	s.cache.Set(rec.PID, rec)
	s.emit(ctx, rec.PID, provenance.ActionCreate)

	s.logger.Info("Запись media создана",
		slog.String("pid", rec.PID),
		slog.String("pid_type", rec.PIDType),
		slog.Int64("store_config_pk", rec.StoreConfig.PK),
	)
	return rec, nil
}

// resolveStoreConfig возвращает конфигурацию backend по spec:
// существующую по pk либо find-or-create по inline-описанию.
func (s *MediaService) resolveStoreConfig(ctx context.Context, spec StoreConfigSpec) (*model.StoreConfig, error) {
	if spec.PK != nil {
		sc, err := s.configs.GetStoreConfig(ctx, *spec.PK)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: конфигурация backend %d не найдена", ErrValidation, *spec.PK)
			}
			return nil, err
		}
		return sc, nil
	}

	if spec.Type == "" || spec.Bucket == "" {
		return nil, fmt.Errorf("%w: store_config требует type и bucket", ErrValidation)
	}
	if spec.Type != model.StoreTypeS3 && spec.Type != model.StoreTypeLocal {
		return nil, fmt.Errorf("%w: неизвестный тип backend %q", ErrValidation, spec.Type)
	}

	sc, err := s.configs.FindStoreConfig(ctx, spec.Type, spec.Bucket, spec.S3URL)
	if err == nil {
		return sc, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// Подходящей конфигурации нет — создаём.
	sc = &model.StoreConfig{Type: spec.Type, Bucket: spec.Bucket, S3URL: spec.S3URL}
	if spec.Type == model.StoreTypeS3 {
		if spec.S3URL == "" {
			return nil, fmt.Errorf("%w: backend типа s3 требует s3_url", ErrValidation)
		}
		s3, err := s.configs.FindS3ConfigByURL(ctx, spec.S3URL)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: учётные данные S3 для %q не зарегистрированы", ErrValidation, spec.S3URL)
			}
			return nil, err
		}
		sc.S3ConfigPK = &s3.PK
	}
	if err := s.configs.CreateStoreConfig(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Get возвращает запись по PID (из кэша или хранилища).
func (s *MediaService) Get(ctx context.Context, pid string) (*model.MediaRecord, error) {
	if rec, ok := s.cache.Get(pid); ok {
		return rec, nil
	}

	rec, err := s.store.GetByPID(ctx, pid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	s.cache.Set(pid, rec)
	return rec, nil
}

// UpdateParams — общая мутация записи (подмножество полей).
type UpdateParams struct {
	PID string
	// NewPID — переименование записи (release старого PID + reserve нового)
	NewPID *string
	// PIDType — смена типа идентификатора (PID перевалидируется)
	PIDType *string
	// StoreConfig — перепривязка к другому backend
	StoreConfig *StoreConfigSpec
	// ExpectedVersion — optimistic-concurrency проверка клиента
	ExpectedVersion *int64
}

// Update применяет общую мутацию записи.
// Rename атомарен: если новый PID занят, запись не меняется.
func (s *MediaService) Update(ctx context.Context, p UpdateParams) (*model.MediaRecord, error) {
	rec, err := s.update(ctx, p)
	if err != nil {
		mutationsTotal.WithLabelValues("update", "error").Inc()
		return nil, err
	}
	mutationsTotal.WithLabelValues("update", "success").Inc()
	return rec, nil
}

func (s *MediaService) update(ctx context.Context, p UpdateParams) (*model.MediaRecord, error) {
	if p.NewPID != nil && *p.NewPID != p.PID {
		return s.rename(ctx, p)
	}

	if p.PIDType == nil && p.StoreConfig == nil {
		return s.Get(ctx, p.PID)
	}

	return s.mutate(ctx, p.PID, p.ExpectedVersion, func(rec *model.MediaRecord) error {
		return s.applyUpdate(ctx, rec, p)
	})
}

// applyUpdate накладывает PIDType/StoreConfig из параметров на запись.
func (s *MediaService) applyUpdate(ctx context.Context, rec *model.MediaRecord, p UpdateParams) error {
	if p.PIDType != nil && *p.PIDType != rec.PIDType {
		if err := s.validator.Validate(ctx, rec.PID, *p.PIDType); err != nil {
			return mapRepoError(err)
		}
		rec.PIDType = *p.PIDType
	}
	if p.StoreConfig != nil {
		sc, err := s.resolveStoreConfig(ctx, *p.StoreConfig)
		if err != nil {
			return err
		}
		rec.StoreConfig = *sc
	}
	return nil
}

// Rename переименовывает запись pid → newPID.
func (s *MediaService) Rename(ctx context.Context, pid, newPID string) (*model.MediaRecord, error) {
	return s.Update(ctx, UpdateParams{PID: pid, NewPID: &newPID})
}

// rename переносит запись на новый PID и в той же транзакции применяет
// остальные поля p. Перенос идентичности и мутация проходят как один commit
// с одной проверкой version: при любой ошибке запись остаётся на старом PID
// без изменений.
func (s *MediaService) rename(ctx context.Context, p UpdateParams) (*model.MediaRecord, error) {
	oldPID, newPID := p.PID, *p.NewPID

	// Секция старого PID; конкурентное создание записи с новым PID
	// арбитрируется резервированием в реестре внутри той же транзакции.
	s.locks.Lock(oldPID)
	defer s.locks.Unlock(oldPID)

	rec, err := s.store.GetByPID(ctx, oldPID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if p.ExpectedVersion != nil && *p.ExpectedVersion != rec.Version {
		return nil, ErrVersionConflict
	}

	if p.PIDType != nil {
		rec.PIDType = *p.PIDType
	}
	if p.StoreConfig != nil {
		sc, scErr := s.resolveStoreConfig(ctx, *p.StoreConfig)
		if scErr != nil {
			return nil, scErr
		}
		rec.StoreConfig = *sc
	}

	// Новый PID валидируется по целевому типу (а не по типу до мутации).
	if err := s.validator.Validate(ctx, newPID, rec.PIDType); err != nil {
		return nil, mapRepoError(err)
	}

	rec.PID = newPID
	if err := s.store.Rename(ctx, oldPID, rec, rec.Version); err != nil {
		return nil, mapRepoError(err)
	}

	s.cache.Delete(oldPID)
	s.cache.Set(newPID, rec)
	s.emit(ctx, newPID, provenance.ActionUpdate)

	s.logger.Info("Запись media переименована",
		slog.String("old_pid", oldPID),
		slog.String("new_pid", newPID),
	)
	return rec, nil
}

// UpdateTags полностью заменяет теги записи.
func (s *MediaService) UpdateTags(ctx context.Context, pid string, tags []string, expectedVersion *int64) (*model.MediaRecord, error) {
	return s.instrumented(ctx, "update_tags", pid, expectedVersion, func(rec *model.MediaRecord) error {
		normalized, err := normalizeTags(tags)
		if err != nil {
			return err
		}
		rec.Tags = normalized
		return nil
	})
}

// UpdateStoreKey перенаправляет запись на другой объект backend'а
// без перезагрузки байтов. Версия растёт, store_status не меняется.
func (s *MediaService) UpdateStoreKey(ctx context.Context, pid, storeKey string, expectedVersion *int64) (*model.MediaRecord, error) {
	return s.instrumented(ctx, "update_store_key", pid, expectedVersion, func(rec *model.MediaRecord) error {
		key := strings.TrimSpace(storeKey)
		if key == "" {
			return fmt.Errorf("%w: пустой store_key", ErrValidation)
		}
		rec.StoreKey = key
		return nil
	})
}

// UpdateIdentifiers выполняет key-wise upsert вторичных идентификаторов.
func (s *MediaService) UpdateIdentifiers(ctx context.Context, pid string, identifiers map[string]string, expectedVersion *int64) (*model.MediaRecord, error) {
	return s.instrumented(ctx, "update_identifiers", pid, expectedVersion, func(rec *model.MediaRecord) error {
		incoming, err := normalizeIdentifiers(identifiers)
		if err != nil {
			return err
		}
		if rec.Identifiers == nil {
			rec.Identifiers = map[string]string{}
		}
		for k, v := range incoming {
			rec.Identifiers[k] = v
		}
		return nil
	})
}

// UpdateMetadata обновляет metadata записи в двух режимах:
// keys заданы — заменяются только перечисленные ключи значениями из data;
// keys пусты — metadata заменяется на data целиком.
func (s *MediaService) UpdateMetadata(ctx context.Context, pid string, keys []string, data map[string]any, expectedVersion *int64) (*model.MediaRecord, error) {
	return s.instrumented(ctx, "update_metadata", pid, expectedVersion, func(rec *model.MediaRecord) error {
		if data == nil {
			data = map[string]any{}
		}
		if len(keys) == 0 {
			rec.Metadata = data
			return nil
		}
		if rec.Metadata == nil {
			rec.Metadata = map[string]any{}
		}
		for _, k := range keys {
			v, ok := data[k]
			if !ok {
				return fmt.Errorf("%w: ключ %q отсутствует в data", ErrValidation, k)
			}
			rec.Metadata[k] = v
		}
		return nil
	})
}

// SearchByTags возвращает записи, содержащие все указанные теги.
func (s *MediaService) SearchByTags(ctx context.Context, tags []string, limit, offset int) ([]*model.MediaRecord, int, error) {
	normalized, err := normalizeTags(tags)
	if err != nil {
		return nil, 0, err
	}
	recs, total, err := s.store.SearchByTags(ctx, normalized, limit, offset)
	if err != nil {
		return nil, 0, mapRepoError(err)
	}
	return recs, total, nil
}

// instrumented оборачивает mutate метрикой операции.
func (s *MediaService) instrumented(ctx context.Context, op, pid string, expectedVersion *int64, fn func(*model.MediaRecord) error) (*model.MediaRecord, error) {
	rec, err := s.mutate(ctx, pid, expectedVersion, fn)
	if err != nil {
		mutationsTotal.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	mutationsTotal.WithLabelValues(op, "success").Inc()
	return rec, nil
}

// mutate — общий read-modify-write одной записи: эксклюзивная секция PID,
// чтение актуальной версии из хранилища (мимо кэша), применение fn,
// запись через CAS. expectedVersion — необязательная клиентская проверка.
func (s *MediaService) mutate(ctx context.Context, pid string, expectedVersion *int64, fn func(*model.MediaRecord) error) (*model.MediaRecord, error) {
	s.locks.Lock(pid)
	defer s.locks.Unlock(pid)

	rec, err := s.store.GetByPID(ctx, pid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if expectedVersion != nil && *expectedVersion != rec.Version {
		return nil, ErrVersionConflict
	}

	if err := fn(rec); err != nil {
		return nil, err
	}

	if err := s.store.UpdateCAS(ctx, rec, rec.Version); err != nil {
		return nil, mapRepoError(err)
	}

	s.cache.Set(pid, rec)
	s.emit(ctx, pid, provenance.ActionUpdate)
	return rec, nil
}

// emit отправляет provenance-событие best-effort.
func (s *MediaService) emit(ctx context.Context, pid string, action provenance.Action) {
	ev := provenance.Event{PID: pid, Action: action, Timestamp: time.Now().UTC()}
	if err := s.prov.RecordMutation(ctx, ev); err != nil {
		s.logger.Warn("Не удалось отправить provenance-событие",
			slog.String("pid", pid),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
	}
}

// normalizeTags приводит теги к множеству: trim, отбрасывание пустых,
// дедупликация с сохранением порядка первого вхождения. Case-sensitive.
func normalizeTags(tags []string) ([]string, error) {
	result := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: пустой тег", ErrValidation)
		}
		if seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		result = append(result, trimmed)
	}
	return result, nil
}

// normalizeIdentifiers тримит ключи и значения, отклоняет пустые ключи.
func normalizeIdentifiers(identifiers map[string]string) (map[string]string, error) {
	result := make(map[string]string, len(identifiers))
	for k, v := range identifiers {
		key := strings.TrimSpace(k)
		if key == "" {
			return nil, fmt.Errorf("%w: пустой ключ идентификатора", ErrValidation)
		}
		if _, dup := result[key]; dup {
			return nil, fmt.Errorf("%w: дублирующийся ключ идентификатора %q", ErrValidation, key)
		}
		result[key] = strings.TrimSpace(v)
	}
	return result, nil
}
