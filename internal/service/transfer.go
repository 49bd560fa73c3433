// transfer.go — negotiator загрузки и скачивания байтов медиа-объекта.
//
// Решает, как передать байты — inline через сервис или по presigned URL
// backend'а, — и ведёт store_status записи по конечному автомату:
// PENDING → UPLOADING → STORED, с переходом в FAILED при ошибке backend'а.
//
// Блокировка PID удерживается только на время метаданных-перехода;
// исключение — синхронный inline put/get, где под блокировкой идёт и
// передача байтов (блокируются только мутации этой записи, не реестр).
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/internal/backend"
	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/locker"
	"github.com/bigkaa/mediastore/internal/provenance"
)

// Prometheus-метрики передачи байтов.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ms_uploads_total",
		Help: "Количество запросов на загрузку (по способу и результату).",
	}, []string{"mode", "status"})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ms_downloads_total",
		Help: "Количество запросов на скачивание (по способу и результату).",
	}, []string{"mode", "status"})

	transferBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ms_transfer_bytes_total",
		Help: "Количество байт, переданных через inline-путь.",
	}, []string{"direction"})

	transferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ms_transfer_duration_seconds",
		Help:    "Длительность inline-передачи байтов.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"direction"})
)

// BackendResolver — выбор backend'а по конфигурации записи
// (реализуется backend.Resolver).
type BackendResolver interface {
	Resolve(ctx context.Context, sc model.StoreConfig) (backend.Store, error)
}

// TransferService — negotiator загрузки/скачивания.
type TransferService struct {
	store    MediaStore
	resolver BackendResolver
	locks    *locker.Locker
	cache    *CacheService
	prov     provenance.Recorder

	// presignExpiry — срок действия выдаваемых presigned URL
	presignExpiry time.Duration
	// maxInlineSize — максимальный размер inline-передачи в байтах
	maxInlineSize int64

	logger *slog.Logger
}

// NewTransferService создаёт negotiator загрузки/скачивания.
func NewTransferService(
	store MediaStore,
	resolver BackendResolver,
	locks *locker.Locker,
	cache *CacheService,
	prov provenance.Recorder,
	presignExpiry time.Duration,
	maxInlineSize int64,
	logger *slog.Logger,
) *TransferService {
	return &TransferService{
		store:         store,
		resolver:      resolver,
		locks:         locks,
		cache:         cache,
		prov:          prov,
		presignExpiry: presignExpiry,
		maxInlineSize: maxInlineSize,
		logger:        logger.With(slog.String("component", "transfer_service")),
	}
}

// UploadResult — результат негоциации загрузки.
type UploadResult struct {
	// Record — запись после перехода статуса
	Record *model.MediaRecord
	// PresignedPut — URL для прямой загрузки (presigned-путь)
	PresignedPut string
}

// Upload принимает байты inline (data != nil) или выдаёт presigned PUT.
//
// Inline: под блокировкой PID байты пишутся в backend; успех —
// переход в STORED с инкрементом версии; ошибка backend'а — переход в
// FAILED, типизированная ошибка возвращается вызывающему (запись остаётся
// адресуемой для retry).
//
// Presigned: запись переводится в UPLOADING, URL выдаётся вызывающему;
// сама загрузка происходит out-of-band и подтверждается ConfirmUpload.
// Зависшие UPLOADING записи не проваливаются автоматически — это задача
// внешнего sweep job.
func (t *TransferService) Upload(ctx context.Context, pid string, data []byte, contentType string) (*UploadResult, error) {
	if data != nil {
		return t.uploadInline(ctx, pid, data, contentType)
	}
	return t.uploadPresigned(ctx, pid)
}

// uploadOutcome — лейбл результата метрики по типу ошибки.
func uploadOutcome(err error) string {
	if errors.Is(err, ErrValidation) {
		return "rejected"
	}
	return "error"
}

// checkUploadable — загрузка допустима из PENDING (первая) и FAILED (retry).
func checkUploadable(rec *model.MediaRecord) error {
	if rec.StoreStatus != model.StatusPending && rec.StoreStatus != model.StatusFailed {
		return fmt.Errorf("%w: запись в состоянии %s", ErrValidation, rec.StoreStatus)
	}
	return nil
}

// uploadInline — синхронная загрузка байтов через сервис.
func (t *TransferService) uploadInline(ctx context.Context, pid string, data []byte, contentType string) (*UploadResult, error) {
	if t.maxInlineSize > 0 && int64(len(data)) > t.maxInlineSize {
		uploadsTotal.WithLabelValues("inline", "rejected").Inc()
		return nil, fmt.Errorf("%w: размер %d байт превышает inline-максимум %d",
			ErrValidation, len(data), t.maxInlineSize)
	}

	start := time.Now()
	var updated *model.MediaRecord
	err := t.locks.WithLock(pid, func() error {
		// Снимок читается внутри секции: store_key и статус не могут
		// устареть между проверкой и записью байтов.
		rec, err := t.getFresh(ctx, pid)
		if err != nil {
			return err
		}
		if err := checkUploadable(rec); err != nil {
			return err
		}

		store, err := t.resolver.Resolve(ctx, rec.StoreConfig)
		if err != nil {
			return mapBackendError(err)
		}
		if putErr := store.PutInline(ctx, rec.StoreKey, data, contentType); putErr != nil {
			t.markFailed(ctx, rec, putErr)
			return mapBackendError(putErr)
		}

		var trErr error
		updated, trErr = t.store.UpdateStatus(ctx, rec.PID, rec.StoreStatus, model.StatusStored, true)
		if trErr != nil {
			return mapRepoError(trErr)
		}
		return nil
	})
	if err != nil {
		uploadsTotal.WithLabelValues("inline", uploadOutcome(err)).Inc()
		return nil, err
	}

	transferBytesTotal.WithLabelValues("upload").Add(float64(len(data)))
	transferDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds())
	uploadsTotal.WithLabelValues("inline", "success").Inc()

	t.cache.Set(updated.PID, updated)
	t.emit(ctx, updated.PID, provenance.ActionUpload)

	t.logger.Info("Inline-загрузка завершена",
		slog.String("pid", pid),
		slog.Int("bytes", len(data)),
		slog.Int64("version", updated.Version),
	)
	return &UploadResult{Record: updated}, nil
}

// uploadPresigned — выдача presigned PUT и переход в UPLOADING.
func (t *TransferService) uploadPresigned(ctx context.Context, pid string) (*UploadResult, error) {
	// Снимок, выбор backend'а и переход статуса — внутри секции;
	// сам presign — сетевой вызов, держать под ним секцию записи нельзя.
	var (
		updated *model.MediaRecord
		store   backend.Store
	)
	err := t.locks.WithLock(pid, func() error {
		rec, err := t.getFresh(ctx, pid)
		if err != nil {
			return err
		}
		if err := checkUploadable(rec); err != nil {
			return err
		}

		store, err = t.resolver.Resolve(ctx, rec.StoreConfig)
		if err != nil {
			return mapBackendError(err)
		}
		if !store.SupportsPresign() {
			return fmt.Errorf("%w: backend не поддерживает presigned URL", ErrValidation)
		}

		var trErr error
		updated, trErr = t.store.UpdateStatus(ctx, rec.PID, rec.StoreStatus, model.StatusUploading, false)
		return mapRepoError(trErr)
	})
	if err != nil {
		uploadsTotal.WithLabelValues("presigned", uploadOutcome(err)).Inc()
		return nil, err
	}

	url, err := store.PresignPut(ctx, updated.StoreKey, t.presignExpiry)
	if err != nil {
		// URL выдать не удалось — запись возвращается в FAILED для retry.
		t.markFailed(ctx, updated, err)
		uploadsTotal.WithLabelValues("presigned", "error").Inc()
		return nil, mapBackendError(err)
	}

	t.cache.Set(updated.PID, updated)
	uploadsTotal.WithLabelValues("presigned", "success").Inc()

	t.logger.Info("Выдан presigned PUT",
		slog.String("pid", updated.PID),
		slog.Duration("expiry", t.presignExpiry),
	)
	return &UploadResult{Record: updated, PresignedPut: url}, nil
}

// ConfirmUpload подтверждает завершение out-of-band загрузки:
// UPLOADING → STORED с инкрементом версии. Вызывается внешним триггером
// (например, webhook после успешного PUT по presigned URL).
func (t *TransferService) ConfirmUpload(ctx context.Context, pid string) (*model.MediaRecord, error) {
	var updated *model.MediaRecord
	err := t.locks.WithLock(pid, func() error {
		rec, err := t.getFresh(ctx, pid)
		if err != nil {
			return err
		}
		if rec.StoreStatus != model.StatusUploading {
			return fmt.Errorf("%w: подтверждение в состоянии %s", ErrValidation, rec.StoreStatus)
		}

		updated, err = t.store.UpdateStatus(ctx, pid, model.StatusUploading, model.StatusStored, true)
		return mapRepoError(err)
	})
	if err != nil {
		uploadsTotal.WithLabelValues("confirm", "error").Inc()
		return nil, err
	}

	t.cache.Set(pid, updated)
	t.emit(ctx, pid, provenance.ActionUpload)
	uploadsTotal.WithLabelValues("confirm", "success").Inc()
	return updated, nil
}

// DownloadResult — результат негоциации скачивания.
type DownloadResult struct {
	// Record — текущая запись media
	Record *model.MediaRecord
	// Base64 — байты объекта (inline-путь)
	Base64 string
	// PresignedGet — URL прямого скачивания (direct-путь)
	PresignedGet string
}

// Download выдаёт байты записи или presigned GET.
// Скачивание возможно только из STORED — иначе ErrNotReady.
// direct и поддержка presign у backend'а — предпочтительный путь без
// чтения байтов через сервис; иначе байты читаются inline и возвращаются
// в base64.
func (t *TransferService) Download(ctx context.Context, pid string, direct bool) (*DownloadResult, error) {
	rec, err := t.getFresh(ctx, pid)
	if err != nil {
		downloadsTotal.WithLabelValues("direct", "error").Inc()
		return nil, err
	}
	if rec.StoreStatus != model.StatusStored {
		downloadsTotal.WithLabelValues("direct", "not_ready").Inc()
		return nil, fmt.Errorf("%w: запись в состоянии %s", ErrNotReady, rec.StoreStatus)
	}

	store, err := t.resolver.Resolve(ctx, rec.StoreConfig)
	if err != nil {
		downloadsTotal.WithLabelValues("direct", "error").Inc()
		return nil, mapBackendError(err)
	}

	if direct && store.SupportsPresign() {
		url, err := store.PresignGet(ctx, rec.StoreKey, t.presignExpiry)
		if err != nil {
			downloadsTotal.WithLabelValues("direct", "error").Inc()
			return nil, mapBackendError(err)
		}
		downloadsTotal.WithLabelValues("direct", "success").Inc()
		return &DownloadResult{Record: rec, PresignedGet: url}, nil
	}

	// Inline-путь: чтение под блокировкой записи, чтобы не пересекаться
	// с конкурентной мутацией store_key.
	start := time.Now()
	var data []byte
	err = t.locks.WithLock(pid, func() error {
		var getErr error
		data, getErr = store.GetInline(ctx, rec.StoreKey)
		return getErr
	})
	if err != nil {
		if errors.Is(err, backend.ErrObjectNotFound) {
			// Байты исчезли из backend'а — запись переводится в FAILED,
			// чтобы последующие download сразу получали NotReady.
			t.markFailed(ctx, rec, err)
		}
		downloadsTotal.WithLabelValues("inline", "error").Inc()
		return nil, mapBackendError(err)
	}

	transferBytesTotal.WithLabelValues("download").Add(float64(len(data)))
	transferDuration.WithLabelValues("download").Observe(time.Since(start).Seconds())
	downloadsTotal.WithLabelValues("inline", "success").Inc()

	return &DownloadResult{
		Record: rec,
		Base64: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Delete удаляет байты из backend'а (best-effort) и помечает запись DELETED.
// Физическая строка сохраняется для provenance-потребителей.
func (t *TransferService) Delete(ctx context.Context, pid string) error {
	rec, err := t.getFresh(ctx, pid)
	if err != nil {
		return err
	}

	// Байты удаляются до метаданных: при сбое backend'а запись остаётся
	// удаляемой повторным вызовом.
	if rec.StoreStatus == model.StatusStored {
		store, err := t.resolver.Resolve(ctx, rec.StoreConfig)
		if err == nil {
			err = store.Delete(ctx, rec.StoreKey)
		}
		if err != nil && !errors.Is(err, backend.ErrObjectNotFound) {
			t.logger.Warn("Не удалось удалить объект из backend",
				slog.String("pid", pid),
				slog.String("store_key", rec.StoreKey),
				slog.String("error", err.Error()),
			)
		}
	}

	err = t.locks.WithLock(pid, func() error {
		return mapRepoError(t.store.SoftDelete(ctx, pid))
	})
	if err != nil {
		return err
	}

	t.cache.Delete(pid)
	t.emit(ctx, pid, provenance.ActionDelete)

	t.logger.Info("Запись media удалена", slog.String("pid", pid))
	return nil
}

// markFailed переводит запись в FAILED после ошибки backend'а.
// Запись уже в FAILED остаётся как есть.
func (t *TransferService) markFailed(ctx context.Context, rec *model.MediaRecord, cause error) {
	if rec.StoreStatus == model.StatusFailed {
		return
	}
	if _, err := t.store.UpdateStatus(ctx, rec.PID, rec.StoreStatus, model.StatusFailed, false); err != nil {
		t.logger.Error("Не удалось перевести запись в FAILED",
			slog.String("pid", rec.PID),
			slog.String("error", err.Error()),
		)
		return
	}
	t.cache.Delete(rec.PID)
	t.logger.Warn("Запись переведена в FAILED",
		slog.String("pid", rec.PID),
		slog.String("cause", cause.Error()),
	)
}

// getFresh читает запись мимо кэша: решения о переходах статуса
// принимаются только по актуальному состоянию.
func (t *TransferService) getFresh(ctx context.Context, pid string) (*model.MediaRecord, error) {
	rec, err := t.store.GetByPID(ctx, pid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return rec, nil
}

// emit отправляет provenance-событие best-effort.
func (t *TransferService) emit(ctx context.Context, pid string, action provenance.Action) {
	ev := provenance.Event{PID: pid, Action: action, Timestamp: time.Now().UTC()}
	if err := t.prov.RecordMutation(ctx, ev); err != nil {
		t.logger.Warn("Не удалось отправить provenance-событие",
			slog.String("pid", pid),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
	}
}
