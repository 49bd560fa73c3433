// handler.go — основной обработчик API Media Store.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/mediastore/internal/api/errors"
	"github.com/bigkaa/mediastore/internal/repository"
	"github.com/bigkaa/mediastore/internal/service"
)

// APIHandler — основной обработчик API Media Store.
type APIHandler struct {
	health   *HealthHandler
	media    *service.MediaService
	transfer *service.TransferService
	bulk     *service.BulkEngine
	configs  repository.StoreConfigRepository
	types    repository.IdentifierTypeRepository
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	media *service.MediaService,
	transfer *service.TransferService,
	bulk *service.BulkEngine,
	configs repository.StoreConfigRepository,
	types repository.IdentifierTypeRepository,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		media:    media,
		transfer: transfer,
		bulk:     bulk,
		configs:  configs,
		types:    types,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// pidFromRequest извлекает PID из пути запроса.
// PID передаётся URL-encoded сегментом (DOI содержат "/").
func pidFromRequest(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "pid")
	if raw == "" {
		return "", false
	}
	pid, err := url.PathUnescape(raw)
	if err != nil || pid == "" {
		return "", false
	}
	return pid, true
}

// writeServiceError записывает ошибку сервисного слоя в HTTP-ответ.
// Нетипизированные ошибки логируются и отдаются как 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch service.KindOf(err) {
	case service.KindDuplicatePID:
		apierrors.DuplicatePID(w, err.Error())
	case service.KindNotFound:
		apierrors.NotFound(w, err.Error())
	case service.KindInvalidPIDFormat:
		apierrors.InvalidPIDFormat(w, err.Error())
	case service.KindVersionConflict:
		apierrors.VersionConflict(w, err.Error())
	case service.KindValidation:
		apierrors.ValidationError(w, err.Error())
	case service.KindBackendUnavailable:
		apierrors.BackendUnavailable(w, err.Error())
	case service.KindQuotaExceeded:
		apierrors.QuotaExceeded(w, err.Error())
	case service.KindNotReady:
		apierrors.NotReady(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка обработки запроса",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "внутренняя ошибка сервиса")
	}
}
