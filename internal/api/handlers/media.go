// media.go — обработчики /api/v1/media endpoints.
// Жизненный цикл записей: создание, чтение, мутации, поиск, bulk.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/bigkaa/mediastore/internal/api/errors"
	"github.com/bigkaa/mediastore/internal/api/schema"
	"github.com/bigkaa/mediastore/internal/service"
)

// storeConfigSpec конвертирует DTO-ссылку на конфигурацию backend
// в сервисный spec.
func storeConfigSpec(ref schema.StoreConfigRef) service.StoreConfigSpec {
	if ref.PK != nil {
		return service.StoreConfigSpec{PK: ref.PK}
	}
	if ref.Inline != nil {
		return service.StoreConfigSpec{
			Type:   ref.Inline.Type,
			Bucket: ref.Inline.Bucket,
			S3URL:  ref.Inline.S3URL,
		}
	}
	return service.StoreConfigSpec{}
}

// CreateMedia — POST /api/v1/media.
// Создание записи в состоянии PENDING.
func (h *APIHandler) CreateMedia(w http.ResponseWriter, r *http.Request) {
	var req schema.MediaCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.PID == "" {
		apierrors.ValidationError(w, "Поле pid обязательно")
		return
	}
	if req.PIDType == "" {
		apierrors.ValidationError(w, "Поле pid_type обязательно")
		return
	}

	rec, err := h.media.Create(r.Context(), service.CreateParams{
		PID:         req.PID,
		PIDType:     req.PIDType,
		StoreConfig: storeConfigSpec(req.StoreConfig),
		Identifiers: req.Identifiers,
		Metadata:    req.Metadata,
		Tags:        req.Tags,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, schema.MediaFromModel(rec))
}

// GetMedia — GET /api/v1/media/{pid}.
func (h *APIHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidFromRequest(r)
	if !ok {
		apierrors.ValidationError(w, "Некорректный pid в пути запроса")
		return
	}

	rec, err := h.media.Get(r.Context(), pid)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.MediaFromModel(rec))
}

// UpdateMedia — PATCH /api/v1/media/{pid}.
// Общая мутация: rename, смена типа идентификатора, перепривязка backend.
func (h *APIHandler) UpdateMedia(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidFromRequest(r)
	if !ok {
		apierrors.ValidationError(w, "Некорректный pid в пути запроса")
		return
	}

	var req schema.MediaUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	version, err := schema.ParseVersionPtr(req.Version)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	params := service.UpdateParams{
		PID:             pid,
		NewPID:          req.NewPID,
		PIDType:         req.PIDType,
		ExpectedVersion: version,
	}
	if req.StoreConfig != nil {
		spec := storeConfigSpec(*req.StoreConfig)
		params.StoreConfig = &spec
	}

	rec, err := h.media.Update(r.Context(), params)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.MediaFromModel(rec))
}

// DeleteMedia — DELETE /api/v1/media/{pid}.
// Мягкое удаление: байты удаляются из backend'а, запись помечается
// DELETED, PID освобождается.
func (h *APIHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidFromRequest(r)
	if !ok {
		apierrors.ValidationError(w, "Некорректный pid в пути запроса")
		return
	}

	if err := h.transfer.Delete(r.Context(), pid); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateMediaTags — PATCH /api/v1/media/{pid}/tags.
func (h *APIHandler) UpdateMediaTags(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidFromRequest(r)
	if !ok {
		apierrors.ValidationError(w, "Некорректный pid в пути запроса")
		return
	}

	var req schema.MediaUpdateTags
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	version, err := schema.ParseVersionPtr(req.Version)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rec, err := h.media.UpdateTags(r.Context(), pid, req.Tags, version)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.MediaFromModel(rec))
}

// UpdateMediaStoreKey — PATCH /api/v1/media/{pid}/store-key.
func (h *APIHandler) UpdateMediaStoreKey(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidFromRequest(r)
	if !ok {
		apierrors.ValidationError(w, "Некорректный pid в пути запроса")
		return
	}

	var req schema.MediaUpdateStoreKey
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	version, err := schema.ParseVersionPtr(req.Version)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rec, err := h.media.UpdateStoreKey(r.Context(), pid, req.StoreKey, version)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.MediaFromModel(rec))
}

// UpdateMediaIdentifiers — PATCH /api/v1/media/{pid}/identifiers.
// Key-wise upsert: отсутствующие во входе ключи сохраняются.
func (h *APIHandler) UpdateMediaIdentifiers(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidFromRequest(r)
	if !ok {
		apierrors.ValidationError(w, "Некорректный pid в пути запроса")
		return
	}

	var req schema.MediaUpdateIdentifiers
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	version, err := schema.ParseVersionPtr(req.Version)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rec, err := h.media.UpdateIdentifiers(r.Context(), pid, req.Identifiers, version)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.MediaFromModel(rec))
}

// UpdateMediaMetadata — PATCH /api/v1/media/{pid}/metadata.
func (h *APIHandler) UpdateMediaMetadata(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidFromRequest(r)
	if !ok {
		apierrors.ValidationError(w, "Некорректный pid в пути запроса")
		return
	}

	var req schema.MediaUpdateMetadata
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	version, err := schema.ParseVersionPtr(req.Version)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rec, err := h.media.UpdateMetadata(r.Context(), pid, req.Keys, req.Data, version)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.MediaFromModel(rec))
}

// SearchMedia — POST /api/v1/media/search.
// Поиск записей, содержащих все указанные теги.
func (h *APIHandler) SearchMedia(w http.ResponseWriter, r *http.Request) {
	var req schema.MediaSearch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if len(req.Tags) == 0 {
		apierrors.ValidationError(w, "Поле tags обязательно")
		return
	}

	limit := req.Limit
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	recs, total, err := h.media.SearchByTags(r.Context(), req.Tags, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.MediaSearchResponse{
		Items: schema.MediaListFromModel(recs),
		Total: total,
	})
}

// BulkUpdate — POST /api/v1/media/bulk.
// Батч мутаций: элементы одного PID выполняются последовательно,
// разные PID — параллельно.
func (h *APIHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req schema.BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	requests := make([]service.MutationRequest, 0, len(req.Items))
	for _, item := range req.Items {
		version, err := schema.ParseVersionPtr(item.Version)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		mr := service.MutationRequest{
			Op:              service.MutationOp(item.Op),
			PID:             item.PID,
			ExpectedVersion: version,
			NewPID:          item.NewPID,
			PIDType:         item.PIDType,
			Tags:            item.Tags,
			StoreKey:        item.StoreKey,
			Identifiers:     item.Identifiers,
			MetadataKeys:    item.Keys,
			MetadataData:    item.Data,
		}
		if item.StoreConfig != nil {
			spec := storeConfigSpec(*item.StoreConfig)
			mr.StoreConfig = &spec
		}
		requests = append(requests, mr)
	}

	result, err := h.bulk.Apply(r.Context(), requests)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := schema.BulkUpdateResponse{
		Successes: result.Successes,
		Failures:  make([]schema.MediaError, 0, len(result.Failures)),
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, schema.MediaError{
			PID:   f.PID,
			Error: string(f.Kind),
			Msg:   f.Message,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
