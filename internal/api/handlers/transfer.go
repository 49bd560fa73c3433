// transfer.go — обработчики загрузки и скачивания байтов.
// POST /api/v1/media/{pid}/upload, /upload/confirm; GET /download.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	apierrors "github.com/bigkaa/mediastore/internal/api/errors"
	"github.com/bigkaa/mediastore/internal/api/schema"
	"github.com/bigkaa/mediastore/internal/service"
)

// UploadMedia — POST /api/v1/media/upload.
// Комбинированная операция: создание записи (если её ещё нет) и
// негоциация загрузки. base64 задан — байты пишутся inline, запись
// переходит в STORED; иначе выдаётся presigned PUT и запись переходит
// в UPLOADING. Существующая запись в PENDING/FAILED — retry загрузки.
func (h *APIHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	var req schema.UploadInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.MediaData.PID == "" {
		apierrors.ValidationError(w, "Поле mediadata.pid обязательно")
		return
	}

	// Создаём запись; занятый PID — retry существующей записи
	// (допустимость состояния проверяет сервис передачи).
	_, err := h.media.Create(r.Context(), service.CreateParams{
		PID:         req.MediaData.PID,
		PIDType:     req.MediaData.PIDType,
		StoreConfig: storeConfigSpec(req.MediaData.StoreConfig),
		Identifiers: req.MediaData.Identifiers,
		Metadata:    req.MediaData.Metadata,
		Tags:        req.MediaData.Tags,
	})
	if err != nil && !errors.Is(err, service.ErrDuplicatePID) {
		h.writeServiceError(w, err)
		return
	}

	var data []byte
	if req.Base64 != "" {
		data, err = base64.StdEncoding.DecodeString(req.Base64)
		if err != nil {
			apierrors.ValidationError(w, "Некорректный base64: "+err.Error())
			return
		}
	}

	res, err := h.transfer.Upload(r.Context(), req.MediaData.PID, data, req.ContentType)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	media := schema.MediaFromModel(res.Record)
	writeJSON(w, http.StatusOK, schema.UploadOutput{
		Status:       media.StoreStatus,
		Media:        &media,
		PresignedPut: res.PresignedPut,
	})
}

// ConfirmUpload — POST /api/v1/media/{pid}/upload/confirm.
// Подтверждение завершения out-of-band загрузки: UPLOADING → STORED.
func (h *APIHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidFromRequest(r)
	if !ok {
		apierrors.ValidationError(w, "Некорректный pid в пути запроса")
		return
	}

	rec, err := h.transfer.ConfirmUpload(r.Context(), pid)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	media := schema.MediaFromModel(rec)
	writeJSON(w, http.StatusOK, schema.UploadOutput{
		Status: media.StoreStatus,
		Media:  &media,
	})
}

// DownloadMedia — GET /api/v1/media/{pid}/download.
// Скачивание байтов: presigned GET (direct=true, по умолчанию) либо
// inline base64. Запись не в STORED — 409 NOT_READY.
func (h *APIHandler) DownloadMedia(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidFromRequest(r)
	if !ok {
		apierrors.ValidationError(w, "Некорректный pid в пути запроса")
		return
	}

	direct := true
	if v := r.URL.Query().Get("direct"); v == "false" || v == "0" {
		direct = false
	}

	res, err := h.transfer.Download(r.Context(), pid, direct)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.DownloadOutput{
		MediaData:    schema.MediaFromModel(res.Record),
		Base64:       res.Base64,
		PresignedGet: res.PresignedGet,
	})
}
