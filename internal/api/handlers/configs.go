// configs.go — обработчики /api/v1/store-configs, /api/v1/s3-configs
// и /api/v1/identifier-types endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/mediastore/internal/api/errors"
	"github.com/bigkaa/mediastore/internal/api/schema"
	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
)

// CreateStoreConfig — POST /api/v1/store-configs.
func (h *APIHandler) CreateStoreConfig(w http.ResponseWriter, r *http.Request) {
	var req schema.StoreConfigCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.Type != model.StoreTypeS3 && req.Type != model.StoreTypeLocal {
		apierrors.ValidationError(w, "Поле type должно быть s3 или local")
		return
	}
	if req.Bucket == "" {
		apierrors.ValidationError(w, "Поле bucket обязательно")
		return
	}

	sc := &model.StoreConfig{Type: req.Type, Bucket: req.Bucket, S3URL: req.S3URL}
	if req.Type == model.StoreTypeS3 {
		if req.S3URL == "" {
			apierrors.ValidationError(w, "Для type=s3 поле s3_url обязательно")
			return
		}
		s3, err := h.configs.FindS3ConfigByURL(r.Context(), req.S3URL)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				apierrors.ValidationError(w, "Учётные данные S3 для указанного url не зарегистрированы")
				return
			}
			h.writeServiceError(w, err)
			return
		}
		sc.S3ConfigPK = &s3.PK
	}

	if err := h.configs.CreateStoreConfig(r.Context(), sc); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, schema.StoreConfigFromModel(*sc))
}

// GetStoreConfig — GET /api/v1/store-configs/{pk}.
func (h *APIHandler) GetStoreConfig(w http.ResponseWriter, r *http.Request) {
	pk, err := strconv.ParseInt(chi.URLParam(r, "pk"), 10, 64)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный pk в пути запроса")
		return
	}

	sc, err := h.configs.GetStoreConfig(r.Context(), pk)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, "Конфигурация backend не найдена")
			return
		}
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.StoreConfigFromModel(*sc))
}

// ListStoreConfigs — GET /api/v1/store-configs.
func (h *APIHandler) ListStoreConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.configs.ListStoreConfigs(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]schema.StoreConfig, 0, len(configs))
	for _, sc := range configs {
		items = append(items, schema.StoreConfigFromModel(*sc))
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateS3Config — POST /api/v1/s3-configs.
// Регистрация учётных данных S3-backend'а. В ответе секреты отсутствуют.
func (h *APIHandler) CreateS3Config(w http.ResponseWriter, r *http.Request) {
	var req schema.S3ConfigCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.URL == "" || req.AccessKey == "" || req.SecretKey == "" {
		apierrors.ValidationError(w, "Поля url, access_key и secret_key обязательны")
		return
	}

	s3 := &model.S3Config{URL: req.URL, AccessKey: req.AccessKey, SecretKey: req.SecretKey}
	if err := h.configs.CreateS3Config(r.Context(), s3); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			apierrors.WriteError(w, http.StatusConflict, apierrors.CodeValidationError,
				"Учётные данные для указанного url уже зарегистрированы")
			return
		}
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, schema.S3ConfigFromModel(s3))
}

// ListS3Configs — GET /api/v1/s3-configs.
// Список s3-конфигураций без секретов.
func (h *APIHandler) ListS3Configs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.configs.ListS3Configs(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]schema.S3ConfigSansKeys, 0, len(configs))
	for _, s3 := range configs {
		items = append(items, schema.S3ConfigFromModel(s3))
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateIdentifierType — POST /api/v1/identifier-types.
func (h *APIHandler) CreateIdentifierType(w http.ResponseWriter, r *http.Request) {
	var req schema.IdentifierType
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.Name == "" {
		apierrors.ValidationError(w, "Поле name обязательно")
		return
	}

	it := &model.IdentifierType{Name: req.Name, Pattern: req.Pattern}
	if err := h.types.Create(r.Context(), it); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			apierrors.WriteError(w, http.StatusConflict, apierrors.CodeValidationError,
				"Тип идентификатора с таким именем уже существует")
			return
		}
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, schema.IdentifierTypeFromModel(it))
}

// GetIdentifierType — GET /api/v1/identifier-types/{name}.
func (h *APIHandler) GetIdentifierType(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		apierrors.ValidationError(w, "Некорректный name в пути запроса")
		return
	}

	it, err := h.types.GetByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, "Тип идентификатора не найден")
			return
		}
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schema.IdentifierTypeFromModel(it))
}

// ListIdentifierTypes — GET /api/v1/identifier-types.
func (h *APIHandler) ListIdentifierTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.types.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]schema.IdentifierType, 0, len(types))
	for _, it := range types {
		items = append(items, schema.IdentifierTypeFromModel(it))
	}
	writeJSON(w, http.StatusOK, items)
}
