package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("42")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if v == nil || *v != 42 {
		t.Errorf("ParseVersion(42) = %v", v)
	}

	v, err = ParseVersion("")
	if err != nil || v != nil {
		t.Errorf("пустой токен должен давать nil без ошибки: %v, %v", v, err)
	}

	if _, err := ParseVersion("not-a-number"); err == nil {
		t.Error("ожидалась ошибка для нечислового токена")
	}
}

func TestStoreConfigRefUnmarshal(t *testing.T) {
	// Число — ссылка на существующую конфигурацию.
	var ref StoreConfigRef
	if err := json.Unmarshal([]byte(`7`), &ref); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if ref.PK == nil || *ref.PK != 7 || ref.Inline != nil {
		t.Errorf("ссылка по pk: %+v", ref)
	}

	// Объект — inline-описание.
	ref = StoreConfigRef{}
	err := json.Unmarshal([]byte(`{"type":"s3","bucket":"media","s3_url":"https://s3.test"}`), &ref)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if ref.Inline == nil || ref.PK != nil {
		t.Fatalf("inline-описание: %+v", ref)
	}
	if ref.Inline.Type != "s3" || ref.Inline.Bucket != "media" || ref.Inline.S3URL != "https://s3.test" {
		t.Errorf("inline-описание: %+v", ref.Inline)
	}
}

func TestMediaFromModelDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &model.MediaRecord{
		PK:          1,
		PID:         "urn:x",
		PIDType:     "free",
		Version:     3,
		StoreConfig: model.StoreConfig{PK: 2, Type: model.StoreTypeLocal, Bucket: "b"},
		StoreKey:    "urn:x",
		StoreStatus: model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	dto := MediaFromModel(rec)
	if dto.Version != "3" {
		t.Errorf("версия = %q, ожидался строковый токен \"3\"", dto.Version)
	}
	// nil-коллекции сериализуются как {} и [], не как null.
	if dto.Identifiers == nil || dto.Metadata == nil || dto.Tags == nil {
		t.Error("коллекции DTO должны быть инициализированы")
	}
	if dto.CreatedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("created_at = %q", dto.CreatedAt)
	}

	raw, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("сериализация DTO: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("обратный разбор DTO: %v", err)
	}
	if _, ok := m["store_config"]; !ok {
		t.Error("поле store_config отсутствует в JSON")
	}
	if m["tags"] == nil {
		t.Error("tags сериализованы как null")
	}
}
