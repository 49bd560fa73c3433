package service

import (
	"testing"
	"time"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

func TestCacheSetGetDelete(t *testing.T) {
	cache := NewCacheService(8, time.Minute)

	if _, ok := cache.Get("urn:c:1"); ok {
		t.Error("пустой кэш не должен отдавать записи")
	}

	rec := &model.MediaRecord{PID: "urn:c:1", Version: 1}
	cache.Set(rec.PID, rec)

	got, ok := cache.Get(rec.PID)
	if !ok || got.PID != rec.PID {
		t.Fatalf("Get после Set: %v, %v", got, ok)
	}

	cache.Delete(rec.PID)
	if _, ok := cache.Get(rec.PID); ok {
		t.Error("запись должна быть удалена из кэша")
	}
}

func TestCacheEviction(t *testing.T) {
	cache := NewCacheService(2, time.Minute)

	cache.Set("a", &model.MediaRecord{PID: "a"})
	cache.Set("b", &model.MediaRecord{PID: "b"})
	cache.Set("c", &model.MediaRecord{PID: "c"})

	// Размер 2: самая старая запись вытеснена.
	if _, ok := cache.Get("a"); ok {
		t.Error("запись a должна быть вытеснена")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("запись c должна остаться в кэше")
	}
}
