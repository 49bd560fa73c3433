package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/mediastore/internal/backend"
	"github.com/bigkaa/mediastore/internal/domain/model"
)

func TestDownloadBeforeUpload(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:pending")

	_, err := env.transfer.Download(context.Background(), rec.PID, false)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("ошибка = %v, ожидалась ErrNotReady", err)
	}
	if KindOf(err) != KindNotReady {
		t.Errorf("KindOf = %q, ожидался NOT_READY", KindOf(err))
	}
}

func TestInlineUploadDownloadRoundTrip(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:inline")
	payload := []byte("содержимое объекта")

	res, err := env.transfer.Upload(context.Background(), rec.PID, payload, "text/plain")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if res.Record.StoreStatus != model.StatusStored {
		t.Errorf("статус после inline-загрузки = %s, ожидался STORED", res.Record.StoreStatus)
	}
	if res.Record.Version != rec.Version+1 {
		t.Errorf("версия после загрузки = %d, ожидалась %d", res.Record.Version, rec.Version+1)
	}
	if res.PresignedPut != "" {
		t.Errorf("inline-загрузка не должна выдавать presigned URL, получен %q", res.PresignedPut)
	}

	dl, err := env.transfer.Download(context.Background(), rec.PID, false)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	got, err := base64.StdEncoding.DecodeString(dl.Base64)
	if err != nil {
		t.Fatalf("невалидный base64: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("скачанные байты = %q, ожидались %q", got, payload)
	}
}

func TestInlineUploadBackendFailure(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:fail")
	env.backend.putErr = backend.ErrUnavailable

	_, err := env.transfer.Upload(context.Background(), rec.PID, []byte("x"), "")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("ошибка = %v, ожидалась ErrBackendUnavailable", err)
	}

	// Запись переведена в FAILED и остаётся адресуемой для retry.
	cur, err := env.media.Get(context.Background(), rec.PID)
	if err != nil {
		t.Fatalf("запись потеряна после сбоя backend'а: %v", err)
	}
	if cur.StoreStatus != model.StatusFailed {
		t.Errorf("статус после сбоя = %s, ожидался FAILED", cur.StoreStatus)
	}

	// Retry после восстановления backend'а проходит.
	env.backend.putErr = nil
	res, err := env.transfer.Upload(context.Background(), rec.PID, []byte("x"), "")
	if err != nil {
		t.Fatalf("retry не прошёл: %v", err)
	}
	if res.Record.StoreStatus != model.StatusStored {
		t.Errorf("статус после retry = %s, ожидался STORED", res.Record.StoreStatus)
	}
}

func TestUploadQuotaExceeded(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:quota")
	env.backend.putErr = backend.ErrQuotaExceeded

	_, err := env.transfer.Upload(context.Background(), rec.PID, []byte("x"), "")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("ошибка = %v, ожидалась ErrQuotaExceeded", err)
	}
}

func TestUploadFromStoredRejected(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:stored")
	if _, err := env.transfer.Upload(context.Background(), rec.PID, []byte("x"), ""); err != nil {
		t.Fatalf("первая загрузка: %v", err)
	}

	_, err := env.transfer.Upload(context.Background(), rec.PID, []byte("y"), "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ошибка = %v, ожидалась ErrValidation (повторная загрузка из STORED)", err)
	}
}

func TestPresignedUploadFlow(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:presign")

	res, err := env.transfer.Upload(context.Background(), rec.PID, nil, "")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if res.PresignedPut == "" {
		t.Fatal("presigned PUT URL не выдан")
	}
	if res.Record.StoreStatus != model.StatusUploading {
		t.Errorf("статус = %s, ожидался UPLOADING", res.Record.StoreStatus)
	}
	// Переход в UPLOADING не является мутацией контента.
	if res.Record.Version != rec.Version {
		t.Errorf("версия изменилась при выдаче presigned URL: %d -> %d", rec.Version, res.Record.Version)
	}

	confirmed, err := env.transfer.ConfirmUpload(context.Background(), rec.PID)
	if err != nil {
		t.Fatalf("подтверждение загрузки: %v", err)
	}
	if confirmed.StoreStatus != model.StatusStored {
		t.Errorf("статус после подтверждения = %s, ожидался STORED", confirmed.StoreStatus)
	}
	if confirmed.Version != rec.Version+1 {
		t.Errorf("версия после подтверждения = %d, ожидалась %d", confirmed.Version, rec.Version+1)
	}
}

func TestConfirmUploadWrongState(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:confirm")

	_, err := env.transfer.ConfirmUpload(context.Background(), rec.PID)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ошибка = %v, ожидалась ErrValidation (запись не в UPLOADING)", err)
	}
}

func TestDownloadDirectPresigned(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:direct")
	if _, err := env.transfer.Upload(context.Background(), rec.PID, []byte("x"), ""); err != nil {
		t.Fatalf("загрузка: %v", err)
	}

	dl, err := env.transfer.Download(context.Background(), rec.PID, true)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if dl.PresignedGet == "" {
		t.Error("direct-скачивание должно выдать presigned GET")
	}
	if dl.Base64 != "" {
		t.Error("direct-скачивание не должно возвращать байты")
	}
}

func TestDownloadMissingObjectMarksFailed(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:lost")
	if _, err := env.transfer.Upload(context.Background(), rec.PID, []byte("x"), ""); err != nil {
		t.Fatalf("загрузка: %v", err)
	}

	// Объект пропал из backend'а (например, удалён напрямую).
	if err := env.backend.Delete(context.Background(), rec.PID); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	_, err := env.transfer.Download(context.Background(), rec.PID, false)
	if err == nil {
		t.Fatal("ожидалась ошибка скачивания пропавшего объекта")
	}

	cur, err := env.media.Get(context.Background(), rec.PID)
	if err != nil {
		t.Fatalf("чтение записи: %v", err)
	}
	if cur.StoreStatus != model.StatusFailed {
		t.Errorf("статус = %s, ожидался FAILED (объект пропал)", cur.StoreStatus)
	}
}

func TestDeleteLifecycle(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:del")
	if _, err := env.transfer.Upload(context.Background(), rec.PID, []byte("x"), ""); err != nil {
		t.Fatalf("загрузка: %v", err)
	}

	if err := env.transfer.Delete(context.Background(), rec.PID); err != nil {
		t.Fatalf("удаление: %v", err)
	}

	if _, err := env.media.Get(context.Background(), rec.PID); !errors.Is(err, ErrNotFound) {
		t.Errorf("удалённая запись всё ещё разрешается: %v", err)
	}
	if _, err := env.backend.GetInline(context.Background(), rec.PID); err == nil {
		t.Error("объект backend'а не удалён")
	}

	// PID освобождён — создание с тем же PID допустимо.
	env.mustCreate(t, "urn:t:del")
}

func TestDeletePendingRejected(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:del-pending")

	err := env.transfer.Delete(context.Background(), rec.PID)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ошибка = %v, ожидалась ErrValidation (удаление из PENDING)", err)
	}
}

func TestInlineUploadSeesConcurrentStoreKeyChange(t *testing.T) {
	env := newTestEnv()
	rec := env.mustCreate(t, "urn:t:rekey")
	payload := []byte("байты под актуальный ключ")

	// Секция PID занята: Upload обязан дождаться её и читать снимок
	// уже после конкурентной мутации, а не до.
	env.locks.Lock(rec.PID)

	done := make(chan struct{})
	var upErr error
	go func() {
		defer close(done)
		_, upErr = env.transfer.Upload(context.Background(), rec.PID, payload, "text/plain")
	}()
	time.Sleep(20 * time.Millisecond)

	// Перенаправление записи на другой объект, пока загрузка ждёт секцию.
	cur, err := env.store.GetByPID(context.Background(), rec.PID)
	if err != nil {
		t.Fatalf("чтение записи: %v", err)
	}
	cur.StoreKey = "objects/rekeyed"
	if err := env.store.UpdateCAS(context.Background(), cur, cur.Version); err != nil {
		t.Fatalf("перенаправление store_key: %v", err)
	}

	env.locks.Unlock(rec.PID)
	<-done

	if upErr != nil {
		t.Fatalf("неожиданная ошибка загрузки: %v", upErr)
	}
	if data, ok := env.backend.object("objects/rekeyed"); !ok || !bytes.Equal(data, payload) {
		t.Errorf("байты не записаны под актуальный store_key")
	}
	if _, ok := env.backend.object(rec.StoreKey); ok {
		t.Errorf("байты записаны под устаревший store_key %q", rec.StoreKey)
	}

	got, err := env.media.Get(context.Background(), rec.PID)
	if err != nil {
		t.Fatalf("чтение записи после загрузки: %v", err)
	}
	if got.StoreStatus != model.StatusStored {
		t.Errorf("store_status = %s, ожидался STORED", got.StoreStatus)
	}
}
