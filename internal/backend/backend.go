// Пакет backend — абстракция над storage backend'ами медиа-объектов.
//
// Store — единый интерфейс для всех типов backend: presigned URL'ы,
// inline put/get и удаление. Конкретная реализация выбирается по
// StoreConfig записи (s3 — MinIO SDK, local — файловое хранилище).
// Ошибки backend'а всегда типизированы и никогда не глотаются —
// решение о retry принимает вызывающий код.
package backend

import (
	"context"
	"errors"
	"time"
)

// Ошибки backend'ов.
var (
	// ErrUnavailable — backend недоступен (сеть, endpoint, креденшелы).
	ErrUnavailable = errors.New("storage backend недоступен")
	// ErrQuotaExceeded — превышена ёмкость backend'а.
	ErrQuotaExceeded = errors.New("превышена квота storage backend")
	// ErrObjectNotFound — объект отсутствует в backend'е.
	ErrObjectNotFound = errors.New("объект не найден в storage backend")
	// ErrPresignUnsupported — backend не умеет выдавать presigned URL.
	ErrPresignUnsupported = errors.New("backend не поддерживает presigned URL")
)

// Store — операции над байтами одного бакета storage backend'а.
// Все операции принимают ключ объекта (store_key записи media).
type Store interface {
	// PresignPut возвращает временный URL для прямой загрузки объекта.
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
	// PresignGet возвращает временный URL для прямого скачивания объекта.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// PutInline записывает байты объекта через сервис.
	PutInline(ctx context.Context, key string, data []byte, contentType string) error
	// GetInline читает байты объекта через сервис.
	GetInline(ctx context.Context, key string) ([]byte, error)
	// Delete удаляет объект. Отсутствие объекта — ErrObjectNotFound.
	Delete(ctx context.Context, key string) error
	// SupportsPresign сообщает, умеет ли backend выдавать presigned URL.
	SupportsPresign() bool
}
