// Пакет model — доменные модели Media Store.
// MediaRecord — запись о медиа-объекте, байты которого хранятся во внешнем
// storage backend (S3-совместимый бакет или локальное хранилище).
package model

import "time"

// MediaRecord — запись медиа-объекта в реестре media.
// Байты объекта живут во внешнем backend, запись описывает их расположение,
// жизненный цикл и пользовательские аннотации.
type MediaRecord struct {
	// PK — суррогатный ключ записи
	PK int64
	// PID — персистентный идентификатор (уникален среди неудалённых записей)
	PID string
	// PIDType — имя типа идентификатора (ссылка на IdentifierType)
	PIDType string
	// Version — версия записи; строго возрастает при каждой мутации контента.
	// Используется для optimistic concurrency (compare-and-swap при update).
	Version int64
	// StoreConfig — привязка к storage backend
	StoreConfig StoreConfig
	// StoreKey — ключ объекта внутри бакета (по умолчанию равен PID)
	StoreKey string
	// StoreStatus — состояние жизненного цикла байтов (см. status.go)
	StoreStatus StoreStatus
	// Identifiers — вторичные идентификаторы (ключ уникален в рамках записи)
	Identifiers map[string]string
	// Metadata — произвольный JSON-документ пользовательских аннотаций
	Metadata map[string]any
	// Tags — теги записи (множество: без дубликатов, case-sensitive, trimmed)
	Tags []string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// StoreConfig — конфигурация storage backend, к которому привязана запись.
type StoreConfig struct {
	// PK — суррогатный ключ конфигурации
	PK int64
	// Type — тип backend: "s3" или "local"
	Type string
	// Bucket — имя бакета (для local — каталог)
	Bucket string
	// S3ConfigPK — ссылка на S3Config с учётными данными (для type == "s3")
	S3ConfigPK *int64
	// S3URL — endpoint URL (денормализованное поле для ответов API,
	// заполняется из S3Config без раскрытия ключей)
	S3URL string
}

// Типы backend, поддерживаемые Media Store.
const (
	// StoreTypeS3 — S3-совместимый backend (MinIO, AWS S3 и т.п.)
	StoreTypeS3 = "s3"
	// StoreTypeLocal — локальное файловое хранилище
	StoreTypeLocal = "local"
)

// S3Config — учётные данные S3-совместимого backend.
// Секреты никогда не возвращаются в ответах API — наружу отдаётся
// только представление sans-keys: {pk, url}.
type S3Config struct {
	// PK — суррогатный ключ
	PK int64
	// URL — endpoint S3-совместимого хранилища
	URL string
	// AccessKey — ключ доступа
	AccessKey string
	// SecretKey — секретный ключ
	SecretKey string
}

// IdentifierType — тип персистентного идентификатора.
type IdentifierType struct {
	// Name — имя типа (например, "doi", "uuid")
	Name string
	// Pattern — необязательный шаблон валидации PID (полное совпадение).
	// Пустая строка — принимается любой непустой PID.
	Pattern string
}
