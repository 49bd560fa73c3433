// Пакет schema — DTO внешнего API Media Store и конвертация
// доменных моделей в транспортное представление.
package schema

import (
	"encoding/json"
	"strconv"
)

// S3ConfigCreate — регистрация учётных данных S3-backend'а.
type S3ConfigCreate struct {
	URL       string `json:"url"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// S3ConfigSansKeys — представление s3-конфигурации без секретов.
// Единственная форма, в которой s3-конфигурация покидает сервис.
type S3ConfigSansKeys struct {
	PK  int64  `json:"pk"`
	URL string `json:"url"`
}

// StoreConfigCreate — inline-описание привязки к backend.
type StoreConfigCreate struct {
	Type   string `json:"type"`
	Bucket string `json:"bucket"`
	S3URL  string `json:"s3_url,omitempty"`
}

// StoreConfig — конфигурация backend с суррогатным ключом.
type StoreConfig struct {
	PK     int64  `json:"pk"`
	Type   string `json:"type"`
	Bucket string `json:"bucket"`
	S3URL  string `json:"s3_url,omitempty"`
}

// StoreConfigRef — ссылка на конфигурацию backend при создании записи:
// либо pk существующей, либо inline-описание. Ровно одно из полей.
type StoreConfigRef struct {
	PK     *int64             `json:"pk,omitempty"`
	Inline *StoreConfigCreate `json:"-"`
}

// UnmarshalJSON принимает либо число (pk), либо объект (inline-описание).
func (r *StoreConfigRef) UnmarshalJSON(data []byte) error {
	// Число — ссылка на существующую конфигурацию.
	if len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')) {
		pk, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return err
		}
		r.PK = &pk
		return nil
	}
	var inline StoreConfigCreate
	if err := json.Unmarshal(data, &inline); err != nil {
		return err
	}
	r.Inline = &inline
	return nil
}

// IdentifierType — тип персистентного идентификатора.
type IdentifierType struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// Media — транспортное представление записи media.
// Версия отдаётся строковым токеном: клиент возвращает его as-is,
// не делая предположений о формате.
type Media struct {
	PK          int64             `json:"pk"`
	PID         string            `json:"pid"`
	PIDType     string            `json:"pid_type"`
	Version     string            `json:"version"`
	StoreConfig StoreConfig       `json:"store_config"`
	StoreKey    string            `json:"store_key"`
	StoreStatus string            `json:"store_status"`
	Identifiers map[string]string `json:"identifiers"`
	Metadata    map[string]any    `json:"metadata"`
	Tags        []string          `json:"tags"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// MediaCreate — создание записи media.
type MediaCreate struct {
	PID         string            `json:"pid"`
	PIDType     string            `json:"pid_type"`
	StoreConfig StoreConfigRef    `json:"store_config"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
}

// MediaUpdate — общая мутация записи media.
type MediaUpdate struct {
	PID         string          `json:"pid"`
	NewPID      *string         `json:"new_pid,omitempty"`
	PIDType     *string         `json:"pid_type,omitempty"`
	StoreConfig *StoreConfigRef `json:"store_config,omitempty"`
	Version     *string         `json:"version,omitempty"`
}

// MediaUpdateTags — полная замена тегов записи.
type MediaUpdateTags struct {
	PID     string   `json:"pid"`
	Tags    []string `json:"tags"`
	Version *string  `json:"version,omitempty"`
}

// MediaUpdateStoreKey — перенаправление записи на другой объект backend'а.
type MediaUpdateStoreKey struct {
	PID      string  `json:"pid"`
	StoreKey string  `json:"store_key"`
	Version  *string `json:"version,omitempty"`
}

// MediaUpdateIdentifiers — key-wise upsert вторичных идентификаторов.
type MediaUpdateIdentifiers struct {
	PID         string            `json:"pid"`
	Identifiers map[string]string `json:"identifiers"`
	Version     *string           `json:"version,omitempty"`
}

// MediaUpdateMetadata — обновление metadata: keys перечисляет
// переносимые ключи data; пустой keys — полная замена документа.
type MediaUpdateMetadata struct {
	PID     string         `json:"pid"`
	Keys    []string       `json:"keys,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Version *string        `json:"version,omitempty"`
}

// BulkItem — один элемент bulk-запроса: операция плюс её параметры.
type BulkItem struct {
	Op string `json:"op"`

	PID         string          `json:"pid"`
	Version     *string         `json:"version,omitempty"`
	NewPID      *string         `json:"new_pid,omitempty"`
	PIDType     *string         `json:"pid_type,omitempty"`
	StoreConfig *StoreConfigRef `json:"store_config,omitempty"`

	Tags        []string          `json:"tags,omitempty"`
	StoreKey    string            `json:"store_key,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Keys        []string          `json:"keys,omitempty"`
	Data        map[string]any    `json:"data,omitempty"`
}

// BulkRequest — батч мутаций.
type BulkRequest struct {
	Items []BulkItem `json:"items"`
}

// MediaError — ошибка одного элемента bulk-запроса.
type MediaError struct {
	PID   string `json:"pid"`
	Error string `json:"error"`
	Msg   string `json:"msg"`
}

// BulkUpdateResponse — агрегат исходов батча.
type BulkUpdateResponse struct {
	Successes []string     `json:"successes"`
	Failures  []MediaError `json:"failures"`
}

// MediaSearch — поиск записей по тегам.
type MediaSearch struct {
	Tags   []string `json:"tags"`
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
}

// MediaSearchResponse — страница результатов поиска.
type MediaSearchResponse struct {
	Items []Media `json:"items"`
	Total int     `json:"total"`
}

// UploadInput — загрузка байтов: описание записи плюс опциональный
// inline-payload. base64 пуст — выдаётся presigned PUT.
type UploadInput struct {
	MediaData   MediaCreate `json:"mediadata"`
	Base64      string      `json:"base64,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
}

// UploadOutput — результат негоциации загрузки.
type UploadOutput struct {
	Status       string `json:"status"`
	Media        *Media `json:"media,omitempty"`
	PresignedPut string `json:"presigned_put,omitempty"`
}

// DownloadInput — параметры скачивания.
type DownloadInput struct {
	PID    string `json:"pid"`
	Direct *bool  `json:"direct,omitempty"`
}

// DownloadOutput — результат негоциации скачивания.
type DownloadOutput struct {
	MediaData    Media  `json:"mediadata"`
	Base64       string `json:"base64,omitempty"`
	PresignedGet string `json:"presigned_get,omitempty"`
}
