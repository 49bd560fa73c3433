// convert.go — конвертация доменных моделей в DTO и обратно.
package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// FormatVersion кодирует версию записи в строковый токен DTO.
func FormatVersion(version int64) string {
	return strconv.FormatInt(version, 10)
}

// ParseVersion декодирует строковый токен версии.
// Пустая строка — версия не задана (nil).
func ParseVersion(token string) (*int64, error) {
	if token == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректный токен версии %q", token)
	}
	return &v, nil
}

// ParseVersionPtr — ParseVersion для опционального поля DTO.
func ParseVersionPtr(token *string) (*int64, error) {
	if token == nil {
		return nil, nil
	}
	return ParseVersion(*token)
}

// StoreConfigFromModel конвертирует конфигурацию backend в DTO.
func StoreConfigFromModel(sc model.StoreConfig) StoreConfig {
	return StoreConfig{
		PK:     sc.PK,
		Type:   sc.Type,
		Bucket: sc.Bucket,
		S3URL:  sc.S3URL,
	}
}

// S3ConfigFromModel конвертирует s3-конфигурацию в представление
// без секретов.
func S3ConfigFromModel(s3 *model.S3Config) S3ConfigSansKeys {
	return S3ConfigSansKeys{PK: s3.PK, URL: s3.URL}
}

// IdentifierTypeFromModel конвертирует тип идентификатора в DTO.
func IdentifierTypeFromModel(it *model.IdentifierType) IdentifierType {
	return IdentifierType{Name: it.Name, Pattern: it.Pattern}
}

// MediaFromModel конвертирует запись media в DTO.
func MediaFromModel(rec *model.MediaRecord) Media {
	identifiers := rec.Identifiers
	if identifiers == nil {
		identifiers = map[string]string{}
	}
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	return Media{
		PK:          rec.PK,
		PID:         rec.PID,
		PIDType:     rec.PIDType,
		Version:     FormatVersion(rec.Version),
		StoreConfig: StoreConfigFromModel(rec.StoreConfig),
		StoreKey:    rec.StoreKey,
		StoreStatus: string(rec.StoreStatus),
		Identifiers: identifiers,
		Metadata:    metadata,
		Tags:        tags,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// MediaListFromModel конвертирует срез записей media в DTO.
func MediaListFromModel(recs []*model.MediaRecord) []Media {
	items := make([]Media, 0, len(recs))
	for _, rec := range recs {
		items = append(items, MediaFromModel(rec))
	}
	return items
}
