// s3.go — S3-совместимый backend через MinIO SDK.
// Работает с любым S3-провайдером (MinIO, AWS S3 и т.п.) по endpoint'у
// и статическим ключам из S3Config.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store — backend над одним бакетом S3-совместимого хранилища.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store создаёт backend для бакета bucket по endpoint'у rawURL
// с указанными ключами доступа.
func NewS3Store(rawURL, accessKey, secretKey, bucket string) (*S3Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("некорректный endpoint S3 %q: %w", rawURL, err)
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания S3-клиента: %w", err)
	}

	return &S3Store{client: client, bucket: bucket}, nil
}

// SupportsPresign — S3 всегда умеет presigned URL.
func (s *S3Store) SupportsPresign() bool { return true }

// PresignPut возвращает временный URL для прямой загрузки объекта.
func (s *S3Store) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, expiry)
	if err != nil {
		return "", s.mapError("presign put", key, err)
	}
	return u.String(), nil
}

// PresignGet возвращает временный URL для прямого скачивания объекта.
func (s *S3Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", s.mapError("presign get", key, err)
	}
	return u.String(), nil
}

// PutInline записывает байты объекта через сервис.
func (s *S3Store) PutInline(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return s.mapError("put", key, err)
	}
	return nil
}

// GetInline читает байты объекта через сервис.
func (s *S3Store) GetInline(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError("get", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapError("get", key, err)
	}
	return data, nil
}

// Delete удаляет объект из бакета.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	// RemoveObject в S3 идемпотентен — проверяем существование явно,
	// чтобы вернуть ErrObjectNotFound.
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return s.mapError("delete", key, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.mapError("delete", key, err)
	}
	return nil
}

// mapError переводит ошибки MinIO SDK в типизированные ошибки backend'а.
func (s *S3Store) mapError(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey":
		return fmt.Errorf("%w: %s %s/%s", ErrObjectNotFound, op, s.bucket, key)
	case resp.Code == "QuotaExceeded" || resp.StatusCode == http.StatusInsufficientStorage:
		return fmt.Errorf("%w: %s %s/%s", ErrQuotaExceeded, op, s.bucket, key)
	default:
		return fmt.Errorf("%w: %s %s/%s: %v", ErrUnavailable, op, s.bucket, key, err)
	}
}
