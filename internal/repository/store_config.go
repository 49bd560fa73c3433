package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// StoreConfigRepository — доступ к конфигурациям backend'ов и учётным данным S3.
// Секреты S3 (access_key/secret_key) читаются только через GetS3Credentials —
// для резолва backend'а; наружу отдаётся представление sans-keys.
type StoreConfigRepository interface {
	// CreateStoreConfig создаёт конфигурацию backend.
	CreateStoreConfig(ctx context.Context, sc *model.StoreConfig) error
	// GetStoreConfig возвращает конфигурацию по pk или ErrNotFound.
	GetStoreConfig(ctx context.Context, pk int64) (*model.StoreConfig, error)
	// FindStoreConfig ищет существующую конфигурацию (type, bucket, s3 url).
	// ErrNotFound — подходящей нет.
	FindStoreConfig(ctx context.Context, typ, bucket, s3URL string) (*model.StoreConfig, error)
	// ListStoreConfigs возвращает все конфигурации.
	ListStoreConfigs(ctx context.Context) ([]*model.StoreConfig, error)
	// CreateS3Config сохраняет учётные данные S3-backend'а.
	CreateS3Config(ctx context.Context, s3 *model.S3Config) error
	// FindS3ConfigByURL ищет конфигурацию S3 по endpoint URL (sans keys).
	FindS3ConfigByURL(ctx context.Context, url string) (*model.S3Config, error)
	// GetS3Credentials возвращает учётные данные S3 по pk (включая секреты).
	GetS3Credentials(ctx context.Context, pk int64) (*model.S3Config, error)
	// ListS3Configs возвращает представления sans-keys: только pk и url.
	ListS3Configs(ctx context.Context) ([]*model.S3Config, error)
}

// storeConfigRepo — реализация StoreConfigRepository через pgx.
type storeConfigRepo struct {
	pool *pgxpool.Pool
}

// NewStoreConfigRepository создаёт репозиторий конфигураций backend'ов.
func NewStoreConfigRepository(pool *pgxpool.Pool) StoreConfigRepository {
	return &storeConfigRepo{pool: pool}
}

func (r *storeConfigRepo) CreateStoreConfig(ctx context.Context, sc *model.StoreConfig) error {
	query := `
		INSERT INTO store_configs (type, bucket, s3_config_pk)
		VALUES ($1, $2, $3)
		RETURNING pk`

	err := r.pool.QueryRow(ctx, query, sc.Type, sc.Bucket, sc.S3ConfigPK).Scan(&sc.PK)
	if err != nil {
		return fmt.Errorf("ошибка создания конфигурации backend: %w", err)
	}
	return nil
}

func (r *storeConfigRepo) GetStoreConfig(ctx context.Context, pk int64) (*model.StoreConfig, error) {
	query := `
		SELECT sc.pk, sc.type, sc.bucket, sc.s3_config_pk, COALESCE(s3.url, '')
		FROM store_configs sc
		LEFT JOIN s3_configs s3 ON s3.pk = sc.s3_config_pk
		WHERE sc.pk = $1`

	sc := &model.StoreConfig{}
	err := r.pool.QueryRow(ctx, query, pk).Scan(&sc.PK, &sc.Type, &sc.Bucket, &sc.S3ConfigPK, &sc.S3URL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения конфигурации backend: %w", err)
	}
	return sc, nil
}

func (r *storeConfigRepo) FindStoreConfig(ctx context.Context, typ, bucket, s3URL string) (*model.StoreConfig, error) {
	query := `
		SELECT sc.pk, sc.type, sc.bucket, sc.s3_config_pk, COALESCE(s3.url, '')
		FROM store_configs sc
		LEFT JOIN s3_configs s3 ON s3.pk = sc.s3_config_pk
		WHERE sc.type = $1 AND sc.bucket = $2 AND COALESCE(s3.url, '') = $3
		LIMIT 1`

	sc := &model.StoreConfig{}
	err := r.pool.QueryRow(ctx, query, typ, bucket, s3URL).Scan(&sc.PK, &sc.Type, &sc.Bucket, &sc.S3ConfigPK, &sc.S3URL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска конфигурации backend: %w", err)
	}
	return sc, nil
}

func (r *storeConfigRepo) ListStoreConfigs(ctx context.Context) ([]*model.StoreConfig, error) {
	query := `
		SELECT sc.pk, sc.type, sc.bucket, sc.s3_config_pk, COALESCE(s3.url, '')
		FROM store_configs sc
		LEFT JOIN s3_configs s3 ON s3.pk = sc.s3_config_pk
		ORDER BY sc.pk`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка конфигураций backend: %w", err)
	}
	defer rows.Close()

	var result []*model.StoreConfig
	for rows.Next() {
		sc := &model.StoreConfig{}
		if err := rows.Scan(&sc.PK, &sc.Type, &sc.Bucket, &sc.S3ConfigPK, &sc.S3URL); err != nil {
			return nil, fmt.Errorf("ошибка сканирования конфигурации backend: %w", err)
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

func (r *storeConfigRepo) CreateS3Config(ctx context.Context, s3 *model.S3Config) error {
	query := `
		INSERT INTO s3_configs (url, access_key, secret_key)
		VALUES ($1, $2, $3)
		RETURNING pk`

	err := r.pool.QueryRow(ctx, query, s3.URL, s3.AccessKey, s3.SecretKey).Scan(&s3.PK)
	if err != nil {
		return fmt.Errorf("ошибка сохранения учётных данных S3: %w", err)
	}
	return nil
}

func (r *storeConfigRepo) FindS3ConfigByURL(ctx context.Context, url string) (*model.S3Config, error) {
	// Sans-keys: для привязки достаточно pk и url.
	query := `SELECT pk, url FROM s3_configs WHERE url = $1 LIMIT 1`

	s3 := &model.S3Config{}
	err := r.pool.QueryRow(ctx, query, url).Scan(&s3.PK, &s3.URL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска конфигурации S3: %w", err)
	}
	return s3, nil
}

func (r *storeConfigRepo) GetS3Credentials(ctx context.Context, pk int64) (*model.S3Config, error) {
	query := `SELECT pk, url, access_key, secret_key FROM s3_configs WHERE pk = $1`

	s3 := &model.S3Config{}
	err := r.pool.QueryRow(ctx, query, pk).Scan(&s3.PK, &s3.URL, &s3.AccessKey, &s3.SecretKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения учётных данных S3: %w", err)
	}
	return s3, nil
}

func (r *storeConfigRepo) ListS3Configs(ctx context.Context) ([]*model.S3Config, error) {
	// Sans-keys: секреты не читаются.
	query := `SELECT pk, url FROM s3_configs ORDER BY pk`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка конфигураций S3: %w", err)
	}
	defer rows.Close()

	var result []*model.S3Config
	for rows.Next() {
		s3 := &model.S3Config{}
		if err := rows.Scan(&s3.PK, &s3.URL); err != nil {
			return nil, fmt.Errorf("ошибка сканирования конфигурации S3: %w", err)
		}
		result = append(result, s3)
	}
	return result, rows.Err()
}
