package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// ErrNotDeletable — запись в состоянии, из которого удаление запрещено
// (удалять можно только STORED и FAILED).
var ErrNotDeletable = errors.New("запись не может быть удалена в текущем состоянии")

// mediaColumns — список столбцов для SELECT-запросов к media
// с join'ом конфигурации backend. DRY: одно место для всех SELECT'ов.
const mediaColumns = `m.pk, m.pid, m.pid_type, m.version, m.store_key, m.store_status,
	m.identifiers, m.metadata, m.tags, m.created_at, m.updated_at,
	sc.pk, sc.type, sc.bucket, sc.s3_config_pk, COALESCE(s3.url, '')`

// mediaFrom — FROM-часть с join'ами store_configs и s3_configs (sans keys:
// из s3_configs читается только url, ключи наружу не выходят).
const mediaFrom = `FROM media m
	JOIN store_configs sc ON sc.pk = m.store_config_pk
	LEFT JOIN s3_configs s3 ON s3.pk = sc.s3_config_pk`

// PIDReserver — резервирование PID в рамках транзакции.
// Реализуется IdentifierRegistry; интерфейс объявлен здесь, чтобы
// репозиторий не зависел от пакета registry.
type PIDReserver interface {
	// Reserve атомарно резервирует PID. Возвращает ErrConflict, если PID занят.
	Reserve(ctx context.Context, db DBTX, pid, pidType string) error
	// Release освобождает PID (при удалении или rename).
	Release(ctx context.Context, db DBTX, pid string) error
}

// MediaRepository — CRUD и версионированные мутации записей media.
// Каждая операция атомарна: составные операции (create с резервированием PID,
// rename) выполняются в одной транзакции через TxRunner.
type MediaRepository struct {
	pool     *pgxpool.Pool
	tx       *TxRunner
	reserver PIDReserver
}

// NewMediaRepository создаёт репозиторий записей media.
func NewMediaRepository(pool *pgxpool.Pool, reserver PIDReserver) *MediaRepository {
	return &MediaRepository{
		pool:     pool,
		tx:       NewTxRunner(pool),
		reserver: reserver,
	}
}

// Create создаёт запись media и резервирует её PID в одной транзакции.
// Возвращает ErrConflict, если PID уже занят неудалённой записью.
// Заполняет PK, Version, CreatedAt, UpdatedAt созданной записи.
func (r *MediaRepository) Create(ctx context.Context, rec *model.MediaRecord) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		// Резервирование PID — единая атомарная операция с insert'ом записи.
		if err := r.reserver.Reserve(ctx, tx, rec.PID, rec.PIDType); err != nil {
			return err
		}

		query := `
			INSERT INTO media (pid, pid_type, version, store_config_pk, store_key,
				store_status, identifiers, metadata, tags)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING pk, created_at, updated_at`

		err := tx.QueryRow(ctx, query,
			rec.PID, rec.PIDType, rec.Version, rec.StoreConfig.PK, rec.StoreKey,
			rec.StoreStatus, rec.Identifiers, rec.Metadata, rec.Tags,
		).Scan(&rec.PK, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: запись с pid %q уже существует", ErrConflict, rec.PID)
			}
			return fmt.Errorf("ошибка создания записи media: %w", err)
		}
		return nil
	})
}

// GetByPID возвращает неудалённую запись по PID или ErrNotFound.
func (r *MediaRepository) GetByPID(ctx context.Context, pid string) (*model.MediaRecord, error) {
	return getMedia(ctx, r.pool, pid)
}

// getMedia — общий SELECT записи по PID (pool или tx).
func getMedia(ctx context.Context, db DBTX, pid string) (*model.MediaRecord, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE m.pid = $1 AND m.store_status != 'DELETED'`,
		mediaColumns, mediaFrom)

	rec, err := scanMedia(db.QueryRow(ctx, query, pid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи media: %w", err)
	}
	return rec, nil
}

// scanMedia сканирует одну строку media в модель.
func scanMedia(row pgx.Row) (*model.MediaRecord, error) {
	rec := &model.MediaRecord{}
	err := row.Scan(
		&rec.PK, &rec.PID, &rec.PIDType, &rec.Version, &rec.StoreKey, &rec.StoreStatus,
		&rec.Identifiers, &rec.Metadata, &rec.Tags, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.StoreConfig.PK, &rec.StoreConfig.Type, &rec.StoreConfig.Bucket,
		&rec.StoreConfig.S3ConfigPK, &rec.StoreConfig.S3URL,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateCAS обновляет мутируемые поля записи через compare-and-swap по version.
// Version всегда инкрементируется — строго возрастает и никогда не переиспользуется.
// При несовпадении version возвращает ErrVersionMismatch; если записи нет — ErrNotFound.
// Обновляет Version и UpdatedAt переданной записи.
func (r *MediaRepository) UpdateCAS(ctx context.Context, rec *model.MediaRecord, expectedVersion int64) error {
	query := `
		UPDATE media
		SET pid_type = $3, store_config_pk = $4, store_key = $5,
			identifiers = $6, metadata = $7, tags = $8,
			version = version + 1, updated_at = now()
		WHERE pid = $1 AND version = $2 AND store_status != 'DELETED'
		RETURNING version, updated_at`

	err := r.pool.QueryRow(ctx, query,
		rec.PID, expectedVersion,
		rec.PIDType, rec.StoreConfig.PK, rec.StoreKey,
		rec.Identifiers, rec.Metadata, rec.Tags,
	).Scan(&rec.Version, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.casFailure(ctx, rec.PID)
		}
		return fmt.Errorf("ошибка обновления записи media: %w", err)
	}
	return nil
}

// casFailure различает причины неудачного CAS: запись отсутствует (ErrNotFound)
// или версия устарела (ErrVersionMismatch).
func (r *MediaRepository) casFailure(ctx context.Context, pid string) error {
	if _, err := getMedia(ctx, r.pool, pid); err != nil {
		return err
	}
	return ErrVersionMismatch
}

// UpdateStatus переводит store_status записи из from в to.
// Используется negotiator'ом загрузки/скачивания: WHERE по текущему статусу
// гарантирует, что переход выполняется только из ожидаемого состояния.
// bumpVersion — инкремент версии (для content-affecting переходов, напр. upload).
// Возвращает обновлённую запись; ErrNotFound — записи нет или статус не from.
func (r *MediaRepository) UpdateStatus(ctx context.Context, pid string, from, to model.StoreStatus, bumpVersion bool) (*model.MediaRecord, error) {
	if err := model.CheckTransition(from, to); err != nil {
		return nil, err
	}

	bump := 0
	if bumpVersion {
		bump = 1
	}

	query := `
		UPDATE media
		SET store_status = $3, version = version + $4, updated_at = now()
		WHERE pid = $1 AND store_status = $2`

	tag, err := r.pool.Exec(ctx, query, pid, from, to, bump)
	if err != nil {
		return nil, fmt.Errorf("ошибка перехода store_status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByPID(ctx, pid)
}

// Rename атомарно переносит запись на rec.PID и применяет остальные
// мутируемые поля rec: release старого PID, reserve нового и CAS-обновление
// строки по expectedVersion — всё в одной транзакции. Если новый PID занят
// или версия устарела, вся операция откатывается, запись не меняется.
// Обновляет Version и UpdatedAt переданной записи.
func (r *MediaRepository) Rename(ctx context.Context, oldPID string, rec *model.MediaRecord, expectedVersion int64) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := r.reserver.Release(ctx, tx, oldPID); err != nil {
			return err
		}
		if err := r.reserver.Reserve(ctx, tx, rec.PID, rec.PIDType); err != nil {
			return err
		}

		query := `
			UPDATE media
			SET pid = $3, pid_type = $4, store_config_pk = $5, store_key = $6,
				identifiers = $7, metadata = $8, tags = $9,
				version = version + 1, updated_at = now()
			WHERE pid = $1 AND version = $2 AND store_status != 'DELETED'
			RETURNING version, updated_at`

		err := tx.QueryRow(ctx, query,
			oldPID, expectedVersion,
			rec.PID, rec.PIDType, rec.StoreConfig.PK, rec.StoreKey,
			rec.Identifiers, rec.Metadata, rec.Tags,
		).Scan(&rec.Version, &rec.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return r.casFailure(ctx, oldPID)
			}
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: запись с pid %q уже существует", ErrConflict, rec.PID)
			}
			return fmt.Errorf("ошибка переименования записи media: %w", err)
		}
		return nil
	})
}

// SoftDelete помечает запись как DELETED и освобождает её PID.
// Физическая строка сохраняется для audit/provenance-потребителей;
// очистку выполняет внешний retention job. Освобождённый PID может быть
// занят новой записью.
// Удаление допустимо только из STORED и FAILED (см. model.CanTransition).
func (r *MediaRepository) SoftDelete(ctx context.Context, pid string) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE media
			SET store_status = 'DELETED', version = version + 1, updated_at = now()
			WHERE pid = $1 AND store_status IN ('STORED', 'FAILED')`

		tag, err := tx.Exec(ctx, query, pid)
		if err != nil {
			return fmt.Errorf("ошибка удаления записи media: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Различаем: записи нет вовсе или она в неудаляемом состоянии.
			if _, err := getMedia(ctx, tx, pid); err != nil {
				return err
			}
			return ErrNotDeletable
		}

		return r.reserver.Release(ctx, tx, pid)
	})
}

// SearchByTags возвращает неудалённые записи, содержащие все указанные теги
// (оператор @>), с пагинацией. Возвращает (записи, общее количество, ошибка).
func (r *MediaRepository) SearchByTags(ctx context.Context, tags []string, limit, offset int) ([]*model.MediaRecord, int, error) {
	where := `WHERE m.store_status != 'DELETED'`
	args := []any{}
	if len(tags) > 0 {
		where += ` AND m.tags @> $1`
		args = append(args, tags)
	}
	argNum := len(args) + 1

	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY m.created_at DESC LIMIT $%d OFFSET $%d`,
		mediaColumns, mediaFrom, where, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка поиска записей media: %w", err)
	}
	defer rows.Close()

	var result []*model.MediaRecord
	for rows.Next() {
		rec, err := scanMedia(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования записи media: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM media m %s`, where)
	countArgs := args[:len(args)-2]

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта записей media: %w", err)
	}

	return result, total, nil
}
