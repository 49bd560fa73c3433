package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// IdentifierTypeRepository — CRUD для типов идентификаторов.
type IdentifierTypeRepository interface {
	// Create создаёт тип идентификатора. ErrConflict — имя занято.
	Create(ctx context.Context, it *model.IdentifierType) error
	// GetByName возвращает тип по имени или ErrNotFound.
	GetByName(ctx context.Context, name string) (*model.IdentifierType, error)
	// List возвращает все типы идентификаторов.
	List(ctx context.Context) ([]*model.IdentifierType, error)
}

// identifierTypeRepo — реализация IdentifierTypeRepository через pgx.
type identifierTypeRepo struct {
	pool *pgxpool.Pool
}

// NewIdentifierTypeRepository создаёт репозиторий типов идентификаторов.
func NewIdentifierTypeRepository(pool *pgxpool.Pool) IdentifierTypeRepository {
	return &identifierTypeRepo{pool: pool}
}

func (r *identifierTypeRepo) Create(ctx context.Context, it *model.IdentifierType) error {
	query := `INSERT INTO identifier_types (name, pattern) VALUES ($1, $2)`

	if _, err := r.pool.Exec(ctx, query, it.Name, it.Pattern); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: тип идентификатора %q уже существует", ErrConflict, it.Name)
		}
		return fmt.Errorf("ошибка создания типа идентификатора: %w", err)
	}
	return nil
}

func (r *identifierTypeRepo) GetByName(ctx context.Context, name string) (*model.IdentifierType, error) {
	query := `SELECT name, pattern FROM identifier_types WHERE name = $1`

	it := &model.IdentifierType{}
	err := r.pool.QueryRow(ctx, query, name).Scan(&it.Name, &it.Pattern)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения типа идентификатора: %w", err)
	}
	return it, nil
}

func (r *identifierTypeRepo) List(ctx context.Context) ([]*model.IdentifierType, error) {
	query := `SELECT name, pattern FROM identifier_types ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка типов идентификаторов: %w", err)
	}
	defer rows.Close()

	var result []*model.IdentifierType
	for rows.Next() {
		it := &model.IdentifierType{}
		if err := rows.Scan(&it.Name, &it.Pattern); err != nil {
			return nil, fmt.Errorf("ошибка сканирования типа идентификатора: %w", err)
		}
		result = append(result, it)
	}
	return result, rows.Err()
}
