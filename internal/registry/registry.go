// Пакет registry — реестр персистентных идентификаторов (PID).
//
// Уникальность PID обеспечивается первичным ключом таблицы media_pid_registry:
// резервирование — это INSERT, конфликт уникальности означает занятый PID.
// Резервирование и освобождение выполняются в той же транзакции, что и
// мутация записи media, поэтому два конкурентных create одного PID
// разрешаются на уровне базы, а не процесса.
//
// Валидация формата: если у IdentifierType задан pattern, PID должен
// полностью ему соответствовать (шаблон якорится целиком).
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/mediastore/internal/repository"
)

// Ошибки реестра идентификаторов.
var (
	// ErrInvalidFormat — PID не соответствует шаблону своего типа.
	ErrInvalidFormat = errors.New("pid не соответствует шаблону типа идентификатора")
	// ErrUnknownType — тип идентификатора не зарегистрирован.
	ErrUnknownType = errors.New("неизвестный тип идентификатора")
)

// patternCacheSize — размер LRU-кэша скомпилированных шаблонов.
// Типов идентификаторов немного, кэш нужен лишь чтобы не перекомпилировать
// regexp на каждый элемент bulk-запроса.
const patternCacheSize = 128

// Registry — реестр PID: валидация формата и атомарное резервирование.
// Реализует repository.PIDReserver.
type Registry struct {
	types    repository.IdentifierTypeRepository
	patterns *lru.Cache[string, *regexp.Regexp]
}

// New создаёт реестр идентификаторов.
func New(types repository.IdentifierTypeRepository) *Registry {
	cache, _ := lru.New[string, *regexp.Regexp](patternCacheSize) // ошибка только при size <= 0
	return &Registry{
		types:    types,
		patterns: cache,
	}
}

// Validate проверяет формат PID для указанного типа идентификатора.
// Возвращает ErrUnknownType, ErrInvalidFormat или nil.
// Пустой pattern у типа — принимается любой непустой PID.
func (r *Registry) Validate(ctx context.Context, pid, pidType string) error {
	if strings.TrimSpace(pid) == "" {
		return fmt.Errorf("%w: пустой pid", ErrInvalidFormat)
	}

	it, err := r.types.GetByName(ctx, pidType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownType, pidType)
		}
		return fmt.Errorf("ошибка получения типа идентификатора: %w", err)
	}

	if it.Pattern == "" {
		return nil
	}

	re, err := r.compile(it.Pattern)
	if err != nil {
		return fmt.Errorf("некорректный шаблон типа %q: %w", pidType, err)
	}
	if !re.MatchString(pid) {
		return fmt.Errorf("%w: pid %q, тип %q", ErrInvalidFormat, pid, pidType)
	}
	return nil
}

// compile возвращает скомпилированный шаблон из кэша или компилирует его.
// Шаблон якорится целиком: pid должен совпадать полностью, не подстрокой.
func (r *Registry) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := r.patterns.Get(pattern); ok {
		return re, nil
	}

	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, err
	}
	r.patterns.Add(pattern, re)
	return re, nil
}

// Reserve атомарно резервирует PID в рамках переданной транзакции.
// Возвращает repository.ErrConflict, если PID уже занят.
func (r *Registry) Reserve(ctx context.Context, db repository.DBTX, pid, pidType string) error {
	query := `INSERT INTO media_pid_registry (pid, pid_type) VALUES ($1, $2)`

	if _, err := db.Exec(ctx, query, pid, pidType); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: pid %q уже зарезервирован", repository.ErrConflict, pid)
		}
		return fmt.Errorf("ошибка резервирования pid: %w", err)
	}
	return nil
}

// Release освобождает PID в рамках переданной транзакции.
// Отсутствие резервирования не считается ошибкой (идемпотентность).
func (r *Registry) Release(ctx context.Context, db repository.DBTX, pid string) error {
	query := `DELETE FROM media_pid_registry WHERE pid = $1`

	if _, err := db.Exec(ctx, query, pid); err != nil {
		return fmt.Errorf("ошибка освобождения pid: %w", err)
	}
	return nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
