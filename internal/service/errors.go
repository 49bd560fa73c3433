// errors.go — типизированные ошибки бизнес-логики Media Store.
//
// Одиночные операции возвращают ошибку напрямую; bulk-операции переводят
// ошибку каждого элемента в ErrorKind через KindOf и складывают в агрегат.
package service

import (
	"errors"

	"github.com/bigkaa/mediastore/internal/backend"
	"github.com/bigkaa/mediastore/internal/registry"
	"github.com/bigkaa/mediastore/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrDuplicatePID — PID уже занят неудалённой записью.
	ErrDuplicatePID = errors.New("pid уже существует")
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrInvalidPIDFormat — PID не соответствует шаблону своего типа.
	ErrInvalidPIDFormat = errors.New("некорректный формат pid")
	// ErrVersionConflict — запись изменена конкурирующим writer'ом.
	ErrVersionConflict = errors.New("конфликт версий")
	// ErrValidation — некорректные входные данные (identifiers/metadata/tags).
	ErrValidation = errors.New("ошибка валидации")
	// ErrBackendUnavailable — storage backend недоступен.
	ErrBackendUnavailable = errors.New("storage backend недоступен")
	// ErrQuotaExceeded — превышена квота storage backend.
	ErrQuotaExceeded = errors.New("превышена квота storage backend")
	// ErrNotReady — скачивание до перехода записи в STORED.
	ErrNotReady = errors.New("байты записи ещё не загружены")
	// ErrCancelled — элемент bulk-запроса не обработан из-за дедлайна.
	ErrCancelled = errors.New("операция отменена")
)

// ErrorKind — машиночитаемый вид ошибки для bulk-ответов и API.
type ErrorKind string

const (
	KindDuplicatePID       ErrorKind = "DUPLICATE_PID"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindInvalidPIDFormat   ErrorKind = "INVALID_PID_FORMAT"
	KindVersionConflict    ErrorKind = "VERSION_CONFLICT"
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindBackendUnavailable ErrorKind = "BACKEND_UNAVAILABLE"
	KindQuotaExceeded      ErrorKind = "QUOTA_EXCEEDED"
	KindNotReady           ErrorKind = "NOT_READY"
	KindCancelled          ErrorKind = "CANCELLED"
)

// KindOf возвращает вид ошибки или пустую строку для нетипизированных
// (системных) ошибок — такие ошибки bulk-движок трактует как фатальные.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrDuplicatePID):
		return KindDuplicatePID
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidPIDFormat):
		return KindInvalidPIDFormat
	case errors.Is(err, ErrVersionConflict):
		return KindVersionConflict
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrBackendUnavailable):
		return KindBackendUnavailable
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrNotReady):
		return KindNotReady
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	default:
		return ""
	}
}

// mapRepoError переводит ошибки нижних слоёв в типизированные ошибки сервиса.
// Неизвестные ошибки (сбой persistence) возвращаются как есть.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrConflict):
		return errors.Join(ErrDuplicatePID, err)
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrVersionMismatch):
		return ErrVersionConflict
	case errors.Is(err, repository.ErrNotDeletable):
		return errors.Join(ErrValidation, err)
	case errors.Is(err, registry.ErrInvalidFormat):
		return errors.Join(ErrInvalidPIDFormat, err)
	case errors.Is(err, registry.ErrUnknownType):
		return errors.Join(ErrValidation, err)
	default:
		return err
	}
}

// mapBackendError переводит ошибки backend'а в типизированные ошибки сервиса.
func mapBackendError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, backend.ErrQuotaExceeded):
		return errors.Join(ErrQuotaExceeded, err)
	case errors.Is(err, backend.ErrObjectNotFound),
		errors.Is(err, backend.ErrUnavailable),
		errors.Is(err, backend.ErrPresignUnsupported):
		return errors.Join(ErrBackendUnavailable, err)
	default:
		return errors.Join(ErrBackendUnavailable, err)
	}
}
