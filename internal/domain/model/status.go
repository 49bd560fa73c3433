// status.go — жизненный цикл байтов медиа-объекта (store_status).
//
// Переходы:
//   - PENDING → UPLOADING → STORED — основной путь загрузки
//   - любое состояние кроме DELETED → FAILED — при ошибке backend
//   - FAILED → UPLOADING / STORED — повторная загрузка
//   - STORED / FAILED → DELETED — явное удаление (soft delete)
//
// DELETED — конечное состояние, переходы из него запрещены.
package model

import "fmt"

// StoreStatus — состояние жизненного цикла байтов медиа-объекта.
type StoreStatus string

const (
	// StatusPending — запись создана, байты ещё не загружены
	StatusPending StoreStatus = "PENDING"
	// StatusUploading — выдан presigned PUT, загрузка идёт out-of-band
	StatusUploading StoreStatus = "UPLOADING"
	// StatusStored — байты находятся в backend, download разрешён
	StatusStored StoreStatus = "STORED"
	// StatusFailed — последняя операция с backend завершилась ошибкой
	StatusFailed StoreStatus = "FAILED"
	// StatusDeleted — запись логически удалена (физическая очистка —
	// задача внешнего retention job)
	StatusDeleted StoreStatus = "DELETED"
)

// validStatusTransitions — матрица допустимых переходов store_status.
// Ключ — текущее состояние, значение — набор допустимых целевых состояний.
var validStatusTransitions = map[StoreStatus]map[StoreStatus]bool{
	StatusPending:   {StatusUploading: true, StatusStored: true, StatusFailed: true},
	StatusUploading: {StatusStored: true, StatusFailed: true},
	StatusStored:    {StatusFailed: true, StatusDeleted: true},
	StatusFailed:    {StatusUploading: true, StatusStored: true, StatusDeleted: true},
	StatusDeleted:   {},
}

// IsValidStatus проверяет, является ли значение допустимым store_status.
func IsValidStatus(s StoreStatus) bool {
	_, ok := validStatusTransitions[s]
	return ok
}

// CanTransition проверяет допустимость перехода from → to.
func CanTransition(from, to StoreStatus) bool {
	targets, ok := validStatusTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// CheckTransition возвращает ошибку, если переход from → to недопустим.
func CheckTransition(from, to StoreStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("недопустимый переход store_status: %s → %s", from, to)
	}
	return nil
}
