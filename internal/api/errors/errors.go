// Пакет errors — конструкторы стандартных ошибок в формате Media Store.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeDuplicatePID       = "DUPLICATE_PID"
	CodeInvalidPIDFormat   = "INVALID_PID_FORMAT"
	CodeVersionConflict    = "VERSION_CONFLICT"
	CodeNotReady           = "NOT_READY"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате Media Store.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// DuplicatePID — 409 PID уже занят активной записью.
func DuplicatePID(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeDuplicatePID, message)
}

// InvalidPIDFormat — 422 PID не соответствует шаблону типа.
func InvalidPIDFormat(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeInvalidPIDFormat, message)
}

// VersionConflict — 409 версия записи устарела (optimistic concurrency).
func VersionConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeVersionConflict, message)
}

// NotReady — 409 байты записи ещё не в состоянии STORED.
func NotReady(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeNotReady, message)
}

// BackendUnavailable — 502 storage backend недоступен.
func BackendUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeBackendUnavailable, message)
}

// QuotaExceeded — 507 квота backend'а исчерпана.
func QuotaExceeded(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInsufficientStorage, CodeQuotaExceeded, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
