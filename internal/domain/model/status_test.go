package model

import "testing"

// TestCanTransition_UploadPath проверяет основной путь загрузки.
func TestCanTransition_UploadPath(t *testing.T) {
	steps := []struct {
		from, to StoreStatus
	}{
		{StatusPending, StatusUploading},
		{StatusUploading, StatusStored},
		{StatusPending, StatusStored}, // inline upload — минуя UPLOADING
	}
	for _, s := range steps {
		if !CanTransition(s.from, s.to) {
			t.Errorf("переход %s → %s должен быть допустим", s.from, s.to)
		}
	}
}

// TestCanTransition_FailedRetry проверяет путь повторной загрузки после ошибки.
func TestCanTransition_FailedRetry(t *testing.T) {
	if !CanTransition(StatusPending, StatusFailed) {
		t.Error("переход PENDING → FAILED должен быть допустим")
	}
	if !CanTransition(StatusFailed, StatusUploading) {
		t.Error("переход FAILED → UPLOADING (retry) должен быть допустим")
	}
	if !CanTransition(StatusFailed, StatusStored) {
		t.Error("переход FAILED → STORED (retry inline) должен быть допустим")
	}
}

// TestCanTransition_DeletedIsTerminal проверяет, что DELETED — конечное состояние.
func TestCanTransition_DeletedIsTerminal(t *testing.T) {
	for _, to := range []StoreStatus{StatusPending, StatusUploading, StatusStored, StatusFailed, StatusDeleted} {
		if CanTransition(StatusDeleted, to) {
			t.Errorf("переход DELETED → %s должен быть запрещён", to)
		}
	}
}

// TestCanTransition_Forbidden проверяет отдельные запрещённые переходы.
func TestCanTransition_Forbidden(t *testing.T) {
	cases := []struct {
		from, to StoreStatus
	}{
		{StatusStored, StatusPending},
		{StatusUploading, StatusPending},
		{StatusPending, StatusDeleted}, // удалять можно только STORED/FAILED
		{StatusUploading, StatusDeleted},
		{StatusStored, StatusUploading},
	}
	for _, c := range cases {
		if CanTransition(c.from, c.to) {
			t.Errorf("переход %s → %s должен быть запрещён", c.from, c.to)
		}
	}
}

// TestCheckTransition возвращает ошибку для недопустимого перехода.
func TestCheckTransition(t *testing.T) {
	if err := CheckTransition(StatusPending, StatusStored); err != nil {
		t.Errorf("неожиданная ошибка: %v", err)
	}
	if err := CheckTransition(StatusDeleted, StatusStored); err == nil {
		t.Error("ожидалась ошибка для перехода DELETED → STORED")
	}
}

// TestIsValidStatus проверяет валидацию значений статуса.
func TestIsValidStatus(t *testing.T) {
	for _, s := range []StoreStatus{StatusPending, StatusUploading, StatusStored, StatusFailed, StatusDeleted} {
		if !IsValidStatus(s) {
			t.Errorf("статус %s должен быть валидным", s)
		}
	}
	if IsValidStatus("ARCHIVED") {
		t.Error("статус ARCHIVED не должен быть валидным")
	}
}
