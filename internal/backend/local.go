// local.go — backend на локальной файловой системе.
// Каждый «бакет» — каталог внутри корневой директории данных.
// Presigned URL не поддерживаются: негoциатор при direct download
// переключается на inline-путь.
package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore — файловый backend над одним каталогом-бакетом.
type LocalStore struct {
	// dir — каталог бакета
	dir string
	// maxBytes — квота на суммарный размер объектов; 0 — без ограничения
	maxBytes int64
}

// NewLocalStore создаёт файловый backend: dataDir/bucket.
// maxBytes — квота бакета в байтах (0 — без ограничения).
func NewLocalStore(dataDir, bucket string, maxBytes int64) (*LocalStore, error) {
	dir := filepath.Join(dataDir, bucket)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог бакета %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, maxBytes: maxBytes}, nil
}

// SupportsPresign — файловый backend не выдаёт presigned URL.
func (l *LocalStore) SupportsPresign() bool { return false }

// PresignPut не поддерживается файловым backend'ом.
func (l *LocalStore) PresignPut(context.Context, string, time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

// PresignGet не поддерживается файловым backend'ом.
func (l *LocalStore) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

// PutInline записывает байты объекта на диск.
// Паттерн: temp файл → запись → fsync → atomic rename.
func (l *LocalStore) PutInline(_ context.Context, key string, data []byte, _ string) error {
	if l.maxBytes > 0 {
		used, err := l.usedBytes()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if used+int64(len(data)) > l.maxBytes {
			return fmt.Errorf("%w: бакет %s", ErrQuotaExceeded, filepath.Base(l.dir))
		}
	}

	path, err := l.objectPath(key)
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: создание временного файла: %v", ErrUnavailable, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: запись данных: %v", ErrUnavailable, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: fsync: %v", ErrUnavailable, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: закрытие файла: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: атомарное переименование: %v", ErrUnavailable, err)
	}
	return nil
}

// GetInline читает байты объекта с диска.
func (l *LocalStore) GetInline(_ context.Context, key string) ([]byte, error) {
	path, err := l.objectPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("%w: чтение %s: %v", ErrUnavailable, key, err)
	}
	return data, nil
}

// Delete удаляет объект с диска.
func (l *LocalStore) Delete(_ context.Context, key string) error {
	path, err := l.objectPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("%w: удаление %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// objectPath возвращает путь объекта внутри каталога бакета.
// Ключи с выходом за пределы каталога отклоняются.
func (l *LocalStore) objectPath(key string) (string, error) {
	// Ключ может содержать "/", но не должен покидать каталог бакета.
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: недопустимый ключ объекта %q", ErrUnavailable, key)
	}

	path := filepath.Join(l.dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("%w: создание каталога объекта: %v", ErrUnavailable, err)
	}
	return path, nil
}

// usedBytes возвращает суммарный размер объектов бакета.
func (l *LocalStore) usedBytes() (int64, error) {
	var total int64
	err := filepath.Walk(l.dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
