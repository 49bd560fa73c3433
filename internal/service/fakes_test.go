package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/bigkaa/mediastore/internal/backend"
	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/locker"
	"github.com/bigkaa/mediastore/internal/provenance"
	"github.com/bigkaa/mediastore/internal/repository"
)

// --- fakeStore: in-memory MediaStore с CAS-семантикой ---

type fakeStore struct {
	mu     sync.Mutex
	recs   map[string]*model.MediaRecord
	nextPK int64
	// failWith — системная ошибка для всех операций (симуляция сбоя БД)
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]*model.MediaRecord)}
}

func copyRecord(rec *model.MediaRecord) *model.MediaRecord {
	c := *rec
	c.Identifiers = make(map[string]string, len(rec.Identifiers))
	for k, v := range rec.Identifiers {
		c.Identifiers[k] = v
	}
	c.Metadata = make(map[string]any, len(rec.Metadata))
	for k, v := range rec.Metadata {
		c.Metadata[k] = v
	}
	c.Tags = append([]string(nil), rec.Tags...)
	return &c
}

func (f *fakeStore) Create(_ context.Context, rec *model.MediaRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if cur, ok := f.recs[rec.PID]; ok && cur.StoreStatus != model.StatusDeleted {
		return fmt.Errorf("%w: pid %q", repository.ErrConflict, rec.PID)
	}
	f.nextPK++
	rec.PK = f.nextPK
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	f.recs[rec.PID] = copyRecord(rec)
	return nil
}

func (f *fakeStore) GetByPID(_ context.Context, pid string) (*model.MediaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	rec, ok := f.recs[pid]
	if !ok || rec.StoreStatus == model.StatusDeleted {
		return nil, repository.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (f *fakeStore) UpdateCAS(_ context.Context, rec *model.MediaRecord, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	cur, ok := f.recs[rec.PID]
	if !ok || cur.StoreStatus == model.StatusDeleted {
		return repository.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return repository.ErrVersionMismatch
	}
	rec.Version = cur.Version + 1
	rec.UpdatedAt = time.Now()
	f.recs[rec.PID] = copyRecord(rec)
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, pid string, from, to model.StoreStatus, bumpVersion bool) (*model.MediaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	if err := model.CheckTransition(from, to); err != nil {
		return nil, err
	}
	cur, ok := f.recs[pid]
	if !ok || cur.StoreStatus != from {
		return nil, repository.ErrNotFound
	}
	cur.StoreStatus = to
	if bumpVersion {
		cur.Version++
	}
	cur.UpdatedAt = time.Now()
	return copyRecord(cur), nil
}

func (f *fakeStore) Rename(_ context.Context, oldPID string, rec *model.MediaRecord, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	cur, ok := f.recs[oldPID]
	if !ok || cur.StoreStatus == model.StatusDeleted {
		return repository.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return repository.ErrVersionMismatch
	}
	if existing, ok := f.recs[rec.PID]; ok && existing.StoreStatus != model.StatusDeleted {
		return fmt.Errorf("%w: pid %q", repository.ErrConflict, rec.PID)
	}
	stored := copyRecord(rec)
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = time.Now()
	delete(f.recs, oldPID)
	f.recs[stored.PID] = stored
	rec.Version = stored.Version
	rec.UpdatedAt = stored.UpdatedAt
	return nil
}

func (f *fakeStore) SoftDelete(_ context.Context, pid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	cur, ok := f.recs[pid]
	if !ok || cur.StoreStatus == model.StatusDeleted {
		return repository.ErrNotFound
	}
	if cur.StoreStatus != model.StatusStored && cur.StoreStatus != model.StatusFailed {
		return repository.ErrNotDeletable
	}
	cur.StoreStatus = model.StatusDeleted
	cur.Version++
	return nil
}

func (f *fakeStore) SearchByTags(_ context.Context, tags []string, limit, offset int) ([]*model.MediaRecord, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, 0, f.failWith
	}
	var matched []*model.MediaRecord
	for _, rec := range f.recs {
		if rec.StoreStatus == model.StatusDeleted {
			continue
		}
		if containsAll(rec.Tags, tags) {
			matched = append(matched, copyRecord(rec))
		}
	}
	total := len(matched)
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func containsAll(haystack, needles []string) bool {
	set := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		set[h] = true
	}
	for _, n := range needles {
		if !set[n] {
			return false
		}
	}
	return true
}

// --- fakeValidator: валидация PID по шаблонам в памяти ---

type fakeValidator struct {
	// patterns: имя типа → шаблон (пустая строка — любой непустой PID)
	patterns map[string]string
}

func (v *fakeValidator) Validate(_ context.Context, pid, pidType string) error {
	pattern, ok := v.patterns[pidType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrValidation, pidType)
	}
	if pid == "" {
		return fmt.Errorf("%w: пустой pid", ErrInvalidPIDFormat)
	}
	if pattern == "" {
		return nil
	}
	matched, err := regexp.MatchString(`\A(?:`+pattern+`)\z`, pid)
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("%w: pid %q", ErrInvalidPIDFormat, pid)
	}
	return nil
}

// --- fakeConfigs: in-memory StoreConfigRepository ---

type fakeConfigs struct {
	mu      sync.Mutex
	configs map[int64]*model.StoreConfig
	s3s     map[int64]*model.S3Config
	nextPK  int64
}

func newFakeConfigs() *fakeConfigs {
	return &fakeConfigs{
		configs: make(map[int64]*model.StoreConfig),
		s3s:     make(map[int64]*model.S3Config),
	}
}

func (f *fakeConfigs) CreateStoreConfig(_ context.Context, sc *model.StoreConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPK++
	sc.PK = f.nextPK
	c := *sc
	f.configs[sc.PK] = &c
	return nil
}

func (f *fakeConfigs) GetStoreConfig(_ context.Context, pk int64) (*model.StoreConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc, ok := f.configs[pk]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *sc
	return &c, nil
}

func (f *fakeConfigs) FindStoreConfig(_ context.Context, typ, bucket, s3URL string) (*model.StoreConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sc := range f.configs {
		if sc.Type == typ && sc.Bucket == bucket && sc.S3URL == s3URL {
			c := *sc
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeConfigs) ListStoreConfigs(_ context.Context) ([]*model.StoreConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*model.StoreConfig
	for _, sc := range f.configs {
		c := *sc
		result = append(result, &c)
	}
	return result, nil
}

func (f *fakeConfigs) CreateS3Config(_ context.Context, s3 *model.S3Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPK++
	s3.PK = f.nextPK
	c := *s3
	f.s3s[s3.PK] = &c
	return nil
}

func (f *fakeConfigs) FindS3ConfigByURL(_ context.Context, url string) (*model.S3Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s3 := range f.s3s {
		if s3.URL == url {
			return &model.S3Config{PK: s3.PK, URL: s3.URL}, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeConfigs) GetS3Credentials(_ context.Context, pk int64) (*model.S3Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s3, ok := f.s3s[pk]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s3
	return &c, nil
}

func (f *fakeConfigs) ListS3Configs(_ context.Context) ([]*model.S3Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*model.S3Config
	for _, s3 := range f.s3s {
		result = append(result, &model.S3Config{PK: s3.PK, URL: s3.URL})
	}
	return result, nil
}

// --- fakeBackend: in-memory backend.Store ---

type fakeBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	// presign — выдавать presigned URL
	presign bool
	// putErr / getErr — инъекция ошибок backend'а
	putErr error
	getErr error
}

func newFakeBackend(presign bool) *fakeBackend {
	return &fakeBackend{objects: make(map[string][]byte), presign: presign}
}

func (b *fakeBackend) SupportsPresign() bool { return b.presign }

func (b *fakeBackend) PresignPut(_ context.Context, key string, _ time.Duration) (string, error) {
	if !b.presign {
		return "", backend.ErrPresignUnsupported
	}
	if b.putErr != nil {
		return "", b.putErr
	}
	return "https://backend.test/put/" + key, nil
}

func (b *fakeBackend) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if !b.presign {
		return "", backend.ErrPresignUnsupported
	}
	return "https://backend.test/get/" + key, nil
}

func (b *fakeBackend) PutInline(_ context.Context, key string, data []byte, _ string) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *fakeBackend) GetInline(_ context.Context, key string) ([]byte, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrObjectNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (b *fakeBackend) object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

func (b *fakeBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return fmt.Errorf("%w: %s", backend.ErrObjectNotFound, key)
	}
	delete(b.objects, key)
	return nil
}

// fakeResolver возвращает один и тот же backend для любой конфигурации.
type fakeResolver struct {
	store backend.Store
	err   error
}

func (r *fakeResolver) Resolve(context.Context, model.StoreConfig) (backend.Store, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.store, nil
}

// --- Конструкторы сервисов для тестов ---

// testEnv — собранный набор сервисов над in-memory fake'ами.
type testEnv struct {
	store    *fakeStore
	configs  *fakeConfigs
	backend  *fakeBackend
	locks    *locker.Locker
	media    *MediaService
	transfer *TransferService
}

// newTestEnv создаёт окружение с типами идентификаторов:
// "doi" (шаблон DOI) и "free" (без шаблона).
func newTestEnv() *testEnv {
	store := newFakeStore()
	configs := newFakeConfigs()
	be := newFakeBackend(true)
	locks := locker.New()
	cache := NewCacheService(128, time.Minute)
	logger := slog.Default()
	validator := &fakeValidator{patterns: map[string]string{
		"doi":  `10\.\d+/.+`,
		"free": "",
	}}

	media := NewMediaService(store, validator, configs, locks, cache, provenance.NopRecorder{}, logger)
	transfer := NewTransferService(store, &fakeResolver{store: be}, locks, cache, provenance.NopRecorder{},
		15*time.Minute, 1<<20, logger)

	return &testEnv{store: store, configs: configs, backend: be, locks: locks, media: media, transfer: transfer}
}

// mustCreate создаёт запись с local-backend'ом или падает.
func (env *testEnv) mustCreate(t testingT, pid string) *model.MediaRecord {
	t.Helper()
	rec, err := env.media.Create(context.Background(), CreateParams{
		PID:         pid,
		PIDType:     "free",
		StoreConfig: StoreConfigSpec{Type: model.StoreTypeLocal, Bucket: "b"},
	})
	if err != nil {
		t.Fatalf("ошибка создания записи %q: %v", pid, err)
	}
	return rec
}

// testingT — минимальный интерфейс testing.T для helper'ов.
type testingT interface {
	Fatalf(format string, args ...any)
	Helper()
}
