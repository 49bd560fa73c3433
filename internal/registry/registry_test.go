package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
)

// fakeTypeRepo — in-memory реализация IdentifierTypeRepository для тестов.
type fakeTypeRepo struct {
	types map[string]*model.IdentifierType
}

func newFakeTypeRepo(types ...*model.IdentifierType) *fakeTypeRepo {
	m := make(map[string]*model.IdentifierType)
	for _, it := range types {
		m[it.Name] = it
	}
	return &fakeTypeRepo{types: m}
}

func (f *fakeTypeRepo) Create(_ context.Context, it *model.IdentifierType) error {
	if _, ok := f.types[it.Name]; ok {
		return repository.ErrConflict
	}
	f.types[it.Name] = it
	return nil
}

func (f *fakeTypeRepo) GetByName(_ context.Context, name string) (*model.IdentifierType, error) {
	it, ok := f.types[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return it, nil
}

func (f *fakeTypeRepo) List(_ context.Context) ([]*model.IdentifierType, error) {
	var result []*model.IdentifierType
	for _, it := range f.types {
		result = append(result, it)
	}
	return result, nil
}

// TestValidate_DOIPattern проверяет enforcement шаблона DOI.
func TestValidate_DOIPattern(t *testing.T) {
	reg := New(newFakeTypeRepo(&model.IdentifierType{Name: "doi", Pattern: `^10\.\d+/.+$`}))
	ctx := context.Background()

	if err := reg.Validate(ctx, "10.1234/abc", "doi"); err != nil {
		t.Errorf("валидный DOI отклонён: %v", err)
	}
	if err := reg.Validate(ctx, "not-a-doi", "doi"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("ожидался ErrInvalidFormat, получено: %v", err)
	}
}

// TestValidate_PatternIsAnchored проверяет, что шаблон якорится целиком —
// совпадение подстроки не принимается.
func TestValidate_PatternIsAnchored(t *testing.T) {
	reg := New(newFakeTypeRepo(&model.IdentifierType{Name: "num", Pattern: `\d+`}))
	ctx := context.Background()

	if err := reg.Validate(ctx, "123", "num"); err != nil {
		t.Errorf("валидный pid отклонён: %v", err)
	}
	if err := reg.Validate(ctx, "abc123def", "num"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("совпадение подстроки должно отклоняться, получено: %v", err)
	}
}

// TestValidate_EmptyPattern — тип без шаблона принимает любой непустой PID.
func TestValidate_EmptyPattern(t *testing.T) {
	reg := New(newFakeTypeRepo(&model.IdentifierType{Name: "free", Pattern: ""}))
	ctx := context.Background()

	if err := reg.Validate(ctx, "anything-goes", "free"); err != nil {
		t.Errorf("pid без шаблона отклонён: %v", err)
	}
	if err := reg.Validate(ctx, "", "free"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("пустой pid должен отклоняться, получено: %v", err)
	}
	if err := reg.Validate(ctx, "   ", "free"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("pid из пробелов должен отклоняться, получено: %v", err)
	}
}

// TestValidate_UnknownType — незарегистрированный тип идентификатора.
func TestValidate_UnknownType(t *testing.T) {
	reg := New(newFakeTypeRepo())

	if err := reg.Validate(context.Background(), "p1", "ghost"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("ожидался ErrUnknownType, получено: %v", err)
	}
}

// TestValidate_BadPattern — некорректный regexp в типе идентификатора.
func TestValidate_BadPattern(t *testing.T) {
	reg := New(newFakeTypeRepo(&model.IdentifierType{Name: "bad", Pattern: `([`}))

	if err := reg.Validate(context.Background(), "p1", "bad"); err == nil {
		t.Error("ожидалась ошибка компиляции шаблона")
	}
}

// TestCompile_Cache — повторная валидация использует кэшированный regexp.
func TestCompile_Cache(t *testing.T) {
	reg := New(newFakeTypeRepo(&model.IdentifierType{Name: "doi", Pattern: `^10\.\d+/.+$`}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := reg.Validate(ctx, "10.1/x", "doi"); err != nil {
			t.Fatalf("итерация %d: %v", i, err)
		}
	}
	if reg.patterns.Len() != 1 {
		t.Errorf("в кэше %d шаблонов, ожидался 1", reg.patterns.Len())
	}
}
