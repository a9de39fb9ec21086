package services

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/rbac"
	syncport "fintrack/internal/sync"
)

func (m *memStore) CreateCategory(_ context.Context, c core.Category) (int64, error) {
	c.ID = m.nextID
	m.nextID++
	m.categories[c.ID] = c
	return c.ID, nil
}

func (m *memStore) UpdateCategory(_ context.Context, c core.Category) error {
	if _, ok := m.categories[c.ID]; !ok {
		return core.ErrNotFound
	}
	m.categories[c.ID] = c
	return nil
}

func (m *memStore) SoftDeleteCategory(_ context.Context, id int64) error {
	if _, ok := m.categories[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *memStore) ListCategories(_ context.Context, isExpense bool) ([]core.Category, error) {
	var out []core.Category
	for _, c := range m.categories {
		if c.IsExpenseCategory == isExpense {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) CreatePerson(_ context.Context, p core.Person) (int64, error) {
	p.ID = m.nextID
	m.nextID++
	m.persons[p.ID] = p
	return p.ID, nil
}

func (m *memStore) UpdatePerson(_ context.Context, p core.Person) error {
	if _, ok := m.persons[p.ID]; !ok {
		return core.ErrNotFound
	}
	m.persons[p.ID] = p
	return nil
}

func (m *memStore) SoftDeletePerson(_ context.Context, id int64) error {
	if _, ok := m.persons[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.persons, id)
	return nil
}

func (m *memStore) ListPersons(_ context.Context) ([]core.Person, error) {
	var out []core.Person
	for _, p := range m.persons {
		out = append(out, p)
	}
	return out, nil
}

func TestCategoryWritesAreAdminOnly(t *testing.T) {
	store := newMemStore()
	svc := NewTaxonomyService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), nil)
	cat := core.Category{Name: "Travel", IsExpenseCategory: true}

	if _, err := svc.CreateCategory(context.Background(), "emp", cat); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("employee create: err = %v, want ErrPermissionDenied", err)
	}

	id, err := svc.CreateCategory(context.Background(), "boss", cat)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}

	if err := svc.DeleteCategory(context.Background(), "emp", id); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("employee delete: err = %v, want ErrPermissionDenied", err)
	}
	if err := svc.DeleteCategory(context.Background(), "boss", id); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestEmployeeCanReadTaxonomy(t *testing.T) {
	store := newMemStore()
	store.categories[1] = core.Category{ID: 1, Name: "Food", IsExpenseCategory: true}
	store.persons[2] = core.Person{ID: 2, Name: "Acme"}
	svc := NewTaxonomyService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), nil)

	cats, err := svc.ListCategories(context.Background(), "emp", true)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 1 {
		t.Errorf("got %d categories, want 1", len(cats))
	}

	persons, err := svc.ListPersons(context.Background(), "emp")
	if err != nil {
		t.Fatalf("ListPersons: %v", err)
	}
	if len(persons) != 1 {
		t.Errorf("got %d persons, want 1", len(persons))
	}
}

func TestTaxonomyWritesPublishDirty(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	svc := NewTaxonomyService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), pub)

	if _, err := svc.CreateCategory(context.Background(), "boss", core.Category{Name: "Rent", IsExpenseCategory: true}); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if _, err := svc.CreatePerson(context.Background(), "boss", core.Person{Name: "Acme"}); err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}

	want := []syncport.EntityType{syncport.EntityCategories, syncport.EntityPersons}
	if len(pub.published) != 2 || pub.published[0] != want[0] || pub.published[1] != want[1] {
		t.Errorf("published = %v, want %v", pub.published, want)
	}
}

func TestUnknownCallerIsRejected(t *testing.T) {
	store := newMemStore()
	svc := NewTaxonomyService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), nil)

	_, err := svc.ListCategories(context.Background(), "nobody", true)
	if !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}
