package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/rbac"
	"fintrack/internal/report"
	syncport "fintrack/internal/sync"
)

type fakeAuth struct {
	users map[string]report.User
}

func (f *fakeAuth) ResolveUser(_ context.Context, userID string) (report.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return report.User{}, core.ErrUnauthenticated
	}
	return u, nil
}

type memStore struct {
	nextID     int64
	txs        map[int64]core.Transaction
	categories map[int64]core.Category
	persons    map[int64]core.Person
	deleted    []int64
}

func newMemStore() *memStore {
	return &memStore{
		nextID:     1,
		txs:        map[int64]core.Transaction{},
		categories: map[int64]core.Category{},
		persons:    map[int64]core.Person{},
	}
}

func (m *memStore) CreateTransaction(_ context.Context, tx core.Transaction) (int64, error) {
	tx.ID = m.nextID
	m.nextID++
	m.txs[tx.ID] = tx
	return tx.ID, nil
}

func (m *memStore) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	if _, ok := m.txs[tx.ID]; !ok {
		return core.ErrNotFound
	}
	m.txs[tx.ID] = tx
	return nil
}

func (m *memStore) SoftDeleteTransaction(_ context.Context, id int64) error {
	if _, ok := m.txs[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.txs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memStore) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	tx, ok := m.txs[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

func (m *memStore) GetCategory(_ context.Context, id int64) (core.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

type recordingPublisher struct {
	published []syncport.EntityType
	err       error
}

func (p *recordingPublisher) PublishRecordDirty(_ context.Context, entity syncport.EntityType, _ int64) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, entity)
	return nil
}

func testAuth() *fakeAuth {
	return &fakeAuth{users: map[string]report.User{
		"boss":  {ID: "boss", Role: rbac.RoleAdmin},
		"emp":   {ID: "emp", Role: rbac.RoleEmployee},
		"guest": {ID: "guest", Role: rbac.Role("guest")},
	}}
}

func validExpense(categoryID int64) core.Transaction {
	return core.Transaction{
		CategoryID:  categoryID,
		Amount:      core.Money{Cents: 25_00},
		Description: "printer paper",
		Date:        core.NewDate(2026, 5, 10),
		IsExpense:   true,
	}
}

func TestCreateTransaction(t *testing.T) {
	store := newMemStore()
	store.categories[1] = core.Category{ID: 1, Name: "Office", IsExpenseCategory: true}
	pub := &recordingPublisher{}
	svc := NewTransactionService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), pub)

	id, err := svc.CreateTransaction(context.Background(), "emp", validExpense(1))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	saved := store.txs[id]
	if saved.UserID != "emp" {
		t.Errorf("owner = %q, want emp", saved.UserID)
	}
	if len(pub.published) != 1 || pub.published[0] != syncport.EntityExpenses {
		t.Errorf("published = %v, want [expenses]", pub.published)
	}
}

func TestCreateTransactionDeniedForUnknownRole(t *testing.T) {
	store := newMemStore()
	store.categories[1] = core.Category{ID: 1, IsExpenseCategory: true, Name: "Office"}
	svc := NewTransactionService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), nil)

	_, err := svc.CreateTransaction(context.Background(), "guest", validExpense(1))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if len(store.txs) != 0 {
		t.Error("denied create must not persist anything")
	}
}

func TestCreateTransactionCategoryTypeMismatch(t *testing.T) {
	store := newMemStore()
	store.categories[2] = core.Category{ID: 2, Name: "Salary", IsExpenseCategory: false}
	svc := NewTransactionService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), nil)

	_, err := svc.CreateTransaction(context.Background(), "boss", validExpense(2))
	if !errors.Is(err, core.ErrCategoryTypeMismatch) {
		t.Fatalf("err = %v, want ErrCategoryTypeMismatch", err)
	}
}

func TestUpdateTransactionOwnership(t *testing.T) {
	store := newMemStore()
	store.categories[1] = core.Category{ID: 1, Name: "Office", IsExpenseCategory: true}
	svc := NewTransactionService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), nil)

	bossTx := validExpense(1)
	bossTx.UserID = "boss"
	bossTx.ID, _ = store.CreateTransaction(context.Background(), bossTx)

	edited := bossTx
	edited.Description = "toner"

	if err := svc.UpdateTransaction(context.Background(), "emp", edited); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("employee editing someone else's record: err = %v, want ErrPermissionDenied", err)
	}
	if err := svc.UpdateTransaction(context.Background(), "boss", edited); err != nil {
		t.Fatalf("owner edit failed: %v", err)
	}
	if store.txs[bossTx.ID].Description != "toner" {
		t.Error("edit did not persist")
	}
}

func TestDeleteTransactionAdminOverridesOwnership(t *testing.T) {
	store := newMemStore()
	store.categories[1] = core.Category{ID: 1, Name: "Office", IsExpenseCategory: true}
	svc := NewTransactionService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), nil)

	empTx := validExpense(1)
	empTx.UserID = "emp"
	empTx.ID, _ = store.CreateTransaction(context.Background(), empTx)

	if err := svc.DeleteTransaction(context.Background(), "boss", empTx.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != empTx.ID {
		t.Errorf("deleted = %v, want [%d]", store.deleted, empTx.ID)
	}
}

func TestGetTransactionVisibility(t *testing.T) {
	store := newMemStore()
	svc := NewTransactionService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), nil)

	bossTx := validExpense(1)
	bossTx.UserID = "boss"
	bossTx.ID, _ = store.CreateTransaction(context.Background(), bossTx)

	if _, err := svc.GetTransaction(context.Background(), "emp", bossTx.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("employee reading someone else's record: err = %v, want ErrPermissionDenied", err)
	}
	if _, err := svc.GetTransaction(context.Background(), "boss", bossTx.ID); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	store := newMemStore()
	store.categories[1] = core.Category{ID: 1, Name: "Office", IsExpenseCategory: true}
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewTransactionService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), pub)

	id, err := svc.CreateTransaction(context.Background(), "boss", validExpense(1))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if _, ok := store.txs[id]; !ok {
		t.Error("record not persisted despite publish failure")
	}
}

func TestUpdatePreservesOwnerAndKind(t *testing.T) {
	store := newMemStore()
	store.categories[1] = core.Category{ID: 1, Name: "Office", IsExpenseCategory: true}
	svc := NewTransactionService(store, testAuth(), rbac.NewGate(rbac.DefaultPolicy()), nil)

	empTx := validExpense(1)
	empTx.UserID = "emp"
	empTx.ID, _ = store.CreateTransaction(context.Background(), empTx)

	edited := empTx
	edited.UserID = "boss"
	edited.IsExpense = false
	edited.Date = core.Date{Time: time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)}

	if err := svc.UpdateTransaction(context.Background(), "emp", edited); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	got := store.txs[empTx.ID]
	if got.UserID != "emp" || !got.IsExpense {
		t.Errorf("owner/kind not preserved: %+v", got)
	}
}
