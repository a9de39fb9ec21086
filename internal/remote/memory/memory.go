// Package memory is an in-memory remote store, used as the default backend
// and in tests. It honors the same contract as the real transport: pushes
// are upserts keyed by record id, pulls return records newer than since.
package memory

import (
	"context"
	gosync "sync"
	"time"

	"fintrack/internal/core"
	syncport "fintrack/internal/sync"
)

type Store struct {
	mu      gosync.Mutex
	txs     map[int64]core.Transaction
	cats    map[int64]core.Category
	persons map[int64]core.Person
}

var _ syncport.RemoteStore = (*Store)(nil)

func New() *Store {
	return &Store{
		txs:     map[int64]core.Transaction{},
		cats:    map[int64]core.Category{},
		persons: map[int64]core.Person{},
	}
}

func (s *Store) PushTransaction(_ context.Context, tx core.Transaction) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = tx
	return time.Now().UTC(), nil
}

func (s *Store) PushCategory(_ context.Context, c core.Category) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cats[c.ID] = c
	return time.Now().UTC(), nil
}

func (s *Store) PushPerson(_ context.Context, p core.Person) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons[p.ID] = p
	return time.Now().UTC(), nil
}

func (s *Store) PullTransactions(_ context.Context, isExpense bool, since time.Time) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.IsExpense == isExpense && tx.UpdatedAt.After(since) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) PullCategories(_ context.Context, since time.Time) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.cats {
		if c.UpdatedAt.After(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) PullPersons(_ context.Context, since time.Time) ([]core.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Person
	for _, p := range s.persons {
		if p.UpdatedAt.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

// TransactionCount reports how many transaction records the store holds.
// Test helper.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}
