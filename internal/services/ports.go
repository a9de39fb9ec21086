// Package services orchestrates writes across the local store, the
// permission gate and the AMQP notification channel. Every mutating
// operation resolves the caller, asks the gate, validates, persists, then
// publishes a record-dirty message on a best-effort basis.
package services

import (
	"context"
	"errors"

	"fintrack/internal/core"
	syncport "fintrack/internal/sync"
)

// ErrPermissionDenied is returned when the caller's role does not hold the
// permission an operation requires, or the record belongs to someone else.
var ErrPermissionDenied = errors.New("permission denied")

// TransactionStore is the slice of the local store the transaction service
// writes through.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	SoftDeleteTransaction(ctx context.Context, id int64) error
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
}

// TaxonomyStore covers category and person maintenance.
type TaxonomyStore interface {
	CreateCategory(ctx context.Context, c core.Category) (int64, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	SoftDeleteCategory(ctx context.Context, id int64) error
	ListCategories(ctx context.Context, isExpense bool) ([]core.Category, error)

	CreatePerson(ctx context.Context, p core.Person) (int64, error)
	UpdatePerson(ctx context.Context, p core.Person) error
	SoftDeletePerson(ctx context.Context, id int64) error
	ListPersons(ctx context.Context) ([]core.Person, error)
}

// DirtyPublisher notifies the sync worker that a record changed. A nil
// publisher is allowed; notifications are then skipped and the periodic
// sync pass picks the record up instead.
type DirtyPublisher interface {
	PublishRecordDirty(ctx context.Context, entity syncport.EntityType, id int64) error
}

func transactionEntity(isExpense bool) syncport.EntityType {
	if isExpense {
		return syncport.EntityExpenses
	}
	return syncport.EntityIncomes
}
