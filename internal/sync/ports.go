package sync

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// EntityType names one reconcilable record family.
type EntityType string

const (
	EntityCategories EntityType = "categories"
	EntityPersons    EntityType = "persons"
	EntityExpenses   EntityType = "expenses"
	EntityIncomes    EntityType = "incomes"
)

// AllEntities lists entity types in reconciliation order: taxonomy before
// the records that reference it.
var AllEntities = []EntityType{EntityCategories, EntityPersons, EntityExpenses, EntityIncomes}

// Counts carries the number of locally dirty records per transaction kind,
// surfaced to sync-pending UI badges.
type Counts struct {
	Expenses int64
	Incomes  int64
}

// LocalStore is the sync-bookkeeping view of local storage. Mark and Apply
// operations must be atomic per record: a record is observed either in its
// pre-sync state or fully synced, never torn.
type LocalStore interface {
	HasUnsyncedData(ctx context.Context) (bool, error)
	UnsyncedCount(ctx context.Context, entity EntityType) (int64, error)

	// WatchUnsyncedCounts emits the current counts immediately and again
	// after every local mutation, until ctx is done. This is a long-lived
	// subscription, not a one-shot read.
	WatchUnsyncedCounts(ctx context.Context) (<-chan Counts, error)

	UnsyncedTransactions(ctx context.Context, isExpense bool, limit int) ([]core.Transaction, error)
	UnsyncedCategories(ctx context.Context, limit int) ([]core.Category, error)
	UnsyncedPersons(ctx context.Context, limit int) ([]core.Person, error)

	// MarkSynced clears NeedsSync, sets IsSynced and records ackedAt as
	// LastSyncedAt. Only called after confirmed remote acknowledgment.
	MarkSynced(ctx context.Context, entity EntityType, id int64, ackedAt time.Time) error

	// Apply* upsert a record pulled from the remote store. Last-write-wins:
	// when the local row has a newer UpdatedAt the remote copy is ignored
	// and the local row stays dirty for the next push.
	ApplyRemoteTransaction(ctx context.Context, tx core.Transaction) error
	ApplyRemoteCategory(ctx context.Context, c core.Category) error
	ApplyRemotePerson(ctx context.Context, p core.Person) error

	// Watermark is the per-entity timestamp of the last successful pass;
	// pulls fetch remote changes newer than it.
	Watermark(ctx context.Context, entity EntityType) (time.Time, error)
	SetWatermark(ctx context.Context, entity EntityType, at time.Time) error
}

// RemoteStore is the transport to the remote document store. Pushes are
// upserts keyed by record id, so re-pushing an already-acknowledged record
// must not create a duplicate.
type RemoteStore interface {
	PushTransaction(ctx context.Context, tx core.Transaction) (ackedAt time.Time, err error)
	PushCategory(ctx context.Context, c core.Category) (ackedAt time.Time, err error)
	PushPerson(ctx context.Context, p core.Person) (ackedAt time.Time, err error)

	PullTransactions(ctx context.Context, isExpense bool, since time.Time) ([]core.Transaction, error)
	PullCategories(ctx context.Context, since time.Time) ([]core.Category, error)
	PullPersons(ctx context.Context, since time.Time) ([]core.Person, error)
}
