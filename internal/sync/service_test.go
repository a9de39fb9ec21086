package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
)

// memLocal is an in-memory LocalStore for exercising the reconciliation
// state machine without SQLite.
type memLocal struct {
	txs        map[int64]core.Transaction
	cats       map[int64]core.Category
	persons    map[int64]core.Person
	watermarks map[EntityType]time.Time

	// appliedTxs counts ApplyRemoteTransaction calls.
	appliedTxs int
}

func newMemLocal() *memLocal {
	return &memLocal{
		txs:        map[int64]core.Transaction{},
		cats:       map[int64]core.Category{},
		persons:    map[int64]core.Person{},
		watermarks: map[EntityType]time.Time{},
	}
}

func (m *memLocal) HasUnsyncedData(context.Context) (bool, error) {
	for _, tx := range m.txs {
		if tx.NeedsSync {
			return true, nil
		}
	}
	for _, c := range m.cats {
		if c.NeedsSync {
			return true, nil
		}
	}
	for _, p := range m.persons {
		if p.NeedsSync {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLocal) UnsyncedCount(_ context.Context, entity EntityType) (int64, error) {
	var n int64
	switch entity {
	case EntityExpenses, EntityIncomes:
		want := entity == EntityExpenses
		for _, tx := range m.txs {
			if tx.NeedsSync && tx.IsExpense == want {
				n++
			}
		}
	case EntityCategories:
		for _, c := range m.cats {
			if c.NeedsSync {
				n++
			}
		}
	case EntityPersons:
		for _, p := range m.persons {
			if p.NeedsSync {
				n++
			}
		}
	}
	return n, nil
}

func (m *memLocal) WatchUnsyncedCounts(ctx context.Context) (<-chan Counts, error) {
	ch := make(chan Counts, 1)
	exp, _ := m.UnsyncedCount(ctx, EntityExpenses)
	inc, _ := m.UnsyncedCount(ctx, EntityIncomes)
	ch <- Counts{Expenses: exp, Incomes: inc}
	return ch, nil
}

func (m *memLocal) UnsyncedTransactions(_ context.Context, isExpense bool, limit int) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range m.txs {
		if tx.NeedsSync && tx.IsExpense == isExpense && len(out) < limit {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memLocal) UnsyncedCategories(_ context.Context, limit int) ([]core.Category, error) {
	var out []core.Category
	for _, c := range m.cats {
		if c.NeedsSync && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memLocal) UnsyncedPersons(_ context.Context, limit int) ([]core.Person, error) {
	var out []core.Person
	for _, p := range m.persons {
		if p.NeedsSync && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memLocal) MarkSynced(_ context.Context, entity EntityType, id int64, ackedAt time.Time) error {
	switch entity {
	case EntityExpenses, EntityIncomes:
		tx, ok := m.txs[id]
		if !ok {
			return core.ErrNotFound
		}
		tx.NeedsSync = false
		tx.IsSynced = true
		tx.LastSyncedAt = &ackedAt
		m.txs[id] = tx
	case EntityCategories:
		c, ok := m.cats[id]
		if !ok {
			return core.ErrNotFound
		}
		c.NeedsSync = false
		c.IsSynced = true
		c.LastSyncedAt = &ackedAt
		m.cats[id] = c
	case EntityPersons:
		p, ok := m.persons[id]
		if !ok {
			return core.ErrNotFound
		}
		p.NeedsSync = false
		p.IsSynced = true
		p.LastSyncedAt = &ackedAt
		m.persons[id] = p
	}
	return nil
}

func syncedAt(at *time.Time) *time.Time {
	if at != nil {
		return at
	}
	now := time.Now().UTC()
	return &now
}

func (m *memLocal) ApplyRemoteTransaction(_ context.Context, remote core.Transaction) error {
	m.appliedTxs++
	if local, ok := m.txs[remote.ID]; ok && local.UpdatedAt.After(remote.UpdatedAt) {
		return nil // local copy is newer, stays dirty for the next push
	}
	remote.NeedsSync = false
	remote.IsSynced = true
	remote.LastSyncedAt = syncedAt(remote.LastSyncedAt)
	m.txs[remote.ID] = remote
	return nil
}

func (m *memLocal) ApplyRemoteCategory(_ context.Context, remote core.Category) error {
	if local, ok := m.cats[remote.ID]; ok && local.UpdatedAt.After(remote.UpdatedAt) {
		return nil
	}
	remote.NeedsSync = false
	remote.IsSynced = true
	remote.LastSyncedAt = syncedAt(remote.LastSyncedAt)
	m.cats[remote.ID] = remote
	return nil
}

func (m *memLocal) ApplyRemotePerson(_ context.Context, remote core.Person) error {
	if local, ok := m.persons[remote.ID]; ok && local.UpdatedAt.After(remote.UpdatedAt) {
		return nil
	}
	remote.NeedsSync = false
	remote.IsSynced = true
	remote.LastSyncedAt = syncedAt(remote.LastSyncedAt)
	m.persons[remote.ID] = remote
	return nil
}

func (m *memLocal) Watermark(_ context.Context, entity EntityType) (time.Time, error) {
	return m.watermarks[entity], nil
}

func (m *memLocal) SetWatermark(_ context.Context, entity EntityType, at time.Time) error {
	m.watermarks[entity] = at
	return nil
}

// memRemote is an in-memory RemoteStore. Pushes upsert by record id.
type memRemote struct {
	txs     map[int64]core.Transaction
	cats    map[int64]core.Category
	persons map[int64]core.Person

	txPushes int
	// failPushAfter fails transaction pushes once txPushes exceeds it
	// (0 = never fail). failPersons fails every person push.
	failPushAfter int
	failPersons   bool
}

func newMemRemote() *memRemote {
	return &memRemote{
		txs:     map[int64]core.Transaction{},
		cats:    map[int64]core.Category{},
		persons: map[int64]core.Person{},
	}
}

var errRemoteDown = errors.New("remote unavailable")

func (r *memRemote) PushTransaction(_ context.Context, tx core.Transaction) (time.Time, error) {
	r.txPushes++
	if r.failPushAfter > 0 && r.txPushes > r.failPushAfter {
		return time.Time{}, errRemoteDown
	}
	r.txs[tx.ID] = tx
	return time.Now().UTC(), nil
}

func (r *memRemote) PushCategory(_ context.Context, c core.Category) (time.Time, error) {
	r.cats[c.ID] = c
	return time.Now().UTC(), nil
}

func (r *memRemote) PushPerson(_ context.Context, p core.Person) (time.Time, error) {
	if r.failPersons {
		return time.Time{}, errRemoteDown
	}
	r.persons[p.ID] = p
	return time.Now().UTC(), nil
}

func (r *memRemote) PullTransactions(_ context.Context, isExpense bool, since time.Time) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range r.txs {
		if tx.IsExpense == isExpense && tx.UpdatedAt.After(since) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *memRemote) PullCategories(_ context.Context, since time.Time) ([]core.Category, error) {
	var out []core.Category
	for _, c := range r.cats {
		if c.UpdatedAt.After(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRemote) PullPersons(_ context.Context, since time.Time) ([]core.Person, error) {
	var out []core.Person
	for _, p := range r.persons {
		if p.UpdatedAt.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func dirtyExpense(id int64, cents int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		UserID:      "u1",
		CategoryID:  1,
		Amount:      core.Money{Cents: cents},
		Description: "tx",
		Date:        core.NewDate(2024, 3, 5),
		IsExpense:   true,
		NeedsSync:   true,
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestSyncExpensesStateTransitions(t *testing.T) {
	local := newMemLocal()
	remote := newMemRemote()
	local.txs[1] = dirtyExpense(1, 100_00)

	svc := NewService(local, remote, DefaultConfig())
	if err := svc.SyncExpenses(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := local.txs[1]
	if got.NeedsSync {
		t.Error("record should no longer need sync")
	}
	if !got.IsSynced {
		t.Error("record should be synced")
	}
	if got.LastSyncedAt == nil {
		t.Error("lastSyncedAt should be set on acknowledgment")
	}
	if _, ok := remote.txs[1]; !ok {
		t.Error("record should exist remotely")
	}
}

// A record pushed during a pass comes back from the pull whenever its
// UpdatedAt is newer than the previous watermark, carrying pre-push sync
// fields. The pass must not re-apply it, or the acknowledgment the push
// just recorded would be wiped.
func TestPullSkipsRecordsPushedInSamePass(t *testing.T) {
	local := newMemLocal()
	remote := newMemRemote()
	local.txs[1] = dirtyExpense(1, 100_00)

	// A record another client pushed earlier must still be pulled.
	foreign := dirtyExpense(2, 55_00)
	foreign.NeedsSync = false
	remote.txs[2] = foreign

	svc := NewService(local, remote, DefaultConfig())
	if err := svc.SyncExpenses(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if local.appliedTxs != 1 {
		t.Errorf("applied %d pulled records, want only the foreign one", local.appliedTxs)
	}
	got := local.txs[1]
	if got.NeedsSync || !got.IsSynced || got.LastSyncedAt == nil {
		t.Errorf("pushed record lost its acknowledgment: %+v", got)
	}
	pulled, ok := local.txs[2]
	if !ok {
		t.Fatal("foreign remote record should have been pulled")
	}
	if !pulled.IsSynced || pulled.LastSyncedAt == nil {
		t.Errorf("pulled record should land synced: %+v", pulled)
	}
}

func TestSyncExpensesIdempotent(t *testing.T) {
	local := newMemLocal()
	remote := newMemRemote()
	local.txs[1] = dirtyExpense(1, 100_00)

	svc := NewService(local, remote, DefaultConfig())
	if err := svc.SyncExpenses(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	pushesAfterFirst := remote.txPushes

	if err := svc.SyncExpenses(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if remote.txPushes != pushesAfterFirst {
		t.Errorf("second pass re-pushed: %d pushes, want %d", remote.txPushes, pushesAfterFirst)
	}
	if len(remote.txs) != 1 {
		t.Errorf("remote record count: got %d, want 1", len(remote.txs))
	}
}

func TestPushFailureLeavesPreSyncState(t *testing.T) {
	local := newMemLocal()
	remote := newMemRemote()
	remote.failPushAfter = 1
	local.txs[1] = dirtyExpense(1, 10_00)
	local.txs[2] = dirtyExpense(2, 20_00)

	svc := NewService(local, remote, DefaultConfig())
	err := svc.SyncExpenses(context.Background())
	if !errors.Is(err, errRemoteDown) {
		t.Fatalf("got %v, want remote failure", err)
	}

	var synced, dirty int
	for _, tx := range local.txs {
		if tx.NeedsSync {
			dirty++
			if tx.IsSynced || tx.LastSyncedAt != nil {
				t.Error("failed record must keep its pre-sync state")
			}
		} else {
			synced++
		}
	}
	if synced != 1 || dirty != 1 {
		t.Errorf("got %d synced, %d dirty; want 1 and 1", synced, dirty)
	}

	// Retry after the transport recovers drains the remaining record.
	remote.failPushAfter = 0
	if err := svc.SyncExpenses(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n, _ := svc.UnsyncedExpenseCount(context.Background()); n != 0 {
		t.Errorf("after retry: %d dirty records", n)
	}
	if len(remote.txs) != 2 {
		t.Errorf("remote record count after retry: got %d", len(remote.txs))
	}
}

func TestSyncAllPartialFailureIsolation(t *testing.T) {
	local := newMemLocal()
	remote := newMemRemote()
	remote.failPersons = true
	local.txs[1] = dirtyExpense(1, 10_00)
	local.persons[1] = core.Person{ID: 1, Name: "Acme", NeedsSync: true, UpdatedAt: time.Now().UTC()}
	local.cats[1] = core.Category{ID: 1, Name: "Food", IsExpenseCategory: true, NeedsSync: true, UpdatedAt: time.Now().UTC()}

	svc := NewService(local, remote, DefaultConfig())
	results := svc.SyncAll(context.Background())

	if results[EntityPersons] == nil {
		t.Error("persons pass should have failed")
	}
	for _, entity := range []EntityType{EntityCategories, EntityExpenses, EntityIncomes} {
		if results[entity] != nil {
			t.Errorf("%s pass should have succeeded: %v", entity, results[entity])
		}
	}
	if !local.txs[1].IsSynced {
		t.Error("expense should have synced despite persons failure")
	}
	if err := results.Err(); err == nil {
		t.Error("aggregate error expected")
	}

	// Person record stayed Local-Dirty.
	if !local.persons[1].NeedsSync {
		t.Error("failed person record must stay dirty")
	}
}

func TestPullLastWriteWins(t *testing.T) {
	local := newMemLocal()
	remote := newMemRemote()

	old := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()

	// Remote newer than local: remote wins. The local copy is clean, so
	// the push phase leaves it alone and the pull overwrites it.
	stale := dirtyExpense(1, 10_00)
	stale.NeedsSync = false
	stale.IsSynced = true
	stale.UpdatedAt = old
	local.txs[1] = stale
	remoteCopy := dirtyExpense(1, 99_00)
	remoteCopy.UpdatedAt = newer
	remote.txs[1] = remoteCopy

	// Local newer than remote: local wins and stays dirty.
	fresh := dirtyExpense(2, 20_00)
	fresh.UpdatedAt = newer
	local.txs[2] = fresh
	remoteStale := dirtyExpense(2, 77_00)
	remoteStale.UpdatedAt = old
	remote.txs[2] = remoteStale

	svc := NewService(local, remote, DefaultConfig())
	if err := svc.SyncExpenses(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := local.txs[1].Amount.Cents; got != 99_00 {
		t.Errorf("record 1: remote should win, got %d cents", got)
	}
	if got := local.txs[2].Amount.Cents; got != 20_00 {
		t.Errorf("record 2: local should win, got %d cents", got)
	}
}

func TestWatermarkLimitsPulls(t *testing.T) {
	local := newMemLocal()
	remote := newMemRemote()
	old := dirtyExpense(1, 10_00)
	old.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	remote.txs[1] = old

	svc := NewService(local, remote, DefaultConfig())
	if err := svc.SyncExpenses(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if len(local.txs) != 1 {
		t.Fatalf("first pass should pull the remote record, got %d", len(local.txs))
	}

	// Second pass: nothing remote is newer than the advanced watermark,
	// so the stale remote copy must not clobber local state again.
	delete(local.txs, 1)
	if err := svc.SyncExpenses(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(local.txs) != 0 {
		t.Error("second pass should not re-pull records behind the watermark")
	}
}

func TestCountsAndGate(t *testing.T) {
	local := newMemLocal()
	local.txs[1] = dirtyExpense(1, 10_00)
	income := dirtyExpense(2, 50_00)
	income.IsExpense = false
	local.txs[2] = income

	svc := NewService(local, newMemRemote(), DefaultConfig())
	ctx := context.Background()

	if ok, _ := svc.HasUnsyncedData(ctx); !ok {
		t.Error("expected unsynced data")
	}
	if n, _ := svc.UnsyncedExpenseCount(ctx); n != 1 {
		t.Errorf("expense count: got %d", n)
	}
	if n, _ := svc.UnsyncedIncomeCount(ctx); n != 1 {
		t.Errorf("income count: got %d", n)
	}

	ch, err := svc.WatchUnsyncedCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	counts := <-ch
	if counts.Expenses != 1 || counts.Incomes != 1 {
		t.Errorf("watch counts: got %+v", counts)
	}

	results := svc.SyncAll(ctx)
	if err := results.Err(); err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if ok, _ := svc.HasUnsyncedData(ctx); ok {
		t.Error("expected no unsynced data after full pass")
	}
}
