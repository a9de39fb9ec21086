// Package sync reconciles the local store with the remote document store.
//
// Per-record state machine: Local-Dirty (needsSync, not isSynced) ->
// Pending-Push -> Synced (not needsSync, isSynced, lastSyncedAt set on
// remote acknowledgment). A remote write newer than the local copy wins
// (last-write-wins on UpdatedAt); the losing local copy is overwritten on
// pull. A failed pass leaves every untouched record in its pre-sync state
// and is safe to retry: already-acknowledged records are skipped via the
// needsSync flag.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Config bounds a reconciliation pass.
type Config struct {
	// BatchSize is the max number of dirty records pushed per pass.
	BatchSize int

	// RemoteTimeout bounds every individual remote call so a dead
	// transport cannot block a pass forever.
	RemoteTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BatchSize:     50,
		RemoteTimeout: 15 * time.Second,
	}
}

// Service runs reconciliation passes. It holds no mutable state of its
// own; all bookkeeping lives in the local store.
type Service struct {
	local  LocalStore
	remote RemoteStore
	config Config
}

func NewService(local LocalStore, remote RemoteStore, config Config) *Service {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.RemoteTimeout <= 0 {
		config.RemoteTimeout = DefaultConfig().RemoteTimeout
	}
	return &Service{local: local, remote: remote, config: config}
}

// HasUnsyncedData reports whether any record anywhere in local storage is
// still Local-Dirty. Used as a coarse gate before starting a pass.
func (s *Service) HasUnsyncedData(ctx context.Context) (bool, error) {
	return s.local.HasUnsyncedData(ctx)
}

// UnsyncedExpenseCount returns the number of dirty expense records.
func (s *Service) UnsyncedExpenseCount(ctx context.Context) (int64, error) {
	return s.local.UnsyncedCount(ctx, EntityExpenses)
}

// UnsyncedIncomeCount returns the number of dirty income records.
func (s *Service) UnsyncedIncomeCount(ctx context.Context) (int64, error) {
	return s.local.UnsyncedCount(ctx, EntityIncomes)
}

// WatchUnsyncedCounts exposes the live dirty-record counts subscription.
func (s *Service) WatchUnsyncedCounts(ctx context.Context) (<-chan Counts, error) {
	return s.local.WatchUnsyncedCounts(ctx)
}

// Results holds the per-entity outcome of a SyncAll pass.
type Results map[EntityType]error

// Err aggregates the failed entity types into a single error, or nil when
// every pass succeeded.
func (r Results) Err() error {
	var failed []string
	for _, entity := range AllEntities {
		if err, ok := r[entity]; ok && err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", entity, err))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.New("sync failed for " + strings.Join(failed, "; "))
}

// SyncAll runs one reconciliation pass per entity type, in order. A
// failing entity does not stop the remaining ones; the caller gets the
// outcome of each.
func (s *Service) SyncAll(ctx context.Context) Results {
	results := make(Results, len(AllEntities))
	for _, entity := range AllEntities {
		var err error
		switch entity {
		case EntityCategories:
			err = s.SyncCategories(ctx)
		case EntityPersons:
			err = s.SyncPersons(ctx)
		case EntityExpenses:
			err = s.SyncExpenses(ctx)
		case EntityIncomes:
			err = s.SyncIncomes(ctx)
		}
		results[entity] = err
		if err != nil {
			slog.ErrorContext(ctx, "Sync pass failed", "entity", entity, "error", err)
		}
	}
	return results
}

// SyncEntity runs one reconciliation pass for a single entity type.
func (s *Service) SyncEntity(ctx context.Context, entity EntityType) error {
	switch entity {
	case EntityCategories:
		return s.SyncCategories(ctx)
	case EntityPersons:
		return s.SyncPersons(ctx)
	case EntityExpenses:
		return s.SyncExpenses(ctx)
	case EntityIncomes:
		return s.SyncIncomes(ctx)
	default:
		return fmt.Errorf("unknown entity type: %s", entity)
	}
}

// SyncExpenses reconciles expense records: push all Local-Dirty expenses,
// then pull remote expenses newer than the watermark.
func (s *Service) SyncExpenses(ctx context.Context) error {
	return s.syncTransactions(ctx, EntityExpenses, true)
}

// SyncIncomes reconciles income records.
func (s *Service) SyncIncomes(ctx context.Context) error {
	return s.syncTransactions(ctx, EntityIncomes, false)
}

func (s *Service) syncTransactions(ctx context.Context, entity EntityType, isExpense bool) error {
	passStart := time.Now().UTC()

	since, err := s.local.Watermark(ctx, entity)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}

	// Push phase. A failure here aborts the pass; records already
	// acknowledged stay synced, the rest stay dirty for the retry.
	dirty, err := s.local.UnsyncedTransactions(ctx, isExpense, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list dirty records: %w", err)
	}
	pushedIDs := make(map[int64]struct{}, len(dirty))
	for _, tx := range dirty {
		ackedAt, err := s.pushTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("push record %d: %w", tx.ID, err)
		}
		if err := s.local.MarkSynced(ctx, entity, tx.ID, ackedAt); err != nil {
			return fmt.Errorf("mark record %d synced: %w", tx.ID, err)
		}
		pushedIDs[tx.ID] = struct{}{}
	}

	// Pull phase. The store applies last-write-wins per record. Records
	// pushed in this pass come back from the pull with stale sync fields;
	// the local row already holds the acknowledgment, so they are skipped.
	rctx, cancel := context.WithTimeout(ctx, s.config.RemoteTimeout)
	remote, err := s.remote.PullTransactions(rctx, isExpense, since)
	cancel()
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	for _, tx := range remote {
		if _, ok := pushedIDs[tx.ID]; ok {
			continue
		}
		if err := s.local.ApplyRemoteTransaction(ctx, tx); err != nil {
			return fmt.Errorf("apply remote record %d: %w", tx.ID, err)
		}
	}

	if err := s.local.SetWatermark(ctx, entity, passStart); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}

	slog.InfoContext(ctx, "Sync pass completed",
		"entity", entity,
		"pushed", len(pushedIDs),
		"pulled", len(remote))
	return nil
}

func (s *Service) pushTransaction(ctx context.Context, tx core.Transaction) (time.Time, error) {
	rctx, cancel := context.WithTimeout(ctx, s.config.RemoteTimeout)
	defer cancel()
	return s.remote.PushTransaction(rctx, tx)
}

// SyncCategories reconciles the category taxonomy.
func (s *Service) SyncCategories(ctx context.Context) error {
	passStart := time.Now().UTC()

	since, err := s.local.Watermark(ctx, EntityCategories)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}

	dirty, err := s.local.UnsyncedCategories(ctx, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list dirty records: %w", err)
	}
	pushedIDs := make(map[int64]struct{}, len(dirty))
	for _, c := range dirty {
		rctx, cancel := context.WithTimeout(ctx, s.config.RemoteTimeout)
		ackedAt, err := s.remote.PushCategory(rctx, c)
		cancel()
		if err != nil {
			return fmt.Errorf("push category %d: %w", c.ID, err)
		}
		if err := s.local.MarkSynced(ctx, EntityCategories, c.ID, ackedAt); err != nil {
			return fmt.Errorf("mark category %d synced: %w", c.ID, err)
		}
		pushedIDs[c.ID] = struct{}{}
	}

	rctx, cancel := context.WithTimeout(ctx, s.config.RemoteTimeout)
	remote, err := s.remote.PullCategories(rctx, since)
	cancel()
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	for _, c := range remote {
		if _, ok := pushedIDs[c.ID]; ok {
			continue
		}
		if err := s.local.ApplyRemoteCategory(ctx, c); err != nil {
			return fmt.Errorf("apply remote category %d: %w", c.ID, err)
		}
	}

	if err := s.local.SetWatermark(ctx, EntityCategories, passStart); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}

	slog.InfoContext(ctx, "Sync pass completed",
		"entity", EntityCategories,
		"pushed", len(pushedIDs),
		"pulled", len(remote))
	return nil
}

// SyncPersons reconciles counterparty records.
func (s *Service) SyncPersons(ctx context.Context) error {
	passStart := time.Now().UTC()

	since, err := s.local.Watermark(ctx, EntityPersons)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}

	dirty, err := s.local.UnsyncedPersons(ctx, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list dirty records: %w", err)
	}
	pushedIDs := make(map[int64]struct{}, len(dirty))
	for _, p := range dirty {
		rctx, cancel := context.WithTimeout(ctx, s.config.RemoteTimeout)
		ackedAt, err := s.remote.PushPerson(rctx, p)
		cancel()
		if err != nil {
			return fmt.Errorf("push person %d: %w", p.ID, err)
		}
		if err := s.local.MarkSynced(ctx, EntityPersons, p.ID, ackedAt); err != nil {
			return fmt.Errorf("mark person %d synced: %w", p.ID, err)
		}
		pushedIDs[p.ID] = struct{}{}
	}

	rctx, cancel := context.WithTimeout(ctx, s.config.RemoteTimeout)
	remote, err := s.remote.PullPersons(rctx, since)
	cancel()
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	for _, p := range remote {
		if _, ok := pushedIDs[p.ID]; ok {
			continue
		}
		if err := s.local.ApplyRemotePerson(ctx, p); err != nil {
			return fmt.Errorf("apply remote person %d: %w", p.ID, err)
		}
	}

	if err := s.local.SetWatermark(ctx, EntityPersons, passStart); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}

	slog.InfoContext(ctx, "Sync pass completed",
		"entity", EntityPersons,
		"pushed", len(pushedIDs),
		"pulled", len(remote))
	return nil
}
