package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	syncport "fintrack/internal/sync"
)

// HasUnsyncedData implements sync.LocalStore. Soft-deleted rows are not
// counted: tombstones are not propagated to the remote store.
func (r *Repository) HasUnsyncedData(ctx context.Context) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions WHERE needs_sync = 1 AND deleted_at IS NULL
			UNION ALL
			SELECT 1 FROM categories WHERE needs_sync = 1 AND deleted_at IS NULL
			UNION ALL
			SELECT 1 FROM persons WHERE needs_sync = 1 AND deleted_at IS NULL
		)`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check unsynced data: %w", err)
	}
	return n != 0, nil
}

// UnsyncedCount implements sync.LocalStore.
func (r *Repository) UnsyncedCount(ctx context.Context, entity syncport.EntityType) (int64, error) {
	var (
		query string
		args  []any
	)
	switch entity {
	case syncport.EntityExpenses, syncport.EntityIncomes:
		query = `SELECT COUNT(*) FROM transactions
			WHERE needs_sync = 1 AND deleted_at IS NULL AND is_expense = ?`
		args = append(args, entity == syncport.EntityExpenses)
	case syncport.EntityCategories:
		query = `SELECT COUNT(*) FROM categories WHERE needs_sync = 1 AND deleted_at IS NULL`
	case syncport.EntityPersons:
		query = `SELECT COUNT(*) FROM persons WHERE needs_sync = 1 AND deleted_at IS NULL`
	default:
		return 0, fmt.Errorf("unknown entity type: %s", entity)
	}

	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unsynced %s: %w", entity, err)
	}
	return n, nil
}

// WatchUnsyncedCounts implements sync.LocalStore. The channel emits the
// current counts immediately and again after every local mutation.
func (r *Repository) WatchUnsyncedCounts(ctx context.Context) (<-chan syncport.Counts, error) {
	out := make(chan syncport.Counts, 1)
	id, signal := r.notify.subscribe()

	go func() {
		defer r.notify.unsubscribe(id)
		defer close(out)
		for {
			expenses, err := r.UnsyncedCount(ctx, syncport.EntityExpenses)
			if err != nil {
				if ctx.Err() == nil {
					slog.ErrorContext(ctx, "Unsynced count query failed", "error", err)
				}
				return
			}
			incomes, err := r.UnsyncedCount(ctx, syncport.EntityIncomes)
			if err != nil {
				if ctx.Err() == nil {
					slog.ErrorContext(ctx, "Unsynced count query failed", "error", err)
				}
				return
			}
			select {
			case out <- syncport.Counts{Expenses: expenses, Incomes: incomes}:
			case <-ctx.Done():
				return
			}
			select {
			case <-signal:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// UnsyncedTransactions implements sync.LocalStore.
func (r *Repository) UnsyncedTransactions(ctx context.Context, isExpense bool, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions
		WHERE needs_sync = 1 AND deleted_at IS NULL AND is_expense = ?
		ORDER BY id LIMIT ?`, isExpense, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsynced transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// UnsyncedCategories implements sync.LocalStore.
func (r *Repository) UnsyncedCategories(ctx context.Context, limit int) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories
		WHERE needs_sync = 1 AND deleted_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsynced categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UnsyncedPersons implements sync.LocalStore.
func (r *Repository) UnsyncedPersons(ctx context.Context, limit int) ([]core.Person, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM persons
		WHERE needs_sync = 1 AND deleted_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsynced persons: %w", err)
	}
	defer rows.Close()

	var out []core.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced implements sync.LocalStore. The three sync fields are updated
// in a single statement so a record can never be observed half-marked.
func (r *Repository) MarkSynced(ctx context.Context, entity syncport.EntityType, id int64, ackedAt time.Time) error {
	table := "transactions"
	switch entity {
	case syncport.EntityCategories:
		table = "categories"
	case syncport.EntityPersons:
		table = "persons"
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET needs_sync = 0, is_synced = 1, last_synced_at = ? WHERE id = ?`,
		ackedAt, id)
	if err != nil {
		return fmt.Errorf("mark %s %d synced: %w", entity, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	r.notify.broadcast()
	return nil
}

// applyTime picks the sync timestamp for a pulled record. A remote copy
// carries no ack time of its own, so the apply time serves; an applied row
// is always isSynced with a non-NULL last_synced_at.
func applyTime(at *time.Time) time.Time {
	if at != nil {
		return *at
	}
	return time.Now().UTC()
}

// ApplyRemoteTransaction implements sync.LocalStore. Last-write-wins: the
// remote copy is ignored when the local row has a newer UpdatedAt, leaving
// the local row dirty for the next push.
func (r *Repository) ApplyRemoteTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, category_id, person_id, amount_cents, amount_paid_cents,
			description, tx_date, recurring, frequency, is_expense,
			needs_sync, is_synced, last_synced_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			category_id = excluded.category_id,
			person_id = excluded.person_id,
			amount_cents = excluded.amount_cents,
			amount_paid_cents = excluded.amount_paid_cents,
			description = excluded.description,
			tx_date = excluded.tx_date,
			recurring = excluded.recurring,
			frequency = excluded.frequency,
			is_expense = excluded.is_expense,
			needs_sync = 0,
			is_synced = 1,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= transactions.updated_at`,
		tx.ID, tx.UserID, tx.CategoryID, nullInt64(tx.PersonID), tx.Amount.Cents, tx.AmountPaid.Cents,
		tx.Description, tx.Date.Time, tx.Recurring, string(tx.Every), tx.IsExpense,
		applyTime(tx.LastSyncedAt), tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("apply remote transaction %d: %w", tx.ID, err)
	}

	r.notify.broadcast()
	return nil
}

// ApplyRemoteCategory implements sync.LocalStore.
func (r *Repository) ApplyRemoteCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, parent_id, name, is_expense, color, icon, expected_person_type,
			needs_sync, is_synced, last_synced_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			is_expense = excluded.is_expense,
			color = excluded.color,
			icon = excluded.icon,
			expected_person_type = excluded.expected_person_type,
			needs_sync = 0,
			is_synced = 1,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= categories.updated_at`,
		c.ID, nullInt64(c.ParentID), c.Name, c.IsExpenseCategory, c.Color, c.Icon, c.ExpectedPersonType,
		applyTime(c.LastSyncedAt), c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("apply remote category %d: %w", c.ID, err)
	}

	r.notify.broadcast()
	return nil
}

// ApplyRemotePerson implements sync.LocalStore.
func (r *Repository) ApplyRemotePerson(ctx context.Context, p core.Person) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO persons (id, name, person_type, contact,
			needs_sync, is_synced, last_synced_at, updated_at)
		VALUES (?, ?, ?, ?, 0, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			person_type = excluded.person_type,
			contact = excluded.contact,
			needs_sync = 0,
			is_synced = 1,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= persons.updated_at`,
		p.ID, p.Name, p.Type, p.Contact, applyTime(p.LastSyncedAt), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("apply remote person %d: %w", p.ID, err)
	}

	r.notify.broadcast()
	return nil
}

// Watermark implements sync.LocalStore. A missing row means "never synced"
// and reads as the zero time.
func (r *Repository) Watermark(ctx context.Context, entity syncport.EntityType) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT last_synced_at FROM sync_watermarks WHERE entity = ?`, entity).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read watermark: %w", err)
	}
	return at, nil
}

// SetWatermark implements sync.LocalStore.
func (r *Repository) SetWatermark(ctx context.Context, entity syncport.EntityType, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_watermarks (entity, last_synced_at) VALUES (?, ?)
		ON CONFLICT(entity) DO UPDATE SET last_synced_at = excluded.last_synced_at`,
		entity, at)
	if err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}
