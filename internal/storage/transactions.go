package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/report"
)

const txColumns = `id, user_id, category_id, person_id, amount_cents, amount_paid_cents,
	description, tx_date, recurring, frequency, is_expense,
	needs_sync, is_synced, last_synced_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx           core.Transaction
		personID     sql.NullInt64
		lastSyncedAt sql.NullTime
		frequency    string
	)
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.CategoryID, &personID,
		&tx.Amount.Cents, &tx.AmountPaid.Cents,
		&tx.Description, &tx.Date.Time, &tx.Recurring, &frequency, &tx.IsExpense,
		&tx.NeedsSync, &tx.IsSynced, &lastSyncedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.PersonID = int64Ptr(personID)
	tx.LastSyncedAt = timePtr(lastSyncedAt)
	tx.Every = core.Frequency(frequency)
	return tx, nil
}

// CreateTransaction persists a new record, marks it Local-Dirty and wakes
// the live subscriptions. The caller validates before calling.
func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, category_id, person_id, amount_cents, amount_paid_cents,
			description, tx_date, recurring, frequency, is_expense,
			needs_sync, is_synced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, ?)`,
		tx.UserID, tx.CategoryID, nullInt64(tx.PersonID), tx.Amount.Cents, tx.AmountPaid.Cents,
		tx.Description, tx.Date.Time, tx.Recurring, string(tx.Every), tx.IsExpense, now)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	r.notify.broadcast()
	slog.InfoContext(ctx, "Transaction saved",
		"record_id", id,
		"user_id", tx.UserID,
		"amount_cents", tx.Amount.Cents,
		"is_expense", tx.IsExpense)
	return id, nil
}

// UpdateTransaction rewrites the business fields of an existing record and
// marks it Local-Dirty again.
func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, person_id = ?, amount_cents = ?, amount_paid_cents = ?,
			description = ?, tx_date = ?, recurring = ?, frequency = ?,
			needs_sync = 1, is_synced = 0, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		tx.CategoryID, nullInt64(tx.PersonID), tx.Amount.Cents, tx.AmountPaid.Cents,
		tx.Description, tx.Date.Time, tx.Recurring, string(tx.Every), now, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	r.notify.broadcast()
	return nil
}

// SoftDeleteTransaction hides a record from queries. The row is kept
// locally; deletions are not propagated to the remote store.
func (r *Repository) SoftDeleteTransaction(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET deleted_at = ?, needs_sync = 1, is_synced = 0, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		now, now, id)
	if err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	r.notify.broadcast()
	slog.InfoContext(ctx, "Transaction soft deleted", "record_id", id)
	return nil
}

// GetTransaction retrieves a single live record by id.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = ? AND deleted_at IS NULL`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) queryTransactions(ctx context.Context, scope report.Scope, start, end time.Time, isExpense bool) ([]core.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE is_expense = ? AND recurring = 0 AND deleted_at IS NULL
		AND tx_date >= ? AND tx_date < ?`
	args := []any{isExpense, start, end}
	if !scope.All {
		query += ` AND user_id = ?`
		args = append(args, scope.UserID)
	}
	query += ` ORDER BY tx_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
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

// WatchExpenses implements report.TransactionStore. The channel emits the
// current matching list immediately and again after every local mutation,
// until ctx is done.
func (r *Repository) WatchExpenses(ctx context.Context, scope report.Scope, start, end time.Time) (<-chan []core.Transaction, error) {
	return r.watchTransactions(ctx, scope, start, end, true)
}

// WatchIncomes implements report.TransactionStore.
func (r *Repository) WatchIncomes(ctx context.Context, scope report.Scope, start, end time.Time) (<-chan []core.Transaction, error) {
	return r.watchTransactions(ctx, scope, start, end, false)
}

func (r *Repository) watchTransactions(ctx context.Context, scope report.Scope, start, end time.Time, isExpense bool) (<-chan []core.Transaction, error) {
	out := make(chan []core.Transaction, 1)
	id, signal := r.notify.subscribe()

	go func() {
		defer r.notify.unsubscribe(id)
		defer close(out)
		for {
			txs, err := r.queryTransactions(ctx, scope, start, end, isExpense)
			if err != nil {
				if ctx.Err() == nil {
					slog.ErrorContext(ctx, "Live transaction query failed", "error", err)
				}
				return
			}
			select {
			case out <- txs:
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

// RecurringTemplate pairs a recurring transaction template with the last
// time it was materialized into a concrete record.
type RecurringTemplate struct {
	Tx                 core.Transaction
	LastMaterializedAt *time.Time
}

// ActiveRecurringTemplates returns every live recurring template.
func (r *Repository) ActiveRecurringTemplates(ctx context.Context) ([]RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+`, last_materialized_at FROM transactions
		WHERE recurring = 1 AND deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query recurring templates: %w", err)
	}
	defer rows.Close()

	var out []RecurringTemplate
	for rows.Next() {
		var (
			tmpl         RecurringTemplate
			personID     sql.NullInt64
			lastSyncedAt sql.NullTime
			lastMat      sql.NullTime
			frequency    string
		)
		err := rows.Scan(
			&tmpl.Tx.ID, &tmpl.Tx.UserID, &tmpl.Tx.CategoryID, &personID,
			&tmpl.Tx.Amount.Cents, &tmpl.Tx.AmountPaid.Cents,
			&tmpl.Tx.Description, &tmpl.Tx.Date.Time, &tmpl.Tx.Recurring, &frequency, &tmpl.Tx.IsExpense,
			&tmpl.Tx.NeedsSync, &tmpl.Tx.IsSynced, &lastSyncedAt, &tmpl.Tx.UpdatedAt,
			&lastMat,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recurring template: %w", err)
		}
		tmpl.Tx.PersonID = int64Ptr(personID)
		tmpl.Tx.LastSyncedAt = timePtr(lastSyncedAt)
		tmpl.Tx.Every = core.Frequency(frequency)
		tmpl.LastMaterializedAt = timePtr(lastMat)
		out = append(out, tmpl)
	}
	return out, rows.Err()
}

// MarkMaterialized records that a recurring template produced a concrete
// transaction at the given time.
func (r *Repository) MarkMaterialized(ctx context.Context, templateID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET last_materialized_at = ? WHERE id = ?`, at, templateID)
	if err != nil {
		return fmt.Errorf("mark materialized: %w", err)
	}
	return nil
}
