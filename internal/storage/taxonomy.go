package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

const categoryColumns = `id, parent_id, name, is_expense, color, icon, expected_person_type,
	needs_sync, is_synced, last_synced_at, updated_at`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c            core.Category
		parentID     sql.NullInt64
		lastSyncedAt sql.NullTime
	)
	err := row.Scan(
		&c.ID, &parentID, &c.Name, &c.IsExpenseCategory, &c.Color, &c.Icon, &c.ExpectedPersonType,
		&c.NeedsSync, &c.IsSynced, &lastSyncedAt, &c.UpdatedAt,
	)
	if err != nil {
		return core.Category{}, err
	}
	c.ParentID = int64Ptr(parentID)
	c.LastSyncedAt = timePtr(lastSyncedAt)
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (parent_id, name, is_expense, color, icon, expected_person_type,
			needs_sync, is_synced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, 0, ?)`,
		nullInt64(c.ParentID), c.Name, c.IsExpenseCategory, c.Color, c.Icon, c.ExpectedPersonType, now)
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	r.notify.broadcast()
	slog.InfoContext(ctx, "Category saved", "category_id", id, "name", c.Name)
	return id, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories
		SET parent_id = ?, name = ?, is_expense = ?, color = ?, icon = ?, expected_person_type = ?,
			needs_sync = 1, is_synced = 0, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		nullInt64(c.ParentID), c.Name, c.IsExpenseCategory, c.Color, c.Icon, c.ExpectedPersonType, now, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	r.notify.broadcast()
	return nil
}

func (r *Repository) SoftDeleteCategory(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET deleted_at = ?, needs_sync = 1, is_synced = 0, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		now, now, id)
	if err != nil {
		return fmt.Errorf("soft delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	r.notify.broadcast()
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND deleted_at IS NULL`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context, isExpense bool) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories
		WHERE is_expense = ? AND deleted_at IS NULL ORDER BY name`, isExpense)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
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

// CategoryName implements report.CategoryResolver.
func (r *Repository) CategoryName(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT name FROM categories WHERE id = ? AND deleted_at IS NULL`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve category name: %w", err)
	}
	return name, nil
}

const personColumns = `id, name, person_type, contact,
	needs_sync, is_synced, last_synced_at, updated_at`

func scanPerson(row rowScanner) (core.Person, error) {
	var (
		p            core.Person
		lastSyncedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Type, &p.Contact,
		&p.NeedsSync, &p.IsSynced, &lastSyncedAt, &p.UpdatedAt,
	)
	if err != nil {
		return core.Person{}, err
	}
	p.LastSyncedAt = timePtr(lastSyncedAt)
	return p, nil
}

func (r *Repository) CreatePerson(ctx context.Context, p core.Person) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO persons (name, person_type, contact, needs_sync, is_synced, updated_at)
		VALUES (?, ?, ?, 1, 0, ?)`,
		p.Name, p.Type, p.Contact, now)
	if err != nil {
		return 0, fmt.Errorf("insert person: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	r.notify.broadcast()
	slog.InfoContext(ctx, "Person saved", "person_id", id, "name", p.Name)
	return id, nil
}

func (r *Repository) UpdatePerson(ctx context.Context, p core.Person) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE persons SET name = ?, person_type = ?, contact = ?,
			needs_sync = 1, is_synced = 0, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		p.Name, p.Type, p.Contact, now, p.ID)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	r.notify.broadcast()
	return nil
}

func (r *Repository) SoftDeletePerson(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE persons SET deleted_at = ?, needs_sync = 1, is_synced = 0, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		now, now, id)
	if err != nil {
		return fmt.Errorf("soft delete person: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	r.notify.broadcast()
	return nil
}

func (r *Repository) ListPersons(ctx context.Context) ([]core.Person, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
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
