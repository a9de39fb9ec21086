package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Row layouts. One record per row, column A is always the id.
//
//	Transactions: id, user_id, category_id, person_id, amount_cents,
//	              amount_paid_cents, description, date, recurring,
//	              frequency, is_expense, updated_at
//	Categories:   id, parent_id, name, is_expense, color, icon,
//	              expected_person_type, updated_at
//	Persons:      id, name, person_type, contact, updated_at
//
// Dates use 2006-01-02, timestamps RFC 3339, booleans "true"/"false".

const dateLayout = "2006-01-02"

func transactionRow(tx core.Transaction) []any {
	personID := ""
	if tx.PersonID != nil {
		personID = strconv.FormatInt(*tx.PersonID, 10)
	}
	return []any{
		strconv.FormatInt(tx.ID, 10),
		tx.UserID,
		strconv.FormatInt(tx.CategoryID, 10),
		personID,
		strconv.FormatInt(tx.Amount.Cents, 10),
		strconv.FormatInt(tx.AmountPaid.Cents, 10),
		tx.Description,
		tx.Date.Format(dateLayout),
		strconv.FormatBool(tx.Recurring),
		string(tx.Every),
		strconv.FormatBool(tx.IsExpense),
		tx.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func categoryRow(c core.Category) []any {
	parentID := ""
	if c.ParentID != nil {
		parentID = strconv.FormatInt(*c.ParentID, 10)
	}
	return []any{
		strconv.FormatInt(c.ID, 10),
		parentID,
		c.Name,
		strconv.FormatBool(c.IsExpenseCategory),
		c.Color,
		c.Icon,
		c.ExpectedPersonType,
		c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func personRow(p core.Person) []any {
	return []any{
		strconv.FormatInt(p.ID, 10),
		p.Name,
		p.Type,
		p.Contact,
		p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseTransactionRow(row []string) (core.Transaction, error) {
	if len(row) < 12 {
		return core.Transaction{}, fmt.Errorf("expected 12 columns, got %d", len(row))
	}

	var tx core.Transaction
	var ok bool
	if tx.ID, ok = parseInt64(row[0]); !ok {
		return core.Transaction{}, fmt.Errorf("bad id %q", row[0])
	}
	tx.UserID = strings.TrimSpace(row[1])
	if tx.CategoryID, ok = parseInt64(row[2]); !ok {
		return core.Transaction{}, fmt.Errorf("bad category_id %q", row[2])
	}
	if strings.TrimSpace(row[3]) != "" {
		personID, ok := parseInt64(row[3])
		if !ok {
			return core.Transaction{}, fmt.Errorf("bad person_id %q", row[3])
		}
		tx.PersonID = &personID
	}
	if tx.Amount.Cents, ok = parseInt64(row[4]); !ok {
		return core.Transaction{}, fmt.Errorf("bad amount_cents %q", row[4])
	}
	if tx.AmountPaid.Cents, ok = parseInt64(row[5]); !ok {
		return core.Transaction{}, fmt.Errorf("bad amount_paid_cents %q", row[5])
	}
	tx.Description = row[6]

	date, err := time.Parse(dateLayout, strings.TrimSpace(row[7]))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("bad date %q: %w", row[7], err)
	}
	tx.Date = core.Date{Time: date}

	if tx.Recurring, ok = parseBool(row[8]); !ok {
		return core.Transaction{}, fmt.Errorf("bad recurring %q", row[8])
	}
	tx.Every = core.Frequency(strings.TrimSpace(row[9]))
	if tx.IsExpense, ok = parseBool(row[10]); !ok {
		return core.Transaction{}, fmt.Errorf("bad is_expense %q", row[10])
	}
	if tx.UpdatedAt, err = time.Parse(time.RFC3339, strings.TrimSpace(row[11])); err != nil {
		return core.Transaction{}, fmt.Errorf("bad updated_at %q: %w", row[11], err)
	}
	return tx, nil
}

func parseCategoryRow(row []string) (core.Category, error) {
	if len(row) < 8 {
		return core.Category{}, fmt.Errorf("expected 8 columns, got %d", len(row))
	}

	var c core.Category
	var ok bool
	if c.ID, ok = parseInt64(row[0]); !ok {
		return core.Category{}, fmt.Errorf("bad id %q", row[0])
	}
	if strings.TrimSpace(row[1]) != "" {
		parentID, ok := parseInt64(row[1])
		if !ok {
			return core.Category{}, fmt.Errorf("bad parent_id %q", row[1])
		}
		c.ParentID = &parentID
	}
	c.Name = row[2]
	if c.IsExpenseCategory, ok = parseBool(row[3]); !ok {
		return core.Category{}, fmt.Errorf("bad is_expense %q", row[3])
	}
	c.Color = row[4]
	c.Icon = row[5]
	c.ExpectedPersonType = row[6]

	var err error
	if c.UpdatedAt, err = time.Parse(time.RFC3339, strings.TrimSpace(row[7])); err != nil {
		return core.Category{}, fmt.Errorf("bad updated_at %q: %w", row[7], err)
	}
	return c, nil
}

func parsePersonRow(row []string) (core.Person, error) {
	if len(row) < 5 {
		return core.Person{}, fmt.Errorf("expected 5 columns, got %d", len(row))
	}

	var p core.Person
	var ok bool
	if p.ID, ok = parseInt64(row[0]); !ok {
		return core.Person{}, fmt.Errorf("bad id %q", row[0])
	}
	p.Name = row[1]
	p.Type = row[2]
	p.Contact = row[3]

	var err error
	if p.UpdatedAt, err = time.Parse(time.RFC3339, strings.TrimSpace(row[4])); err != nil {
		return core.Person{}, fmt.Errorf("bad updated_at %q: %w", row[4], err)
	}
	return p, nil
}

func toStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func safeGet(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseInt64(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}
