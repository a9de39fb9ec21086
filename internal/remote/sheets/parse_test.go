package sheets

import (
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestTransactionRowRoundTrip(t *testing.T) {
	personID := int64(7)
	tx := core.Transaction{
		ID:          42,
		UserID:      "u-3",
		CategoryID:  9,
		PersonID:    &personID,
		Amount:      core.Money{Cents: 1250},
		AmountPaid:  core.Money{Cents: 1000},
		Description: "office supplies",
		Date:        core.NewDate(2026, 3, 15),
		Recurring:   true,
		Every:       core.Monthly,
		IsExpense:   true,
		UpdatedAt:   time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
	}

	got, err := parseTransactionRow(toStrings(transactionRow(tx)))
	if err != nil {
		t.Fatalf("parseTransactionRow: %v", err)
	}
	if got.ID != tx.ID || got.UserID != tx.UserID || got.CategoryID != tx.CategoryID {
		t.Errorf("ids differ: got %+v", got)
	}
	if got.PersonID == nil || *got.PersonID != personID {
		t.Errorf("person id not preserved: %v", got.PersonID)
	}
	if got.Amount != tx.Amount || got.AmountPaid != tx.AmountPaid {
		t.Errorf("amounts differ: got %v / %v", got.Amount, got.AmountPaid)
	}
	if !got.Date.Equal(tx.Date.Time) {
		t.Errorf("date differs: got %v want %v", got.Date, tx.Date)
	}
	if !got.Recurring || got.Every != core.Monthly || !got.IsExpense {
		t.Errorf("flags differ: got %+v", got)
	}
	if !got.UpdatedAt.Equal(tx.UpdatedAt) {
		t.Errorf("updated_at differs: got %v want %v", got.UpdatedAt, tx.UpdatedAt)
	}
}

func TestParseTransactionRowRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		row  []string
	}{
		{"too few columns", []string{"1", "2", "3"}},
		{"bad id", []string{"x", "1", "1", "", "100", "0", "d", "2026-01-02", "false", "", "true", "2026-01-02T00:00:00Z"}},
		{"bad date", []string{"1", "1", "1", "", "100", "0", "d", "02/01/2026", "false", "", "true", "2026-01-02T00:00:00Z"}},
		{"bad updated_at", []string{"1", "1", "1", "", "100", "0", "d", "2026-01-02", "false", "", "true", "yesterday"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseTransactionRow(tc.row); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestCategoryRowRoundTrip(t *testing.T) {
	parentID := int64(2)
	c := core.Category{
		ID:                 5,
		ParentID:           &parentID,
		Name:               "Food",
		IsExpenseCategory:  true,
		Color:              "#ff0000",
		Icon:               "cart",
		ExpectedPersonType: "vendor",
		UpdatedAt:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	got, err := parseCategoryRow(toStrings(categoryRow(c)))
	if err != nil {
		t.Fatalf("parseCategoryRow: %v", err)
	}
	if got.Name != c.Name || !got.IsExpenseCategory || got.Color != c.Color {
		t.Errorf("fields differ: got %+v", got)
	}
	if got.ParentID == nil || *got.ParentID != parentID {
		t.Errorf("parent id not preserved: %v", got.ParentID)
	}
}

func TestPersonRowRoundTrip(t *testing.T) {
	p := core.Person{
		ID:        3,
		Name:      "Acme Supplies",
		Type:      "vendor",
		Contact:   "billing@acme.example",
		UpdatedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	got, err := parsePersonRow(toStrings(personRow(p)))
	if err != nil {
		t.Fatalf("parsePersonRow: %v", err)
	}
	if got != p {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, p)
	}
}
