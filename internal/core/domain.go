package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	// Frequency is the repetition interval of a recurring transaction.
	Frequency string

	// Date is a day-granularity timestamp, always UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single income or expense record. Expenses and
	// incomes share the same shape; IsExpense discriminates.
	Transaction struct {
		ID          int64
		UserID      string
		CategoryID  int64
		PersonID    *int64
		Amount      Money
		AmountPaid  Money
		Description string
		Date        Date
		Recurring   bool
		Every       Frequency
		IsExpense   bool

		// Sync bookkeeping. NeedsSync marks a local mutation that has
		// not reached the remote store yet; LastSyncedAt is only set
		// on confirmed remote acknowledgment.
		NeedsSync    bool
		IsSynced     bool
		LastSyncedAt *time.Time
		UpdatedAt    time.Time
	}

	Category struct {
		ID                 int64
		ParentID           *int64
		Name               string
		IsExpenseCategory  bool
		Color              string
		Icon               string
		ExpectedPersonType string

		NeedsSync    bool
		IsSynced     bool
		LastSyncedAt *time.Time
		UpdatedAt    time.Time
	}

	// Person is a transaction counterparty (customer, supplier, ...).
	Person struct {
		ID      int64
		Name    string
		Type    string
		Contact string

		NeedsSync    bool
		IsSynced     bool
		LastSyncedAt *time.Time
		UpdatedAt    time.Time
	}
)

var (
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrAmountPaidExceeds    = errors.New("amount paid exceeds amount")
	ErrEmptyDescription     = errors.New("empty description")
	ErrMissingCategory      = errors.New("missing category")
	ErrEmptyName            = errors.New("empty name")
	ErrInvalidFrequency     = errors.New("invalid repetition frequency")
	ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrNotFound             = errors.New("not found")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns the difference of two amounts. The result may be negative;
// profit is incomes minus expenses and either side can dominate.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.AmountPaid.Cents < 0 || t.AmountPaid.Cents > t.Amount.Cents {
		return ErrAmountPaidExceeds
	}
	if t.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if t.Recurring {
		switch t.Every {
		case Daily, Weekly, Monthly, Yearly:
		default:
			return ErrInvalidFrequency
		}
	}
	return nil
}

func (c Category) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

func (p Person) Validate() error {
	if len(strings.TrimSpace(p.Name)) == 0 {
		return ErrEmptyName
	}
	if len(p.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}
