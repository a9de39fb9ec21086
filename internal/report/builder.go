// Package report builds monthly analytics from the transaction store,
// scoped by the caller's permissions.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/rbac"
)

var (
	ErrInvalidMonth = errors.New("month must be in 1..12")
	ErrInvalidYear  = errors.New("year must be positive")
)

// Builder assembles monthly reports. It is stateless and safe for
// concurrent use.
type Builder struct {
	auth     AuthContext
	store    TransactionStore
	resolver CategoryResolver
	gate     *rbac.Gate
}

func NewBuilder(auth AuthContext, store TransactionStore, resolver CategoryResolver, gate *rbac.Gate) *Builder {
	return &Builder{
		auth:     auth,
		store:    store,
		resolver: resolver,
		gate:     gate,
	}
}

// MonthlyReport produces the report for the given month and year. Months
// are 1-based (January is 1). The date window is half-open: records from
// the first instant of the month up to, and excluding, the first instant
// of the next month, so the last day of the month is fully included.
//
// Scope follows the caller's permissions: holders of view_all_analytics
// see every user's records, everyone else only their own.
//
// The underlying store queries are live subscriptions; the builder takes
// exactly one value from each, then cancels them. The returned report is a
// snapshot and never updates.
func (b *Builder) MonthlyReport(ctx context.Context, userID string, month, year int) (core.MonthlyReport, error) {
	if month < 1 || month > 12 {
		return core.MonthlyReport{}, ErrInvalidMonth
	}
	if year <= 0 {
		return core.MonthlyReport{}, ErrInvalidYear
	}

	user, err := b.auth.ResolveUser(ctx, userID)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("resolve user: %w", err)
	}

	scope := Scope{UserID: user.ID}
	if b.gate.HasPermission(user.Role, rbac.PermViewAllReports) {
		scope = Scope{All: true}
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	// Subscriptions are cancelled as soon as both first values arrived.
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var expenses, incomes []core.Transaction
	g, gctx := errgroup.WithContext(watchCtx)
	g.Go(func() error {
		var err error
		expenses, err = b.firstValue(gctx, scope, start, end, b.store.WatchExpenses)
		return err
	})
	g.Go(func() error {
		var err error
		incomes, err = b.firstValue(gctx, scope, start, end, b.store.WatchIncomes)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.MonthlyReport{}, err
	}

	rpt := core.MonthlyReport{
		Year:               year,
		Month:              month,
		IncomesByCategory:  map[string]core.Money{},
		ExpensesByCategory: map[string]core.Money{},
	}

	names := map[int64]string{}
	for _, tx := range expenses {
		name, err := b.categoryName(ctx, names, tx.CategoryID)
		if err != nil {
			return core.MonthlyReport{}, err
		}
		rpt.ExpensesByCategory[name] = rpt.ExpensesByCategory[name].Add(tx.Amount)
		rpt.TotalExpenses = rpt.TotalExpenses.Add(tx.Amount)
	}
	for _, tx := range incomes {
		name, err := b.categoryName(ctx, names, tx.CategoryID)
		if err != nil {
			return core.MonthlyReport{}, err
		}
		rpt.IncomesByCategory[name] = rpt.IncomesByCategory[name].Add(tx.Amount)
		rpt.TotalIncomes = rpt.TotalIncomes.Add(tx.Amount)
	}
	rpt.TotalProfit = rpt.TotalIncomes.Sub(rpt.TotalExpenses)

	slog.DebugContext(ctx, "Monthly report built",
		"user_id", user.ID,
		"scope_all", scope.All,
		"year", year,
		"month", month,
		"expense_count", len(expenses),
		"income_count", len(incomes))

	return rpt, nil
}

type watchFunc func(ctx context.Context, scope Scope, start, end time.Time) (<-chan []core.Transaction, error)

// firstValue subscribes, waits for the first emission, and returns it. The
// subscription dies with the surrounding context.
func (b *Builder) firstValue(ctx context.Context, scope Scope, start, end time.Time, watch watchFunc) ([]core.Transaction, error) {
	ch, err := watch(ctx, scope, start, end)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	select {
	case txs, ok := <-ch:
		if !ok {
			return nil, errors.New("subscription closed before first value")
		}
		return txs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// categoryName resolves a category id, memoizing within the call. An id
// with no matching category buckets under the empty string.
func (b *Builder) categoryName(ctx context.Context, memo map[int64]string, id int64) (string, error) {
	if name, ok := memo[id]; ok {
		return name, nil
	}
	name, err := b.resolver.CategoryName(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		name, err = "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve category %d: %w", id, err)
	}
	memo[id] = name
	return name, nil
}
