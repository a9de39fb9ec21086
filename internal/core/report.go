package core

// MonthlyReport is an immutable point-in-time summary for a single month.
// It is recomputed on demand and never persisted; a fresh call is required
// to observe later writes.
type MonthlyReport struct {
	Year  int
	Month int // 1-12

	// Category name -> summed amount. Transactions whose category id does
	// not resolve are bucketed under the empty string.
	IncomesByCategory  map[string]Money
	ExpensesByCategory map[string]Money

	TotalIncomes  Money
	TotalExpenses Money
	TotalProfit   Money // TotalIncomes - TotalExpenses
}
