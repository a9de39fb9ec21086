package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/report"
)

func reportCmd() *cobra.Command {
	var (
		user  string
		month int
		year  int
	)

	now := time.Now().UTC()

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the monthly per-category report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := initApp()
			if err != nil {
				return err
			}
			defer a.close()

			resolver := report.NewCachedResolver(a.repo, 256, 5*time.Minute)
			builder := report.NewBuilder(a.directory, a.repo, resolver, a.gate)

			r, err := builder.MonthlyReport(ctx, user, month, year)
			if err != nil {
				return err
			}

			fmt.Printf("Report for %04d-%02d\n\n", r.Year, r.Month)
			printSection("Incomes", r.IncomesByCategory)
			printSection("Expenses", r.ExpensesByCategory)
			fmt.Printf("Total incomes:  %10.2f\n", r.TotalIncomes.Units())
			fmt.Printf("Total expenses: %10.2f\n", r.TotalExpenses.Units())
			fmt.Printf("Profit:         %10.2f\n", r.TotalProfit.Units())
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "acting user id")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "month (1-12)")
	cmd.Flags().IntVar(&year, "year", now.Year(), "year")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func printSection(title string, byCategory map[string]core.Money) {
	fmt.Printf("%s:\n", title)
	if len(byCategory) == 0 {
		fmt.Println("  (none)")
		fmt.Println()
		return
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		label := name
		if label == "" {
			label = "(uncategorized)"
		}
		fmt.Printf("  %-24s %10.2f\n", label, byCategory[name].Units())
	}
	fmt.Println()
}
