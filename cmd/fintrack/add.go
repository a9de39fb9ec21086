package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func addCmd() *cobra.Command {
	var (
		user        string
		amount      string
		paid        string
		categoryID  int64
		personID    int64
		description string
		date        string
		income      bool
		recurring   bool
		every       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense or income",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := initApp()
			if err != nil {
				return err
			}
			defer a.close()

			cents, err := core.ParseDecimalToCents(amount)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			paidCents := cents
			if paid != "" {
				paidCents, err = core.ParseDecimalToCents(paid)
				if err != nil {
					return fmt.Errorf("paid: %w", err)
				}
			}

			when := time.Now().UTC()
			if date != "" {
				when, err = time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("date: %w", err)
				}
			}

			tx := core.Transaction{
				CategoryID:  categoryID,
				Amount:      core.Money{Cents: cents},
				AmountPaid:  core.Money{Cents: paidCents},
				Description: description,
				Date:        core.NewDate(when.Year(), int(when.Month()), when.Day()),
				Recurring:   recurring,
				Every:       core.Frequency(every),
				IsExpense:   !income,
			}
			if personID > 0 {
				tx.PersonID = &personID
			}

			svc := services.NewTransactionService(a.repo, a.directory, a.gate, a.publisher(ctx))
			id, err := svc.CreateTransaction(ctx, user, tx)
			if err != nil {
				return err
			}

			kind := "expense"
			if income {
				kind = "income"
			}
			fmt.Printf("Recorded %s #%d: %.2f (%s)\n", kind, id, tx.Amount.Units(), description)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "acting user id")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().StringVar(&paid, "paid", "", "amount already paid (defaults to the full amount)")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "category id")
	cmd.Flags().Int64Var(&personID, "person", 0, "counterparty person id")
	cmd.Flags().StringVar(&description, "description", "", "what this is for")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (defaults to today)")
	cmd.Flags().BoolVar(&income, "income", false, "record an income instead of an expense")
	cmd.Flags().BoolVar(&recurring, "recurring", false, "save as a recurring template")
	cmd.Flags().StringVar(&every, "every", "", "repetition frequency: daily, weekly, monthly, yearly")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}
