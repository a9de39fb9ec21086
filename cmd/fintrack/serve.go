package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/services"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the foreground app process",
		Long: `Runs the app daemon: materializes due recurring templates every hour
and logs the sync-pending record counts as they change. Reconciliation
itself runs in the fintrack-worker daemon.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := initApp()
			if err != nil {
				return err
			}
			defer a.close()

			slog.InfoContext(ctx, "fintrack serving", "db", a.cfg.SQLiteDBPath)

			recurring := services.NewRecurringProcessor(a.repo, a.publisher(ctx))
			go func() {
				ticker := time.NewTicker(time.Hour)
				defer ticker.Stop()
				for {
					if _, err := recurring.ProcessDue(ctx, time.Now().UTC()); err != nil {
						slog.ErrorContext(ctx, "Recurring processing failed", "error", err)
					}
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
					}
				}
			}()

			// Surface the sync-pending badge counts in the logs.
			counts, err := a.repo.WatchUnsyncedCounts(ctx)
			if err != nil {
				return err
			}
			for c := range counts {
				slog.InfoContext(ctx, "Sync pending", "expenses", c.Expenses, "incomes", c.Incomes)
			}

			slog.Info("fintrack stopped")
			return nil
		},
	}
}
