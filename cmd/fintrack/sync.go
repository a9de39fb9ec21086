package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/config"
	"fintrack/internal/remote/memory"
	"fintrack/internal/remote/sheets"
	syncpkg "fintrack/internal/sync"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass against the remote store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := initApp()
			if err != nil {
				return err
			}
			defer a.close()

			remote, err := newRemoteStore(ctx, a.cfg)
			if err != nil {
				return err
			}

			service := syncpkg.NewService(a.repo, remote, syncpkg.Config{
				BatchSize:     a.cfg.SyncBatchSize,
				RemoteTimeout: a.cfg.RemoteTimeout,
			})

			results := service.SyncAll(ctx)
			for _, entity := range syncpkg.AllEntities {
				status := "ok"
				if err := results[entity]; err != nil {
					status = err.Error()
				}
				fmt.Printf("%-12s %s\n", entity, status)
			}
			return results.Err()
		},
	}
}

// newRemoteStore selects the remote backend per configuration.
func newRemoteStore(ctx context.Context, cfg *config.Config) (syncpkg.RemoteStore, error) {
	switch cfg.RemoteBackend {
	case "sheets":
		client, err := sheets.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize sheets backend: %w", err)
		}
		return client, nil
	default:
		return memory.New(), nil
	}
}
