package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/config"
	logpkg "fintrack/internal/log"
	"fintrack/internal/rbac"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "fintrack",
	Short: "Local-first finance tracking",
	Long: `fintrack records expenses and incomes in a local SQLite store,
builds monthly per-category reports, and reconciles with a shared
remote store in the background.`,
	PersistentPreRunE: initEnv,
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(syncCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Shutdown signal received")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initEnv(_ *cobra.Command, _ []string) error {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logpkg.SetDefault(logpkg.New(logpkg.DefaultConfig()))
	return nil
}

// app bundles the pieces every subcommand needs.
type app struct {
	cfg       *config.Config
	repo      *storage.Repository
	directory *auth.Directory
	gate      *rbac.Gate
	amqp      *amqp.Client
}

func initApp() (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	directory, err := auth.ParseDirectory(cfg.Users)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("parse user directory: %w", err)
	}

	return &app{
		cfg:       cfg,
		repo:      repo,
		directory: directory,
		gate:      rbac.NewGate(rbac.DefaultPolicy()),
	}, nil
}

// publisher connects to AMQP on first use. A broken broker only costs the
// dirty notifications; the periodic worker pass covers for them.
func (a *app) publisher(ctx context.Context) services.DirtyPublisher {
	if a.amqp != nil {
		return a.amqp
	}
	client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
	if err != nil {
		slog.WarnContext(ctx, "AMQP unavailable, relying on periodic sync", logpkg.FieldError, err)
		return nil
	}
	a.amqp = client
	return client
}

func (a *app) close() {
	if a.amqp != nil {
		a.amqp.Close()
	}
	a.repo.Close()
}
