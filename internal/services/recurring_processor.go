package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// RecurringStore is the slice of the local store the recurring processor
// needs: listing templates, writing the materialized records, recording
// when a template last ran.
type RecurringStore interface {
	ActiveRecurringTemplates(ctx context.Context) ([]storage.RecurringTemplate, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	MarkMaterialized(ctx context.Context, templateID int64, at time.Time) error
}

// RecurringProcessor materializes due recurring templates into concrete
// transactions. Templates themselves never show up in reports, only the
// records they produce do.
type RecurringProcessor struct {
	store     RecurringStore
	publisher DirtyPublisher
}

func NewRecurringProcessor(store RecurringStore, publisher DirtyPublisher) *RecurringProcessor {
	return &RecurringProcessor{
		store:     store,
		publisher: publisher,
	}
}

// ProcessDue materializes every template that is due at now and returns how
// many records were created. A failing template is logged and skipped, the
// rest of the batch still runs.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	templates, err := p.store.ActiveRecurringTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("load recurring templates: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring templates",
		"total_active", len(templates),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, tmpl := range templates {
		checker, err := duenessChecker(tmpl.Tx.Every)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping template with unknown frequency",
				"template_id", tmpl.Tx.ID, "frequency", tmpl.Tx.Every)
			continue
		}

		var lastRun time.Time
		if tmpl.LastMaterializedAt != nil {
			lastRun = *tmpl.LastMaterializedAt
		}
		if !checker.IsDue(lastRun, now, tmpl.Tx.Date) {
			continue
		}

		record := core.Transaction{
			UserID:      tmpl.Tx.UserID,
			CategoryID:  tmpl.Tx.CategoryID,
			PersonID:    tmpl.Tx.PersonID,
			Amount:      tmpl.Tx.Amount,
			AmountPaid:  tmpl.Tx.AmountPaid,
			Description: tmpl.Tx.Description,
			Date:        core.NewDate(now.Year(), int(now.Month()), now.Day()),
			IsExpense:   tmpl.Tx.IsExpense,
		}

		id, err := p.store.CreateTransaction(ctx, record)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize recurring template",
				"template_id", tmpl.Tx.ID,
				"description", tmpl.Tx.Description,
				"error", err)
			continue
		}

		if err := p.store.MarkMaterialized(ctx, tmpl.Tx.ID, now); err != nil {
			// The record exists; worst case the template fires again early.
			slog.ErrorContext(ctx, "Failed to record materialization time",
				"template_id", tmpl.Tx.ID, "error", err)
		}

		if p.publisher != nil {
			if err := p.publisher.PublishRecordDirty(ctx, transactionEntity(record.IsExpense), id); err != nil {
				slog.ErrorContext(ctx, "Failed to publish dirty notification",
					"record_id", id, "error", err)
			}
		}

		processed++
		slog.InfoContext(ctx, "Materialized recurring template",
			"template_id", tmpl.Tx.ID,
			"record_id", id,
			"amount_cents", tmpl.Tx.Amount.Cents,
			"frequency", tmpl.Tx.Every)
	}

	slog.InfoContext(ctx, "Recurring template processing complete",
		"processed", processed,
		"total_checked", len(templates))

	return processed, nil
}
