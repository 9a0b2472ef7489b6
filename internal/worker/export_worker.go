// Package worker consumes write events and mirrors the affected period
// summary to the configured exporters.
package worker

import (
	"context"
	"errors"
	"fmt"

	"budgeteer/internal/amqp"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/ports"
)

// SummarySource computes the canonical summary of one owner and period.
type SummarySource interface {
	ComputePeriodSummary(ctx context.Context, ownerID string, p core.Period) (core.PeriodSummary, error)
}

// ExportWorker implements amqp.Handler.
type ExportWorker struct {
	summaries SummarySource
	exporters []ports.SummaryExporter
	logger    *log.Logger
}

var _ amqp.Handler = (*ExportWorker)(nil)

func NewExportWorker(summaries SummarySource, exporters []ports.SummaryExporter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		summaries: summaries,
		exporters: exporters,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleExpenseRecorded re-exports the expense's period. Over-budget
// expenses are logged at warn level.
func (w *ExportWorker) HandleExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldOwnerID, msg.OwnerID,
		log.FieldCategoryID, msg.CategoryID)

	if msg.Over {
		w.logger.WarnContext(ctx, "Category over budget",
			log.FieldOwnerID, msg.OwnerID,
			log.FieldCategoryID, msg.CategoryID,
			log.FieldSpentCents, msg.SpentCents,
			log.FieldLimitCents, msg.LimitCents)
	}

	return w.ExportPeriod(ctx, msg.OwnerID, core.Period{Year: msg.Year, Month: msg.Month})
}

func (w *ExportWorker) HandleBudgetsSaved(ctx context.Context, msg *amqp.BudgetsSavedMessage) error {
	w.logger.InfoContext(ctx, "Processing budgets event",
		log.FieldOwnerID, msg.OwnerID,
		log.FieldCount, msg.Saved)

	return w.ExportPeriod(ctx, msg.OwnerID, core.Period{Year: msg.Year, Month: msg.Month})
}

// ExportPeriod recomputes the summary and hands it to every exporter. All
// exporters are attempted; their failures are joined.
func (w *ExportWorker) ExportPeriod(ctx context.Context, ownerID string, p core.Period) error {
	if err := p.Validate(); err != nil {
		// Redelivering cannot fix a bad period.
		w.logger.ErrorContext(ctx, "Dropping event with invalid period",
			log.FieldOwnerID, ownerID, log.FieldYear, p.Year, log.FieldMonth, p.Month, log.FieldError, err)
		return nil
	}

	summary, err := w.summaries.ComputePeriodSummary(ctx, ownerID, p)
	if err != nil {
		return fmt.Errorf("compute summary: %w", err)
	}

	var errs []error
	for _, e := range w.exporters {
		if err := e.Export(ctx, ownerID, summary); err != nil {
			w.logger.ErrorContext(ctx, "Export failed",
				log.FieldExporter, e.Name(), log.FieldOwnerID, ownerID, log.FieldError, err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		w.logger.InfoContext(ctx, "Summary exported",
			log.FieldExporter, e.Name(),
			log.FieldOwnerID, ownerID,
			log.FieldYear, p.Year,
			log.FieldMonth, p.Month+1,
			log.FieldCount, len(summary.Rows))
	}
	return errors.Join(errs...)
}
