package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Pehalba/AdmFinanceira/internal/amqp"
	"github.com/Pehalba/AdmFinanceira/internal/export/sheets"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

// ExportWorker drains the export queue into the sheets mirror. Upserts fetch
// the live record so the mirrored row is always the freshest version; deletes
// replay the snapshot carried in the message as a reversal row.
type ExportWorker struct {
	store    store.Store
	appender sheets.Appender
}

func NewExportWorker(st store.Store, appender sheets.Appender) *ExportWorker {
	return &ExportWorker{
		store:    st,
		appender: appender,
	}
}

// HandleExportMessage processes a single export message from AMQP.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.TransactionExportMessage) error {
	switch msg.Op {
	case amqp.OpUpsert:
		return w.handleUpsert(ctx, msg)
	case amqp.OpDelete:
		return w.handleDelete(ctx, msg)
	default:
		// Unknown op: drop rather than requeue forever.
		slog.WarnContext(ctx, "Skipping export message with unknown op",
			"transaction_id", msg.ID, "op", msg.Op)
		return nil
	}
}

func (w *ExportWorker) handleUpsert(ctx context.Context, msg *amqp.TransactionExportMessage) error {
	t, err := w.store.Transactions().GetByID(ctx, msg.UID, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		// Deleted before the worker got here; the delete message will carry
		// the reversal.
		slog.InfoContext(ctx, "Transaction gone before export, skipping",
			"transaction_id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", msg.ID, err)
	}

	ref, err := w.appender.AppendTransaction(ctx, t)
	if err != nil {
		return fmt.Errorf("append transaction %s: %w", msg.ID, err)
	}

	slog.InfoContext(ctx, "Mirrored transaction",
		"transaction_id", msg.ID,
		"sheets_ref", ref)
	return nil
}

func (w *ExportWorker) handleDelete(ctx context.Context, msg *amqp.TransactionExportMessage) error {
	if msg.Snapshot == nil {
		slog.WarnContext(ctx, "Delete message without snapshot, skipping",
			"transaction_id", msg.ID)
		return nil
	}

	ref, err := w.appender.AppendReversal(ctx, *msg.Snapshot)
	if err != nil {
		return fmt.Errorf("append reversal for %s: %w", msg.ID, err)
	}

	slog.InfoContext(ctx, "Mirrored transaction reversal",
		"transaction_id", msg.ID,
		"sheets_ref", ref)
	return nil
}
