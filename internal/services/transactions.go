package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

// TransactionPublisher pushes export events to the mirror pipeline. The AMQP
// client implements it; a nil publisher disables exporting.
type TransactionPublisher interface {
	PublishTransactionUpsert(ctx context.Context, t core.Transaction) error
	PublishTransactionDelete(ctx context.Context, t core.Transaction) error
}

// TransactionService orchestrates ledger writes: validation, display-name
// denormalization, balance reconciliation, summary recomputes, and the
// optional export publish. Export and summary failures never fail the write;
// the ledger entry is the source of truth and everything else is derived.
type TransactionService struct {
	store      store.Store
	reconciler *Reconciler
	aggregator *Aggregator
	publisher  TransactionPublisher
}

func NewTransactionService(st store.Store, rec *Reconciler, agg *Aggregator, pub TransactionPublisher) *TransactionService {
	return &TransactionService{
		store:      st,
		reconciler: rec,
		aggregator: agg,
		publisher:  pub,
	}
}

// decorate resolves display names and the month key. The month key is always
// derived from the transaction date's local calendar month, never trusted
// from the caller.
func (s *TransactionService) decorate(ctx context.Context, t *core.Transaction) error {
	t.MonthKey = core.MonthKeyOf(t.Date)

	if t.AccountID != "" {
		account, err := s.store.Accounts().GetByID(ctx, t.UID, t.AccountID)
		if err != nil {
			return fmt.Errorf("resolve account: %w", err)
		}
		t.AccountName = account.Name
	} else {
		t.AccountName = ""
	}

	if t.CategoryID != "" {
		category, err := s.store.Categories().GetByID(ctx, t.UID, t.CategoryID)
		if err != nil {
			return fmt.Errorf("resolve category: %w", err)
		}
		t.CategoryName = category.Name
	} else {
		t.CategoryName = ""
	}

	return nil
}

// Create writes a new ledger entry, adjusts the account balance, and
// refreshes the month's summary.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Amount = t.Amount.Abs()
	if t.Date.IsZero() {
		t.Date = time.Now()
	}
	if err := s.decorate(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.Transactions().Create(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.applyBalance(ctx, created, func() error {
		return s.reconciler.ApplyCreate(ctx, created)
	})

	s.refreshSummary(ctx, created.UID, created.MonthKey)
	s.publishUpsert(ctx, created)

	return created, nil
}

// Get returns one ledger entry.
func (s *TransactionService) Get(ctx context.Context, uid, id string) (core.Transaction, error) {
	return s.store.Transactions().GetByID(ctx, uid, id)
}

// Update rewrites a ledger entry. The balance transition covers account
// moves, and both the old and the new month's summaries are refreshed when
// the date crossed a month boundary.
func (s *TransactionService) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	old, err := s.store.Transactions().GetByID(ctx, t.UID, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}

	t.Amount = t.Amount.Abs()
	if t.Date.IsZero() {
		t.Date = old.Date
	}
	t.CreatedAt = old.CreatedAt
	t.AutoCreated = old.AutoCreated
	t.LinkedPayableStatusID = old.LinkedPayableStatusID

	if err := s.decorate(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.store.Transactions().Update(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.applyBalance(ctx, updated, func() error {
		return s.reconciler.ApplyUpdate(ctx, old, updated)
	})

	s.refreshSummary(ctx, updated.UID, updated.MonthKey)
	if old.MonthKey != updated.MonthKey {
		s.refreshSummary(ctx, updated.UID, old.MonthKey)
	}
	s.publishUpsert(ctx, updated)

	return updated, nil
}

// Delete removes a ledger entry, reverses its balance effect, detaches any
// bill status that pointed at it, and refreshes the month's summary.
func (s *TransactionService) Delete(ctx context.Context, uid, id string) error {
	t, err := s.store.Transactions().GetByID(ctx, uid, id)
	if err != nil {
		return err
	}

	if err := s.store.Transactions().Delete(ctx, uid, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.applyBalance(ctx, t, func() error {
		return s.reconciler.ApplyDelete(ctx, t)
	})

	s.detachBillStatus(ctx, t)
	s.refreshSummary(ctx, uid, t.MonthKey)
	s.publishDelete(ctx, t)

	return nil
}

// detachBillStatus reopens the bill status linked to an auto-created payment
// entry when that entry is deleted directly instead of through the bill API.
func (s *TransactionService) detachBillStatus(ctx context.Context, t core.Transaction) {
	if t.LinkedPayableStatusID == "" {
		return
	}
	status, err := s.store.Statuses().GetByID(ctx, t.UID, t.LinkedPayableStatusID)
	if err != nil {
		return
	}
	status.State = core.StatusOpen
	status.PaidAt = nil
	status.LinkedTransactionID = ""
	if _, err := s.store.Statuses().Update(ctx, status); err != nil {
		slog.ErrorContext(ctx, "Failed to reopen linked bill status",
			"uid", t.UID, "status_id", status.ID, "error", err)
	}
}

// ListByMonth pages through one month's entries, newest first.
func (s *TransactionService) ListByMonth(ctx context.Context, uid string, monthKey core.MonthKey, limit int, startAfter string) ([]core.Transaction, error) {
	if err := monthKey.Validate(); err != nil {
		return nil, err
	}
	return s.store.Transactions().ListByMonth(ctx, uid, monthKey, limit, startAfter)
}

// ListRecent returns the newest entries across all months.
func (s *TransactionService) ListRecent(ctx context.Context, uid string, limit int) ([]core.Transaction, error) {
	return s.store.Transactions().ListRecent(ctx, uid, limit)
}

// applyBalance runs a reconciler step after the primary write. The ledger
// entry is already durable at this point, so a failed adjustment is logged
// and left for RecalculateAll to repair instead of failing the request.
func (s *TransactionService) applyBalance(ctx context.Context, t core.Transaction, apply func() error) {
	if err := apply(); err != nil {
		slog.ErrorContext(ctx, "Failed to reconcile account balance",
			"uid", t.UID, "transaction_id", t.ID, "account_id", t.AccountID, "error", err)
	}
}

func (s *TransactionService) refreshSummary(ctx context.Context, uid string, monthKey core.MonthKey) {
	if _, err := s.aggregator.Recompute(ctx, uid, monthKey); err != nil {
		slog.ErrorContext(ctx, "Failed to recompute monthly summary",
			"uid", uid, "month_key", string(monthKey), "error", err)
	}
}

func (s *TransactionService) publishUpsert(ctx context.Context, t core.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionUpsert(ctx, t); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction export",
			"transaction_id", t.ID, "error", err)
	}
}

func (s *TransactionService) publishDelete(ctx context.Context, t core.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionDelete(ctx, t); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction delete export",
			"transaction_id", t.ID, "error", err)
	}
}
