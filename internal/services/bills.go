package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

// ensureConcurrency bounds the status ensure fan-out per month listing.
const ensureConcurrency = 8

// MonthBill is a template joined with its status for one month. Amount is the
// effective amount after any per-month override.
type MonthBill struct {
	Template core.BillTemplate `json:"template"`
	Status   core.BillStatus   `json:"status"`
	Amount   core.Money        `json:"amount"`
	DueDate  time.Time         `json:"dueDate"`
}

// BillService manages recurring bill templates and their per-month statuses.
// Statuses are created lazily when a month is first listed, never by a
// background job, so a user who never opens a month never grows rows for it.
type BillService struct {
	store        store.Store
	transactions *TransactionService
}

func NewBillService(st store.Store, txs *TransactionService) *BillService {
	return &BillService{store: st, transactions: txs}
}

// CreateTemplate registers a new recurring bill.
func (s *BillService) CreateTemplate(ctx context.Context, t core.BillTemplate) (core.BillTemplate, error) {
	t.Amount = t.Amount.Abs()
	t.Active = true
	if err := s.resolveCategory(ctx, &t); err != nil {
		return core.BillTemplate{}, err
	}
	if err := t.Validate(); err != nil {
		return core.BillTemplate{}, err
	}
	return s.store.Templates().Create(ctx, t)
}

// UpdateTemplate rewrites a bill template. Existing statuses keep their
// overrides; months without an override pick up the new default amount.
func (s *BillService) UpdateTemplate(ctx context.Context, t core.BillTemplate) (core.BillTemplate, error) {
	old, err := s.store.Templates().GetByID(ctx, t.UID, t.ID)
	if err != nil {
		return core.BillTemplate{}, err
	}
	t.Amount = t.Amount.Abs()
	t.CreatedAt = old.CreatedAt
	if err := s.resolveCategory(ctx, &t); err != nil {
		return core.BillTemplate{}, err
	}
	if err := t.Validate(); err != nil {
		return core.BillTemplate{}, err
	}
	return s.store.Templates().Update(ctx, t)
}

// DeleteTemplate removes a template and cascades to its statuses. Linked
// payment transactions survive as ordinary ledger history.
func (s *BillService) DeleteTemplate(ctx context.Context, uid, id string) error {
	if err := s.store.Templates().Delete(ctx, uid, id); err != nil {
		return err
	}
	if err := s.store.Statuses().DeleteByTemplate(ctx, uid, id); err != nil {
		return fmt.Errorf("cascade bill statuses: %w", err)
	}
	return nil
}

// GetTemplate returns one template.
func (s *BillService) GetTemplate(ctx context.Context, uid, id string) (core.BillTemplate, error) {
	return s.store.Templates().GetByID(ctx, uid, id)
}

// ListTemplates returns the user's templates ordered by due day.
func (s *BillService) ListTemplates(ctx context.Context, uid string, limit int) ([]core.BillTemplate, error) {
	return s.store.Templates().ListByUser(ctx, uid, limit)
}

func (s *BillService) resolveCategory(ctx context.Context, t *core.BillTemplate) error {
	if t.CategoryID == "" {
		t.CategoryName = ""
		return nil
	}
	category, err := s.store.Categories().GetByID(ctx, t.UID, t.CategoryID)
	if err != nil {
		return fmt.Errorf("resolve category: %w", err)
	}
	t.CategoryName = category.Name
	return nil
}

// EnsureStatusForMonth guarantees a status record exists for (template,
// month) and returns it. Concurrent callers converge on the first writer's
// record.
func (s *BillService) EnsureStatusForMonth(ctx context.Context, uid, templateID string, monthKey core.MonthKey) (core.BillStatus, error) {
	if err := monthKey.Validate(); err != nil {
		return core.BillStatus{}, err
	}
	if status, err := s.store.Statuses().GetByTemplateAndMonth(ctx, uid, templateID, monthKey); err == nil {
		return status, nil
	}
	return s.store.Statuses().Ensure(ctx, core.BillStatus{
		UID:        uid,
		TemplateID: templateID,
		MonthKey:   monthKey,
		State:      core.StatusOpen,
	})
}

// ListForMonth returns every active bill joined with its status for one
// month, ordered by due day. Missing statuses are created on the way.
func (s *BillService) ListForMonth(ctx context.Context, uid string, monthKey core.MonthKey) ([]MonthBill, error) {
	if err := monthKey.Validate(); err != nil {
		return nil, err
	}

	templates, err := s.store.Templates().ListActive(ctx, uid, 0)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}

	bills := make([]MonthBill, len(templates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ensureConcurrency)
	for i, tpl := range templates {
		g.Go(func() error {
			status, err := s.EnsureStatusForMonth(gctx, uid, tpl.ID, monthKey)
			if err != nil {
				return fmt.Errorf("ensure status for template %s: %w", tpl.ID, err)
			}
			bills[i] = MonthBill{
				Template: tpl,
				Status:   status,
				Amount:   status.EffectiveAmount(tpl),
				DueDate:  monthKey.DueDate(tpl.DueDay),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].Template.DueDay < bills[j].Template.DueDay
	})
	return bills, nil
}

// upcomingLimit caps the upcoming-bills list at a dashboard-sized page.
const upcomingLimit = 20

// ListUpcoming returns unpaid bills due within the next `days` days,
// spanning the current and the following month.
func (s *BillService) ListUpcoming(ctx context.Context, uid string, now time.Time, days int) ([]MonthBill, error) {
	if days <= 0 {
		days = 7
	}
	horizon := now.AddDate(0, 0, days)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var upcoming []MonthBill
	for _, monthKey := range []core.MonthKey{core.MonthKeyOf(now), core.MonthKeyOf(now).Next()} {
		bills, err := s.ListForMonth(ctx, uid, monthKey)
		if err != nil {
			return nil, err
		}
		for _, b := range bills {
			if b.Status.State == core.StatusPaid {
				continue
			}
			if b.DueDate.Before(today) || b.DueDate.After(horizon) {
				continue
			}
			upcoming = append(upcoming, b)
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DueDate.Before(upcoming[j].DueDate)
	})
	if len(upcoming) > upcomingLimit {
		upcoming = upcoming[:upcomingLimit]
	}
	return upcoming, nil
}

// MarkPaid flips a status to paid and writes the payment as an auto-created
// expense transaction linked back to the status. The payment is dated at the
// bill's due date so a retroactive payment lands in the bill's month, not the
// month the button was pressed in. Paying an already paid bill is a no-op.
func (s *BillService) MarkPaid(ctx context.Context, uid, statusID, accountID string, now time.Time) (core.BillStatus, error) {
	status, err := s.store.Statuses().GetByID(ctx, uid, statusID)
	if err != nil {
		return core.BillStatus{}, err
	}
	if status.State == core.StatusPaid {
		return status, nil
	}

	tpl, err := s.store.Templates().GetByID(ctx, uid, status.TemplateID)
	if err != nil {
		return core.BillStatus{}, fmt.Errorf("load template: %w", err)
	}

	payment := core.Transaction{
		UID:                   uid,
		AccountID:             accountID,
		CategoryID:            tpl.CategoryID,
		Type:                  core.Expense,
		Amount:                status.EffectiveAmount(tpl),
		Description:           tpl.Title,
		Date:                  status.MonthKey.DueDate(tpl.DueDay),
		AutoCreated:           true,
		LinkedPayableStatusID: status.ID,
	}
	created, err := s.transactions.Create(ctx, payment)
	if err != nil {
		return core.BillStatus{}, fmt.Errorf("create payment transaction: %w", err)
	}

	paidAt := now
	status.State = core.StatusPaid
	status.PaidAt = &paidAt
	status.LinkedTransactionID = created.ID
	updated, err := s.store.Statuses().Update(ctx, status)
	if err != nil {
		// Roll the payment back so the ledger and the status agree.
		if delErr := s.transactions.Delete(ctx, uid, created.ID); delErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back payment transaction",
				"uid", uid, "transaction_id", created.ID, "error", delErr)
		}
		return core.BillStatus{}, fmt.Errorf("update bill status: %w", err)
	}
	return updated, nil
}

// MarkOpen reopens a paid status and deletes the linked payment transaction,
// restoring the account balance and the month's summary to their pre-payment
// state. Reopening an open status is a no-op.
func (s *BillService) MarkOpen(ctx context.Context, uid, statusID string) (core.BillStatus, error) {
	status, err := s.store.Statuses().GetByID(ctx, uid, statusID)
	if err != nil {
		return core.BillStatus{}, err
	}
	if status.State == core.StatusOpen {
		return status, nil
	}

	if status.LinkedTransactionID != "" {
		err := s.transactions.Delete(ctx, uid, status.LinkedTransactionID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return core.BillStatus{}, fmt.Errorf("delete payment transaction: %w", err)
		}
		// Deleting the linked transaction already reopened the status.
		return s.store.Statuses().GetByID(ctx, uid, statusID)
	}

	status.State = core.StatusOpen
	status.PaidAt = nil
	status.LinkedTransactionID = ""
	updated, err := s.store.Statuses().Update(ctx, status)
	if err != nil {
		return core.BillStatus{}, err
	}
	// No linked transaction to delete, but the summary may still carry a
	// stale payment row; recompute the month to be safe.
	s.transactions.refreshSummary(ctx, uid, status.MonthKey)
	return updated, nil
}

// SetAmountOverride sets or clears (amount == nil) the per-month amount of
// one status. When the bill is already paid, the linked payment transaction
// is rewritten so the ledger matches the new amount.
func (s *BillService) SetAmountOverride(ctx context.Context, uid, statusID string, amount *core.Money) (core.BillStatus, error) {
	status, err := s.store.Statuses().GetByID(ctx, uid, statusID)
	if err != nil {
		return core.BillStatus{}, err
	}
	if amount != nil {
		abs := amount.Abs()
		if err := abs.Validate(); err != nil {
			return core.BillStatus{}, err
		}
		status.AmountOverride = &abs
	} else {
		status.AmountOverride = nil
	}

	updated, err := s.store.Statuses().Update(ctx, status)
	if err != nil {
		return core.BillStatus{}, fmt.Errorf("update bill status: %w", err)
	}

	if updated.State == core.StatusPaid && updated.LinkedTransactionID != "" {
		tpl, err := s.store.Templates().GetByID(ctx, uid, updated.TemplateID)
		if err != nil {
			return core.BillStatus{}, fmt.Errorf("load template: %w", err)
		}
		payment, err := s.transactions.Get(ctx, uid, updated.LinkedTransactionID)
		if err != nil {
			return core.BillStatus{}, fmt.Errorf("load payment transaction: %w", err)
		}
		payment.Amount = updated.EffectiveAmount(tpl)
		if _, err := s.transactions.Update(ctx, payment); err != nil {
			return core.BillStatus{}, fmt.Errorf("rewrite payment transaction: %w", err)
		}
	}

	return updated, nil
}
